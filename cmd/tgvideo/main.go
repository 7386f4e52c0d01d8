package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/blockedby/tgvideo/internal/cli"
	"github.com/blockedby/tgvideo/internal/collector"
	"github.com/blockedby/tgvideo/internal/config"
	"github.com/blockedby/tgvideo/internal/database"
	"github.com/blockedby/tgvideo/internal/logger"
	"github.com/blockedby/tgvideo/internal/migrator"
	"github.com/blockedby/tgvideo/internal/publisher"
	"github.com/blockedby/tgvideo/internal/repository"
	"github.com/blockedby/tgvideo/internal/telegram"
	"github.com/blockedby/tgvideo/migrations"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:          "tgvideo",
		Short:        "download videos from a telegram channel and repost them",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if configFile != "" {
				_ = os.Setenv("CONFIG_FILE", configFile)
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMenu(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "yaml config file (default config.yml)")

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "start the interactive menu (default)",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runMenu(cmd.Context())
			},
		},
		newMigrateCmd(),
		newChannelsCmd(),
		newSessionCmd(),
		newConfigCmd(),
	)
	return root
}

// setup loads and validates config and initializes the global logger.
func setup() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := logger.Init(cfg.LogLevel, cfg.LogFile); err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logger.Get(), nil
}

// openStore connects to the database and brings the videos schema up to date.
func openStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (*database.DB, *repository.VideosRepository, error) {
	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	repo := repository.NewVideosRepository(db.GORM)

	if err := migrateSchema(ctx, db, repo); err != nil {
		db.Close()
		return nil, nil, err
	}
	log.Debug().Str("dialect", string(db.Dialect)).Msg("database ready")
	return db, repo, nil
}

func migrateSchema(ctx context.Context, db *database.DB, repo *repository.VideosRepository) error {
	if db.Dialect != database.DialectPostgres {
		return repo.AutoMigrate(ctx)
	}
	m, err := migrator.NewWithFS(migrations.FS)
	if err != nil {
		return err
	}
	return m.Up(ctx, db.URL)
}

// connectTelegram starts the client; the caller must Close it.
func connectTelegram(ctx context.Context, cfg *config.Config) (*telegram.Client, error) {
	manager := telegram.NewManager(cfg)
	if err := manager.Connect(ctx); err != nil {
		return nil, err
	}
	return telegram.NewClient(manager), nil
}

// watchSignals cancels the running operation on SIGINT, or the whole program
// when nothing is running. SIGTERM always stops the program.
func watchSignals(ctx context.Context, cancel context.CancelFunc, ops *collector.OperationManager, log *logger.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		for {
			select {
			case <-ctx.Done():
				return
			case sig := <-sigChan:
				if sig == syscall.SIGINT && ops.Cancel() {
					log.Info().Msg("operation cancelled by user")
					continue
				}
				log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
				cancel()
				return
			}
		}
	}()
}

func runMenu(parent context.Context) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	log.Info().Str("source", cfg.SourceChannel).Msg("starting tgvideo")

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	ops := collector.NewOperationManager()
	watchSignals(ctx, cancel, ops, log)

	db, repo, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer db.Close()

	tgClient, err := connectTelegram(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect to telegram: %w", err)
	}
	defer tgClient.Close()

	progress := cli.NewProgressBar(os.Stdout)
	svc := collector.NewService(
		tgClient,
		repo,
		cfg.SourceChannel,
		cfg.VideosDir,
		log.Component("collector"),
		collector.WithProgress(progress),
	)

	deps := cli.Deps{
		Collector: svc,
		Videos:    repo,
		Ops:       ops,
		Source:    cfg.SourceChannel,
		Log:       log.Component("cli"),
	}
	if err := cfg.ValidateRepost(); err == nil {
		deps.Publisher = publisher.NewPublisher(tgClient, cfg.DestinationChannel, progress, log.Component("publisher"))
	} else {
		log.Info().Msg("no destination channel configured, publishing disabled")
	}

	err = cli.NewMenu(os.Stdin, os.Stdout, deps).Run(ctx)
	log.Info().Msg("shutting down")
	return err
}
