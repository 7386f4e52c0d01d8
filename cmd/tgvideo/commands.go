package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/blockedby/tgvideo/internal/config"
	"github.com/blockedby/tgvideo/internal/database"
	"github.com/blockedby/tgvideo/internal/migrator"
	"github.com/blockedby/tgvideo/internal/repository"
	"github.com/blockedby/tgvideo/internal/telegram"
	"github.com/blockedby/tgvideo/migrations"
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	var down int

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "create or upgrade the videos table",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			db, err := database.New(ctx, cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("connect to database: %w", err)
			}
			defer db.Close()

			if db.Dialect != database.DialectPostgres {
				if down > 0 {
					return fmt.Errorf("--down is only supported on postgres")
				}
				if err := repository.NewVideosRepository(db.GORM).AutoMigrate(ctx); err != nil {
					return err
				}
				log.Info().Msg("sqlite schema up to date")
				return nil
			}

			m, err := migrator.NewWithFS(migrations.FS)
			if err != nil {
				return err
			}
			if down > 0 {
				err = m.Down(ctx, db.URL, down)
			} else {
				err = m.Up(ctx, db.URL)
			}
			if err != nil {
				return err
			}

			version, dirty, err := m.Version(ctx, db.URL)
			if err != nil {
				return err
			}
			log.Info().Uint("version", version).Bool("dirty", dirty).Msg("migrations applied")
			return nil
		},
	}
	cmd.Flags().IntVar(&down, "down", 0, "roll back this many migrations")
	return cmd
}

func newChannelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "channels",
		Short: "list chats the account can see, with ids usable as TG_SOURCE_CHANNEL",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.TGApiID <= 0 || cfg.TGApiHash == "" {
				return config.ErrMissingCredentials
			}
			ctx := cmd.Context()

			tgClient, err := connectTelegram(ctx, cfg)
			if err != nil {
				return fmt.Errorf("connect to telegram: %w", err)
			}
			defer tgClient.Close()

			chats, err := tgClient.Dialogs(ctx)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tKIND\tTITLE\tUSERNAME")
			for _, c := range chats {
				if c.Kind == telegram.KindUser {
					continue
				}
				id := fmt.Sprint(c.ID)
				if c.Kind == telegram.KindChannel {
					id = fmt.Sprintf("-100%d", c.ID)
				}
				username := ""
				if c.Username != "" {
					username = "@" + c.Username
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", id, c.Kind, c.Title, username)
			}
			return w.Flush()
		},
	}
}

func newSessionCmd() *cobra.Command {
	session := &cobra.Command{
		Use:   "session",
		Short: "manage the local telegram session",
	}
	session.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "delete the session file, forcing a new login",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			removed, err := telegram.ClearSession(cfg.TGSessionPath)
			for _, path := range removed {
				fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", path)
			}
			if err != nil {
				return err
			}
			if len(removed) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "no session files at %s\n", cfg.TGSessionPath)
			}
			return nil
		},
	})
	return session
}

func newConfigCmd() *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "inspect configuration",
	}
	cfgCmd.AddCommand(&cobra.Command{
		Use:   "check [file]",
		Short: "parse and validate a yaml config file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.DefaultConfigFile
			if len(args) == 1 {
				path = args[0]
			}
			cfg, err := config.LoadFile(path)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: ok\n", path)
			if err := cfg.ValidateRepost(); err != nil {
				fmt.Fprintf(out, "note: %v\n", err)
			}
			return nil
		},
	})
	return cfgCmd
}
