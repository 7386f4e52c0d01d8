package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/blockedby/tgvideo/internal/config"
	"github.com/blockedby/tgvideo/internal/logger"
	"github.com/blockedby/tgvideo/internal/telegram"
	"github.com/gotd/td/session"
	"github.com/gotd/td/session/tdesktop"
	"github.com/mdp/qrterminal/v3"
)

const (
	methodTData = iota + 1
	methodPhone
	methodQR
)

func main() {
	fmt.Println("=== telegram auth tool ===")
	fmt.Println("this tool creates the session file used by tgvideo")
	fmt.Println()

	cfg, err := config.Load()
	if err != nil {
		fail("load config", err)
	}
	if err := logger.Init(cfg.LogLevel, ""); err != nil {
		fail("init logger", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	reader := bufio.NewReader(os.Stdin)
	cfg.TGApiID, cfg.TGApiHash = getAPICredentials(reader, cfg)

	if telegram.HasSession(cfg.TGSessionPath) {
		fmt.Printf("a session already exists at %s\n", cfg.TGSessionPath)
		if ask(reader, "replace it? [y/N]: ") != "y" {
			return
		}
		if _, err := telegram.ClearSession(cfg.TGSessionPath); err != nil {
			fail("clear session", err)
		}
	}

	// try to detect telegram desktop
	tdataPath := getTelegramDesktopPath()
	accounts, tdataErr := tdesktop.Read(tdataPath, nil)
	if tdataErr != nil || len(accounts) == 0 {
		fmt.Printf("telegram desktop not found at: %s\n", tdataPath)
		if customPath := ask(reader, "enter telegram desktop path (or press enter to skip): "); customPath != "" {
			if !strings.HasSuffix(customPath, "tdata") {
				customPath = filepath.Join(customPath, "tdata")
			}
			accounts, tdataErr = tdesktop.Read(customPath, nil)
			if tdataErr == nil && len(accounts) > 0 {
				tdataPath = customPath
			}
		}
	}
	hasTData := tdataErr == nil && len(accounts) > 0

	fmt.Println()
	fmt.Println("choose authentication method:")
	if hasTData {
		fmt.Printf("  1. import telegram desktop session (%d found)\n", len(accounts))
	}
	fmt.Println("  2. phone number and login code")
	fmt.Println("  3. scan a QR code with the telegram app")

	def := methodPhone
	if hasTData {
		def = methodTData
	}
	method := def
	if n, err := strconv.Atoi(ask(reader, fmt.Sprintf("\nenter choice [%d]: ", def))); err == nil {
		method = n
	}

	switch {
	case method == methodTData && hasTData:
		err = authWithTData(cfg, accounts, reader)
	case method == methodQR:
		err = authWithQR(ctx, cfg)
	default:
		err = authWithPhone(cfg, reader)
	}
	if err != nil {
		fail("authentication", err)
	}

	// confirm the stored session works
	manager := telegram.NewManager(cfg)
	if err := manager.Connect(ctx); err != nil {
		fail("verify session", err)
	}
	defer manager.Stop()

	fmt.Println("\nauthentication successful!")
	if self := manager.GetClient().Self; self != nil {
		fmt.Printf("logged in as: @%s (%d)\n", self.Username, self.ID)
	}
	fmt.Printf("session saved to %s\n", cfg.TGSessionPath)
	fmt.Println("keep this file secret, it provides full access to your telegram account")
}

func fail(what string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", what, err)
	os.Exit(1)
}

func ask(reader *bufio.Reader, prompt string) string {
	fmt.Print(prompt)
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}

// getTelegramDesktopPath returns the path to Telegram Desktop data directory
func getTelegramDesktopPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "Telegram Desktop", "tdata")
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "Telegram Desktop", "tdata")
	default: // linux
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "TelegramDesktop", "tdata")
	}
}

// getAPICredentials takes API ID and Hash from config or prompts the user
func getAPICredentials(reader *bufio.Reader, cfg *config.Config) (int, string) {
	apiID, apiHash := cfg.TGApiID, cfg.TGApiHash

	if apiID <= 0 {
		n, err := strconv.Atoi(ask(reader, "enter your api_id (from https://my.telegram.org): "))
		if err != nil || n <= 0 {
			fail("invalid api_id", err)
		}
		apiID = n
	}
	if apiHash == "" {
		apiHash = ask(reader, "enter your api_hash: ")
	}
	return apiID, apiHash
}

// authWithTData converts a Telegram Desktop account into the session file
func authWithTData(cfg *config.Config, accounts []tdesktop.Account, reader *bufio.Reader) error {
	idx := 0
	if len(accounts) > 1 {
		fmt.Printf("\nfound %d telegram accounts:\n", len(accounts))
		for i := range accounts {
			fmt.Printf("  %d. account #%d\n", i+1, i+1)
		}
		if n, err := strconv.Atoi(ask(reader, "\nselect account number [1]: ")); err == nil && n >= 1 && n <= len(accounts) {
			idx = n - 1
		}
	}

	data, err := session.TDesktopSession(accounts[idx])
	if err != nil {
		return fmt.Errorf("read telegram desktop session: %w", err)
	}
	return telegram.SaveSession(cfg.TGSessionPath, data)
}

// authWithPhone logs in with a login code; the persistent client writes the session itself
func authWithPhone(cfg *config.Config, reader *bufio.Reader) error {
	if cfg.TGPhone == "" {
		cfg.TGPhone = ask(reader, "enter your phone number (with country code, e.g. +1234567890): ")
	}
	fmt.Println("\nauthenticating... (check telegram for the code)")

	client, err := telegram.NewPersistentClient(context.Background(), cfg)
	if err != nil {
		return err
	}
	client.Stop()
	return nil
}

// authWithQR shows login tokens as QR codes until one is scanned
func authWithQR(ctx context.Context, cfg *config.Config) error {
	fmt.Println("\nopen telegram > settings > devices > link desktop device, then scan:")

	manager := telegram.NewManager(cfg)
	stop := context.AfterFunc(ctx, manager.CancelQR)
	defer stop()

	return manager.StartQR(ctx, func(url string) {
		qrterminal.GenerateHalfBlock(url, qrterminal.L, os.Stdout)
		fmt.Println("\nwaiting for the code to be scanned (it refreshes automatically)...")
	})
}
