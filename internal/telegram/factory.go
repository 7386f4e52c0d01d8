package telegram

import (
	"context"
	"fmt"

	"github.com/blockedby/tgvideo/internal/config"
	"github.com/celestix/gotgproto"
	"github.com/celestix/gotgproto/sessionMaker"
	"github.com/glebarez/sqlite"
)

// NewPersistentClient creates a telegram client whose session lives in a local sqlite file.
// Auth key refreshes and peer caches are written back to that file.
// With no session on disk a user account is logged in interactively on the terminal.
func NewPersistentClient(_ context.Context, cfg *config.Config) (*gotgproto.Client, error) {
	if err := ensureSessionDir(cfg.TGSessionPath); err != nil {
		return nil, err
	}

	clientOpts := &gotgproto.ClientOpts{
		Session:          sessionMaker.SqlSession(sqlite.Open(cfg.TGSessionPath)),
		DisableCopyright: true,
		InMemory:         false,
		AuthConversator:  NewTerminalAuth(cfg.TGPhone),
	}

	clientType := gotgproto.ClientTypePhone(cfg.TGPhone)
	if cfg.IsBot() {
		clientType = gotgproto.ClientTypeBot(cfg.TGBotToken)
	}

	client, err := gotgproto.NewClient(
		cfg.TGApiID,
		cfg.TGApiHash,
		clientType,
		clientOpts,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram client: %w", err)
	}

	return client, nil
}
