// Package collector finds videos in the source channel and downloads them.
package collector

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/blockedby/tgvideo/internal/logger"
	"github.com/blockedby/tgvideo/internal/models"
	"github.com/blockedby/tgvideo/internal/telegram"
)

// errors
var (
	ErrNotVideo       = errors.New("message has no video")
	ErrSizeMismatch   = errors.New("downloaded size does not match remote size")
	ErrAlreadyRunning = errors.New("an operation is already running")
)

// TelegramClient defines interface for telegram operations
type TelegramClient interface {
	ResolveChat(ctx context.Context, ref string) (*telegram.Chat, error)
	IterHistory(ctx context.Context, chat *telegram.Chat, opts telegram.HistoryOptions, fn func(*telegram.Message) error) error
	Download(ctx context.Context, media *telegram.Media, w io.Writer, progress telegram.ProgressFunc) (int64, error)
}

// VideoStore persists downloaded video records.
type VideoStore interface {
	GetByMessageID(ctx context.Context, messageID int64) (*models.Video, error)
	GetByFileUniqueID(ctx context.Context, fileUniqueID string) (*models.Video, error)
	Create(ctx context.Context, v *models.Video) error
	Save(ctx context.Context, v *models.Video) error
}

// ProgressReporter shows per-file download progress.
type ProgressReporter interface {
	Start(title string, total int64)
	Update(done, total int64)
	Finish()
}

type nopProgress struct{}

func (nopProgress) Start(string, int64) {}
func (nopProgress) Update(int64, int64) {}
func (nopProgress) Finish()             {}

// Service orchestrates scanning and downloading
type Service struct {
	tgClient  TelegramClient
	videos    VideoStore
	source    string // channel reference as configured
	videosDir string
	progress  ProgressReporter
	log       *logger.Logger

	chatMu sync.Mutex
	chat   *telegram.Chat
}

// Option configures a Service.
type Option func(*Service)

// WithProgress sets the download progress reporter.
func WithProgress(p ProgressReporter) Option {
	return func(s *Service) {
		if p != nil {
			s.progress = p
		}
	}
}

// NewService creates a new collector service
func NewService(
	tgClient TelegramClient,
	videos VideoStore,
	source string,
	videosDir string,
	log *logger.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		tgClient:  tgClient,
		videos:    videos,
		source:    source,
		videosDir: videosDir,
		progress:  nopProgress{},
		log:       log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// sourceChat resolves the source channel once and caches it.
// A failed resolution is retried on the next call.
func (s *Service) sourceChat(ctx context.Context) (*telegram.Chat, error) {
	s.chatMu.Lock()
	defer s.chatMu.Unlock()

	if s.chat != nil {
		return s.chat, nil
	}
	chat, err := s.tgClient.ResolveChat(ctx, s.source)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("chat", chat.String()).Msg("collector: source channel resolved")
	s.chat = chat
	return chat, nil
}
