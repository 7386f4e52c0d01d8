// Package publisher reposts downloaded videos to the destination channel.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/blockedby/tgvideo/internal/collector"
	"github.com/blockedby/tgvideo/internal/logger"
	"github.com/blockedby/tgvideo/internal/telegram"
)

// MaxCaptionLen is the telegram limit for media captions, in characters.
const MaxCaptionLen = 1024

// publish errors
var (
	ErrVideoNotFound = errors.New("video file not found")
	ErrCannotPost    = errors.New("account cannot post to the destination channel")
)

// TelegramClient is the subset of the telegram client used for publishing.
type TelegramClient interface {
	ResolveChat(ctx context.Context, ref string) (*telegram.Chat, error)
	SelfStatus(ctx context.Context, chat *telegram.Chat) (telegram.MemberStatus, error)
	SendVideo(ctx context.Context, chat *telegram.Chat, v telegram.VideoUpload) (int, error)
}

// Publisher uploads local videos to one destination channel.
type Publisher struct {
	tgClient    TelegramClient
	destination string
	progress    collector.ProgressReporter
	log         *logger.Logger
}

// NewPublisher creates a publisher. progress may be nil.
func NewPublisher(tgClient TelegramClient, destination string, progress collector.ProgressReporter, log *logger.Logger) *Publisher {
	return &Publisher{
		tgClient:    tgClient,
		destination: destination,
		progress:    progress,
		log:         log,
	}
}

// Repost uploads the video at path with a caption built from description.
// A missing video fails before any network call; a missing thumbnail is dropped with a warning.
// Returns the id of the posted message.
func (p *Publisher) Repost(ctx context.Context, path, description, thumbnail string) (int, error) {
	st, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, fmt.Errorf("%w: %s", ErrVideoNotFound, path)
		}
		return 0, fmt.Errorf("stat %s: %w", path, err)
	}
	if st.IsDir() {
		return 0, fmt.Errorf("%w: %s is a directory", ErrVideoNotFound, path)
	}

	if thumbnail != "" {
		if _, err := os.Stat(thumbnail); err != nil {
			p.log.Warn().Err(err).Str("thumbnail", thumbnail).Msg("publisher: thumbnail unavailable, posting without it")
			thumbnail = ""
		}
	}

	chat, err := p.tgClient.ResolveChat(ctx, p.destination)
	if err != nil {
		return 0, fmt.Errorf("resolve destination: %w", err)
	}

	status, err := p.tgClient.SelfStatus(ctx, chat)
	switch {
	case err == nil:
		if !status.CanPost(chat.Broadcast) {
			return 0, fmt.Errorf("%w: %s is %s", ErrCannotPost, chat, status)
		}
	case status == telegram.StatusUnknown && ctx.Err() == nil:
		// telegram decides on send; a real permission problem surfaces there
		p.log.Warn().Err(err).Str("chat", chat.String()).Msg("publisher: membership check failed, trying to post anyway")
	default:
		return 0, fmt.Errorf("check membership: %w", err)
	}

	title := filepath.Base(path)
	upload := telegram.VideoUpload{
		Path:      path,
		Caption:   Caption(description, path),
		ThumbPath: thumbnail,
	}
	if p.progress != nil {
		p.progress.Start(title, st.Size())
		defer p.progress.Finish()
		upload.Progress = p.progress.Update
	}

	log := p.log.With().Str("path", path).Str("chat", chat.String()).Logger()
	log.Info().Int64("size", st.Size()).Msg("publisher: posting video")

	id, err := p.tgClient.SendVideo(ctx, chat, upload)
	if err != nil {
		log.Error().Err(err).Msg("publisher: post failed")
		return 0, err
	}

	log.Info().Int("message_id", id).Msg("publisher: video posted")
	return id, nil
}

// Caption returns the post caption: the description, or a name derived from
// the file when there is none, capped at MaxCaptionLen characters.
func Caption(description, path string) string {
	text := strings.TrimSpace(description)
	if text == "" {
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		text = strings.TrimSpace(strings.ReplaceAll(name, "_", " "))
	}
	if r := []rune(text); len(r) > MaxCaptionLen {
		text = string(r[:MaxCaptionLen])
	}
	return text
}
