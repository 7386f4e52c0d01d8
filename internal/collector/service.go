package collector

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/blockedby/tgvideo/internal/caption"
	"github.com/blockedby/tgvideo/internal/models"
	"github.com/blockedby/tgvideo/internal/telegram"
	"github.com/google/uuid"
)

// DownloadResult describes the outcome of DownloadOne.
type DownloadResult struct {
	Path    string
	Title   string
	Skipped bool          // already downloaded, nothing transferred
	Video   *models.Video // the stored record
}

// ItemError is a failed download inside a batch.
type ItemError struct {
	MessageID int
	Err       error
}

// BatchResult contains batch download statistics
type BatchResult struct {
	RunID      uuid.UUID
	Found      int
	Downloaded int
	Skipped    int
	Failed     []ItemError
}

// VideoTitle returns the display title of a video message, paired against history.
func VideoTitle(msg *telegram.Message, history []*telegram.Message) string {
	description, _ := caption.FindDescription(history, msg)
	if title := caption.ExtractTitle(description); title != "" {
		return title
	}
	return fmt.Sprintf("Video %d", msg.ID)
}

// DownloadOne downloads a single video message and records it.
// A message already recorded as downloaded is not fetched again; its stored path is returned.
// On failure no record is written, so a later call retries.
// An unfinished record left by an older run is completed in place.
func (s *Service) DownloadOne(ctx context.Context, msg *telegram.Message, history []*telegram.Message) (*DownloadResult, error) {
	media := msg.VideoMedia()
	if media == nil {
		return nil, fmt.Errorf("%w: message %d", ErrNotVideo, msg.ID)
	}

	existing, err := s.videos.GetByMessageID(ctx, int64(msg.ID))
	if err != nil {
		return nil, fmt.Errorf("check existing: %w", err)
	}
	if existing != nil && existing.IsDownloaded {
		s.log.Info().Int("message_id", msg.ID).Str("path", existing.FilePath).Msg("collector: already downloaded, skipping")
		return &DownloadResult{Path: existing.FilePath, Skipped: true, Video: existing}, nil
	}

	uniqueID := media.UniqueID()
	dup, err := s.videos.GetByFileUniqueID(ctx, uniqueID)
	if err != nil {
		return nil, fmt.Errorf("check duplicate: %w", err)
	}
	if dup != nil && dup.IsDownloaded {
		s.log.Info().
			Int("message_id", msg.ID).
			Int64("original_message_id", dup.MessageID).
			Msg("collector: same file already downloaded from another message, skipping")
		return &DownloadResult{Path: dup.FilePath, Skipped: true, Video: dup}, nil
	}

	description, _ := caption.FindDescription(history, msg)
	title := caption.ExtractTitle(description)
	if title == "" {
		title = fmt.Sprintf("Video %d", msg.ID)
	}

	if err := os.MkdirAll(s.videosDir, 0755); err != nil {
		return nil, fmt.Errorf("create videos directory: %w", err)
	}

	dest, reuse, err := s.destination(BuildFileName(title, media.FileName, msg.ID), msg.ID, media.Size)
	if err != nil {
		return nil, err
	}

	log := s.log.With().Int("message_id", msg.ID).Str("path", dest).Logger()
	if reuse {
		log.Info().Msg("collector: file already on disk with matching size, not downloading")
	} else {
		log.Info().Str("title", title).Int64("size", media.Size).Msg("collector: downloading")
		if err := s.fetch(ctx, media, title, dest); err != nil {
			log.Error().Err(err).Msg("collector: download failed")
			return nil, err
		}
	}

	video := &models.Video{
		MessageID:    int64(msg.ID),
		ChannelID:    s.source,
		FileName:     filepath.Base(dest),
		FilePath:     dest,
		FileSize:     media.Size,
		MessageDate:  msg.Date,
		DownloadedAt: time.Now(),
		IsDownloaded: true,
		FileUniqueID: uniqueID,
	}
	if description != "" {
		video.Description = &description
	}
	if err := s.record(ctx, video, existing, dup); err != nil {
		return nil, fmt.Errorf("save video record: %w", err)
	}

	log.Info().Msg("collector: video downloaded")
	return &DownloadResult{Path: dest, Title: title, Video: video}, nil
}

// record stores a finished download. A row left with is_downloaded=false,
// matched by message id or file fingerprint, is taken over instead of
// inserting a second one that would break the unique indexes.
func (s *Service) record(ctx context.Context, video, byMessage, byFile *models.Video) error {
	stale := byMessage
	if stale == nil {
		stale = byFile
	}
	if stale == nil {
		return s.videos.Create(ctx, video)
	}

	s.log.Info().
		Uint("id", stale.ID).
		Int64("message_id", video.MessageID).
		Msg("collector: completing unfinished video record")
	video.ID = stale.ID
	if video.ThumbnailPath == nil {
		video.ThumbnailPath = stale.ThumbnailPath
	}
	return s.videos.Save(ctx, video)
}

// destination picks the file path for a download. An existing file of the
// expected size is reused; any other existing file gets a _<message id> suffix.
func (s *Service) destination(name string, messageID int, size int64) (path string, reuse bool, err error) {
	candidates := []string{
		filepath.Join(s.videosDir, name),
		filepath.Join(s.videosDir, withSuffix(name, messageID)),
	}

	for i, p := range candidates {
		st, err := os.Stat(p)
		if errors.Is(err, os.ErrNotExist) {
			return p, false, nil
		}
		if err != nil {
			return "", false, fmt.Errorf("stat %s: %w", p, err)
		}
		if size > 0 && st.Size() == size {
			return p, true, nil
		}
		if i == len(candidates)-1 {
			// suffixed name is ours, a wrong size means an earlier broken copy
			return p, false, nil
		}
	}
	return candidates[0], false, nil
}

// fetch downloads media into dest via a .part file renamed on success.
func (s *Service) fetch(ctx context.Context, media *telegram.Media, title, dest string) (err error) {
	part := dest + ".part"
	f, err := os.OpenFile(part, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("create part file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(part)
		}
	}()

	s.progress.Start(title, media.Size)
	written, err := s.tgClient.Download(ctx, media, f, s.progress.Update)
	s.progress.Finish()
	if closeErr := f.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("close part file: %w", closeErr)
	}
	if err != nil {
		return err
	}
	if media.Size > 0 && written != media.Size {
		return fmt.Errorf("%w: got %d of %d bytes", ErrSizeMismatch, written, media.Size)
	}

	if err := os.Rename(part, dest); err != nil {
		return fmt.Errorf("move part file: %w", err)
	}
	return nil
}

// DownloadBatchByDate downloads every video posted from start through end.
// Item failures are collected and the batch continues; only a cancelled
// context or a failed scan stops it.
func (s *Service) DownloadBatchByDate(ctx context.Context, start, end time.Time) (*BatchResult, error) {
	scan, err := s.Scan(ctx, start, end)
	if err != nil {
		return nil, err
	}
	return s.DownloadMessages(ctx, scan.Videos, scan.Messages)
}

// DownloadAll downloads every video in the source channel.
func (s *Service) DownloadAll(ctx context.Context) (*BatchResult, error) {
	scan, err := s.ScanAll(ctx)
	if err != nil {
		return nil, err
	}
	return s.DownloadMessages(ctx, scan.Videos, scan.Messages)
}

// DownloadMessages downloads the given videos in order, pairing captions against history.
func (s *Service) DownloadMessages(ctx context.Context, videos, history []*telegram.Message) (*BatchResult, error) {
	res := &BatchResult{RunID: uuid.New(), Found: len(videos)}
	log := s.log.With().Str("run_id", res.RunID.String()).Logger()
	log.Info().Int("videos", len(videos)).Int("messages", len(history)).Msg("collector: batch started")

	for _, msg := range videos {
		if err := ctx.Err(); err != nil {
			log.Warn().Int("downloaded", res.Downloaded).Msg("collector: batch cancelled")
			return res, err
		}

		out, err := s.DownloadOne(ctx, msg, history)
		if err != nil {
			res.Failed = append(res.Failed, ItemError{MessageID: msg.ID, Err: err})
			log.Error().Err(err).Int("message_id", msg.ID).Msg("collector: item failed, continuing")
			continue
		}
		if out.Skipped {
			res.Skipped++
			continue
		}
		res.Downloaded++
	}

	log.Info().
		Int("found", res.Found).
		Int("downloaded", res.Downloaded).
		Int("skipped", res.Skipped).
		Int("failed", len(res.Failed)).
		Msg("collector: batch completed")
	return res, nil
}
