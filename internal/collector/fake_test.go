package collector

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/blockedby/tgvideo/internal/logger"
	"github.com/blockedby/tgvideo/internal/repository"
	"github.com/blockedby/tgvideo/internal/telegram"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakeTelegram serves a fixed history, newest first.
type fakeTelegram struct {
	chat       *telegram.Chat
	history    []*telegram.Message
	content    map[int64][]byte // media id -> file bytes
	failWith   map[int64]error  // media id -> error after writing half the bytes
	resolveErr error

	resolves  int
	visited   int // messages handed to the IterHistory callback
	downloads map[int64]int
	lastOpts  telegram.HistoryOptions
}

func newFakeTelegram(history ...*telegram.Message) *fakeTelegram {
	f := &fakeTelegram{
		chat:      &telegram.Chat{ID: 1, Kind: telegram.KindChannel, Title: "Source", Broadcast: true},
		history:   history,
		content:   map[int64][]byte{},
		failWith:  map[int64]error{},
		downloads: map[int64]int{},
	}
	for _, m := range history {
		if media := m.VideoMedia(); media != nil {
			data := make([]byte, media.Size)
			for i := range data {
				data[i] = byte(m.ID)
			}
			f.content[media.ID] = data
		}
	}
	return f
}

func (f *fakeTelegram) ResolveChat(ctx context.Context, ref string) (*telegram.Chat, error) {
	f.resolves++
	if f.resolveErr != nil {
		return nil, f.resolveErr
	}
	return f.chat, nil
}

func (f *fakeTelegram) IterHistory(ctx context.Context, chat *telegram.Chat, opts telegram.HistoryOptions, fn func(*telegram.Message) error) error {
	f.lastOpts = opts
	for _, m := range f.history {
		if !opts.OffsetDate.IsZero() && !m.Date.Before(opts.OffsetDate) {
			continue
		}
		f.visited++
		if err := fn(m); err != nil {
			if errors.Is(err, telegram.ErrStopIteration) {
				return nil
			}
			return err
		}
	}
	return nil
}

func (f *fakeTelegram) Download(ctx context.Context, media *telegram.Media, w io.Writer, progress telegram.ProgressFunc) (int64, error) {
	f.downloads[media.ID]++
	data := f.content[media.ID]

	if err, ok := f.failWith[media.ID]; ok {
		n, _ := w.Write(data[:len(data)/2])
		return int64(n), err
	}

	n, err := w.Write(data)
	if progress != nil {
		progress(int64(n), media.Size)
	}
	return int64(n), err
}

func at(day, hour int) time.Time {
	return time.Date(2024, 3, day, hour, 0, 0, 0, time.UTC)
}

func text(id int, date time.Time, body string) *telegram.Message {
	return &telegram.Message{ID: id, Date: date, Text: body}
}

func video(id int, date time.Time) *telegram.Message {
	return &telegram.Message{ID: id, Date: date, Video: &telegram.Media{
		ID:       int64(1000 + id),
		FileName: "clip.mp4",
		MimeType: "video/mp4",
		Size:     int64(60 + id),
	}}
}

type testEnv struct {
	svc  *Service
	tg   *fakeTelegram
	repo *repository.VideosRepository
	dir  string
}

func newTestEnv(t *testing.T, tg *fakeTelegram, opts ...Option) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "videos.db")), &gorm.Config{})
	require.NoError(t, err)
	repo := repository.NewVideosRepository(db)
	require.NoError(t, repo.AutoMigrate(context.Background()))

	dir := filepath.Join(t.TempDir(), "videos")
	log := logger.NewWithWriter("debug", io.Discard)
	return &testEnv{
		svc:  NewService(tg, repo, "@source", dir, log, opts...),
		tg:   tg,
		repo: repo,
		dir:  dir,
	}
}
