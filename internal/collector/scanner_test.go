package collector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/blockedby/tgvideo/internal/caption"
	"github.com/blockedby/tgvideo/internal/telegram"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(msgs []*telegram.Message) []int {
	out := make([]int, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.ID)
	}
	return out
}

func TestScan_EpisodeScenario(t *testing.T) {
	tg := newFakeTelegram(
		text(105, at(11, 10), "next day"),
		video(104, at(11, 9)),
		video(103, at(10, 12)),
		text(102, at(9, 20), "**Episode One**"),
		text(101, at(8, 10), "two days before"),
	)
	env := newTestEnv(t, tg)

	res, err := env.svc.Scan(context.Background(), at(10, 0), at(10, 0))
	require.NoError(t, err)

	assert.Equal(t, []int{103}, ids(res.Videos))
	assert.Equal(t, []int{103, 102}, ids(res.Messages))

	desc, ok := caption.FindDescription(res.Messages, res.Videos[0])
	require.True(t, ok)
	assert.Equal(t, "**Episode One**", desc)
	assert.Equal(t, "Episode One", caption.ExtractTitle(desc))
	assert.Equal(t, "Episode One", VideoTitle(res.Videos[0], res.Messages))
}

func TestScan_AnchorsAtEndOfDay(t *testing.T) {
	tg := newFakeTelegram(video(1, at(10, 12)))
	env := newTestEnv(t, tg)

	_, err := env.svc.Scan(context.Background(), at(10, 15), at(12, 8))
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 3, 13, 0, 0, 0, 0, time.UTC), tg.lastOpts.OffsetDate)
}

func TestScan_StopsAtFirstMessageBeforeWindow(t *testing.T) {
	history := []*telegram.Message{
		text(120, at(11, 1), "after end"),
		video(119, at(10, 12)),
		text(118, at(9, 20), "**Title**"),
		text(117, at(8, 23), "older than the caption window"),
	}
	for id := 116; id > 16; id-- {
		history = append(history, text(id, at(8, 0).Add(-time.Duration(117-id)*time.Hour), "old"))
	}
	tg := newFakeTelegram(history...)
	env := newTestEnv(t, tg)

	res, err := env.svc.Scan(context.Background(), at(10, 0), at(10, 0))
	require.NoError(t, err)

	assert.Equal(t, []int{119, 118}, ids(res.Messages))
	assert.Equal(t, []int{119}, ids(res.Videos))
	assert.Equal(t, 3, tg.visited, "history is read up to the first message older than the window and no further")
}

func TestScan_VideosSubsequenceOfMessages(t *testing.T) {
	tg := newFakeTelegram(
		video(20, at(12, 23)),
		text(19, at(12, 22), "caption"),
		video(18, at(11, 5)),
		video(17, at(10, 0)),
		video(16, at(9, 23)), // expanded day, not a candidate video
		text(15, at(9, 1), "title"),
		video(14, at(8, 12)),
	)
	env := newTestEnv(t, tg)

	res, err := env.svc.Scan(context.Background(), at(10, 0), at(12, 0))
	require.NoError(t, err)

	assert.Equal(t, []int{20, 18, 17}, ids(res.Videos))
	assert.Equal(t, []int{20, 19, 18, 17, 16, 15}, ids(res.Messages))

	// order-preserving subsequence
	j := 0
	for _, m := range res.Messages {
		if j < len(res.Videos) && m == res.Videos[j] {
			j++
		}
	}
	assert.Equal(t, len(res.Videos), j)
}

func TestScan_VideoDocumentCounts(t *testing.T) {
	doc := &telegram.Message{ID: 7, Date: at(10, 1), Doc: &telegram.Media{ID: 7, MimeType: "video/quicktime", Size: 8}}
	pdf := &telegram.Message{ID: 6, Date: at(10, 0), Doc: &telegram.Media{ID: 6, MimeType: "application/pdf", Size: 8}}
	env := newTestEnv(t, newFakeTelegram(doc, pdf))

	res, err := env.svc.Scan(context.Background(), at(10, 0), at(10, 0))
	require.NoError(t, err)
	assert.Equal(t, []int{7}, ids(res.Videos))
	assert.Equal(t, []int{7, 6}, ids(res.Messages))
}

func TestScan_EmptyHistory(t *testing.T) {
	env := newTestEnv(t, newFakeTelegram())

	res, err := env.svc.Scan(context.Background(), at(10, 0), at(10, 0))
	require.NoError(t, err)
	assert.Empty(t, res.Videos)
	assert.Empty(t, res.Messages)
}

func TestScan_ResolveFailure(t *testing.T) {
	tg := newFakeTelegram()
	tg.resolveErr = telegram.ErrChatNotFound
	env := newTestEnv(t, tg)

	_, err := env.svc.Scan(context.Background(), at(10, 0), at(10, 0))
	assert.True(t, errors.Is(err, telegram.ErrChatNotFound))

	// resolution is retried once the error clears, then cached
	tg.resolveErr = nil
	_, err = env.svc.Scan(context.Background(), at(10, 0), at(10, 0))
	require.NoError(t, err)
	_, err = env.svc.Scan(context.Background(), at(10, 0), at(10, 0))
	require.NoError(t, err)
	assert.Equal(t, 2, tg.resolves)
}

func TestScanAll(t *testing.T) {
	tg := newFakeTelegram(video(3, at(12, 0)), text(2, at(11, 0), "x"), video(1, at(1, 0)))
	env := newTestEnv(t, tg)

	res, err := env.svc.ScanAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{3, 1}, ids(res.Videos))
	assert.Len(t, res.Messages, 3)
	assert.True(t, tg.lastOpts.OffsetDate.IsZero())
}
