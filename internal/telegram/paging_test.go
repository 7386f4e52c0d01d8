package telegram

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gotd/td/tg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeHistory serves n messages with ids n..1, one minute apart, the way
// MessagesGetHistory filters by offset id or offset date.
type fakeHistory struct {
	messages []tg.MessageClass
	calls    [][3]int // offsetID, offsetDate, limit
}

func newFakeHistory(n int) *fakeHistory {
	base := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC).Unix()
	f := &fakeHistory{}
	for id := n; id >= 1; id-- {
		f.messages = append(f.messages, &tg.Message{ID: id, Date: int(base) + id*60, Message: "m"})
	}
	return f
}

func (f *fakeHistory) fetch(_ context.Context, offsetID, offsetDate, limit int) ([]tg.MessageClass, error) {
	f.calls = append(f.calls, [3]int{offsetID, offsetDate, limit})
	var page []tg.MessageClass
	for _, raw := range f.messages {
		m := raw.(interface{ GetID() int })
		switch {
		case offsetID > 0 && m.GetID() >= offsetID:
			continue
		case offsetID == 0 && offsetDate > 0 && messageUnix(raw) >= offsetDate:
			continue
		}
		page = append(page, raw)
		if len(page) == limit {
			break
		}
	}
	return page, nil
}

func messageUnix(raw tg.MessageClass) int {
	switch m := raw.(type) {
	case *tg.Message:
		return m.Date
	case *tg.MessageService:
		return m.Date
	}
	return 0
}

func collectIDs(t *testing.T, f *fakeHistory, opts HistoryOptions, stopAt int) []int {
	t.Helper()
	var ids []int
	err := walkHistory(context.Background(), f.fetch, 1, opts, func(m *Message) error {
		ids = append(ids, m.ID)
		if m.ID == stopAt {
			return ErrStopIteration
		}
		return nil
	})
	require.NoError(t, err)
	return ids
}

func TestWalkHistory_PagesByOffsetID(t *testing.T) {
	f := newFakeHistory(250)

	ids := collectIDs(t, f, HistoryOptions{}, -1)
	require.Len(t, ids, 250)
	assert.Equal(t, 250, ids[0])
	assert.Equal(t, 1, ids[249])

	assert.Equal(t, [][3]int{{0, 0, 100}, {151, 0, 100}, {51, 0, 100}}, f.calls)
}

func TestWalkHistory_OffsetDateOnlyAnchorsFirstPage(t *testing.T) {
	f := newFakeHistory(250)
	anchor := time.Unix(int64(messageUnix(f.messages[50])), 0) // message 200

	ids := collectIDs(t, f, HistoryOptions{OffsetDate: anchor}, -1)
	require.Len(t, ids, 199)
	assert.Equal(t, 199, ids[0])

	require.Len(t, f.calls, 2)
	assert.Equal(t, [3]int{0, int(anchor.Unix()), 100}, f.calls[0])
	assert.Equal(t, [3]int{100, 0, 100}, f.calls[1])
}

func TestWalkHistory_Limit(t *testing.T) {
	f := newFakeHistory(250)

	ids := collectIDs(t, f, HistoryOptions{Limit: 120}, -1)
	assert.Len(t, ids, 120)
	assert.Equal(t, [][3]int{{0, 0, 100}, {151, 0, 20}}, f.calls)
}

func TestWalkHistory_StopIterationEndsPaging(t *testing.T) {
	f := newFakeHistory(250)

	ids := collectIDs(t, f, HistoryOptions{}, 240)
	assert.Len(t, ids, 11)
	assert.Len(t, f.calls, 1)
}

func TestWalkHistory_SkipsServiceMessagesButAdvances(t *testing.T) {
	f := newFakeHistory(3)
	f.messages[1] = &tg.MessageService{ID: 2, Date: messageUnix(f.messages[1])}

	ids := collectIDs(t, f, HistoryOptions{}, -1)
	assert.Equal(t, []int{3, 1}, ids)
}

func TestWalkHistory_PropagatesErrors(t *testing.T) {
	boom := errors.New("boom")

	err := walkHistory(context.Background(), func(context.Context, int, int, int) ([]tg.MessageClass, error) {
		return nil, boom
	}, 1, HistoryOptions{}, func(*Message) error { return nil })
	assert.ErrorIs(t, err, boom)

	err = walkHistory(context.Background(), newFakeHistory(5).fetch, 1, HistoryOptions{}, func(*Message) error { return boom })
	assert.ErrorIs(t, err, boom)
}

// fakeDialogs serves n channels with ids 1..n, most recent first.
type fakeDialogs struct {
	n     int
	calls []dialogOffset
}

func dialogTop(i int) int  { return 10_000 - i }
func dialogDate(i int) int { return 1_700_000_000 - i*60 }

func (f *fakeDialogs) fetch(_ context.Context, off dialogOffset, limit int) (tg.MessagesDialogsClass, error) {
	f.calls = append(f.calls, off)

	start := 1
	if off.ID != 0 {
		start = 10_000 - off.ID + 1
	}
	res := &tg.MessagesDialogsSlice{Count: f.n}
	for i := start; i <= f.n && len(res.Dialogs) < limit; i++ {
		peer := &tg.PeerChannel{ChannelID: int64(i)}
		res.Dialogs = append(res.Dialogs, &tg.Dialog{Peer: peer, TopMessage: dialogTop(i)})
		res.Messages = append(res.Messages, &tg.Message{ID: dialogTop(i), PeerID: peer, Date: dialogDate(i)})
		res.Chats = append(res.Chats, &tg.Channel{ID: int64(i), AccessHash: int64(i) * 7, Title: "c", Broadcast: true})
	}
	return res, nil
}

func TestWalkDialogs_PagesThroughEverything(t *testing.T) {
	f := &fakeDialogs{n: 250}

	chats, err := walkDialogs(context.Background(), f.fetch, nil)
	require.NoError(t, err)
	require.Len(t, chats, 250)
	for i, c := range chats {
		assert.Equal(t, int64(i+1), c.ID)
	}

	require.Len(t, f.calls, 3)
	assert.Nil(t, f.calls[0].Peer)
	assert.Equal(t, dialogOffset{
		Date: dialogDate(100),
		ID:   dialogTop(100),
		Peer: &tg.InputPeerChannel{ChannelID: 100, AccessHash: 700},
	}, f.calls[1])
	assert.Equal(t, dialogTop(200), f.calls[2].ID)
}

func TestWalkDialogs_MatchBeyondFirstPage(t *testing.T) {
	f := &fakeDialogs{n: 250}

	found, err := walkDialogs(context.Background(), f.fetch, func(c *Chat) bool { return c.ID == 201 })
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, int64(201), found[0].ID)
	assert.Equal(t, int64(1407), found[0].AccessHash)
	assert.Len(t, f.calls, 3)

	f.calls = nil
	found, err = walkDialogs(context.Background(), f.fetch, func(c *Chat) bool { return c.ID == 5 })
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Len(t, f.calls, 1)

	found, err = walkDialogs(context.Background(), f.fetch, func(c *Chat) bool { return c.ID == 999 })
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestWalkDialogs_CompleteAndNotModified(t *testing.T) {
	calls := 0
	full := func(context.Context, dialogOffset, int) (tg.MessagesDialogsClass, error) {
		calls++
		return &tg.MessagesDialogs{
			Dialogs: []tg.DialogClass{
				&tg.Dialog{Peer: &tg.PeerUser{UserID: 9}},
				&tg.Dialog{Peer: &tg.PeerChat{ChatID: 4}},
			},
			Chats: []tg.ChatClass{&tg.Chat{ID: 4, Title: "group"}},
			Users: []tg.UserClass{&tg.User{ID: 9, FirstName: "Ann"}},
		}, nil
	}
	chats, err := walkDialogs(context.Background(), full, nil)
	require.NoError(t, err)
	require.Len(t, chats, 2)
	assert.Equal(t, KindUser, chats[0].Kind)
	assert.Equal(t, KindGroup, chats[1].Kind)
	assert.Equal(t, 1, calls)

	notModified := func(context.Context, dialogOffset, int) (tg.MessagesDialogsClass, error) {
		return &tg.MessagesDialogsNotModified{Count: 3}, nil
	}
	chats, err = walkDialogs(context.Background(), notModified, nil)
	require.NoError(t, err)
	assert.Empty(t, chats)
}
