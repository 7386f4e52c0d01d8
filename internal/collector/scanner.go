package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/blockedby/tgvideo/internal/telegram"
)

// ScanResult holds the messages found in a date window, newest first.
type ScanResult struct {
	// Videos are the video messages dated inside [start, end of end day].
	Videos []*telegram.Message
	// Messages are all messages from the day before start through end, used to pair captions.
	Messages []*telegram.Message
}

// Scan fetches the source history for the days start..end (inclusive) and
// partitions it into video messages and caption candidates.
// The caption window opens one day before start, since titles are often
// posted the day before their video. A zero end means today.
func (s *Service) Scan(ctx context.Context, start, end time.Time) (*ScanResult, error) {
	chat, err := s.sourceChat(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve source: %w", err)
	}

	if end.IsZero() {
		end = time.Now().In(start.Location())
	}
	start = startOfDay(start)
	endOfDay := time.Date(end.Year(), end.Month(), end.Day(), 23, 59, 59, 0, end.Location())
	searchStart := start.AddDate(0, 0, -1)

	s.log.Info().
		Time("start", start).
		Time("end", endOfDay).
		Time("search_start", searchStart).
		Msg("collector: scanning history")

	res := &ScanResult{}
	opts := telegram.HistoryOptions{OffsetDate: endOfDay.Add(time.Second)}
	err = s.tgClient.IterHistory(ctx, chat, opts, func(m *telegram.Message) error {
		if m.Date.Before(searchStart) {
			return telegram.ErrStopIteration
		}
		if m.Date.After(endOfDay) {
			return nil
		}
		res.Messages = append(res.Messages, m)
		if !m.Date.Before(start) && m.IsVideo() {
			res.Videos = append(res.Videos, m)
		}
		return nil
	})
	if err != nil {
		return res, fmt.Errorf("scan history: %w", err)
	}

	s.log.Info().
		Int("videos", len(res.Videos)).
		Int("messages", len(res.Messages)).
		Msg("collector: scan completed")
	return res, nil
}

// ScanAll fetches the whole source history.
func (s *Service) ScanAll(ctx context.Context) (*ScanResult, error) {
	chat, err := s.sourceChat(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve source: %w", err)
	}

	res := &ScanResult{}
	err = s.tgClient.IterHistory(ctx, chat, telegram.HistoryOptions{}, func(m *telegram.Message) error {
		res.Messages = append(res.Messages, m)
		if m.IsVideo() {
			res.Videos = append(res.Videos, m)
		}
		return nil
	})
	if err != nil {
		return res, fmt.Errorf("scan history: %w", err)
	}
	return res, nil
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
