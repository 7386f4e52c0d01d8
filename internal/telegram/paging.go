package telegram

import (
	"context"
	"errors"
	"fmt"

	"github.com/gotd/td/tg"
)

// dialogsPageSize is the telegram api limit for one dialogs request
const dialogsPageSize = 100

type historyFetcher func(ctx context.Context, offsetID, offsetDate, limit int) ([]tg.MessageClass, error)

// walkHistory pages through history newest first. The first request is
// anchored by opts.OffsetDate, later ones by the id of the last message seen.
func walkHistory(ctx context.Context, fetch historyFetcher, chatID int64, opts HistoryOptions, fn func(*Message) error) error {
	offsetID := 0
	offsetDate := 0
	if !opts.OffsetDate.IsZero() {
		offsetDate = int(opts.OffsetDate.Unix())
	}

	visited := 0
	for {
		limit := historyPageSize
		if opts.Limit > 0 && opts.Limit-visited < limit {
			limit = opts.Limit - visited
		}

		page, err := fetch(ctx, offsetID, offsetDate, limit)
		if err != nil {
			return err
		}
		if len(page) == 0 {
			return nil
		}

		for _, raw := range page {
			if id := raw.GetID(); id > 0 {
				offsetID = id
			}
			m := parseMessage(raw, chatID)
			if m == nil {
				continue
			}
			visited++
			if err := fn(m); err != nil {
				if errors.Is(err, ErrStopIteration) {
					return nil
				}
				return err
			}
			if opts.Limit > 0 && visited >= opts.Limit {
				return nil
			}
		}

		// offset id takes over once the first page anchored the scan
		offsetDate = 0
		if len(page) < limit {
			return nil
		}
	}
}

// dialogOffset is the position after the last dialog of a page.
type dialogOffset struct {
	Date int
	ID   int
	Peer tg.InputPeerClass // nil means start from the top
}

type dialogsFetcher func(ctx context.Context, off dialogOffset, limit int) (tg.MessagesDialogsClass, error)

// walkDialogs pages through all dialogs, most recent first, until a short page.
// With match set it stops at the first matching chat and returns only that one.
func walkDialogs(ctx context.Context, fetch dialogsFetcher, match func(*Chat) bool) ([]*Chat, error) {
	var (
		out  []*Chat
		off  dialogOffset
		seen = make(map[string]bool)
	)
	for {
		res, err := fetch(ctx, off, dialogsPageSize)
		if err != nil {
			return nil, err
		}
		page, ok := parseDialogs(res)
		if !ok {
			return out, nil
		}

		for _, chat := range page.chats {
			key := chatKey(chat.Kind, chat.ID)
			if seen[key] {
				continue
			}
			seen[key] = true
			if match == nil {
				out = append(out, chat)
				continue
			}
			if match(chat) {
				return []*Chat{chat}, nil
			}
		}

		if page.complete || page.dialogs < dialogsPageSize || page.next == nil {
			return out, nil
		}
		// a page that does not move the offset would repeat forever
		if page.next.ID == off.ID && page.next.Date == off.Date {
			return out, nil
		}
		off = *page.next
	}
}

type dialogPage struct {
	chats    []*Chat // in dialog order
	dialogs  int     // dialogs in the response, folders included
	complete bool    // the response holds every dialog
	next     *dialogOffset
}

// parseDialogs converts one dialogs response. ok is false for "not modified".
func parseDialogs(res tg.MessagesDialogsClass) (dialogPage, bool) {
	var (
		dialogs  []tg.DialogClass
		messages []tg.MessageClass
		chats    []tg.ChatClass
		users    []tg.UserClass
		complete bool
	)
	switch d := res.(type) {
	case *tg.MessagesDialogs:
		dialogs, messages, chats, users = d.Dialogs, d.Messages, d.Chats, d.Users
		complete = true
	case *tg.MessagesDialogsSlice:
		dialogs, messages, chats, users = d.Dialogs, d.Messages, d.Chats, d.Users
	default:
		return dialogPage{}, false
	}

	byKey := make(map[string]*Chat, len(chats)+len(users))
	for _, ch := range chats {
		if chat, ok := chatFromClass(ch); ok {
			byKey[chatKey(chat.Kind, chat.ID)] = chat
		}
	}
	for _, u := range users {
		if chat, ok := chatFromUser(u); ok {
			byKey[chatKey(chat.Kind, chat.ID)] = chat
		}
	}

	page := dialogPage{dialogs: len(dialogs), complete: complete}
	var last *tg.Dialog
	for _, dc := range dialogs {
		d, ok := dc.(*tg.Dialog)
		if !ok {
			continue
		}
		last = d
		if chat, ok := byKey[peerKey(d.Peer)]; ok {
			page.chats = append(page.chats, chat)
		}
	}

	if last != nil {
		if chat, ok := byKey[peerKey(last.Peer)]; ok {
			page.next = &dialogOffset{
				Date: messageDate(messages, last.Peer, last.TopMessage),
				ID:   last.TopMessage,
				Peer: chat.InputPeer(),
			}
		}
	}
	return page, true
}

func chatKey(kind ChatKind, id int64) string {
	return fmt.Sprintf("%s:%d", kind, id)
}

func peerKey(p tg.PeerClass) string {
	switch v := p.(type) {
	case *tg.PeerChannel:
		return chatKey(KindChannel, v.ChannelID)
	case *tg.PeerChat:
		return chatKey(KindGroup, v.ChatID)
	case *tg.PeerUser:
		return chatKey(KindUser, v.UserID)
	}
	return ""
}

// messageDate finds the date of message id in peer, 0 if absent.
func messageDate(messages []tg.MessageClass, peer tg.PeerClass, id int) int {
	key := peerKey(peer)
	for _, raw := range messages {
		switch m := raw.(type) {
		case *tg.Message:
			if m.ID == id && peerKey(m.PeerID) == key {
				return m.Date
			}
		case *tg.MessageService:
			if m.ID == id && peerKey(m.PeerID) == key {
				return m.Date
			}
		}
	}
	return 0
}
