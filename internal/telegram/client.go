// Package telegram provides Telegram MTProto client wrapper.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"mime"
	"path/filepath"
	"time"

	"github.com/blockedby/tgvideo/internal/logger"
	"github.com/celestix/gotgproto"
	"github.com/gotd/td/telegram/downloader"
	"github.com/gotd/td/telegram/uploader"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
)

// errors returned by the client
var (
	ErrNotAuthorized    = errors.New("telegram client not authorized")
	ErrChatNotFound     = errors.New("chat not found")
	ErrSessionCorrupted = errors.New("telegram session corrupted")

	// ErrStopIteration ends IterHistory early without error.
	ErrStopIteration = errors.New("stop iteration")
)

// historyPageSize is the telegram api limit for one history request
const historyPageSize = 100

// Client wraps gotgproto client and provides high-level telegram operations.
type Client struct {
	manager     *Manager
	rateLimiter *RateLimiter
	log         *logger.Logger
}

// NewClient creates a new telegram client wrapper using the Manager.
func NewClient(manager *Manager) *Client {
	return &Client{
		manager:     manager,
		rateLimiter: DefaultRateLimiter(),
		log:         logger.Get().Component("telegram"),
	}
}

// Close stops the client via the manager.
func (c *Client) Close() {
	if c.manager != nil {
		c.manager.Stop()
	}
}

// GetStatus returns the current status of the telegram client.
func (c *Client) GetStatus() Status {
	return c.manager.GetStatus()
}

// getProto returns the current protocol client if available.
func (c *Client) getProto() (*gotgproto.Client, error) {
	proto := c.manager.GetClient()
	if proto == nil {
		return nil, ErrNotAuthorized
	}
	return proto, nil
}

// API returns the raw tg.Client for direct API calls.
func (c *Client) API() (*tg.Client, error) {
	proto, err := c.getProto()
	if err != nil {
		return nil, err
	}
	return proto.API(), nil
}

// wait blocks on the rate limiter.
func (c *Client) wait(ctx context.Context) error {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		c.log.Error().Err(err).Msg("telegram: rate limiter wait failed")
		return err
	}
	return nil
}

// handleErr feeds FLOOD_WAIT errors back into the rate limiter.
func (c *Client) handleErr(err error) {
	if wait := checkFloodWait(err); wait > 0 {
		c.log.Warn().Int("wait_seconds", wait).Msg("telegram: FLOOD_WAIT detected, updating rate limiter")
		c.rateLimiter.SetFloodWait(wait)
	}
}

// ResolveChat resolves a username, t.me link or numeric id to a chat.
// Numeric ids are looked up among the account's dialogs.
func (c *Client) ResolveChat(ctx context.Context, ref string) (*Chat, error) {
	parsed, err := ParseChatRef(ref)
	if err != nil {
		return nil, err
	}

	if parsed.ID != 0 {
		return c.resolveByID(ctx, parsed.ID)
	}
	return c.resolveUsername(ctx, parsed.Username)
}

func (c *Client) resolveUsername(ctx context.Context, username string) (*Chat, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	c.log.Info().Str("username", username).Msg("telegram: resolving username")
	api, err := c.API()
	if err != nil {
		return nil, err
	}
	resolved, err := api.ContactsResolveUsername(ctx, &tg.ContactsResolveUsernameRequest{
		Username: username,
	})
	if err != nil {
		c.handleErr(err)
		if tgerr.Is(err, "USERNAME_NOT_OCCUPIED", "USERNAME_INVALID") {
			return nil, fmt.Errorf("%w: @%s", ErrChatNotFound, username)
		}
		return nil, fmt.Errorf("resolve username %s: %w", username, err)
	}

	switch peer := resolved.Peer.(type) {
	case *tg.PeerChannel:
		for _, ch := range resolved.Chats {
			if chat, ok := chatFromClass(ch); ok && chat.ID == peer.ChannelID {
				return chat, nil
			}
		}
	case *tg.PeerChat:
		for _, ch := range resolved.Chats {
			if chat, ok := chatFromClass(ch); ok && chat.ID == peer.ChatID {
				return chat, nil
			}
		}
	case *tg.PeerUser:
		for _, u := range resolved.Users {
			if chat, ok := chatFromUser(u); ok && chat.ID == peer.UserID {
				return chat, nil
			}
		}
	}

	return nil, fmt.Errorf("%w: @%s", ErrChatNotFound, username)
}

func (c *Client) resolveByID(ctx context.Context, id int64) (*Chat, error) {
	found, err := walkDialogs(ctx, c.fetchDialogs, func(chat *Chat) bool {
		return chat.ID == id
	})
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("%w: id %d is not among the account's dialogs", ErrChatNotFound, id)
	}
	return found[0], nil
}

// Dialogs returns every chat of the account, most recent first.
func (c *Client) Dialogs(ctx context.Context) ([]*Chat, error) {
	return walkDialogs(ctx, c.fetchDialogs, nil)
}

func (c *Client) fetchDialogs(ctx context.Context, off dialogOffset, limit int) (tg.MessagesDialogsClass, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	api, err := c.API()
	if err != nil {
		return nil, err
	}
	peer := off.Peer
	if peer == nil {
		peer = &tg.InputPeerEmpty{}
	}
	res, err := api.MessagesGetDialogs(ctx, &tg.MessagesGetDialogsRequest{
		OffsetDate: off.Date,
		OffsetID:   off.ID,
		OffsetPeer: peer,
		Limit:      limit,
	})
	if err != nil {
		c.handleErr(err)
		return nil, fmt.Errorf("get dialogs: %w", err)
	}
	return res, nil
}

// HistoryOptions controls IterHistory.
type HistoryOptions struct {
	// OffsetDate starts the scan at messages sent before this moment. Zero means newest.
	OffsetDate time.Time
	// Limit caps the number of messages visited. Zero means the whole history.
	Limit int
}

// IterHistory walks the chat history from newest to oldest, calling fn for each message.
// Returning ErrStopIteration from fn ends the walk with a nil error.
func (c *Client) IterHistory(ctx context.Context, chat *Chat, opts HistoryOptions, fn func(*Message) error) error {
	fetch := func(ctx context.Context, offsetID, offsetDate, limit int) ([]tg.MessageClass, error) {
		return c.getHistory(ctx, chat, offsetID, offsetDate, limit)
	}
	return walkHistory(ctx, fetch, chat.ID, opts, fn)
}

func (c *Client) getHistory(ctx context.Context, chat *Chat, offsetID, offsetDate, limit int) ([]tg.MessageClass, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	c.log.Debug().Int64("chat_id", chat.ID).Int("offset_id", offsetID).Int("limit", limit).Msg("telegram: calling MessagesGetHistory API")
	api, err := c.API()
	if err != nil {
		return nil, err
	}
	history, err := api.MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
		Peer:       chat.InputPeer(),
		OffsetID:   offsetID,
		OffsetDate: offsetDate,
		Limit:      limit,
	})
	if err != nil {
		c.handleErr(err)
		c.log.Error().Err(err).Int("offset_id", offsetID).Msg("telegram: MessagesGetHistory failed")
		return nil, fmt.Errorf("get history: %w", err)
	}

	switch h := history.(type) {
	case *tg.MessagesChannelMessages:
		return h.Messages, nil
	case *tg.MessagesMessagesSlice:
		return h.Messages, nil
	case *tg.MessagesMessages:
		return h.Messages, nil
	}
	return nil, nil
}

// Download streams the media into w and returns the number of bytes written.
func (c *Client) Download(ctx context.Context, media *Media, w io.Writer, progress ProgressFunc) (int64, error) {
	if err := c.wait(ctx); err != nil {
		return 0, err
	}

	api, err := c.API()
	if err != nil {
		return 0, err
	}

	pw := &progressWriter{w: w, total: media.Size, fn: progress}
	_, err = downloader.NewDownloader().
		Download(api, media.Location()).
		Stream(ctx, pw)
	if err != nil {
		c.handleErr(err)
		return pw.done, fmt.Errorf("download document %d: %w", media.ID, err)
	}
	return pw.done, nil
}

// SelfStatus returns the membership status of the current account in chat.
func (c *Client) SelfStatus(ctx context.Context, chat *Chat) (MemberStatus, error) {
	switch chat.Kind {
	case KindUser:
		return StatusMember, nil
	case KindGroup:
		// basic groups have no participant lookup for self; reachable means member
		return StatusMember, nil
	}

	if err := c.wait(ctx); err != nil {
		return StatusUnknown, err
	}

	api, err := c.API()
	if err != nil {
		return StatusUnknown, err
	}
	res, err := api.ChannelsGetParticipant(ctx, &tg.ChannelsGetParticipantRequest{
		Channel:     chat.InputChannel(),
		Participant: &tg.InputPeerSelf{},
	})
	if err != nil {
		c.handleErr(err)
		if tgerr.Is(err, "USER_NOT_PARTICIPANT") {
			return StatusLeft, nil
		}
		if tgerr.Is(err, "CHANNEL_PRIVATE") {
			return StatusBanned, nil
		}
		return StatusUnknown, fmt.Errorf("get participant: %w", err)
	}

	return statusFromParticipant(res.Participant), nil
}

// SendVideo uploads a local video and posts it to chat with streaming enabled.
// Returns the id of the new message.
func (c *Client) SendVideo(ctx context.Context, chat *Chat, v VideoUpload) (int, error) {
	api, err := c.API()
	if err != nil {
		return 0, err
	}

	up := uploader.NewUploader(api)
	if v.Progress != nil {
		up = up.WithProgress(uploadProgress(v.Progress))
	}

	c.log.Info().Str("path", v.Path).Int64("chat_id", chat.ID).Msg("telegram: uploading video")
	file, err := up.FromPath(ctx, v.Path)
	if err != nil {
		c.handleErr(err)
		return 0, fmt.Errorf("upload %s: %w", v.Path, err)
	}

	media := &tg.InputMediaUploadedDocument{
		File:     file,
		MimeType: mimeTypeOf(v.Path),
		Attributes: []tg.DocumentAttributeClass{
			&tg.DocumentAttributeVideo{
				SupportsStreaming: true,
				Duration:          v.Duration,
				W:                 v.Width,
				H:                 v.Height,
			},
			&tg.DocumentAttributeFilename{FileName: filepath.Base(v.Path)},
		},
	}

	if v.ThumbPath != "" {
		thumb, err := uploader.NewUploader(api).FromPath(ctx, v.ThumbPath)
		if err != nil {
			c.log.Warn().Err(err).Str("thumb", v.ThumbPath).Msg("telegram: thumbnail upload failed, sending without it")
		} else {
			media.Thumb = thumb
		}
	}

	if err := c.wait(ctx); err != nil {
		return 0, err
	}
	updates, err := api.MessagesSendMedia(ctx, &tg.MessagesSendMediaRequest{
		Peer:     chat.InputPeer(),
		Media:    media,
		Message:  v.Caption,
		RandomID: rand.Int64(),
	})
	if err != nil {
		c.handleErr(err)
		return 0, fmt.Errorf("send media: %w", err)
	}

	id, ok := sentMessageID(updates)
	if !ok {
		return 0, fmt.Errorf("send media: no message id in response %T", updates)
	}
	return id, nil
}

func mimeTypeOf(path string) string {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return "video/mp4"
}
