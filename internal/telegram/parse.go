package telegram

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gotd/td/tg"
)

// ErrInvalidChatRef is returned for chat references that cannot be parsed.
var ErrInvalidChatRef = errors.New("invalid chat reference")

var usernameRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]{3,31}$`)

// ChatRef is a parsed chat reference: either a username or a numeric id.
type ChatRef struct {
	Username string
	ID       int64
}

// ParseChatRef accepts "@name", "name", "t.me/name" links, "-100<id>", "-<id>" and "<id>".
func ParseChatRef(ref string) (ChatRef, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ChatRef{}, fmt.Errorf("%w: empty", ErrInvalidChatRef)
	}

	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		switch {
		case strings.HasPrefix(ref, "-100"):
			id, _ = strconv.ParseInt(strings.TrimPrefix(ref, "-100"), 10, 64)
		case id < 0:
			id = -id
		}
		if id == 0 {
			return ChatRef{}, fmt.Errorf("%w: %q", ErrInvalidChatRef, ref)
		}
		return ChatRef{ID: id}, nil
	}

	name := ref
	for _, prefix := range []string{"https://", "http://"} {
		name = strings.TrimPrefix(name, prefix)
	}
	for _, host := range []string{"t.me/", "telegram.me/", "telegram.dog/"} {
		if strings.HasPrefix(name, host) {
			name = strings.TrimPrefix(name, host)
			if i := strings.IndexAny(name, "/?"); i >= 0 {
				name = name[:i]
			}
			break
		}
	}
	name = strings.TrimPrefix(name, "@")

	if !usernameRe.MatchString(name) {
		return ChatRef{}, fmt.Errorf("%w: %q", ErrInvalidChatRef, ref)
	}
	return ChatRef{Username: name}, nil
}

// parseMessage converts a single telegram message to our Message type.
// Service and empty messages yield nil.
func parseMessage(msg tg.MessageClass, chatID int64) *Message {
	m, ok := msg.(*tg.Message)
	if !ok {
		return nil
	}

	out := &Message{
		ID:     m.ID,
		ChatID: chatID,
		Date:   time.Unix(int64(m.Date), 0),
	}

	if m.Media == nil {
		out.Text = m.Message
		return out
	}
	out.Caption = m.Message

	media, ok := m.Media.(*tg.MessageMediaDocument)
	if !ok {
		return out
	}
	doc, ok := media.Document.(*tg.Document)
	if !ok {
		return out
	}

	md, kind := mediaFromDocument(doc)
	switch kind {
	case docVideo:
		out.Video = md
	case docFile:
		out.Doc = md
	}
	return out
}

type docKind int

const (
	docFile docKind = iota
	docVideo
	docOther // stickers, animations, video notes
)

func mediaFromDocument(doc *tg.Document) (*Media, docKind) {
	md := &Media{
		ID:            doc.ID,
		AccessHash:    doc.AccessHash,
		FileReference: doc.FileReference,
		DCID:          doc.DCID,
		MimeType:      doc.MimeType,
		Size:          doc.Size,
	}

	kind := docFile
	for _, attr := range doc.Attributes {
		switch a := attr.(type) {
		case *tg.DocumentAttributeFilename:
			md.FileName = a.FileName
		case *tg.DocumentAttributeVideo:
			md.Duration = a.Duration
			md.Width = a.W
			md.Height = a.H
			if a.RoundMessage {
				kind = docOther
			} else if kind == docFile {
				kind = docVideo
			}
		case *tg.DocumentAttributeAnimated, *tg.DocumentAttributeSticker:
			kind = docOther
		}
	}
	return md, kind
}

// chatFromClass converts a chat returned by the api.
func chatFromClass(c tg.ChatClass) (*Chat, bool) {
	switch ch := c.(type) {
	case *tg.Channel:
		return &Chat{
			ID:         ch.ID,
			AccessHash: ch.AccessHash,
			Kind:       KindChannel,
			Title:      ch.Title,
			Username:   ch.Username,
			Broadcast:  ch.Broadcast,
		}, true
	case *tg.Chat:
		return &Chat{
			ID:    ch.ID,
			Kind:  KindGroup,
			Title: ch.Title,
		}, true
	}
	return nil, false
}

// chatFromUser converts a user returned by the api.
func chatFromUser(u tg.UserClass) (*Chat, bool) {
	user, ok := u.(*tg.User)
	if !ok {
		return nil, false
	}
	title := strings.TrimSpace(user.FirstName + " " + user.LastName)
	if title == "" {
		title = user.Username
	}
	return &Chat{
		ID:         user.ID,
		AccessHash: user.AccessHash,
		Kind:       KindUser,
		Title:      title,
		Username:   user.Username,
	}, true
}

// statusFromParticipant maps a channel participant to a membership status.
func statusFromParticipant(p tg.ChannelParticipantClass) MemberStatus {
	switch v := p.(type) {
	case *tg.ChannelParticipantCreator:
		return StatusOwner
	case *tg.ChannelParticipantAdmin:
		return StatusAdministrator
	case *tg.ChannelParticipant, *tg.ChannelParticipantSelf:
		return StatusMember
	case *tg.ChannelParticipantBanned:
		if v.Left || v.BannedRights.ViewMessages {
			return StatusBanned
		}
		return StatusRestricted
	case *tg.ChannelParticipantLeft:
		return StatusLeft
	}
	return StatusUnknown
}

// sentMessageID extracts the id of a sent message from the updates response.
func sentMessageID(u tg.UpdatesClass) (int, bool) {
	var updates []tg.UpdateClass
	switch v := u.(type) {
	case *tg.Updates:
		updates = v.Updates
	case *tg.UpdatesCombined:
		updates = v.Updates
	case *tg.UpdateShortSentMessage:
		return v.ID, true
	case *tg.UpdateShort:
		updates = []tg.UpdateClass{v.Update}
	}

	for _, upd := range updates {
		switch v := upd.(type) {
		case *tg.UpdateNewChannelMessage:
			if m, ok := v.Message.(*tg.Message); ok {
				return m.ID, true
			}
		case *tg.UpdateNewMessage:
			if m, ok := v.Message.(*tg.Message); ok {
				return m.ID, true
			}
		}
	}
	for _, upd := range updates {
		if v, ok := upd.(*tg.UpdateMessageID); ok {
			return v.ID, true
		}
	}
	return 0, false
}

// checkFloodWait checks if error is a FLOOD_WAIT error and returns wait seconds
func checkFloodWait(err error) int {
	if err == nil {
		return 0
	}

	// match on the rpc error text to avoid coupling to gotd error types
	str := err.Error()
	parts := strings.Split(str, "FLOOD_WAIT_")
	if len(parts) < 2 {
		return 0
	}

	// e.g. "rpc error code 420: FLOOD_WAIT_15 (caused by ...)"
	var seconds int
	_, _ = fmt.Sscanf(strings.TrimSpace(parts[1]), "%d", &seconds)
	return seconds
}
