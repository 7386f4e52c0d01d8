package telegram

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/gotd/td/tg"
)

// Message represents a parsed telegram message
type Message struct {
	ID      int       // message id (unique within chat)
	ChatID  int64     // chat id
	Date    time.Time // message creation timestamp
	Text    string    // text of a plain message
	Caption string    // caption of a media message
	Video   *Media    // native video attachment
	Doc     *Media    // any other document attachment
}

// IsVideo reports whether the message carries a video,
// either natively or as a document with a video mime type.
func (m *Message) IsVideo() bool {
	if m.Video != nil {
		return true
	}
	return m.Doc != nil && strings.Contains(m.Doc.MimeType, "video")
}

// VideoMedia returns the video attachment, or nil.
func (m *Message) VideoMedia() *Media {
	if m.Video != nil {
		return m.Video
	}
	if m.IsVideo() {
		return m.Doc
	}
	return nil
}

// Body returns the text or, if empty, the caption.
func (m *Message) Body() string {
	if m.Text != "" {
		return m.Text
	}
	return m.Caption
}

// Media is a downloadable document.
type Media struct {
	ID            int64
	AccessHash    int64
	FileReference []byte
	DCID          int
	FileName      string // original name, may be empty
	MimeType      string
	Size          int64
	Duration      float64
	Width         int
	Height        int
}

// Location returns the file location used for downloads.
func (m *Media) Location() *tg.InputDocumentFileLocation {
	return &tg.InputDocumentFileLocation{
		ID:            m.ID,
		AccessHash:    m.AccessHash,
		FileReference: m.FileReference,
	}
}

// document unique-id type, as used by bot api file_unique_id
const uniqueTypeDocument = 2

// UniqueID returns a stable fingerprint of the media, identical to the
// bot api file_unique_id of the same document.
func (m *Media) UniqueID() string {
	buf := make([]byte, 12)
	binary.LittleEndian.PutUint32(buf[0:4], uniqueTypeDocument)
	binary.LittleEndian.PutUint64(buf[4:12], uint64(m.ID))
	return base64.RawURLEncoding.EncodeToString(rleEncode(buf))
}

// rleEncode collapses zero runs into a 0x00 marker followed by the run length.
func rleEncode(b []byte) []byte {
	out := make([]byte, 0, len(b))
	zeros := 0
	for _, c := range b {
		if c == 0 {
			zeros++
			continue
		}
		if zeros > 0 {
			out = append(out, 0, byte(zeros))
			zeros = 0
		}
		out = append(out, c)
	}
	if zeros > 0 {
		out = append(out, 0, byte(zeros))
	}
	return out
}

// ChatKind is the type of a chat.
type ChatKind string

// chat kinds
const (
	KindChannel ChatKind = "channel" // broadcast channel or supergroup
	KindGroup   ChatKind = "group"   // legacy basic group
	KindUser    ChatKind = "user"
)

// Chat represents a resolved telegram chat
type Chat struct {
	ID         int64 // bare id, without -100 prefix
	AccessHash int64 // access hash for api calls
	Kind       ChatKind
	Title      string // title or user display name
	Username   string // username (without @), may be empty
	Broadcast  bool   // true for broadcast channels
}

// InputPeer returns the peer used in api requests.
func (c *Chat) InputPeer() tg.InputPeerClass {
	switch c.Kind {
	case KindChannel:
		return &tg.InputPeerChannel{ChannelID: c.ID, AccessHash: c.AccessHash}
	case KindGroup:
		return &tg.InputPeerChat{ChatID: c.ID}
	default:
		return &tg.InputPeerUser{UserID: c.ID, AccessHash: c.AccessHash}
	}
}

// InputChannel returns the channel reference, or nil for non-channels.
func (c *Chat) InputChannel() *tg.InputChannel {
	if c.Kind != KindChannel {
		return nil
	}
	return &tg.InputChannel{ChannelID: c.ID, AccessHash: c.AccessHash}
}

// String formats the chat for logs and listings.
func (c *Chat) String() string {
	if c.Username != "" {
		return fmt.Sprintf("%s (@%s)", c.Title, c.Username)
	}
	return fmt.Sprintf("%s (%d)", c.Title, c.ID)
}

// MemberStatus is the current account's membership in a chat.
type MemberStatus string

// membership statuses
const (
	StatusOwner         MemberStatus = "OWNER"
	StatusAdministrator MemberStatus = "ADMINISTRATOR"
	StatusMember        MemberStatus = "MEMBER"
	StatusRestricted    MemberStatus = "RESTRICTED"
	StatusLeft          MemberStatus = "LEFT"
	StatusBanned        MemberStatus = "BANNED"
	StatusUnknown       MemberStatus = "UNKNOWN"
)

// CanPost reports whether the status allows sending messages.
// Broadcast channels accept posts from owners and administrators only.
func (s MemberStatus) CanPost(broadcast bool) bool {
	switch s {
	case StatusOwner, StatusAdministrator:
		return true
	case StatusMember:
		return !broadcast
	default:
		return false
	}
}

// ProgressFunc receives transferred and total byte counts.
type ProgressFunc func(done, total int64)

// VideoUpload describes a video to send.
type VideoUpload struct {
	Path      string
	Caption   string
	ThumbPath string // optional jpeg thumbnail
	Duration  float64
	Width     int
	Height    int
	Progress  ProgressFunc
}
