package telegram

import (
	"errors"
	"testing"
	"time"

	"github.com/gotd/td/tg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseChatRef(t *testing.T) {
	tests := []struct {
		in      string
		want    ChatRef
		wantErr bool
	}{
		{in: "@my_channel", want: ChatRef{Username: "my_channel"}},
		{in: "my_channel", want: ChatRef{Username: "my_channel"}},
		{in: "https://t.me/my_channel", want: ChatRef{Username: "my_channel"}},
		{in: "t.me/my_channel/123", want: ChatRef{Username: "my_channel"}},
		{in: "http://telegram.me/my_channel?start=1", want: ChatRef{Username: "my_channel"}},
		{in: "-1001234567890", want: ChatRef{ID: 1234567890}},
		{in: "-4567", want: ChatRef{ID: 4567}},
		{in: "777000", want: ChatRef{ID: 777000}},
		{in: "  @padded_name  ", want: ChatRef{Username: "padded_name"}},
		{in: "", wantErr: true},
		{in: "@ab", wantErr: true},
		{in: "https://t.me/+AbCdEf", wantErr: true},
		{in: "0", wantErr: true},
		{in: "-100", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseChatRef(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidChatRef)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func videoDoc(id int64, mime string, attrs ...tg.DocumentAttributeClass) *tg.MessageMediaDocument {
	return &tg.MessageMediaDocument{
		Document: &tg.Document{
			ID:            id,
			AccessHash:    99,
			FileReference: []byte{1, 2},
			DCID:          2,
			MimeType:      mime,
			Size:          4096,
			Attributes:    attrs,
		},
	}
}

func TestParseMessage_Video(t *testing.T) {
	msg := &tg.Message{
		ID:      10,
		Date:    1700000000,
		Message: "**Title**",
		Media: videoDoc(555, "video/mp4",
			&tg.DocumentAttributeVideo{Duration: 12.5, W: 1280, H: 720, SupportsStreaming: true},
			&tg.DocumentAttributeFilename{FileName: "clip.mp4"},
		),
	}

	m := parseMessage(msg, 42)
	require.NotNil(t, m)
	assert.Equal(t, 10, m.ID)
	assert.Equal(t, int64(42), m.ChatID)
	assert.Equal(t, time.Unix(1700000000, 0), m.Date)
	assert.Empty(t, m.Text)
	assert.Equal(t, "**Title**", m.Caption)
	assert.Equal(t, "**Title**", m.Body())
	require.NotNil(t, m.Video)
	assert.Nil(t, m.Doc)
	assert.True(t, m.IsVideo())
	assert.Equal(t, "clip.mp4", m.Video.FileName)
	assert.Equal(t, int64(4096), m.Video.Size)
	assert.Equal(t, 1280, m.Video.Width)
	assert.Equal(t, 12.5, m.Video.Duration)
	assert.Same(t, m.Video, m.VideoMedia())
}

func TestParseMessage_VideoDocument(t *testing.T) {
	msg := &tg.Message{ID: 11, Media: videoDoc(1, "video/x-matroska",
		&tg.DocumentAttributeFilename{FileName: "movie.mkv"},
	)}

	m := parseMessage(msg, 1)
	require.NotNil(t, m)
	assert.Nil(t, m.Video)
	require.NotNil(t, m.Doc)
	assert.True(t, m.IsVideo())
	assert.Same(t, m.Doc, m.VideoMedia())
}

func TestParseMessage_NonVideo(t *testing.T) {
	tests := []struct {
		name string
		msg  tg.MessageClass
	}{
		{name: "pdf document", msg: &tg.Message{ID: 1, Media: videoDoc(1, "application/pdf")}},
		{name: "round video", msg: &tg.Message{ID: 2, Media: videoDoc(2, "video/mp4",
			&tg.DocumentAttributeVideo{RoundMessage: true})}},
		{name: "animation", msg: &tg.Message{ID: 3, Media: videoDoc(3, "video/mp4",
			&tg.DocumentAttributeVideo{}, &tg.DocumentAttributeAnimated{})}},
		{name: "photo", msg: &tg.Message{ID: 4, Media: &tg.MessageMediaPhoto{}}},
		{name: "text", msg: &tg.Message{ID: 5, Message: "hello"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := parseMessage(tt.msg, 1)
			require.NotNil(t, m)
			assert.False(t, m.IsVideo())
			assert.Nil(t, m.VideoMedia())
		})
	}
}

func TestParseMessage_TextBody(t *testing.T) {
	m := parseMessage(&tg.Message{ID: 5, Message: "plain text"}, 1)
	require.NotNil(t, m)
	assert.Equal(t, "plain text", m.Text)
	assert.Equal(t, "plain text", m.Body())
}

func TestParseMessage_Service(t *testing.T) {
	assert.Nil(t, parseMessage(&tg.MessageService{ID: 3}, 1))
	assert.Nil(t, parseMessage(&tg.MessageEmpty{ID: 4}, 1))
}

func TestChatFromClass(t *testing.T) {
	ch, ok := chatFromClass(&tg.Channel{ID: 100, AccessHash: 7, Title: "News", Username: "news", Broadcast: true})
	require.True(t, ok)
	assert.Equal(t, KindChannel, ch.Kind)
	assert.True(t, ch.Broadcast)
	assert.Equal(t, &tg.InputPeerChannel{ChannelID: 100, AccessHash: 7}, ch.InputPeer())
	assert.Equal(t, &tg.InputChannel{ChannelID: 100, AccessHash: 7}, ch.InputChannel())
	assert.Equal(t, "News (@news)", ch.String())

	grp, ok := chatFromClass(&tg.Chat{ID: 5, Title: "Friends"})
	require.True(t, ok)
	assert.Equal(t, KindGroup, grp.Kind)
	assert.Equal(t, &tg.InputPeerChat{ChatID: 5}, grp.InputPeer())
	assert.Nil(t, grp.InputChannel())
	assert.Equal(t, "Friends (5)", grp.String())

	_, ok = chatFromClass(&tg.ChatForbidden{ID: 6})
	assert.False(t, ok)
}

func TestChatFromUser(t *testing.T) {
	u, ok := chatFromUser(&tg.User{ID: 9, AccessHash: 3, FirstName: "Ann", LastName: "Lee", Username: "ann"})
	require.True(t, ok)
	assert.Equal(t, KindUser, u.Kind)
	assert.Equal(t, "Ann Lee", u.Title)
	assert.Equal(t, &tg.InputPeerUser{UserID: 9, AccessHash: 3}, u.InputPeer())

	_, ok = chatFromUser(&tg.UserEmpty{ID: 1})
	assert.False(t, ok)
}

func TestStatusFromParticipant(t *testing.T) {
	tests := []struct {
		name string
		p    tg.ChannelParticipantClass
		want MemberStatus
	}{
		{name: "creator", p: &tg.ChannelParticipantCreator{}, want: StatusOwner},
		{name: "admin", p: &tg.ChannelParticipantAdmin{}, want: StatusAdministrator},
		{name: "member", p: &tg.ChannelParticipant{}, want: StatusMember},
		{name: "self", p: &tg.ChannelParticipantSelf{}, want: StatusMember},
		{name: "restricted", p: &tg.ChannelParticipantBanned{BannedRights: tg.ChatBannedRights{SendMedia: true}}, want: StatusRestricted},
		{name: "kicked", p: &tg.ChannelParticipantBanned{BannedRights: tg.ChatBannedRights{ViewMessages: true}}, want: StatusBanned},
		{name: "left", p: &tg.ChannelParticipantLeft{}, want: StatusLeft},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFromParticipant(tt.p))
		})
	}
}

func TestMemberStatus_CanPost(t *testing.T) {
	assert.True(t, StatusOwner.CanPost(true))
	assert.True(t, StatusAdministrator.CanPost(true))
	assert.False(t, StatusMember.CanPost(true))
	assert.True(t, StatusMember.CanPost(false))
	for _, s := range []MemberStatus{StatusRestricted, StatusLeft, StatusBanned, StatusUnknown} {
		assert.False(t, s.CanPost(false), s)
	}
}

func TestSentMessageID(t *testing.T) {
	tests := []struct {
		name   string
		in     tg.UpdatesClass
		want   int
		wantOK bool
	}{
		{
			name: "channel message",
			in: &tg.Updates{Updates: []tg.UpdateClass{
				&tg.UpdateMessageID{ID: 77, RandomID: 1},
				&tg.UpdateNewChannelMessage{Message: &tg.Message{ID: 77}},
			}},
			want: 77, wantOK: true,
		},
		{
			name:   "message id only",
			in:     &tg.Updates{Updates: []tg.UpdateClass{&tg.UpdateMessageID{ID: 12}}},
			want:   12,
			wantOK: true,
		},
		{name: "short sent", in: &tg.UpdateShortSentMessage{ID: 5}, want: 5, wantOK: true},
		{name: "empty", in: &tg.Updates{}, wantOK: false},
		{name: "too long", in: &tg.UpdatesTooLong{}, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := sentMessageID(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCheckFloodWait(t *testing.T) {
	assert.Equal(t, 0, checkFloodWait(nil))
	assert.Equal(t, 0, checkFloodWait(errors.New("rpc error code 400: CHANNEL_INVALID")))
	assert.Equal(t, 15, checkFloodWait(errors.New("rpc error code 420: FLOOD_WAIT_15")))
	assert.Equal(t, 30, checkFloodWait(errors.New("FLOOD_WAIT_30 (caused by messages.getHistory)")))
}
