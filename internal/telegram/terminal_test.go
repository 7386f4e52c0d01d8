package telegram

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"github.com/celestix/gotgproto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTerminal(phone, input string) (*TerminalAuth, *bytes.Buffer) {
	var out bytes.Buffer
	return &TerminalAuth{
		phone:      phone,
		in:         bufio.NewReader(strings.NewReader(input)),
		out:        &out,
		isTerminal: func(int) bool { return false },
	}, &out
}

func TestTerminalAuth_PhoneConfigured(t *testing.T) {
	ta, out := newTestTerminal("+10000000000", "")

	phone, err := ta.AskPhoneNumber()
	require.NoError(t, err)
	assert.Equal(t, "+10000000000", phone)
	assert.Empty(t, out.String(), "configured phone is not prompted for")
}

func TestTerminalAuth_Prompts(t *testing.T) {
	ta, out := newTestTerminal("", "+123\n 55555 \nsecret")

	phone, err := ta.AskPhoneNumber()
	require.NoError(t, err)
	assert.Equal(t, "+123", phone)

	code, err := ta.AskCode()
	require.NoError(t, err)
	assert.Equal(t, "55555", code)

	pwd, err := ta.AskPassword()
	require.NoError(t, err)
	assert.Equal(t, "secret", pwd)

	assert.Contains(t, out.String(), "Enter code: ")
}

func TestTerminalAuth_EOF(t *testing.T) {
	ta, _ := newTestTerminal("", "")

	_, err := ta.AskCode()
	assert.Error(t, err)
}

func TestTerminalAuth_AuthStatus(t *testing.T) {
	ta, out := newTestTerminal("", "")

	ta.AuthStatus(gotgproto.AuthStatus{AttemptsLeft: 2})
	assert.Contains(t, out.String(), "attempts left: 2")
}
