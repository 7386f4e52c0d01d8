package telegram

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/celestix/gotgproto"
	"golang.org/x/term"
	"golang.org/x/xerrors"
)

// TerminalAuth answers gotgproto login prompts on the terminal.
type TerminalAuth struct {
	phone   string
	in      *bufio.Reader
	out     io.Writer
	stdinfd int

	isTerminal func(fd int) bool
}

var _ gotgproto.AuthConversator = (*TerminalAuth)(nil)

// NewTerminalAuth creates a terminal authenticator. An empty phone is asked for.
func NewTerminalAuth(phone string) *TerminalAuth {
	return &TerminalAuth{
		phone:      phone,
		in:         bufio.NewReader(os.Stdin),
		out:        os.Stderr,
		stdinfd:    int(os.Stdin.Fd()),
		isTerminal: term.IsTerminal,
	}
}

func (t *TerminalAuth) readLine(prompt string) (string, error) {
	fmt.Fprint(t.out, prompt)
	line, err := t.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// AskPhoneNumber returns the configured phone or prompts for it.
func (t *TerminalAuth) AskPhoneNumber() (string, error) {
	if t.phone != "" {
		return t.phone, nil
	}
	phone, err := t.readLine("Enter phone number (with country code): ")
	if err != nil {
		return "", xerrors.Errorf("failed to read phone: %w", err)
	}
	t.phone = phone
	return phone, nil
}

// AskCode prompts for the login code.
func (t *TerminalAuth) AskCode() (string, error) {
	code, err := t.readLine("Enter code: ")
	if err != nil {
		return "", xerrors.Errorf("failed to read code: %w", err)
	}
	return code, nil
}

// AskPassword prompts for the 2FA password without echo when stdin is a terminal.
func (t *TerminalAuth) AskPassword() (string, error) {
	if !t.isTerminal(t.stdinfd) {
		pwd, err := t.readLine("Enter 2FA password: ")
		if err != nil {
			return "", xerrors.Errorf("failed to read password: %w", err)
		}
		return pwd, nil
	}

	fmt.Fprint(t.out, "Enter 2FA password: ")
	bytePwd, err := term.ReadPassword(t.stdinfd)
	fmt.Fprintln(t.out)
	if err != nil {
		return "", xerrors.Errorf("failed to read password: %w", err)
	}
	return string(bytePwd), nil
}

// AuthStatus reports login progress.
func (t *TerminalAuth) AuthStatus(status gotgproto.AuthStatus) {
	if status.AttemptsLeft > 0 {
		fmt.Fprintf(t.out, "auth: %v (attempts left: %d)\n", status.Event, status.AttemptsLeft)
		return
	}
	fmt.Fprintf(t.out, "auth: %v\n", status.Event)
}
