package telegram

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/celestix/gotgproto/storage"
	"github.com/gotd/td/session"
)

// files sqlite may leave next to the session database
var sessionSidecars = []string{"", "-journal", "-wal", "-shm"}

// HasSession reports whether a session file exists at path.
func HasSession(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.Size() > 0
}

// ClearSession removes the session file and its sqlite sidecar files
// and returns the paths that were removed. Missing files are not an error.
func ClearSession(path string) ([]string, error) {
	var (
		removed []string
		errs    []error
	)
	for _, suffix := range sessionSidecars {
		err := os.Remove(path + suffix)
		switch {
		case err == nil:
			removed = append(removed, path+suffix)
		case !os.IsNotExist(err):
			errs = append(errs, err)
		}
	}
	return removed, errors.Join(errs...)
}

func ensureSessionDir(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create session directory: %w", err)
	}
	return nil
}

// ConvertToGotgprotoSession converts gotd session.Data to gotgproto storage.Session.
// gotgproto expects the JSON of session.Data wrapped as {"Version":1,"Data":{...}}.
func ConvertToGotgprotoSession(data *session.Data) (*storage.Session, error) {
	if data == nil {
		return nil, fmt.Errorf("session data is nil")
	}

	// same envelope gotd's session.Loader writes
	wrapped, err := json.Marshal(struct {
		Version int
		Data    *session.Data
	}{Version: 1, Data: data})
	if err != nil {
		return nil, fmt.Errorf("marshal session data: %w", err)
	}

	return &storage.Session{
		Version: storage.LatestVersion,
		Data:    wrapped,
	}, nil
}
