package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blockedby/tgvideo/internal/config"
	"github.com/blockedby/tgvideo/internal/logger"
	"github.com/celestix/gotgproto"
	"github.com/celestix/gotgproto/storage"
	"github.com/glebarez/sqlite"
	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram/auth/qrlogin"
	"gorm.io/gorm"
)

// Status represents the Telegram client status.
type Status string

// Status constants define the possible states of the Telegram client.
const (
	StatusInitializing Status = "INITIALIZING"
	StatusReady        Status = "READY"
	StatusUnauthorized Status = "UNAUTHORIZED"
	StatusError        Status = "ERROR"
)

// ClientFactory is a function that creates a telegram client.
type ClientFactory func(ctx context.Context, cfg *config.Config) (*gotgproto.Client, error)

// QRClientFactory is a function that creates a raw telegram client for QR auth.
type QRClientFactory func(cfg *config.Config) (*QRClientBundle, error)

// Manager handles Telegram client lifecycle and authentication.
type Manager struct {
	client *gotgproto.Client
	cfg    *config.Config
	log    *logger.Logger

	status Status
	mu     sync.RWMutex

	clientFactory   ClientFactory
	qrClientFactory QRClientFactory

	// QR flow state management
	qrInProgress atomic.Bool
	qrCancel     context.CancelFunc
	qrMu         sync.Mutex
}

// NewManager creates a new Telegram Manager.
func NewManager(cfg *config.Config) *Manager {
	return &Manager{
		cfg:             cfg,
		log:             logger.Get().Component("telegram"),
		status:          StatusInitializing,
		clientFactory:   NewPersistentClient,
		qrClientFactory: NewQRClient,
	}
}

// SetClientFactory allows overriding the client creation logic (e.g. for testing).
func (m *Manager) SetClientFactory(f ClientFactory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clientFactory = f
}

// SetQRClientFactory allows overriding the QR client creation logic (e.g. for testing).
func (m *Manager) SetQRClientFactory(f QRClientFactory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.qrClientFactory = f
}

// GetStatus returns the current Telegram client status.
func (m *Manager) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// GetClient returns the underlying Telegram client.
func (m *Manager) GetClient() *gotgproto.Client {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.client
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	m.status = s
	m.mu.Unlock()
}

// Connect starts the client, restoring the session file if present.
// A corrupted or locked session file is cleared once and the connection retried.
func (m *Manager) Connect(ctx context.Context) error {
	m.setStatus(StatusInitializing)

	m.mu.RLock()
	factory := m.clientFactory
	m.mu.RUnlock()

	if !HasSession(m.cfg.TGSessionPath) && !m.cfg.IsBot() {
		m.log.Info().Str("session", m.cfg.TGSessionPath).Msg("telegram: no session found, interactive login required")
	}

	client, err := factory(ctx, m.cfg)
	if err != nil && isSessionError(err) {
		m.log.Warn().Err(err).Str("session", m.cfg.TGSessionPath).Msg("telegram: session unusable, clearing and retrying")
		removed, clearErr := ClearSession(m.cfg.TGSessionPath)
		if clearErr != nil {
			m.setStatus(StatusError)
			return fmt.Errorf("%w: %w", ErrSessionCorrupted, clearErr)
		}
		m.log.Info().Strs("removed", removed).Msg("telegram: session cleared")
		client, err = factory(ctx, m.cfg)
		if err != nil && isSessionError(err) {
			m.setStatus(StatusError)
			return fmt.Errorf("%w: %w", ErrSessionCorrupted, err)
		}
	}
	if err != nil {
		if isAuthError(err) {
			m.setStatus(StatusUnauthorized)
			return fmt.Errorf("%w: %w", ErrNotAuthorized, err)
		}
		m.setStatus(StatusError)
		return fmt.Errorf("connect: %w", err)
	}

	m.mu.Lock()
	m.client = client
	m.status = StatusReady
	m.mu.Unlock()

	if client.Self != nil {
		m.log.Info().Int64("user_id", client.Self.ID).Str("username", client.Self.Username).Msg("telegram: client is ready")
	} else {
		m.log.Info().Msg("telegram: client is ready")
	}
	return nil
}

// isSessionError reports errors caused by an unusable session file.
func isSessionError(err error) bool {
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "locked") ||
		strings.Contains(s, "malformed") ||
		strings.Contains(s, "file is not a database") ||
		strings.Contains(s, "auth_key_unregistered")
}

func isAuthError(err error) bool {
	s := err.Error()
	return strings.Contains(s, "AUTH_KEY") ||
		strings.Contains(s, "SESSION_REVOKED") ||
		strings.Contains(s, "PHONE_CODE") ||
		strings.Contains(s, "PASSWORD_HASH_INVALID")
}

// StartQR starts the QR login flow and stores the resulting session in the session file.
// This function blocks until login is successful or context is canceled.
func (m *Manager) StartQR(ctx context.Context, onQRCode func(url string)) error {
	if m.GetStatus() == StatusReady {
		return fmt.Errorf("already logged in")
	}

	m.qrMu.Lock()
	if m.qrInProgress.Load() {
		m.qrMu.Unlock()
		m.log.Info().Msg("telegram: QR flow already in progress, ignoring new request")
		return fmt.Errorf("QR login already in progress")
	}

	qrCtx, cancel := context.WithCancel(ctx)
	m.qrCancel = cancel
	m.qrInProgress.Store(true)
	m.qrMu.Unlock()

	defer func() {
		m.qrInProgress.Store(false)
		m.qrMu.Lock()
		if m.qrCancel != nil {
			m.qrCancel()
			m.qrCancel = nil
		}
		m.qrMu.Unlock()
	}()

	m.log.Info().Time("now", time.Now()).Msg("telegram: starting QR flow, creating QR client")

	m.mu.RLock()
	qrFactory := m.qrClientFactory
	m.mu.RUnlock()

	bundle, err := qrFactory(m.cfg)
	if err != nil {
		return fmt.Errorf("create QR client: %w", err)
	}

	var authErr error
	var sessionData *session.Data

	err = bundle.Client.Run(qrCtx, func(ctx context.Context) error {
		qr := bundle.Client.QR()
		loggedIn := qrlogin.OnLoginToken(&bundle.Dispatcher)

		_, authErr = qr.Auth(ctx, loggedIn, func(_ context.Context, token qrlogin.Token) error {
			m.log.Info().Msg("telegram: QR token generated")
			onQRCode(token.URL())
			return nil
		})
		if authErr != nil {
			return authErr
		}

		m.log.Info().Msg("telegram: QR auth success, capturing session")
		loader := session.Loader{Storage: bundle.Storage}
		sessionData, authErr = loader.Load(ctx)
		return authErr
	})

	if err != nil || authErr != nil {
		if errors.Is(err, context.Canceled) || errors.Is(authErr, context.Canceled) {
			return context.Canceled
		}
		return fmt.Errorf("QR auth flow failed: %w", errors.Join(err, authErr))
	}

	if sessionData == nil {
		return fmt.Errorf("session data is nil after successful auth")
	}

	m.log.Info().Str("session", m.cfg.TGSessionPath).Msg("telegram: saving session")
	return SaveSession(m.cfg.TGSessionPath, sessionData)
}

// CancelQR cancels any ongoing QR login flow and lets a new one start.
func (m *Manager) CancelQR() {
	m.qrMu.Lock()
	defer m.qrMu.Unlock()

	if m.qrCancel != nil {
		m.log.Info().Msg("telegram: canceling ongoing QR flow")
		m.qrCancel()
		m.qrCancel = nil
	}
	m.qrInProgress.Store(false)
}

// SaveSession writes gotd session data into the sqlite session file used by the persistent client.
func SaveSession(path string, data *session.Data) error {
	sess, err := ConvertToGotgprotoSession(data)
	if err != nil {
		return err
	}
	if err := ensureSessionDir(path); err != nil {
		return err
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("open session db: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	if err := db.AutoMigrate(&storage.Session{}); err != nil {
		return fmt.Errorf("migrate session table: %w", err)
	}
	// Version is the primary key, so Save upserts
	return db.Save(sess).Error
}

// Stop stops the Telegram client.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client != nil {
		m.client.Stop()
		m.client = nil
	}
}
