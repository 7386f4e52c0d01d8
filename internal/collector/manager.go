package collector

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Operation is a running collector operation.
type Operation struct {
	ID        uuid.UUID
	Name      string
	StartedAt time.Time
}

// OperationManager runs one operation at a time and lets another goroutine
// (the interrupt handler) cancel it.
// thread-safe
type OperationManager struct {
	mu       sync.Mutex
	current  *Operation
	cancelFn context.CancelFunc
}

// NewOperationManager creates a new operation manager
func NewOperationManager() *OperationManager {
	return &OperationManager{}
}

// Run executes fn synchronously with a context that Cancel can stop.
// Returns ErrAlreadyRunning if another operation is in progress.
func (m *OperationManager) Run(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	if m.current != nil {
		m.mu.Unlock()
		return ErrAlreadyRunning
	}

	opCtx, cancel := context.WithCancel(ctx)
	op := &Operation{
		ID:        uuid.New(),
		Name:      name,
		StartedAt: time.Now(),
	}
	m.current = op
	m.cancelFn = cancel
	m.mu.Unlock()

	defer func() {
		cancel()
		m.mu.Lock()
		if m.current != nil && m.current.ID == op.ID {
			m.current = nil
			m.cancelFn = nil
		}
		m.mu.Unlock()
	}()

	return fn(opCtx)
}

// Cancel stops the current operation.
// Returns false when nothing is running.
func (m *OperationManager) Cancel() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancelFn == nil {
		return false
	}
	m.cancelFn()
	m.cancelFn = nil
	return true
}

// Current returns the currently running operation
// returns nil if nothing is running
func (m *OperationManager) Current() *Operation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}
