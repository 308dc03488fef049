// Package mocks provides shared mock implementations for testing.
package mocks

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/peiffer1998/EIPR-Portal-sub001/internal/domain/ports"
	"github.com/stretchr/testify/mock"
)

// MockDBPort runs transaction callbacks with a nil pgx.Tx so repositories
// under test fall back to their own storage.
type MockDBPort struct {
	mock.Mock
	// OnRollback, when set, is called with the callback's error
	OnRollback func(err error)
	// OnBegin and OnCommit let in-memory stores snapshot and discard state
	OnBegin  func()
	OnCommit func()
	mu       sync.Mutex
}

func (m *MockDBPort) GetDB() *pgxpool.Pool {
	return nil
}

// WithTransaction serializes callbacks, standing in for row-level locking
func (m *MockDBPort) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.OnBegin != nil {
		m.OnBegin()
	}
	if err := fn(ctx, nil); err != nil {
		if m.OnRollback != nil {
			m.OnRollback(err)
		}
		return err
	}
	if m.OnCommit != nil {
		m.OnCommit()
	}
	return nil
}

func (m *MockDBPort) WithReadOnlyTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	return fn(ctx, nil)
}

var _ ports.DBPort = (*MockDBPort)(nil)
