package usecases

import (
	"context"
	"sync"

	"aa-wallet.backend/internal/domain/repositories"
)

// Sequencer admits ledger writes one at a time, each in its own unit of work.
// Every writer of balances, nonces or limits goes through the same Sequencer.
type Sequencer struct {
	mu  sync.Mutex
	uow repositories.UnitOfWork
}

// NewSequencer creates a new sequencer over uow
func NewSequencer(uow repositories.UnitOfWork) *Sequencer {
	return &Sequencer{uow: uow}
}

// Run executes fn exclusively inside a unit of work with row locks requested.
// onCommit hooks run after a successful commit, still in sequence.
func (s *Sequencer) Run(ctx context.Context, fn func(ctx context.Context) error, onCommit ...func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.uow.Do(lockContext(s.uow, ctx), fn); err != nil {
		return err
	}
	for _, hook := range onCommit {
		hook()
	}
	return nil
}

func lockContext(uow repositories.UnitOfWork, ctx context.Context) context.Context {
	if l, ok := uow.(interface {
		WithLock(context.Context) context.Context
	}); ok {
		return l.WithLock(ctx)
	}
	return ctx
}
