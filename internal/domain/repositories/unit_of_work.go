package repositories

import (
	"context"
)

// UnitOfWork defines the interface for atomic operations
type UnitOfWork interface {
	// Do executes fn within one transaction scope; any error rolls everything back.
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}
