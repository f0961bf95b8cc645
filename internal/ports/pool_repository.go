package ports

import (
	"context"

	"github.com/storygrab/igaccounts/internal/domain"
)

// PoolRepository persists the whole pool document. Load on a fresh store
// returns an empty state, not an error; Save replaces the document
// (last-write-wins).
type PoolRepository interface {
	Load(ctx context.Context) (domain.PoolState, error)
	Save(ctx context.Context, state domain.PoolState) error
}
