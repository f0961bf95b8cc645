package ports

import (
	"context"

	"github.com/storygrab/igaccounts/internal/domain"
)

// Authenticator establishes an upstream session for an account. The
// orchestrator calls it whenever a rotation changes the current account.
type Authenticator interface {
	Authenticate(ctx context.Context, account domain.Account) error
}

// Story is one piece of upstream media, opaque to the core.
type Story struct {
	ID       string
	MediaURL string
}

// StoryClient is the upstream surface the orchestrator dispatches
// through. Implementations perform the real protocol work; the core only
// gates and sequences the calls.
type StoryClient interface {
	FetchUserID(ctx context.Context, username string) (string, error)
	FetchStories(ctx context.Context, userID string) ([]Story, error)
}
