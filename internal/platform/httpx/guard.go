package httpx

import (
	"context"
	"errors"
	"net/http"

	"github.com/fingrupo/fingrupo/internal/shared"
)

// DuplicateRecorder counts rejected replays.
type DuplicateRecorder interface {
	ObserveDuplicateSubmission(module string)
}

// Guard claims the one-time key a mutating form carries before its action
// reaches the API. A nil Guard lets everything through.
type Guard struct {
	store   *shared.IdempotencyStore
	metrics DuplicateRecorder
}

// NewGuard constructs a Guard.
func NewGuard(store *shared.IdempotencyStore, metrics DuplicateRecorder) *Guard {
	return &Guard{store: store, metrics: metrics}
}

// Claim is a held form key.
type Claim struct {
	store  *shared.IdempotencyStore
	key    string
	module string
}

// Claim takes the key posted with r for module.
func (g *Guard) Claim(r *http.Request, module string) (Claim, error) {
	if g == nil || g.store == nil {
		return Claim{}, nil
	}
	key, err := g.store.ClaimRequest(r, module)
	if err != nil {
		if errors.Is(err, shared.ErrDuplicateSubmission) && g.metrics != nil {
			g.metrics.ObserveDuplicateSubmission(module)
		}
		return Claim{}, err
	}
	return Claim{store: g.store, key: key, module: module}, nil
}

// Release gives the key back so the same form can be submitted again. Call it
// when the guarded action failed.
func (c Claim) Release(ctx context.Context) {
	if c.store == nil {
		return
	}
	_ = c.store.Release(context.WithoutCancel(ctx), c.key, c.module)
}
