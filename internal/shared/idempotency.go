package shared

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// IdempotencyFormField carries the one-time key rendered into mutating forms.
const IdempotencyFormField = "idempotency_key"

// IdempotencyStore claims one-time form keys so a double submitted create is
// only forwarded to the API once.
type IdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewIdempotencyStore constructs the store.
func NewIdempotencyStore(client *redis.Client, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &IdempotencyStore{client: client, ttl: ttl}
}

// NewKey returns a fresh key for a form render.
func NewKey() string {
	return uuid.NewString()
}

// Claim marks key as used for module. A second claim within the TTL returns
// ErrDuplicateSubmission.
func (s *IdempotencyStore) Claim(ctx context.Context, key, module string) error {
	if s == nil || s.client == nil {
		return nil
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("idempotency key required")
	}
	if module == "" {
		return errors.New("idempotency module required")
	}
	if _, err := uuid.Parse(key); err != nil {
		return errors.New("idempotency key malformed")
	}
	ok, err := s.client.SetNX(ctx, s.redisKey(module, key), time.Now().UTC().Format(time.RFC3339), s.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrDuplicateSubmission
	}
	return nil
}

// ClaimRequest claims the key posted in the request form.
func (s *IdempotencyStore) ClaimRequest(r *http.Request, module string) (string, error) {
	key := r.PostFormValue(IdempotencyFormField)
	return key, s.Claim(r.Context(), key, module)
}

// Release frees a key, typically after the guarded action failed so the user
// can retry with the same form.
func (s *IdempotencyStore) Release(ctx context.Context, key, module string) error {
	if s == nil || s.client == nil || key == "" {
		return nil
	}
	return s.client.Del(ctx, s.redisKey(module, key)).Err()
}

func (s *IdempotencyStore) redisKey(module, key string) string {
	return "fingrupo:idem:" + module + ":" + key
}
