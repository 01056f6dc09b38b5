package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/fingrupo/fingrupo/internal/shared"
)

type duplicateCounter map[string]int

func (d duplicateCounter) ObserveDuplicateSubmission(module string) {
	d[module]++
}

func formRequest(key string) *http.Request {
	form := url.Values{shared.IdempotencyFormField: {key}}
	req := httptest.NewRequest(http.MethodPost, "/patrimonio", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestGuardRejectsReplayAndReleases(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	counter := duplicateCounter{}
	guard := NewGuard(shared.NewIdempotencyStore(client, time.Minute), counter)
	key := shared.NewKey()

	claim, err := guard.Claim(formRequest(key), "patrimonio")
	require.NoError(t, err)

	_, err = guard.Claim(formRequest(key), "patrimonio")
	require.ErrorIs(t, err, shared.ErrDuplicateSubmission)
	require.Equal(t, 1, counter["patrimonio"])

	_, err = guard.Claim(formRequest(key), "financeiro")
	require.NoError(t, err, "keys are scoped per module")

	claim.Release(context.Background())
	_, err = guard.Claim(formRequest(key), "patrimonio")
	require.NoError(t, err)
}

func TestNilGuardAllows(t *testing.T) {
	var guard *Guard
	claim, err := guard.Claim(formRequest(""), "x")
	require.NoError(t, err)
	claim.Release(context.Background())
}
