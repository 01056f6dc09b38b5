package session

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/fingrupo/fingrupo/internal/api"
	"github.com/fingrupo/fingrupo/internal/shared"
)

type storeContextKey struct{}

// ContextWithStore stores the Store in context.
func ContextWithStore(ctx context.Context, store *Store) context.Context {
	return context.WithValue(ctx, storeContextKey{}, store)
}

// FromContext extracts the Store from context.
func FromContext(ctx context.Context) *Store {
	store, _ := ctx.Value(storeContextKey{}).(*Store)
	return store
}

// Middleware hydrates a Store for every request. It must run after the
// session middleware so the redis backed session is in context.
func Middleware(base *api.Client, opts Options, secureCookies bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := shared.SessionFromContext(r.Context())
			if sess == nil {
				if opts.Logger != nil {
					opts.Logger.Error("session store without session", slog.String("path", r.URL.Path))
				}
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			store := New(base, NewHTTPState(sess, w, r, secureCookies), opts)
			store.Initialize(r.Context())
			next.ServeHTTP(w, r.WithContext(ContextWithStore(r.Context(), store)))
		})
	}
}
