// Package sessiontest builds requests that carry a hydrated session Store, for
// handler tests that run against apitest.
package sessiontest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/fingrupo/fingrupo/internal/api"
	"github.com/fingrupo/fingrupo/internal/session"
	"github.com/fingrupo/fingrupo/internal/shared"
)

// Visitor is a browser session: the redis session payload plus the Store
// resolved from it.
type Visitor struct {
	Session *shared.Session
	Store   *session.Store
}

// Anonymous returns a Visitor with no credentials.
func Anonymous(t testing.TB, client *api.Client) *Visitor {
	t.Helper()
	sess := shared.NewSession()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	store := session.New(client, session.NewHTTPState(sess, httptest.NewRecorder(), req, false), session.Options{})
	store.Initialize(context.Background())
	return &Visitor{Session: sess, Store: store}
}

// LoggedIn returns a Visitor signed in as email.
func LoggedIn(t testing.TB, client *api.Client, email, password string) *Visitor {
	t.Helper()
	v := Anonymous(t, client)
	if _, err := v.Store.Login(context.Background(), email, password); err != nil {
		t.Fatalf("sessiontest: login %s: %v", email, err)
	}
	return v
}

// Request builds a request carrying the Visitor's session and Store. A non-nil
// form is sent url-encoded.
func (v *Visitor) Request(method, target string, form url.Values) *http.Request {
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	ctx := shared.ContextWithSession(req.Context(), v.Session)
	ctx = session.ContextWithStore(ctx, v.Store)
	return req.WithContext(ctx)
}

// Flash pops the oldest queued flash message, empty when none.
func (v *Visitor) Flash() string {
	if msg := v.Session.PopFlash(); msg != nil {
		return msg.Message
	}
	return ""
}
