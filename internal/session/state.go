package session

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/fingrupo/fingrupo/internal/api"
	"github.com/fingrupo/fingrupo/internal/shared"
)

const snapshotKey = "identity"

// Snapshot is the last resolved identity, cached so page loads inside the
// refresh interval need no API round trip.
type Snapshot struct {
	User       api.Profile `json:"user"`
	Role       shared.Role `json:"role"`
	ResolvedAt time.Time   `json:"resolved_at"`
}

// State is what outlives a request: the bearer token, the cached snapshot and
// the role cookie mirror. Only Store writes it.
type State interface {
	Token() string
	SetToken(token string)
	ClearToken()

	Snapshot() (Snapshot, bool)
	SetSnapshot(snap Snapshot)
	ClearSnapshot()

	MirroredRole() string
	MirrorRole(role shared.Role)
	ClearRoleMirror()
}

// HTTPState keeps the token and snapshot in the redis backed session and
// mirrors the role into the user_role cookie.
type HTTPState struct {
	sess   *shared.Session
	w      http.ResponseWriter
	r      *http.Request
	secure bool
	mirror *string
}

// NewHTTPState binds state to one request.
func NewHTTPState(sess *shared.Session, w http.ResponseWriter, r *http.Request, secure bool) *HTTPState {
	return &HTTPState{sess: sess, w: w, r: r, secure: secure}
}

func (s *HTTPState) Token() string {
	if s.sess == nil {
		return ""
	}
	return s.sess.Token()
}

func (s *HTTPState) SetToken(token string) {
	if s.sess != nil {
		s.sess.SetToken(token)
	}
}

func (s *HTTPState) ClearToken() {
	if s.sess != nil {
		s.sess.ClearToken()
	}
}

// Snapshot decodes the cached identity. A corrupt entry reads as absent.
func (s *HTTPState) Snapshot() (Snapshot, bool) {
	if s.sess == nil {
		return Snapshot{}, false
	}
	raw := s.sess.Get(snapshotKey)
	if raw == "" {
		return Snapshot{}, false
	}
	var snap Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return Snapshot{}, false
	}
	return snap, true
}

func (s *HTTPState) SetSnapshot(snap Snapshot) {
	if s.sess == nil {
		return
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return
	}
	s.sess.Set(snapshotKey, string(data))
}

func (s *HTTPState) ClearSnapshot() {
	if s.sess != nil {
		s.sess.Delete(snapshotKey)
	}
}

// MirroredRole returns the cookie value, reflecting writes made earlier in
// the same request.
func (s *HTTPState) MirroredRole() string {
	if s.mirror != nil {
		return *s.mirror
	}
	if s.r == nil {
		return ""
	}
	cookie, err := s.r.Cookie(shared.RoleCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func (s *HTTPState) MirrorRole(role shared.Role) {
	value := string(role)
	s.mirror = &value
	if s.w == nil {
		return
	}
	http.SetCookie(s.w, &http.Cookie{
		Name:     shared.RoleCookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearRoleMirror expires the cookie. It is only written when the request
// carried one or a mirror was set during this request.
func (s *HTTPState) ClearRoleMirror() {
	had := s.MirroredRole() != ""
	empty := ""
	s.mirror = &empty
	if s.w == nil || !had {
		return
	}
	http.SetCookie(s.w, &http.Cookie{
		Name:     shared.RoleCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
