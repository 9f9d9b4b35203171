package middleware

import (
	"encoding/gob"
	"net/http"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/greenhouse-led-hub/internal/config"
)

const (
	sessionUserID   = "user_id"
	sessionUsername = "username"
)

// Flash is a one-shot message shown on the next rendered page.
type Flash struct {
	Category string // success|danger|info
	Message  string
}

func init() {
	gob.Register(Flash{})
}

// SessionStore keeps the browser session in a signed cookie.
type SessionStore struct {
	store *sessions.CookieStore
	name  string
}

// NewSessionStore builds a cookie store signed with cfg.SecretKey.
func NewSessionStore(cfg config.Config) *SessionStore {
	store := sessions.NewCookieStore([]byte(cfg.SecretKey))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   cfg.SessionMaxAge,
		HttpOnly: true,
		Secure:   cfg.SessionSecure,
		SameSite: http.SameSiteLaxMode,
	}
	name := cfg.SessionName
	if name == "" {
		name = "session"
	}
	return &SessionStore{store: store, name: name}
}

// session returns the request's session.  A cookie that fails to decode,
// for instance after a secret rotation, yields a fresh empty session.
func (s *SessionStore) session(c echo.Context) *sessions.Session {
	sess, _ := s.store.Get(c.Request(), s.name)
	return sess
}

// Middleware loads the session and attaches the Identity it carries.
func (s *SessionStore) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sess := s.session(c)
			if id, ok := sess.Values[sessionUserID].(uint64); ok && id != 0 {
				name, _ := sess.Values[sessionUsername].(string)
				SetIdentity(c, Identity{UserID: id, Username: name})
			}
			return next(c)
		}
	}
}

// RequireLogin redirects requests without an identity to the login page.
func RequireLogin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, ok := CurrentIdentity(c); !ok {
				return c.Redirect(http.StatusFound, "/login")
			}
			return next(c)
		}
	}
}

// Login stores id in the session and on the current request.
func (s *SessionStore) Login(c echo.Context, id Identity) error {
	sess := s.session(c)
	sess.Values[sessionUserID] = id.UserID
	sess.Values[sessionUsername] = id.Username
	SetIdentity(c, id)
	return sess.Save(c.Request(), c.Response())
}

// Logout clears all session state, pending flashes included.
func (s *SessionStore) Logout(c echo.Context) error {
	sess := s.session(c)
	for k := range sess.Values {
		delete(sess.Values, k)
	}
	c.Set(identityKey, nil)
	return sess.Save(c.Request(), c.Response())
}

// AddFlash queues a message for the next page render.  It must run before
// the response is written.
func (s *SessionStore) AddFlash(c echo.Context, category, message string) error {
	sess := s.session(c)
	sess.AddFlash(Flash{Category: category, Message: message})
	return sess.Save(c.Request(), c.Response())
}

// Flashes pops every queued message.
func (s *SessionStore) Flashes(c echo.Context) ([]Flash, error) {
	sess := s.session(c)
	raw := sess.Flashes()
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([]Flash, 0, len(raw))
	for _, v := range raw {
		if f, ok := v.(Flash); ok {
			out = append(out, f)
		}
	}
	return out, sess.Save(c.Request(), c.Response())
}
