package middleware

import "github.com/labstack/echo/v4"

// identityKey is the echo context key holding the authenticated Identity.
const identityKey = "identity"

// Identity is the authenticated user for the current request.  It is set
// by the session or bearer-token middleware and read by handlers; nothing
// outside the request carries it.
type Identity struct {
	UserID   uint64
	Username string
}

// SetIdentity attaches id to the request context.
func SetIdentity(c echo.Context, id Identity) {
	c.Set(identityKey, id)
}

// CurrentIdentity returns the authenticated user, if any.
func CurrentIdentity(c echo.Context) (Identity, bool) {
	id, ok := c.Get(identityKey).(Identity)
	return id, ok && id.UserID != 0
}
