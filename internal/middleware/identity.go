package middleware

import "github.com/labstack/echo/v4"

const identityKey = "identity"

// Identity is the authenticated caller as read from the session token.
type Identity struct {
    ID    uint64 `json:"id"`
    Email string `json:"email"`
    Role  string `json:"role"`
}

// CurrentIdentity returns the identity stored by JWTAuth, if any.
func CurrentIdentity(c echo.Context) (Identity, bool) {
    id, ok := c.Get(identityKey).(Identity)
    return id, ok
}
