package middleware // reusable HTTP middleware: auth gate, role checks, cache, rate limiting

import (
    "net/http" // HTTP status codes for responses
    "strings"  // prefix checks on the Authorization header

    "github.com/labstack/echo/v4" // middleware chaining and request context

    "github.com/iliyamo/car-rental-booking/internal/utils" // session token parsing
)

// JWTAuth returns an Echo middleware that validates a Bearer session token
// signed with secret.  A request without a bearer token is rejected with 401;
// a token that is malformed, wrongly signed or expired is rejected with 403.
// On success the caller's Identity is stored in the context and can be read
// with CurrentIdentity.
func JWTAuth(secret string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            auth := c.Request().Header.Get("Authorization")
            raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
            // no header, another scheme, or "Bearer " with nothing after it
            if !strings.HasPrefix(auth, "Bearer ") || raw == "" {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Unauthenticated"})
            }

            claims, err := utils.ParseSessionToken(secret, raw)
            if err != nil {
                return c.JSON(http.StatusForbidden, echo.Map{"error": "Forbidden"})
            }

            // Downstream handlers and the rate limiter read this.
            c.Set(identityKey, Identity{ID: claims.ID, Email: claims.Email, Role: claims.Role})
            return next(c)
        }
    }
}
