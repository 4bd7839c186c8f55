package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// JWTAuth validates a Bearer access token signed with secret (HS256) and
// stores its subject and role in the context as "user_id" and "role".
// Admin routes are wrapped with it so handlers can read the caller via
// UserID.
func JWTAuth(secret string) echo.MiddlewareFunc {
	// The outer function runs once when the middleware is registered.
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		// The returned handler runs for every request on the group.
		return func(c echo.Context) error {
			// A valid header is "Bearer " followed by the token.  Anything
			// else is answered with 401 before the token is looked at.
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "message": "missing bearer token"})
			}
			// Strip the prefix to get the raw token string.
			raw := strings.TrimPrefix(auth, "Bearer ")

			// Parse with our secret.  Only HS256 is accepted and the token
			// must carry an exp claim; expired tokens fail here too.
			tok, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
				return []byte(secret), nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
			if err != nil || !tok.Valid {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "message": "invalid token"})
			}
			// Claims come back as a map; any other shape means the token
			// was not issued by utils.NewAccessToken.
			claims, ok := tok.Claims.(jwt.MapClaims)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "message": "invalid claims"})
			}

			// Store the subject (admin id as a decimal string) and the role.
			// UserID and RequireRole do the type assertions downstream.
			c.Set("user_id", claims["sub"])
			c.Set("role", claims["role"])
			// Hand over to the next handler in the chain.
			return next(c)
		}
	}
}
