package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/99minutos/bug-tracker/internal/core/ports"
)

// Context keys set by Auth.
const (
	ContextUserID    = "user_id"
	ContextRole      = "role"
	ContextTokenID   = "jti"
	ContextExpiresAt = "exp"
)

// Auth validates the JWT and injects claims into context. Tokens revoked by
// logout are rejected; if the denylist cannot be reached the request is let
// through and the failure logged.
func Auth(jwtSecret string, denylist ports.TokenDenylist, log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Not authorized, no token")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Not authorized, no token")
			}

			claims := jwt.MapClaims{}
			tkn, err := jwt.ParseWithClaims(strings.TrimSpace(parts[1]), claims, func(token *jwt.Token) (interface{}, error) {
				if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
					return nil, jwt.ErrTokenSignatureInvalid
				}
				return []byte(jwtSecret), nil
			}, jwt.WithExpirationRequired())
			if err != nil || !tkn.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "Not authorized, token failed")
			}

			sub, _ := claims.GetSubject()
			role, _ := claims["role"].(string)
			if sub == "" || role == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Not authorized, token failed")
			}
			jti, _ := claims["jti"].(string)

			if denylist != nil && jti != "" {
				revoked, err := denylist.IsRevoked(c.Request().Context(), jti)
				switch {
				case err != nil:
					log.Warn().Err(err).Str("user_id", sub).Msg("token denylist unavailable")
				case revoked:
					return echo.NewHTTPError(http.StatusUnauthorized, "Not authorized, token revoked")
				}
			}

			var exp time.Time
			if e, err := claims.GetExpirationTime(); err == nil && e != nil {
				exp = e.Time
			}

			c.Set(ContextUserID, sub)
			c.Set(ContextRole, role)
			c.Set(ContextTokenID, jti)
			c.Set(ContextExpiresAt, exp)

			return next(c)
		}
	}
}
