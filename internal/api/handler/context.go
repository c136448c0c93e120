package handler

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/bug-tracker/internal/api/middleware"
	"github.com/99minutos/bug-tracker/internal/core/domain"
	"github.com/99minutos/bug-tracker/internal/core/ports"
)

// ctxActor extracts the caller identity injected by the Auth middleware.
// Both id and role must be present; either missing means the middleware did
// not run and the request is treated as unauthenticated.
func ctxActor(c echo.Context) (domain.Actor, error) {
	id, _ := c.Get(middleware.ContextUserID).(string)
	role, _ := c.Get(middleware.ContextRole).(string)
	if id == "" || role == "" {
		return domain.Actor{}, domain.ErrUnauthenticated
	}
	return domain.Actor{ID: id, Role: role}, nil
}

// ctxClaims returns the token claims needed to revoke the presented token.
func ctxClaims(c echo.Context) (ports.TokenClaims, error) {
	actor, err := ctxActor(c)
	if err != nil {
		return ports.TokenClaims{}, err
	}
	jti, _ := c.Get(middleware.ContextTokenID).(string)
	exp, _ := c.Get(middleware.ContextExpiresAt).(time.Time)
	return ports.TokenClaims{
		UserID:    actor.ID,
		Role:      actor.Role,
		TokenID:   jti,
		ExpiresAt: exp,
	}, nil
}
