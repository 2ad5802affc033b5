package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carelink/carelink/internal/platform/apperr"
)

type contextKey string

const actorKey contextKey = "actor"

// Claims is the JWT payload issued by the external credential issuer.
// Subject carries the user id; expiry is enforced by the token itself, the
// server holds no session state beyond it.
type Claims struct {
	jwt.RegisteredClaims
	Phone string   `json:"phone"`
	Roles []string `json:"roles"`
}

type JWTConfig struct {
	SigningKey []byte
	Issuer     string
	Audience   string
}

// JWT parses an optional Bearer token into an Actor on the request context.
// Requests without a token pass through unauthenticated so that guest intake
// flows keep working; handlers that need an actor use RequireActor.
// A present-but-invalid token is rejected outright.
func JWT(cfg JWTConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return next(c)
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
			}

			claims := &Claims{}
			opts := []jwt.ParserOption{
				jwt.WithValidMethods([]string{"HS256"}),
			}
			if cfg.Issuer != "" {
				opts = append(opts, jwt.WithIssuer(cfg.Issuer))
			}
			if cfg.Audience != "" {
				opts = append(opts, jwt.WithAudience(cfg.Audience))
			}

			token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (interface{}, error) {
				return cfg.SigningKey, nil
			}, opts...)
			if err != nil || !token.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			userID, err := uuid.Parse(claims.Subject)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token subject")
			}

			roles := make([]Role, 0, len(claims.Roles))
			for _, r := range claims.Roles {
				if ValidRole(r) {
					roles = append(roles, Role(r))
				}
			}

			actor := Actor{UserID: userID, Phone: claims.Phone, Roles: roles}
			ctx := context.WithValue(c.Request().Context(), actorKey, actor)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// RequireActor rejects requests that did not present a valid credential.
func RequireActor() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, ok := ActorFromContext(c.Request().Context()); !ok {
				return apperr.Respond(c, apperr.E(apperr.Unauthenticated, "unauthorized"))
			}
			return next(c)
		}
	}
}

// RequireRole rejects authenticated requests lacking all of the given roles.
// It implies RequireActor.
func RequireRole(roles ...Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actor, ok := ActorFromContext(c.Request().Context())
			if !ok {
				return apperr.Respond(c, apperr.E(apperr.Unauthenticated, "unauthorized"))
			}
			if !actor.HasRole(roles...) {
				return apperr.Respond(c, apperr.E(apperr.Forbidden, "forbidden"))
			}
			return next(c)
		}
	}
}

// ActorFromContext returns the resolved actor, if any.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey).(Actor)
	return a, ok
}

// WithActor injects an actor into ctx. Used by tests and the serve wiring.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey, a)
}
