package session

import (
	"context"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/NovaByteCorp/deliverypro/internal/clientstate"
	"github.com/NovaByteCorp/deliverypro/internal/config"
	"github.com/NovaByteCorp/deliverypro/internal/entity"
	"github.com/NovaByteCorp/deliverypro/internal/lifecycle"
	"github.com/NovaByteCorp/deliverypro/internal/presentation/http/response"
	"github.com/NovaByteCorp/deliverypro/pkg/errorbank"
)

// SimulatedRoleHeader lets an admin act as another role for one request.
const SimulatedRoleHeader = "X-Simulated-Role"

const (
	actorKey    = "session.actor"
	realRoleKey = "session.real_role"
)

// RoleOverrides returns a role an admin chose to simulate across requests,
// or "" for none.
type RoleOverrides interface {
	GetString(ctx context.Context, sessionID string, key clientstate.Key) (string, error)
}

// Authenticator verifies bearer tokens and stores the Actor on the echo context.
type Authenticator struct {
	secret    string
	overrides RoleOverrides
	logger    *zap.Logger
}

// Params defines dependencies for constructing Authenticator.
type Params struct {
	fx.In

	Config    config.Config
	Overrides RoleOverrides `optional:"true"`
	Logger    *zap.Logger   `optional:"true"`
}

// Module provides the Authenticator, reading simulated roles from client state.
var Module = fx.Options(
	fx.Provide(NewAuthenticator),
	fx.Provide(func(s *clientstate.Store) RoleOverrides { return s }),
)

// NewAuthenticator wires an Authenticator.
func NewAuthenticator(p Params) *Authenticator {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Authenticator{secret: p.Config.Auth.JWTSecret, overrides: p.Overrides, logger: logger}
}

// Middleware rejects requests without a valid token.
func (a *Authenticator) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := bearerToken(c)
			if token == "" {
				return response.New(c).WithError(errorbank.Unauthorized("token ausente")).Build()
			}
			claims, err := ParseToken(token, a.secret)
			if err != nil {
				return response.New(c).WithError(errorbank.Unauthorized("token inválido", errorbank.WithCause(err))).Build()
			}

			actor := lifecycle.Actor{UserID: claims.UserID, Role: claims.Role}
			if claims.Role == entity.RoleAdmin {
				actor.Role = a.simulatedRole(c, claims.UserID)
			}
			c.Set(actorKey, actor)
			c.Set(realRoleKey, claims.Role)
			return next(c)
		}
	}
}

func (a *Authenticator) simulatedRole(c echo.Context, userID string) entity.Role {
	if r := entity.Role(strings.TrimSpace(c.Request().Header.Get(SimulatedRoleHeader))); r.Valid() {
		return r
	}
	if a.overrides == nil {
		return entity.RoleAdmin
	}
	stored, err := a.overrides.GetString(c.Request().Context(), userID, clientstate.KeySimulatedRole)
	if err != nil {
		a.logger.Warn("simulated role lookup failed", zap.String("user_id", userID), zap.Error(err))
		return entity.RoleAdmin
	}
	if r := entity.Role(stored); r.Valid() {
		return r
	}
	return entity.RoleAdmin
}

// RequireRoles lets only the listed roles through. It must run after Middleware.
func RequireRoles(roles ...entity.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actor, err := ActorFrom(c)
			if err != nil {
				return response.New(c).WithError(err).Build()
			}
			for _, r := range roles {
				if actor.Role == r {
					return next(c)
				}
			}
			return response.New(c).WithError(errorbank.Forbidden("perfil sem permissão para esta ação")).Build()
		}
	}
}

// ActorFrom returns the Actor resolved by Middleware.
func ActorFrom(c echo.Context) (lifecycle.Actor, error) {
	actor, ok := c.Get(actorKey).(lifecycle.Actor)
	if !ok {
		return lifecycle.Actor{}, errorbank.Unauthorized("sessão não encontrada")
	}
	return actor, nil
}

// RealRole is the role carried by the token, ignoring any simulated role.
func RealRole(c echo.Context) entity.Role {
	if r, ok := c.Get(realRoleKey).(entity.Role); ok {
		return r
	}
	actor, _ := ActorFrom(c)
	return actor.Role
}

// WithActor stores actor on c without token parsing.
func WithActor(c echo.Context, actor lifecycle.Actor) {
	c.Set(actorKey, actor)
}

func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}
