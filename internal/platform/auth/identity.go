package auth

import (
	"context"

	domain "github.com/huanth/bi-a-manager/internal/domain"
)

type actorContextKey struct{}

// WithActor stores the authenticated staff member on ctx.
func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext returns the staff member stored by the middleware.
func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	if ctx == nil {
		return domain.Actor{}, false
	}
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	if !ok || actor.Username == "" {
		return domain.Actor{}, false
	}
	return actor, true
}

// HasRole reports whether actor holds one of roles. An empty role list allows everyone.
func HasRole(actor domain.Actor, roles ...domain.UserRole) bool {
	if len(roles) == 0 {
		return true
	}
	for _, role := range roles {
		if actor.Role == role {
			return true
		}
	}
	return false
}
