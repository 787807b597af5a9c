package shared

import "context"

type actorContextKey struct{}

// ContextWithActor stores the acting user reference in context.
func ContextWithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor, or "system" when none was set.
func ActorFromContext(ctx context.Context) string {
	if actor, ok := ctx.Value(actorContextKey{}).(string); ok && actor != "" {
		return actor
	}
	return "system"
}
