package shared

import "context"

type actorContextKey struct{}

// ContextWithActor stores the acting operator's ID in context.
func ContextWithActor(ctx context.Context, actorID int64) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actorID)
}

// ActorFromContext extracts the acting operator's ID from context. Zero means
// the system actor.
func ActorFromContext(ctx context.Context) int64 {
	actorID, _ := ctx.Value(actorContextKey{}).(int64)
	return actorID
}
