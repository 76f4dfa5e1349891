package core

import "context"

// Actor identifies who caused an event. It is captured from the request
// context at raise time and travels with the envelope into the audit log.
type Actor struct {
	UserID     string `json:"userId"`
	UserName   string `json:"userName"`
	RemoteAddr string `json:"remoteAddr"`
	UserAgent  string `json:"userAgent"`
}

// Anonymous is the actor used when no request context is available.
func Anonymous() Actor {
	return Actor{UserName: "anonymous"}
}

type actorCtxKey struct{}

// WithActor returns a context carrying the given actor.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorCtxKey{}, a)
}

// ActorFromContext returns the actor attached to the context, or the
// anonymous actor if none is present.
func ActorFromContext(ctx context.Context) Actor {
	if a, ok := ctx.Value(actorCtxKey{}).(Actor); ok {
		return a
	}
	return Anonymous()
}
