// Package auth provides context helpers for the authenticated actor.
// The transport layer resolves the caller's identity and injects an Actor
// into the request context; the engine trusts it and never re-derives it.
package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Actor is the authenticated caller of an engine operation.
type Actor struct {
	// TenantID scopes every data operation. Never uuid.Nil for real calls.
	TenantID uuid.UUID
	// UserID is recorded on created/updated rows and audit entries.
	UserID string
	// Elevated marks operators allowed to mutate system taxonomies.
	Elevated bool
}

type contextKey string

const actorKey contextKey = "actor"

// SetActor stores the actor in the context.
func SetActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// GetActor retrieves the actor from the context.
// Returns nil and false if not present.
func GetActor(ctx context.Context) (*Actor, bool) {
	actor, ok := ctx.Value(actorKey).(*Actor)
	return actor, ok
}

// GetTenantIDFromContext extracts the tenant ID from the actor in the context.
// Returns uuid.Nil if no actor is present.
// Use this when you can handle uuid.Nil gracefully.
func GetTenantIDFromContext(ctx context.Context) uuid.UUID {
	actor, ok := GetActor(ctx)
	if !ok || actor == nil {
		return uuid.Nil
	}
	return actor.TenantID
}

// GetUserIDFromContext extracts the user ID from the actor in the context.
// Returns empty string if no actor is present.
func GetUserIDFromContext(ctx context.Context) string {
	actor, ok := GetActor(ctx)
	if !ok || actor == nil {
		return ""
	}
	return actor.UserID
}

// RequireActorFromContext extracts the actor and returns an error if it is
// missing or carries no tenant. Use this at the top of every service operation.
func RequireActorFromContext(ctx context.Context) (*Actor, error) {
	actor, ok := GetActor(ctx)
	if !ok || actor == nil {
		return nil, fmt.Errorf("actor not found in context")
	}
	if actor.TenantID == uuid.Nil {
		return nil, fmt.Errorf("actor has no tenant ID")
	}
	return actor, nil
}
