package ctxutil

import (
	"context"
	"testing"
)

func TestActorFromContext(t *testing.T) {
	ctx := context.Background()
	if got := ActorFromContext(ctx); got != "" {
		t.Errorf("ActorFromContext(empty) = %q, want empty", got)
	}
	if got := ActorOrSystem(ctx); got != SystemActor {
		t.Errorf("ActorOrSystem(empty) = %q, want %q", got, SystemActor)
	}

	ctx = WithActorID(ctx, "counselor-7")
	if got := ActorFromContext(ctx); got != "counselor-7" {
		t.Errorf("ActorFromContext() = %q, want counselor-7", got)
	}
	if got := ActorOrSystem(ctx); got != "counselor-7" {
		t.Errorf("ActorOrSystem() = %q, want counselor-7", got)
	}
}
