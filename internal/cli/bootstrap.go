package cli

import (
	gocontext "context"
	"fmt"

	"github.com/example/triage/internal/config"
	"github.com/example/triage/internal/ctxutil"
	"github.com/example/triage/internal/logging"
	"github.com/example/triage/internal/wire"
)

// Global flags shared by every command.
var (
	globalConfigPath string
	globalActorID    string
	globalJSON       bool
)

// NewContext creates a context carrying the --actor identity, if one was given.
func NewContext() gocontext.Context {
	ctx := gocontext.Background()
	if globalActorID != "" {
		return ctxutil.WithActorID(ctx, globalActorID)
	}
	return ctx
}

// services loads configuration and returns the process-wide container.
func services(ctx gocontext.Context) (*wire.Container, error) {
	cfg, err := config.Load(globalConfigPath)
	if err != nil {
		return nil, err
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.JSON)
	if err != nil {
		return nil, err
	}
	c, err := wire.Default(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	return c, nil
}
