package app

import (
	"context"

	"go.uber.org/zap"

	"wsp/internal/domain"
)

// App is the running client: a built Wire plus the local identity it was
// built from.
type App struct {
	Identity domain.Identity
	Wire     *Wire
	Logger   *zap.Logger
}

// New loads or validates nothing by itself; it just bundles an
// already-built Wire with the identity used to build it, for commands
// that need both (e.g. to print a fingerprint alongside live session
// state).
func New(id domain.Identity, wire *Wire, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &App{Identity: id, Wire: wire, Logger: logger}
}

// Run connects to the relay and drives the session dispatch loop until
// ctx is canceled or the transport fails unrecoverably.
func (a *App) Run(ctx context.Context) error {
	return a.Wire.Session.Run(ctx)
}
