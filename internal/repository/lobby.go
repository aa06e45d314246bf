package repository

import (
	"context"
	"time"

	"github.com/driftline/matchmaker/internal/model"
)

// LobbyRepository owns the presence registry and the waiting slot. Every
// mutating call sweeps expired state first and applies its whole
// read-check-write atomically with respect to every other call, including
// calls made from other processes sharing the same backend.
type LobbyRepository interface {
	// Stats sweeps and returns the raw registry size.
	Stats(ctx context.Context, now time.Time) (int, error)
	// Heartbeat touches id, re-stamps the slot if id holds it and returns
	// the registry size.
	Heartbeat(ctx context.Context, id string, now time.Time) (int, error)
	// Join touches id and runs the match-or-enqueue decision.
	Join(ctx context.Context, id string, now time.Time) (model.MatchOutcome, error)
	// Leave removes id and empties the slot if id holds it.
	Leave(ctx context.Context, id string, now time.Time) error
	Sweep(ctx context.Context, now time.Time) (model.SweepResult, error)
	Ping(ctx context.Context) error
	Backend() string
}

// SweepHook receives every non-empty sweep result, including the sweeps that
// run at the start of each call. It runs after the lobby state is released.
type SweepHook func(model.SweepResult)

type LobbyOption func(*lobbyOptions)

// WithSweepHook reports evictions to fn.
func WithSweepHook(fn SweepHook) LobbyOption {
	return func(o *lobbyOptions) {
		o.sweepHook = fn
	}
}

type lobbyOptions struct {
	sweepHook SweepHook
}

func newLobbyOptions(opts []LobbyOption) lobbyOptions {
	var o lobbyOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o lobbyOptions) report(result model.SweepResult) {
	if o.sweepHook != nil && !result.Empty() {
		o.sweepHook(result)
	}
}
