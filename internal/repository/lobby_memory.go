package repository

import (
	"context"
	"sync"
	"time"

	"github.com/driftline/matchmaker/internal/matchmaking"
	"github.com/driftline/matchmaker/internal/model"
)

// memoryLobby keeps all state in process. One mutex guards the registry and
// the slot together; nothing under it can fail or block on I/O.
type memoryLobby struct {
	mu       sync.Mutex
	registry *matchmaking.Registry
	slot     model.WaitingSlot
	timeouts matchmaking.Timeouts
	opts     lobbyOptions
}

func NewMemoryLobbyRepository(timeouts matchmaking.Timeouts, opts ...LobbyOption) LobbyRepository {
	return &memoryLobby{
		registry: matchmaking.NewRegistry(),
		timeouts: timeouts,
		opts:     newLobbyOptions(opts),
	}
}

func (l *memoryLobby) sweepLocked(now time.Time) model.SweepResult {
	var result model.SweepResult
	l.slot, result = matchmaking.Sweep(l.registry, l.slot, now, l.timeouts)
	return result
}

func (l *memoryLobby) Stats(ctx context.Context, now time.Time) (int, error) {
	l.mu.Lock()
	swept := l.sweepLocked(now)
	n := l.registry.Count()
	l.mu.Unlock()

	l.opts.report(swept)
	return n, nil
}

func (l *memoryLobby) Heartbeat(ctx context.Context, id string, now time.Time) (int, error) {
	l.mu.Lock()
	swept := l.sweepLocked(now)
	l.registry.Touch(id, now)
	l.slot = matchmaking.Refresh(l.slot, id, now)
	n := l.registry.Count()
	l.mu.Unlock()

	l.opts.report(swept)
	return n, nil
}

func (l *memoryLobby) Join(ctx context.Context, id string, now time.Time) (model.MatchOutcome, error) {
	l.mu.Lock()
	swept := l.sweepLocked(now)
	l.registry.Touch(id, now)
	var outcome model.MatchOutcome
	l.slot, outcome = matchmaking.Decide(l.slot, id, now, l.timeouts.Waiting)
	l.mu.Unlock()

	l.opts.report(swept)
	return outcome, nil
}

func (l *memoryLobby) Leave(ctx context.Context, id string, now time.Time) error {
	l.mu.Lock()
	swept := l.sweepLocked(now)
	l.registry.Remove(id)
	l.slot = matchmaking.Release(l.slot, id)
	l.mu.Unlock()

	l.opts.report(swept)
	return nil
}

func (l *memoryLobby) Sweep(ctx context.Context, now time.Time) (model.SweepResult, error) {
	l.mu.Lock()
	swept := l.sweepLocked(now)
	l.mu.Unlock()

	l.opts.report(swept)
	return swept, nil
}

func (l *memoryLobby) Ping(ctx context.Context) error {
	return nil
}

func (l *memoryLobby) Backend() string {
	return "memory"
}
