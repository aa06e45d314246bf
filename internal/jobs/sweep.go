package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/driftline/matchmaker/internal/config"
	"github.com/driftline/matchmaker/internal/model"
)

// Sweeper runs one liveness pass over the lobby.
type Sweeper interface {
	Sweep(ctx context.Context) (model.SweepResult, error)
}

// SweepJob expires idle participants between requests. Every lobby call
// already sweeps first, so this only keeps stats and storage tidy when the
// endpoint is quiet.
type SweepJob struct {
	sweeper  Sweeper
	interval time.Duration
	done     chan struct{}
	stopped  chan struct{}
}

func NewSweepJob(sweeper Sweeper, interval time.Duration) *SweepJob {
	return &SweepJob{
		sweeper:  sweeper,
		interval: interval,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

func (j *SweepJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("sweep job started")
}

// Stop blocks until an in-flight pass has finished.
func (j *SweepJob) Stop() {
	close(j.done)
	<-j.stopped
	log.Info().Msg("sweep job stopped")
}

func (j *SweepJob) run() {
	defer close(j.stopped)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.sweep()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.sweep()
		}
	}
}

func (j *SweepJob) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), config.SweepJobTimeout)
	defer cancel()

	result, err := j.sweeper.Sweep(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to sweep lobby")
		return
	}
	if !result.Empty() {
		log.Info().
			Int64("expiredParticipants", result.ExpiredParticipants).
			Str("expiredWaiter", result.ExpiredWaiter).
			Msg("swept lobby")
	}
}
