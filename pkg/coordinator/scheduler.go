package coordinator

import (
	"context"
	"errors"
	"time"

	"github.com/cfoust/kart/pkg/config"
	"github.com/cfoust/kart/pkg/maps"
	"github.com/cfoust/kart/pkg/protocol"

	"github.com/rs/zerolog/log"
)

type MapSource interface {
	Next() (*maps.Map, error)
}

// Scheduler drives rounds back to back: it waits for players, runs the load
// barrier, counts down, ticks the race and completes it. It only talks to
// the coordinator through its Handle.
type Scheduler struct {
	handle   Handle
	maps     MapSource
	settings config.RaceSettings
}

func NewScheduler(handle Handle, source MapSource, settings config.RaceSettings) *Scheduler {
	return &Scheduler{
		handle:   handle,
		maps:     source,
		settings: settings,
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func stopped(err error) bool {
	return errors.Is(err, ErrStopped) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// Run plays rounds until ctx is cancelled or the coordinator stops.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		_, err := s.RunRound(ctx)
		if err != nil {
			if stopped(err) {
				return err
			}
			log.Error().Err(err).Msg("round failed")
		}

		if err := sleep(ctx, s.settings.InterRoundDuration()); err != nil {
			return err
		}
	}
}

// RunRound plays a single round and returns its placements. A round nobody
// loaded into has no placements.
func (s *Scheduler) RunRound(ctx context.Context) ([]protocol.Placement, error) {
	if err := s.handle.AwaitClient(ctx); err != nil {
		return nil, err
	}

	m, err := s.maps.Next()
	if err != nil {
		return nil, err
	}

	logger := log.With().Str("map", m.Name).Logger()

	participants, err := s.handle.LoadMap(ctx, m)
	if err != nil {
		return nil, err
	}
	if len(participants) == 0 {
		logger.Info().Msg("round abandoned, nobody loaded")
		return nil, nil
	}

	if err := sleep(ctx, s.settings.CountdownDuration()); err != nil {
		return nil, err
	}

	err = s.handle.StartRace(ctx)
	switch {
	case errors.Is(err, ErrWrongRoundState):
		// everyone left during the countdown
		logger.Info().Msg("round ended before the race started")
		return nil, nil
	case err != nil:
		return nil, err
	}

	if err := s.race(ctx); err != nil {
		return nil, err
	}

	placements, err := s.handle.CompleteRound(ctx)
	if err != nil {
		return nil, err
	}
	return placements, nil
}

func (s *Scheduler) race(ctx context.Context) error {
	ticker := time.NewTicker(s.settings.TickInterval())
	defer ticker.Stop()

	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			result, err := s.handle.GameTick(ctx, time.Since(start))
			if err != nil {
				return err
			}
			if result == RaceOver {
				return nil
			}
		}
	}
}
