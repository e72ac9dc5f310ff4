package coordinator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cfoust/kart/pkg/maps"
	"github.com/cfoust/kart/pkg/protocol"

	"github.com/repeale/fp-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedMaps struct {
	m   *maps.Map
	err error
}

func (f fixedMaps) Next() (*maps.Map, error) {
	return f.m, f.err
}

func TestRunRound(t *testing.T) {
	_, handle := start(t, testSettings())
	scheduler := NewScheduler(handle, fixedMaps{m: testMap()}, testSettings())

	type outcome struct {
		placements []protocol.Placement
		err        error
	}
	result := make(chan outcome, 1)
	go func() {
		placements, err := scheduler.RunRound(context.Background())
		result <- outcome{placements, err}
	}()

	a := join(t, handle, "a")
	next[protocol.PrepareRound](t, a)
	a.send(t, handle, protocol.LoadedMap{})
	next[protocol.StartRound](t, a)
	next[protocol.StartRace](t, a)
	next[protocol.RaceUpdate](t, a)

	a.send(t, handle, protocol.FinishRound{RaceTime: 5 * time.Second})

	select {
	case got := <-result:
		require.NoError(t, got.err)
		require.Len(t, got.placements, 1)
		assert.Equal(t, a.id, got.placements[0].Client)
		assert.Equal(t, opt.Some(5*time.Second), got.placements[0].FinishTime)
	case <-time.After(2 * time.Second):
		require.FailNow(t, "round never finished")
	}
}

func TestRunStopsWithContext(t *testing.T) {
	_, handle := start(t, testSettings())
	scheduler := NewScheduler(handle, fixedMaps{err: maps.ErrEmptyRotation}, testSettings())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	join(t, handle, "a")
	err := scheduler.Run(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}
