package status

import (
	"context"
	"testing"
	"time"

	"github.com/cfoust/kart/pkg/coordinator"
	"github.com/cfoust/kart/pkg/protocol"
	"github.com/cfoust/kart/pkg/utils"

	"github.com/fxamacker/cbor/v2"
	"github.com/repeale/fp-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type write struct {
	key  string
	data []byte
	ttl  time.Duration
}

type fakeStore struct {
	writes chan write
}

func (f *fakeStore) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	f.writes <- write{key, data, ttl}
	return nil
}

func TestApply(t *testing.T) {
	publisher := NewPublisher(&fakeStore{}, "eu-1", time.Minute)

	snapshot := publisher.Apply(coordinator.Event{
		Kind:    coordinator.EventRoundState,
		Round:   3,
		State:   coordinator.RoundRacing,
		Map:     "loop",
		Players: 2,
	})
	assert.Equal(t, "racing", snapshot.State)
	assert.Equal(t, uint64(3), snapshot.Round)
	assert.Equal(t, "eu-1", snapshot.Server)

	snapshot = publisher.Apply(coordinator.Event{
		Kind:    coordinator.EventRoundEnded,
		Round:   3,
		State:   coordinator.RoundIdle,
		Map:     "loop",
		Players: 2,
		Placements: []protocol.Placement{
			{FinishTime: opt.Some(time.Second)},
			{FinishTime: opt.None[time.Duration]()},
		},
	})
	assert.Equal(t, 1, snapshot.Finishers)
	assert.Equal(t, snapshot, publisher.Latest())
}

func TestRun(t *testing.T) {
	store := &fakeStore{writes: make(chan write, 16)}
	publisher := NewPublisher(store, "eu-1", time.Minute)
	topic := utils.NewTopic[coordinator.Event](4)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- publisher.Run(ctx, topic.Subscribe())
	}()

	initial := <-store.writes
	assert.Equal(t, Key("eu-1"), initial.key)
	assert.Equal(t, time.Minute, initial.ttl)

	topic.Publish(coordinator.Event{
		Kind:    coordinator.EventPlayerCount,
		Players: 5,
	})

	select {
	case update := <-store.writes:
		var snapshot Snapshot
		require.NoError(t, cbor.Unmarshal(update.data, &snapshot))
		assert.Equal(t, 5, snapshot.Players)
	case <-time.After(time.Second):
		require.FailNow(t, "status never written")
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, 0, topic.NumSubscribers())
}
