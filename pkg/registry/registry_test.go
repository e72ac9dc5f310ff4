package registry

import (
	"math/rand"
	"testing"
	"time"

	"github.com/cfoust/kart/pkg/protocol"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(name string) *Client {
	return NewClient(protocol.NewClientID(), name, make(chan protocol.ServerMessage, 1))
}

func TestPartitionsStayDisjoint(t *testing.T) {
	r := New()
	rng := rand.New(rand.NewSource(1))
	var ids []protocol.ClientID

	for i := 0; i < 500; i++ {
		switch rng.Intn(6) {
		case 0, 1:
			c := newClient("p")
			r.Add(c)
			ids = append(ids, c.ID)
		case 2:
			if len(ids) == 0 {
				continue
			}
			j := rng.Intn(len(ids))
			r.Remove(ids[j])
			ids = append(ids[:j], ids[j+1:]...)
		case 3:
			r.PromoteToLoading()
		case 4:
			if len(ids) > 0 {
				id := ids[rng.Intn(len(ids))]
				r.MarkLoaded(id)
				r.Finish(id, time.Second)
			}
		case 5:
			r.ResetRound()
			r.DemoteLoading()
		}

		require.NoError(t, r.Check())
		require.Equal(t, len(ids), r.Len())
	}
}

func TestTransitions(t *testing.T) {
	r := New()
	a, b := newClient("a"), newClient("b")
	r.Add(a)
	r.Add(b)

	assert.Equal(t, StageWaiting, a.Stage())
	assert.Equal(t, 2, r.Count(StageWaiting))

	// Not loading yet
	_, err := r.MarkLoaded(a.ID)
	assert.ErrorIs(t, err, ErrWrongStage)

	promoted := r.PromoteToLoading()
	assert.Equal(t, []protocol.ClientID{a.ID, b.ID}, IDs(promoted))

	_, err = r.MarkLoaded(a.ID)
	require.NoError(t, err)
	assert.Equal(t, StageInRound, a.Stage())

	// Updates only apply in the round
	assert.ErrorIs(t, r.ApplyUpdate(b.ID, protocol.PlayerState{Heading: 1}), ErrWrongStage)
	require.NoError(t, r.ApplyUpdate(a.ID, protocol.PlayerState{Heading: 1}))
	assert.Equal(t, 1.0, a.Player.Heading)

	demoted := r.DemoteLoading()
	assert.Equal(t, []protocol.ClientID{b.ID}, IDs(demoted))
	assert.Equal(t, StageWaiting, b.Stage())

	_, err = r.Finish(a.ID, 3*time.Second)
	require.NoError(t, err)
	assert.Equal(t, StageFinished, a.Stage())
	assert.Equal(t, 3*time.Second, a.FinishTime)

	_, err = r.Finish(a.ID, 4*time.Second)
	assert.ErrorIs(t, err, ErrWrongStage)

	reset := r.ResetRound()
	assert.Equal(t, []protocol.ClientID{a.ID}, IDs(reset))
	assert.Equal(t, StageWaiting, a.Stage())

	_, err = r.MarkLoaded(protocol.NewClientID())
	assert.ErrorIs(t, err, ErrUnknownClient)
	require.NoError(t, r.Check())
}

func TestAddReplacesDuplicate(t *testing.T) {
	r := New()
	a := newClient("a")
	r.Add(a)
	r.PromoteToLoading()

	again := NewClient(a.ID, "a2", make(chan protocol.ServerMessage, 1))
	replaced := r.Add(again)
	assert.Equal(t, a, replaced)
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, 0, r.Count(StageLoading))
	assert.Equal(t, StageWaiting, again.Stage())
	require.NoError(t, r.Check())
}
