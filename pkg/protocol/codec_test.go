package protocol

import (
	"strings"
	"testing"
	"time"

	"github.com/cfoust/kart/pkg/geom"

	"github.com/fxamacker/cbor/v2"
	"github.com/repeale/fp-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeClient(t *testing.T) {
	data, err := Encode(PlayerUpdate{
		Position: geom.NewVec2(1, 2),
		Heading:  0.5,
		Progress: TrackProgress{Segment: 3, Fraction: 0.25},
	})
	require.NoError(t, err)

	message, err := DecodeClient(data)
	require.NoError(t, err)
	update, ok := message.(PlayerUpdate)
	require.True(t, ok)
	assert.Equal(t, 3, update.State().Progress.Segment)

	// Server messages are not accepted from clients
	data, err = Encode(StartRace{})
	require.NoError(t, err)
	_, err = DecodeClient(data)
	assert.Error(t, err)

	unknown, err := cbor.Marshal(Envelope{Code: 200})
	require.NoError(t, err)
	_, err = Decode(unknown)
	assert.ErrorIs(t, err, ErrUnknownMessage)

	_, err = Decode([]byte{0xff, 0x00})
	assert.Error(t, err)
}

func TestPlacementFinishTime(t *testing.T) {
	a, b := NewClientID(), NewClientID()
	data, err := Encode(EndRound{
		Placements: []Placement{
			{Client: a, Name: "a", FinishTime: opt.Some(42 * time.Second)},
			{Client: b, Name: "b", FinishTime: opt.None[time.Duration]()},
		},
	})
	require.NoError(t, err)

	message, err := Decode(data)
	require.NoError(t, err)
	end := message.(EndRound)
	require.Len(t, end.Placements, 2)

	assert.Equal(t, a, end.Placements[0].Client)
	assert.True(t, opt.IsSome(end.Placements[0].FinishTime))
	assert.Equal(t, 42*time.Second, end.Placements[0].FinishTime.Value)
	assert.Equal(t, b, end.Placements[1].Client)
	assert.True(t, opt.IsNone(end.Placements[1].FinishTime))
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "bob", SanitizeName("  bob\n"))
	assert.Equal(t, "mario kart", SanitizeName("mario\t\t kart"))
	assert.Equal(t, "bell", SanitizeName("be\x07ll"))
	assert.Equal(t, "", SanitizeName("\x00\x01"))
	assert.Len(t, []rune(SanitizeName(strings.Repeat("é", 40))), MaxNameLength)
}
