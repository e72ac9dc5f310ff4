package protocol

import (
	"fmt"
	"time"

	"github.com/cfoust/kart/pkg/geom"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/repeale/fp-go/option"
)

// A unique identifier for a client for the lifetime of its connection.
type ClientID uuid.UUID

func NewClientID() ClientID {
	return ClientID(uuid.New())
}

func (c ClientID) String() string {
	return uuid.UUID(c).String()
}

// Short is the first block of the id, enough to tell clients apart in logs.
func (c ClientID) Short() string {
	return c.String()[:8]
}

func (c ClientID) MarshalBinary() ([]byte, error) {
	return uuid.UUID(c).MarshalBinary()
}

func (c *ClientID) UnmarshalBinary(data []byte) error {
	var id uuid.UUID
	if err := id.UnmarshalBinary(data); err != nil {
		return err
	}
	*c = ClientID(id)
	return nil
}

// Where a player is along the track: the index of the segment they are on
// and how far through it they are, in [0, 1).
type TrackProgress struct {
	Segment  int
	Fraction float64
}

type PlayerState struct {
	Position geom.Vec2
	// Radians, counter-clockwise from +X.
	Heading  float64
	Progress TrackProgress
}

type ItemKind uint8

const (
	ItemBanana ItemKind = iota
	ItemGreenShell
	ItemRedShell
)

func (k ItemKind) String() string {
	switch k {
	case ItemBanana:
		return "banana"
	case ItemGreenShell:
		return "green-shell"
	case ItemRedShell:
		return "red-shell"
	}
	return fmt.Sprintf("item(%d)", uint8(k))
}

func (k ItemKind) Valid() bool {
	return k <= ItemRedShell
}

type PickupKind uint8

const (
	PickupCoin PickupKind = iota
	PickupItemBox
)

func (k PickupKind) String() string {
	switch k {
	case PickupCoin:
		return "coin"
	case PickupItemBox:
		return "item-box"
	}
	return fmt.Sprintf("pickup(%d)", uint8(k))
}

type Participant struct {
	Client ClientID
	Name   string
	// Index into the map's start positions.
	StartSlot int
}

type PlayerSnapshot struct {
	Client ClientID
	State  PlayerState
}

type ItemSnapshot struct {
	ID       uint32
	Kind     ItemKind
	Position geom.Vec2
}

// A client's result for a round. FinishTime is None for clients that were
// still racing when the round ended.
type Placement struct {
	Client     ClientID
	Name       string
	FinishTime opt.Option[time.Duration]
}

type wirePlacement struct {
	Client     ClientID
	Name       string
	Finished   bool
	FinishTime time.Duration
}

func (p Placement) MarshalCBOR() ([]byte, error) {
	wire := wirePlacement{
		Client: p.Client,
		Name:   p.Name,
	}
	if opt.IsSome(p.FinishTime) {
		wire.Finished = true
		wire.FinishTime = p.FinishTime.Value
	}
	return cbor.Marshal(wire)
}

func (p *Placement) UnmarshalCBOR(data []byte) error {
	var wire wirePlacement
	if err := cbor.Unmarshal(data, &wire); err != nil {
		return err
	}
	p.Client = wire.Client
	p.Name = wire.Name
	p.FinishTime = opt.None[time.Duration]()
	if wire.Finished {
		p.FinishTime = opt.Some(wire.FinishTime)
	}
	return nil
}
