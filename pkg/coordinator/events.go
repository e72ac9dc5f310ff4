package coordinator

import (
	"fmt"
	"time"

	"github.com/cfoust/kart/pkg/protocol"
	"github.com/cfoust/kart/pkg/registry"
)

type RoundState uint8

const (
	RoundIdle RoundState = iota
	RoundWaitingForLoad
	RoundCountdown
	RoundRacing
)

func (r RoundState) String() string {
	switch r {
	case RoundIdle:
		return "idle"
	case RoundWaitingForLoad:
		return "waiting-for-load"
	case RoundCountdown:
		return "countdown"
	case RoundRacing:
		return "racing"
	}
	return fmt.Sprintf("round(%d)", uint8(r))
}

type EventKind uint8

const (
	EventRoundState EventKind = iota
	EventPlayerCount
	EventRoundEnded
)

// Event is published whenever something an outside observer might care
// about changes.
type Event struct {
	Kind    EventKind
	Round   uint64
	State   RoundState
	Map     string
	Players int
	// Only set for EventRoundEnded
	Placements []protocol.Placement
}

// Status is a snapshot of the coordinator for diagnostics.
type Status struct {
	Round    uint64
	State    RoundState
	Map      string
	Waiting  int
	Loading  int
	InRound  int
	Finished int
	Items    int

	// Time left for stragglers once somebody finished
	GraceLeft time.Duration
}

func (s Status) Players() int {
	return s.Waiting + s.Loading + s.InRound + s.Finished
}

func (c *Coordinator) status() Status {
	return Status{
		Round:    c.round.number,
		State:    c.round.state,
		Map:      c.round.mapName(),
		Waiting:  c.clients.Count(registry.StageWaiting),
		Loading:  c.clients.Count(registry.StageLoading),
		InRound:  c.clients.Count(registry.StageInRound),
		Finished: c.clients.Count(registry.StageFinished),
		Items:    c.engine.NumItems(),

		GraceLeft: c.round.graceTimer.TimeLeft(),
	}
}

func (c *Coordinator) publish(kind EventKind) {
	c.Events.Publish(Event{
		Kind:    kind,
		Round:   c.round.number,
		State:   c.round.state,
		Map:     c.round.mapName(),
		Players: c.clients.Len(),
	})
}
