package simulation

import (
	"github.com/cfoust/kart/pkg/geom"
	"github.com/cfoust/kart/pkg/protocol"

	"github.com/repeale/fp-go/option"
)

// Item is a thrown or dropped object in play. Which fields matter depends
// on Kind:
//   - ItemBanana: Position only, it never moves
//   - ItemGreenShell: Direction, a unit vector it flies along
//   - ItemRedShell: Velocity and Target, resolved once when fired
type Item struct {
	ID       uint32
	Owner    protocol.ClientID
	Kind     protocol.ItemKind
	Position geom.Vec2

	Direction geom.Vec2
	Velocity  geom.Vec2
	Target    opt.Option[protocol.ClientID]
}

func (i *Item) Snapshot() protocol.ItemSnapshot {
	return protocol.ItemSnapshot{
		ID:       i.ID,
		Kind:     i.Kind,
		Position: i.Position,
	}
}

// Racer is the part of an in-round client the simulation reads.
type Racer struct {
	ID    protocol.ClientID
	State protocol.PlayerState
}

type aheadKey struct {
	segments int
	fraction float64
}

func (a aheadKey) less(b aheadKey) bool {
	if a.segments != b.segments {
		return a.segments < b.segments
	}
	return a.fraction < b.fraction
}

// distanceAhead measures how far other is in front of me along the track,
// wrapping around the lap. A racer level with or just behind me on my own
// segment is almost a whole lap ahead.
func distanceAhead(me, other protocol.TrackProgress, segments int) aheadKey {
	if segments < 1 {
		segments = 1
	}
	segmentsAhead := ((other.Segment-me.Segment)%segments + segments) % segments
	fraction := other.Fraction - me.Fraction
	if segmentsAhead == 0 && fraction <= 0 {
		segmentsAhead = segments
	}
	return aheadKey{segmentsAhead, fraction}
}

// NearestAhead picks the red shell target for shooter: the other racer with
// the smallest (segments ahead, progress ahead) distance. Ties go to the
// lower id so the choice does not depend on iteration order.
func NearestAhead(shooter Racer, racers []Racer, segments int) opt.Option[protocol.ClientID] {
	var (
		best    *Racer
		bestKey aheadKey
	)
	for i := range racers {
		candidate := &racers[i]
		if candidate.ID == shooter.ID {
			continue
		}

		key := distanceAhead(shooter.State.Progress, candidate.State.Progress, segments)
		if best == nil ||
			key.less(bestKey) ||
			(key == bestKey && candidate.ID.String() < best.ID.String()) {
			best = candidate
			bestKey = key
		}
	}

	if best == nil {
		return opt.None[protocol.ClientID]()
	}
	return opt.Some(best.ID)
}
