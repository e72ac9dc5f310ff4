package simulation

import (
	"fmt"
	"math"

	"github.com/cfoust/kart/pkg/geom"
	"github.com/cfoust/kart/pkg/maps"
	"github.com/cfoust/kart/pkg/protocol"

	"github.com/repeale/fp-go/option"
)

type Tuning struct {
	TickRate int
	// Units per second, for both shell kinds
	ShellSpeed float64
	// Fraction of the gap between current and desired velocity a red shell
	// closes every tick
	Steering float64
	// Bananas and green shells
	HitRadius         float64
	RedShellHitRadius float64
	// How far ahead of (shells) or behind (bananas) the user items appear
	SpawnOffset float64
}

func DefaultTuning() Tuning {
	return Tuning{
		TickRate:          30,
		ShellSpeed:        40,
		Steering:          0.15,
		HitRadius:         1.5,
		RedShellHitRadius: 1.0,
		SpawnOffset:       2.5,
	}
}

func (t Tuning) dt() float64 {
	if t.TickRate <= 0 {
		return 0
	}
	return 1 / float64(t.TickRate)
}

type Hit struct {
	Player protocol.ClientID
	Item   Item
}

// Engine owns the gameplay state of a single round: pickups and items in
// play. It is not safe for concurrent use.
type Engine struct {
	tuning   Tuning
	segments int
	items    []*Item
	nextItem uint32
	ticks    uint64

	Pickups *Pickups
}

func NewEngine(tuning Tuning) *Engine {
	return &Engine{
		tuning:   tuning,
		segments: 1,
		Pickups:  NewPickups(0, 0),
	}
}

func (e *Engine) Tuning() Tuning {
	return e.tuning
}

// Reset prepares the engine for a new round on m.
func (e *Engine) Reset(m *maps.Map) {
	e.segments = m.Segments
	e.Pickups.Reset(m.Coins, m.ItemBoxes)
	e.Clear()
	e.ticks = 0
}

// Clear removes every item in play.
func (e *Engine) Clear() {
	e.items = nil
}

func (e *Engine) Ticks() uint64 {
	return e.ticks
}

func (e *Engine) NumItems() int {
	return len(e.items)
}

func (e *Engine) Items() []protocol.ItemSnapshot {
	snapshots := make([]protocol.ItemSnapshot, len(e.items))
	for i, item := range e.items {
		snapshots[i] = item.Snapshot()
	}
	return snapshots
}

func (e *Engine) Item(id uint32) (Item, bool) {
	for _, item := range e.items {
		if item.ID == id {
			return *item, true
		}
	}
	return Item{}, false
}

// Use puts an item into play on behalf of user. racers are all clients
// currently in the round and are only consulted to pick a red shell target.
func (e *Engine) Use(user Racer, kind protocol.ItemKind, racers []Racer) (*Item, error) {
	heading := geom.FromAngle(user.State.Heading)
	e.nextItem++
	item := &Item{
		ID:    e.nextItem,
		Owner: user.ID,
		Kind:  kind,
	}

	switch kind {
	case protocol.ItemBanana:
		item.Position = user.State.Position.Sub(heading.Mul(e.tuning.SpawnOffset))
	case protocol.ItemGreenShell:
		item.Position = user.State.Position.Add(heading.Mul(e.tuning.SpawnOffset))
		item.Direction = heading
	case protocol.ItemRedShell:
		item.Position = user.State.Position.Add(heading.Mul(e.tuning.SpawnOffset))
		item.Velocity = heading.Mul(e.tuning.ShellSpeed)
		item.Target = NearestAhead(user, racers, e.segments)
	default:
		e.nextItem--
		return nil, fmt.Errorf("unknown item kind %s", kind)
	}

	e.items = append(e.items, item)
	return item, nil
}

func (e *Engine) steer(item *Item, target geom.Vec2) {
	desired := target.Sub(item.Position).Scale(e.tuning.ShellSpeed)
	item.Velocity = item.Velocity.Lerp(desired, e.tuning.Steering)
}

// nearestWithin returns the closest racer strictly inside radius of pos.
func nearestWithin(pos geom.Vec2, racers []Racer, radius float64) (protocol.ClientID, bool) {
	var (
		found bool
		id    protocol.ClientID
		best  = math.Inf(1)
	)
	for _, racer := range racers {
		distance := geom.Distance(pos, racer.State.Position)
		if distance < radius && distance < best {
			best = distance
			id = racer.ID
			found = true
		}
	}
	return id, found
}

// Step advances every item by one tick and returns the hits that happened.
// Items that hit something, and red shells whose target has left the round,
// are removed.
func (e *Engine) Step(racers []Racer) []Hit {
	e.ticks++
	dt := e.tuning.dt()

	byID := make(map[protocol.ClientID]Racer, len(racers))
	for _, racer := range racers {
		byID[racer.ID] = racer
	}

	var hits []Hit
	remaining := e.items[:0]
	for _, item := range e.items {
		var (
			victim protocol.ClientID
			hit    bool
		)

		switch item.Kind {
		case protocol.ItemBanana:
			victim, hit = nearestWithin(item.Position, racers, e.tuning.HitRadius)
		case protocol.ItemGreenShell:
			item.Position = item.Position.Add(item.Direction.Mul(e.tuning.ShellSpeed * dt))
			victim, hit = nearestWithin(item.Position, racers, e.tuning.HitRadius)
		case protocol.ItemRedShell:
			if opt.IsNone(item.Target) {
				item.Position = item.Position.Add(item.Velocity.Mul(dt))
				break
			}

			target, ok := byID[item.Target.Value]
			if !ok {
				// target left the round, the shell fizzles
				continue
			}

			e.steer(item, target.State.Position)
			item.Position = item.Position.Add(item.Velocity.Mul(dt))
			victim, hit = nearestWithin(item.Position, []Racer{target}, e.tuning.RedShellHitRadius)
		}

		if hit {
			hits = append(hits, Hit{Player: victim, Item: *item})
			continue
		}
		remaining = append(remaining, item)
	}

	// don't keep removed items reachable through the old backing array
	for i := len(remaining); i < len(e.items); i++ {
		e.items[i] = nil
	}
	e.items = remaining

	return hits
}
