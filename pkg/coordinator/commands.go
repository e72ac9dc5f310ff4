package coordinator

import (
	"time"

	"github.com/cfoust/kart/pkg/maps"
	"github.com/cfoust/kart/pkg/protocol"
)

// Everything that touches coordinator state arrives as one of these. Fields
// named reply are one-shot channels with room for exactly one result.
type command interface{}

// Implemented by every command that carries a reply, so the caller still
// hears back when its handler panics.
type failer interface {
	fail(err error)
}

type result[T any] struct {
	value T
	err   error
}

type addClientResult struct {
	id       protocol.ClientID
	outbound <-chan protocol.ServerMessage
}

type addClient struct {
	name  string
	reply chan result[addClientResult]
}

func (c addClient) fail(err error) { reply(c.reply, addClientResult{}, err) }

type removeClient struct {
	id    protocol.ClientID
	reply chan result[struct{}]
}

func (c removeClient) fail(err error) { reply(c.reply, struct{}{}, err) }

type clientMessage struct {
	id      protocol.ClientID
	message protocol.ClientMessage
	reply   chan result[struct{}]
}

func (c clientMessage) fail(err error) { reply(c.reply, struct{}{}, err) }

type awaitClient struct {
	reply chan result[struct{}]
}

func (c awaitClient) fail(err error) { reply(c.reply, struct{}{}, err) }

type loadMap struct {
	m     *maps.Map
	reply chan result[[]protocol.Participant]
}

func (c loadMap) fail(err error) { reply(c.reply, nil, err) }

type startRace struct {
	reply chan result[struct{}]
}

func (c startRace) fail(err error) { reply(c.reply, struct{}{}, err) }

type gameTick struct {
	raceTime time.Duration
	reply    chan result[TickResult]
}

func (c gameTick) fail(err error) { reply(c.reply, NoChange, err) }

type completeRound struct {
	reply chan result[[]protocol.Placement]
}

func (c completeRound) fail(err error) { reply(c.reply, nil, err) }

type status struct {
	reply chan result[Status]
}

func (c status) fail(err error) { reply(c.reply, Status{}, err) }

// Fired by timers. round is the round the timer was armed in.
type loadTimeout struct {
	round uint64
}

type graceExpired struct {
	round uint64
}

type pickupRespawn struct {
	round uint64
	kind  protocol.PickupKind
	index int
}

func reply[T any](channel chan result[T], value T, err error) {
	// the caller may have given up, never block on it
	select {
	case channel <- result[T]{value: value, err: err}:
	default:
	}
}
