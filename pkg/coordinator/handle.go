package coordinator

import (
	"context"
	"errors"
	"time"

	"github.com/cfoust/kart/pkg/maps"
	"github.com/cfoust/kart/pkg/protocol"
)

var ErrStopped = errors.New("coordinator stopped")

type TickResult uint8

const (
	NoChange TickResult = iota
	RaceOver
)

func (t TickResult) String() string {
	if t == RaceOver {
		return "race-over"
	}
	return "no-change"
}

// Handle is how the rest of the process talks to a Coordinator. It is a
// small value that can be copied freely and used from any goroutine.
type Handle struct {
	commands chan<- command
	done     <-chan struct{}
}

func (h Handle) submit(ctx context.Context, cmd command) error {
	select {
	case h.commands <- cmd:
		return nil
	case <-h.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func request[T any](ctx context.Context, h Handle, cmd command, reply chan result[T]) (T, error) {
	var zero T
	if err := h.submit(ctx, cmd); err != nil {
		return zero, err
	}

	select {
	case r := <-reply:
		return r.value, r.err
	case <-h.done:
		return zero, ErrStopped
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// AwaitClient blocks until at least one client is waiting or loading.
func (h Handle) AwaitClient(ctx context.Context) error {
	reply := make(chan result[struct{}], 1)
	_, err := request(ctx, h, awaitClient{reply: reply}, reply)
	return err
}

// AddClient registers a new connection. Everything the coordinator sends to
// the client arrives on the returned channel, which is closed once the
// client has been removed.
func (h Handle) AddClient(ctx context.Context, name string) (protocol.ClientID, <-chan protocol.ServerMessage, error) {
	reply := make(chan result[addClientResult], 1)
	added, err := request(ctx, h, addClient{name: name, reply: reply}, reply)
	if err != nil {
		return protocol.ClientID{}, nil, err
	}
	return added.id, added.outbound, nil
}

func (h Handle) RemoveClient(ctx context.Context, id protocol.ClientID) error {
	reply := make(chan result[struct{}], 1)
	_, err := request(ctx, h, removeClient{id: id, reply: reply}, reply)
	return err
}

// HandleMessage applies a message from a client. Messages that make no sense
// in the client's current stage are dropped and the reason is returned.
func (h Handle) HandleMessage(ctx context.Context, id protocol.ClientID, message protocol.ClientMessage) error {
	reply := make(chan result[struct{}], 1)
	_, err := request(ctx, h, clientMessage{id: id, message: message, reply: reply}, reply)
	return err
}

// LoadMap starts the load barrier for m and blocks until it resolves, either
// because every loading client reported in or because the load timeout
// fired. It returns the clients that made it into the round.
func (h Handle) LoadMap(ctx context.Context, m *maps.Map) ([]protocol.Participant, error) {
	reply := make(chan result[[]protocol.Participant], 1)
	return request(ctx, h, loadMap{m: m, reply: reply}, reply)
}

// StartRace ends the countdown.
func (h Handle) StartRace(ctx context.Context) error {
	reply := make(chan result[struct{}], 1)
	_, err := request(ctx, h, startRace{reply: reply}, reply)
	return err
}

// GameTick advances the simulation by one tick and reports whether the race
// is over.
func (h Handle) GameTick(ctx context.Context, raceTime time.Duration) (TickResult, error) {
	reply := make(chan result[TickResult], 1)
	return request(ctx, h, gameTick{raceTime: raceTime, reply: reply}, reply)
}

// CompleteRound ends the current round, if there is one, and returns the
// placements of the most recently completed round.
func (h Handle) CompleteRound(ctx context.Context) ([]protocol.Placement, error) {
	reply := make(chan result[[]protocol.Placement], 1)
	return request(ctx, h, completeRound{reply: reply}, reply)
}

func (h Handle) Status(ctx context.Context) (Status, error) {
	reply := make(chan result[Status], 1)
	return request(ctx, h, status{reply: reply}, reply)
}
