package coordinator

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/cfoust/kart/pkg/config"
	"github.com/cfoust/kart/pkg/registry"
	"github.com/cfoust/kart/pkg/simulation"
	"github.com/cfoust/kart/pkg/utils"

	"github.com/rs/zerolog/log"
)

// Returned to a caller whose command panicked inside the coordinator.
var ErrCommandFailed = errors.New("command failed")

// Coordinator is the single owner of all session state: the client
// registry, the round and the simulation. All of it is only ever touched by
// the goroutine running Poll, which processes commands one at a time in the
// order they were submitted.
type Coordinator struct {
	utils.Session

	settings config.RaceSettings
	commands chan command

	clients *registry.Registry
	engine  *simulation.Engine
	round   round
	waiters []chan result[struct{}]

	Events *utils.Topic[Event]
}

func New(ctx context.Context, settings config.RaceSettings, tuning simulation.Tuning) *Coordinator {
	queue := settings.CommandQueue
	if queue < 1 {
		queue = 1
	}

	return &Coordinator{
		Session:  utils.NewSession(ctx),
		settings: settings,
		commands: make(chan command, queue),
		clients:  registry.New(),
		engine:   simulation.NewEngine(tuning),
		Events:   utils.NewTopic[Event](16),
	}
}

// Handle returns a façade other goroutines use to talk to the coordinator.
func (c *Coordinator) Handle() Handle {
	return Handle{
		commands: c.commands,
		done:     c.Done(),
	}
}

// Poll processes commands until ctx or the coordinator's session ends.
func (c *Coordinator) Poll(ctx context.Context) {
	defer c.Cancel()
	defer c.shutdown()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.Done():
			return
		case cmd := <-c.commands:
			c.dispatch(cmd)
		}
	}
}

func (c *Coordinator) shutdown() {
	c.round.loadTimer.Stop()
	c.round.graceTimer.Stop()
	for _, client := range c.clients.All() {
		c.clients.Remove(client.ID)
		close(client.Outbound)
	}
}

func (c *Coordinator) dispatch(cmd command) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("command", fmt.Sprintf("%T", cmd)).
				Str("stack", string(debug.Stack())).
				Msgf("recovered from panic: %v", r)

			if cmd, ok := cmd.(failer); ok {
				cmd.fail(fmt.Errorf("%w: %v", ErrCommandFailed, r))
			}
		}
	}()

	switch cmd := cmd.(type) {
	case addClient:
		c.addClient(cmd)
	case removeClient:
		c.removeClient(cmd.id)
		reply(cmd.reply, struct{}{}, nil)
	case clientMessage:
		reply(cmd.reply, struct{}{}, c.handleMessage(cmd.id, cmd.message))
	case awaitClient:
		c.awaitClient(cmd)
	case loadMap:
		c.loadMap(cmd)
	case startRace:
		reply(cmd.reply, struct{}{}, c.startRace())
	case gameTick:
		reply(cmd.reply, c.gameTick(cmd.raceTime), nil)
	case completeRound:
		c.completeRound("forced")
		reply(cmd.reply, c.round.placements, nil)
	case status:
		reply(cmd.reply, c.status(), nil)
	case loadTimeout:
		c.loadTimedOut(cmd.round)
	case graceExpired:
		c.graceExpired(cmd.round)
	case pickupRespawn:
		c.respawnPickup(cmd)
	default:
		log.Warn().Msgf("unknown command %T", cmd)
	}
}

// post submits a command from inside the process, e.g. from a timer.
func (c *Coordinator) post(cmd command) {
	select {
	case c.commands <- cmd:
	case <-c.Done():
	}
}
