package coordinator

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/cfoust/kart/pkg/maps"
	"github.com/cfoust/kart/pkg/protocol"
	"github.com/cfoust/kart/pkg/registry"
	"github.com/cfoust/kart/pkg/simulation"
	"github.com/cfoust/kart/pkg/timer"

	"github.com/repeale/fp-go/option"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	ErrWrongRoundState = errors.New("round is in the wrong state")
	ErrNoMap           = errors.New("no map to load")
)

type round struct {
	state RoundState
	// Incremented on every map load. Timers carry the number of the round
	// they were armed in.
	number uint64
	m      *maps.Map

	// The reply channel of the LoadMap call waiting on the load barrier
	pendingLoad chan result[[]protocol.Participant]
	loadTimer   *timer.Timer
	graceTimer  *timer.Timer

	raceTime time.Duration
	// Set once the round completes
	placements []protocol.Placement
}

func (r *round) mapName() string {
	if r.m == nil {
		return ""
	}
	return r.m.Name
}

func (r *round) active() bool {
	return r.state == RoundCountdown || r.state == RoundRacing
}

func (c *Coordinator) Logger() zerolog.Logger {
	return log.With().
		Uint64("round", c.round.number).
		Str("map", c.round.mapName()).
		Logger()
}

func (c *Coordinator) setState(state RoundState) {
	if c.round.state == state {
		return
	}
	c.round.state = state
	c.publish(EventRoundState)
}

func (c *Coordinator) loadMap(cmd loadMap) {
	if c.round.state != RoundIdle {
		cmd.fail(fmt.Errorf("%w: cannot load a map while %s", ErrWrongRoundState, c.round.state))
		return
	}

	if cmd.m == nil {
		cmd.fail(ErrNoMap)
		return
	}

	if err := cmd.m.Validate(); err != nil {
		cmd.fail(err)
		return
	}

	c.round.number++
	c.round.m = cmd.m
	c.round.raceTime = 0
	c.round.placements = nil
	c.round.pendingLoad = cmd.reply
	c.engine.Reset(cmd.m)

	loading := c.clients.PromoteToLoading()
	c.broadcast(AudienceLoading, protocol.PrepareRound{
		Map:      cmd.m.Name,
		Geometry: cmd.m.Geometry,
	})

	logger := c.Logger()
	logger.Info().Int("loading", len(loading)).Msg("preparing round")

	number := c.round.number
	c.round.loadTimer = timer.Schedule(c.settings.LoadTimeoutDuration(), func() {
		c.post(loadTimeout{round: number})
	})

	c.setState(RoundWaitingForLoad)
	c.checkLoadBarrier()
}

// checkLoadBarrier resolves the load once nobody is left loading.
func (c *Coordinator) checkLoadBarrier() {
	if c.round.state != RoundWaitingForLoad {
		return
	}
	if c.clients.Count(registry.StageLoading) > 0 {
		return
	}

	c.round.loadTimer.Stop()
	c.round.loadTimer = nil
	c.resolveLoad()
}

func (c *Coordinator) loadTimedOut(number uint64) {
	if number != c.round.number || c.round.state != RoundWaitingForLoad {
		log.Debug().Uint64("round", number).Msg("ignoring stale load timeout")
		return
	}

	c.round.loadTimer = nil
	stragglers := c.clients.DemoteLoading()
	for _, client := range stragglers {
		c.send(client, protocol.LoadedTooSlow{})
	}

	logger := c.Logger()
	logger.Info().
		Strs("stragglers", clientNames(stragglers)).
		Msg("load timed out")

	c.resolveLoad()
	c.wakeWaiters()
}

func clientNames(clients []*registry.Client) []string {
	names := make([]string, len(clients))
	for i, client := range clients {
		names[i] = client.String()
	}
	return names
}

// resolveLoad ends the load barrier, answering the pending LoadMap with
// whoever made it into the round.
func (c *Coordinator) resolveLoad() {
	m := c.round.m
	racing := c.clients.Partition(registry.StageInRound)

	participants := make([]protocol.Participant, len(racing))
	for i, client := range racing {
		slot := i % len(m.StartPositions)
		client.Player = protocol.PlayerState{
			Position: m.StartSlot(slot),
		}
		participants[i] = protocol.Participant{
			Client:    client.ID,
			Name:      client.Name,
			StartSlot: slot,
		}
	}

	pending := c.round.pendingLoad
	c.round.pendingLoad = nil

	logger := c.Logger()
	if len(participants) == 0 {
		logger.Info().Msg("nobody loaded the map")
		c.setState(RoundIdle)
		if pending != nil {
			reply(pending, participants, nil)
		}
		return
	}

	c.setState(RoundCountdown)
	c.broadcast(AudienceInRoundOnly, protocol.StartRound{
		Params: protocol.RoundParams{
			Map:          m.Name,
			Participants: participants,
			StartSlots:   m.StartPositions,
			Countdown:    c.settings.CountdownDuration(),
			Coins:        m.Coins,
			ItemBoxes:    m.ItemBoxes,
		},
	})
	logger.Info().Int("participants", len(participants)).Msg("countdown started")

	if pending != nil {
		reply(pending, participants, nil)
	}
}

func (c *Coordinator) startRace() error {
	if c.round.state != RoundCountdown {
		return fmt.Errorf("%w: cannot start a race while %s", ErrWrongRoundState, c.round.state)
	}

	c.setState(RoundRacing)
	c.broadcast(AudienceInRoundAll, protocol.StartRace{})

	logger := c.Logger()
	logger.Info().Msg("race started")
	return nil
}

func (c *Coordinator) racers() []simulation.Racer {
	clients := c.clients.Partition(registry.StageInRound)
	racers := make([]simulation.Racer, len(clients))
	for i, client := range clients {
		racers[i] = simulation.Racer{
			ID:    client.ID,
			State: client.Player,
		}
	}
	return racers
}

func (c *Coordinator) gameTick(raceTime time.Duration) TickResult {
	if c.round.state != RoundRacing {
		return RaceOver
	}

	c.round.raceTime = raceTime

	if c.clients.Count(registry.StageInRound) == 0 {
		c.completeRound("nobody left racing")
		return RaceOver
	}

	hits := c.engine.Step(c.racers())
	for _, hit := range hits {
		c.broadcast(AudienceInRoundAll, protocol.HitByItem{
			Player: hit.Player,
			Kind:   hit.Item.Kind,
		})
	}

	players := c.clients.Partition(registry.StageInRound, registry.StageFinished)
	snapshots := make([]protocol.PlayerSnapshot, len(players))
	for i, client := range players {
		snapshots[i] = protocol.PlayerSnapshot{
			Client: client.ID,
			State:  client.Player,
		}
	}

	c.broadcast(AudienceInRoundAll, protocol.RaceUpdate{
		Players:     snapshots,
		ActiveItems: c.engine.Items(),
		RaceTime:    raceTime,
	})

	return NoChange
}

// checkRacers ends the round once nobody is left racing, otherwise it makes
// sure stragglers only get a bounded amount of time once somebody finished.
func (c *Coordinator) checkRacers() {
	if !c.round.active() {
		return
	}

	if c.clients.Count(registry.StageInRound) == 0 {
		c.completeRound("nobody left racing")
		return
	}

	if c.clients.Count(registry.StageFinished) > 0 && c.round.graceTimer == nil {
		c.armGrace()
	}
}

func (c *Coordinator) armGrace() {
	number := c.round.number
	grace := c.settings.GraceDuration()
	c.round.graceTimer = timer.Schedule(grace, func() {
		c.post(graceExpired{round: number})
	})

	logger := c.Logger()
	logger.Info().Dur("grace", grace).Msg("first finisher, waiting for stragglers")
}

func (c *Coordinator) graceExpired(number uint64) {
	if number != c.round.number || !c.round.active() {
		log.Debug().Uint64("round", number).Msg("ignoring stale grace timer")
		return
	}

	c.round.graceTimer = nil
	c.completeRound("grace period expired")
}

// placements lists finishers by finish time, then everyone still racing.
// Clients who left the round are not included.
func (c *Coordinator) placements() []protocol.Placement {
	finished := c.clients.Partition(registry.StageFinished)
	sort.SliceStable(finished, func(i, j int) bool {
		return finished[i].FinishTime < finished[j].FinishTime
	})

	var placements []protocol.Placement
	for _, client := range finished {
		placements = append(placements, protocol.Placement{
			Client:     client.ID,
			Name:       client.Name,
			FinishTime: opt.Some(client.FinishTime),
		})
	}

	for _, client := range c.clients.Partition(registry.StageInRound) {
		placements = append(placements, protocol.Placement{
			Client:     client.ID,
			Name:       client.Name,
			FinishTime: opt.None[time.Duration](),
		})
	}

	return placements
}

func (c *Coordinator) completeRound(reason string) []protocol.Placement {
	if !c.round.active() {
		return nil
	}

	c.round.graceTimer.Stop()
	c.round.graceTimer = nil

	placements := c.placements()
	c.broadcast(AudienceAll, protocol.EndRound{Placements: placements})

	logger := c.Logger()
	logger.Info().
		Str("reason", reason).
		Int("placements", len(placements)).
		Msg("round complete")

	c.clients.ResetRound()
	c.engine.Clear()
	c.round.state = RoundIdle
	c.round.placements = placements
	c.wakeWaiters()

	c.Events.Publish(Event{
		Kind:       EventRoundEnded,
		Round:      c.round.number,
		State:      RoundIdle,
		Map:        c.round.mapName(),
		Players:    c.clients.Len(),
		Placements: placements,
	})

	return placements
}

func (c *Coordinator) respawnPickup(cmd pickupRespawn) {
	if cmd.round != c.round.number {
		return
	}

	respawned, err := c.engine.Pickups.Respawn(cmd.kind, cmd.index)
	if err != nil {
		log.Warn().Err(err).Msg("could not respawn pickup")
		return
	}
	if !respawned {
		return
	}

	c.broadcast(AudienceInRoundAll, protocol.PickUpStateChange{
		Kind:      cmd.kind,
		Index:     cmd.index,
		Available: true,
	})
}
