package coordinator

import (
	"errors"
	"fmt"

	"github.com/cfoust/kart/pkg/protocol"
	"github.com/cfoust/kart/pkg/registry"
	"github.com/cfoust/kart/pkg/simulation"
	"github.com/cfoust/kart/pkg/timer"

	"github.com/rs/zerolog/log"
)

var ErrUnexpectedMessage = errors.New("unexpected message")

func (c *Coordinator) addClient(cmd addClient) {
	queue := c.settings.OutboundQueue
	if queue < 1 {
		queue = 1
	}

	name := protocol.SanitizeName(cmd.name)
	if name == "" {
		name = protocol.DefaultName
	}

	client := registry.NewClient(
		protocol.NewClientID(),
		name,
		make(chan protocol.ServerMessage, queue),
	)

	if replaced := c.clients.Add(client); replaced != nil {
		log.Warn().Str("client", replaced.String()).Msg("client id collision, replacing existing client")
		close(replaced.Outbound)
	}

	log.Info().Str("client", client.String()).Msg("client joined")

	reply(cmd.reply, addClientResult{
		id:       client.ID,
		outbound: client.Outbound,
	}, nil)

	c.broadcastPlayerCount()
	c.wakeWaiters()
}

// removeClient forgets a client no matter where it is in the round. A client
// that disconnects while loading no longer holds up the load barrier.
func (c *Coordinator) removeClient(id protocol.ClientID) {
	client, ok := c.clients.Remove(id)
	if !ok {
		log.Debug().Str("client", id.Short()).Msg("removing unknown client")
		return
	}

	close(client.Outbound)
	log.Info().
		Str("client", client.String()).
		Str("stage", client.Stage().String()).
		Msg("client left")

	c.broadcastPlayerCount()

	switch client.Stage() {
	case registry.StageLoading:
		c.checkLoadBarrier()
	case registry.StageInRound:
		c.checkRacers()
	}
}

func (c *Coordinator) hasWaitingClients() bool {
	return c.clients.Count(registry.StageWaiting)+c.clients.Count(registry.StageLoading) > 0
}

func (c *Coordinator) awaitClient(cmd awaitClient) {
	if c.hasWaitingClients() {
		reply(cmd.reply, struct{}{}, nil)
		return
	}
	c.waiters = append(c.waiters, cmd.reply)
}

func (c *Coordinator) wakeWaiters() {
	if len(c.waiters) == 0 || !c.hasWaitingClients() {
		return
	}
	for _, waiter := range c.waiters {
		reply(waiter, struct{}{}, nil)
	}
	c.waiters = nil
}

func (c *Coordinator) handleMessage(id protocol.ClientID, message protocol.ClientMessage) error {
	err := c.applyMessage(id, message)
	if err != nil {
		log.Debug().
			Err(err).
			Str("client", id.Short()).
			Str("message", message.Type().String()).
			Msg("dropped client message")
	}
	return err
}

func (c *Coordinator) expectRound(message protocol.ClientMessage, states ...RoundState) error {
	for _, state := range states {
		if c.round.state == state {
			return nil
		}
	}
	return fmt.Errorf("%w: %s while round is %s", ErrUnexpectedMessage, message.Type(), c.round.state)
}

func expectStage(client *registry.Client, message protocol.ClientMessage, stage registry.Stage) error {
	if client.Stage() != stage {
		return fmt.Errorf(
			"%w: %s from %s client %s",
			ErrUnexpectedMessage,
			message.Type(),
			client.Stage(),
			client,
		)
	}
	return nil
}

func (c *Coordinator) applyMessage(id protocol.ClientID, message protocol.ClientMessage) error {
	client, ok := c.clients.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", registry.ErrUnknownClient, id)
	}

	switch message := message.(type) {
	case protocol.Register:
		if err := expectStage(client, message, registry.StageWaiting); err != nil {
			return err
		}
		name := protocol.SanitizeName(message.Name)
		if name != "" && name != client.Name {
			log.Info().
				Str("client", client.String()).
				Str("name", name).
				Msg("client renamed")
			client.Name = name
		}
		return nil

	case protocol.LoadedMap:
		if err := c.expectRound(message, RoundWaitingForLoad); err != nil {
			return err
		}
		if _, err := c.clients.MarkLoaded(id); err != nil {
			return err
		}
		c.checkLoadBarrier()
		return nil

	case protocol.PlayerUpdate:
		if err := c.expectRound(message, RoundCountdown, RoundRacing); err != nil {
			return err
		}
		return c.clients.ApplyUpdate(id, message.State())

	case protocol.UseItem:
		if err := c.expectRound(message, RoundRacing); err != nil {
			return err
		}
		if err := expectStage(client, message, registry.StageInRound); err != nil {
			return err
		}
		user := simulation.Racer{ID: client.ID, State: client.Player}
		item, err := c.engine.Use(user, message.Kind, c.racers())
		if err != nil {
			return err
		}
		log.Debug().
			Str("client", client.String()).
			Str("item", item.Kind.String()).
			Msg("item used")
		return nil

	case protocol.PickUp:
		if err := c.expectRound(message, RoundRacing); err != nil {
			return err
		}
		if err := expectStage(client, message, registry.StageInRound); err != nil {
			return err
		}
		return c.pickUp(client, message.Kind, message.Index)

	case protocol.FinishRound:
		if err := c.expectRound(message, RoundRacing); err != nil {
			return err
		}
		if _, err := c.clients.Finish(id, message.RaceTime); err != nil {
			return err
		}
		log.Info().
			Str("client", client.String()).
			Dur("time", message.RaceTime).
			Msg("client finished")
		c.checkRacers()
		return nil
	}

	return fmt.Errorf("%w: %T", ErrUnexpectedMessage, message)
}

func (c *Coordinator) pickUp(client *registry.Client, kind protocol.PickupKind, index int) error {
	taken, err := c.engine.Pickups.Pickup(kind, index)
	if err != nil {
		return err
	}
	if !taken {
		return nil
	}

	c.broadcastExcept(client.ID, protocol.PickUpStateChange{
		Kind:      kind,
		Index:     index,
		Available: false,
	})

	number := c.round.number
	timer.Schedule(c.settings.PickupRespawnDuration(), func() {
		c.post(pickupRespawn{
			round: number,
			kind:  kind,
			index: index,
		})
	})
	return nil
}
