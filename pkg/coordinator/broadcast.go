package coordinator

import (
	"github.com/cfoust/kart/pkg/protocol"
	"github.com/cfoust/kart/pkg/registry"

	"github.com/repeale/fp-go"
	"github.com/rs/zerolog/log"
)

type Audience uint8

const (
	// Every connected client
	AudienceAll Audience = iota
	AudienceLoading
	// Clients racing or already finished
	AudienceInRoundAll
	// Like AudienceInRoundAll, without one client
	AudienceInRoundExcept
	// Clients still racing
	AudienceInRoundOnly
)

func (c *Coordinator) audience(audience Audience, except protocol.ClientID) []*registry.Client {
	switch audience {
	case AudienceAll:
		return c.clients.All()
	case AudienceLoading:
		return c.clients.Partition(registry.StageLoading)
	case AudienceInRoundAll:
		return c.clients.Partition(registry.StageInRound, registry.StageFinished)
	case AudienceInRoundExcept:
		return fp.Filter(func(client *registry.Client) bool {
			return client.ID != except
		})(c.clients.Partition(registry.StageInRound, registry.StageFinished))
	case AudienceInRoundOnly:
		return c.clients.Partition(registry.StageInRound)
	}
	return nil
}

// send never blocks. A client that is not draining its channel is about to
// be removed anyway, so the message is dropped.
func (c *Coordinator) send(client *registry.Client, message protocol.ServerMessage) {
	select {
	case client.Outbound <- message:
	default:
		log.Debug().
			Str("client", client.String()).
			Str("message", message.Type().String()).
			Msg("outbound channel full, dropping message")
	}
}

func (c *Coordinator) broadcast(audience Audience, message protocol.ServerMessage) {
	for _, client := range c.audience(audience, protocol.ClientID{}) {
		c.send(client, message)
	}
}

func (c *Coordinator) broadcastExcept(except protocol.ClientID, message protocol.ServerMessage) {
	for _, client := range c.audience(AudienceInRoundExcept, except) {
		c.send(client, message)
	}
}

func (c *Coordinator) broadcastPlayerCount() {
	count := c.clients.Len()
	c.broadcast(AudienceAll, protocol.PlayerCountChanged{Count: count})
	c.publish(EventPlayerCount)
}
