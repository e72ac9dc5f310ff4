package status

import (
	"context"
	"fmt"
	"time"

	"github.com/cfoust/kart/pkg/config"
	"github.com/cfoust/kart/pkg/coordinator"
	"github.com/cfoust/kart/pkg/utils"

	"github.com/fxamacker/cbor/v2"
	"github.com/go-redis/redis/v9"
	"github.com/repeale/fp-go/option"
	"github.com/rs/zerolog/log"
)

const (
	STATUS_KEY = "kart-status-%s"
)

func Key(server string) string {
	return fmt.Sprintf(STATUS_KEY, server)
}

type Store interface {
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
}

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(settings config.RedisSettings) *RedisStore {
	return &RedisStore{
		client: redis.NewClient(&redis.Options{
			Addr:     settings.Address,
			Password: settings.Password,
			DB:       settings.DB,
		}),
	}
}

func (r *RedisStore) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return r.client.Set(ctx, key, data, ttl).Err()
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

// Snapshot is what server browsers see, CBOR encoded.
type Snapshot struct {
	Server    string
	Round     uint64
	State     string
	Map       string
	Players   int
	Finishers int
	Updated   time.Time
}

type Publisher struct {
	store  Store
	server string
	ttl    time.Duration

	latest Snapshot
}

func NewPublisher(store Store, server string, ttl time.Duration) *Publisher {
	return &Publisher{
		store:  store,
		server: server,
		ttl:    ttl,
		latest: Snapshot{
			Server: server,
			State:  coordinator.RoundIdle.String(),
		},
	}
}

func (p *Publisher) Latest() Snapshot {
	return p.latest
}

// Apply folds an event into the current snapshot.
func (p *Publisher) Apply(event coordinator.Event) Snapshot {
	snapshot := p.latest
	snapshot.Round = event.Round
	snapshot.State = event.State.String()
	snapshot.Map = event.Map
	snapshot.Players = event.Players
	snapshot.Updated = time.Now()

	switch event.Kind {
	case coordinator.EventRoundEnded:
		snapshot.Finishers = 0
		for _, placement := range event.Placements {
			if opt.IsSome(placement.FinishTime) {
				snapshot.Finishers++
			}
		}
	case coordinator.EventRoundState:
		if event.State == coordinator.RoundWaitingForLoad {
			snapshot.Finishers = 0
		}
	}

	p.latest = snapshot
	return snapshot
}

func (p *Publisher) write(ctx context.Context) error {
	data, err := cbor.Marshal(p.latest)
	if err != nil {
		return err
	}
	return p.store.Set(ctx, Key(p.server), data, p.ttl)
}

// Run mirrors coordinator events into the store until ctx is done. The
// status is rewritten before it expires even when nothing changes.
func (p *Publisher) Run(ctx context.Context, events *utils.Subscriber[coordinator.Event]) error {
	defer events.Done()

	refresh := p.ttl / 2
	if refresh <= 0 {
		refresh = time.Second
	}
	ticker := time.NewTicker(refresh)
	defer ticker.Stop()

	logger := log.With().Str("server", p.server).Logger()

	if err := p.write(ctx); err != nil {
		logger.Warn().Err(err).Msg("could not publish status")
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-events.Recv():
			p.Apply(event)
		case <-ticker.C:
		}

		if err := p.write(ctx); err != nil {
			logger.Warn().Err(err).Msg("could not publish status")
		}
	}
}
