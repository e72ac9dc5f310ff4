package registry

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/cfoust/kart/pkg/protocol"

	"github.com/repeale/fp-go"
)

var (
	ErrUnknownClient = errors.New("unknown client")
	ErrWrongStage    = errors.New("client is in the wrong stage")
)

// Where a client is in the round lifecycle.
type Stage uint8

const (
	StageWaiting Stage = iota
	StageLoading
	StageInRound
	StageFinished
	numStages
)

func (s Stage) String() string {
	switch s {
	case StageWaiting:
		return "waiting"
	case StageLoading:
		return "loading"
	case StageInRound:
		return "in-round"
	case StageFinished:
		return "finished"
	}
	return fmt.Sprintf("stage(%d)", uint8(s))
}

// Describes a connected client.
type Client struct {
	ID       protocol.ClientID
	Name     string
	Outbound chan protocol.ServerMessage

	// Only meaningful while the client is in the round
	Player protocol.PlayerState
	// Only meaningful once the client has finished
	FinishTime time.Duration

	stage Stage
	// Order in which clients were added, used for stable iteration
	sequence uint64
}

func NewClient(id protocol.ClientID, name string, outbound chan protocol.ServerMessage) *Client {
	return &Client{
		ID:       id,
		Name:     name,
		Outbound: outbound,
	}
}

func (c *Client) Stage() Stage {
	return c.stage
}

func (c *Client) String() string {
	return fmt.Sprintf("%s (%s)", c.Name, c.ID.Short())
}

// Registry holds every connected client in exactly one of four partitions
// matching its stage. It is not safe for concurrent use; the coordinator
// owns it.
type Registry struct {
	clients    map[protocol.ClientID]*Client
	partitions [numStages]map[protocol.ClientID]*Client
	sequence   uint64
}

func New() *Registry {
	r := &Registry{
		clients: make(map[protocol.ClientID]*Client),
	}
	for i := range r.partitions {
		r.partitions[i] = make(map[protocol.ClientID]*Client)
	}
	return r
}

func (r *Registry) move(c *Client, to Stage) {
	delete(r.partitions[c.stage], c.ID)
	c.stage = to
	r.partitions[to][c.ID] = c
}

// Add registers a client as Waiting. If the id was already taken, the old
// record is replaced and returned.
func (r *Registry) Add(c *Client) (replaced *Client) {
	if existing, ok := r.clients[c.ID]; ok {
		r.Remove(existing.ID)
		replaced = existing
	}

	r.sequence++
	c.sequence = r.sequence
	c.stage = StageWaiting
	r.clients[c.ID] = c
	r.partitions[StageWaiting][c.ID] = c
	return replaced
}

// Remove drops a client from whichever partition holds it.
func (r *Registry) Remove(id protocol.ClientID) (*Client, bool) {
	c, ok := r.clients[id]
	if !ok {
		return nil, false
	}
	delete(r.partitions[c.stage], id)
	delete(r.clients, id)
	return c, true
}

func (r *Registry) Get(id protocol.ClientID) (*Client, bool) {
	c, ok := r.clients[id]
	return c, ok
}

func (r *Registry) Len() int {
	return len(r.clients)
}

func (r *Registry) Count(stage Stage) int {
	return len(r.partitions[stage])
}

func sorted(clients map[protocol.ClientID]*Client) []*Client {
	result := make([]*Client, 0, len(clients))
	for _, c := range clients {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].sequence < result[j].sequence
	})
	return result
}

// Partition returns the clients in a stage in the order they were added.
func (r *Registry) Partition(stages ...Stage) []*Client {
	merged := make(map[protocol.ClientID]*Client)
	for _, stage := range stages {
		for id, c := range r.partitions[stage] {
			merged[id] = c
		}
	}
	return sorted(merged)
}

func (r *Registry) All() []*Client {
	return sorted(r.clients)
}

func IDs(clients []*Client) []protocol.ClientID {
	return fp.Map(func(c *Client) protocol.ClientID { return c.ID })(clients)
}

func (r *Registry) expect(id protocol.ClientID, stage Stage) (*Client, error) {
	c, ok := r.clients[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownClient, id)
	}
	if c.stage != stage {
		return c, fmt.Errorf("%w: %s is %s, expected %s", ErrWrongStage, c, c.stage, stage)
	}
	return c, nil
}

// PromoteToLoading moves every Waiting client to Loading.
func (r *Registry) PromoteToLoading() []*Client {
	promoted := r.Partition(StageWaiting)
	for _, c := range promoted {
		r.move(c, StageLoading)
	}
	return promoted
}

// MarkLoaded moves a Loading client into the round.
func (r *Registry) MarkLoaded(id protocol.ClientID) (*Client, error) {
	c, err := r.expect(id, StageLoading)
	if err != nil {
		return c, err
	}
	c.Player = protocol.PlayerState{}
	r.move(c, StageInRound)
	return c, nil
}

// DemoteLoading returns every client still Loading to Waiting.
func (r *Registry) DemoteLoading() []*Client {
	demoted := r.Partition(StageLoading)
	for _, c := range demoted {
		r.move(c, StageWaiting)
	}
	return demoted
}

func (r *Registry) ApplyUpdate(id protocol.ClientID, state protocol.PlayerState) error {
	c, err := r.expect(id, StageInRound)
	if err != nil {
		return err
	}
	c.Player = state
	return nil
}

func (r *Registry) Finish(id protocol.ClientID, raceTime time.Duration) (*Client, error) {
	c, err := r.expect(id, StageInRound)
	if err != nil {
		return c, err
	}
	c.FinishTime = raceTime
	r.move(c, StageFinished)
	return c, nil
}

// ResetRound returns every client that took part in the round to Waiting.
func (r *Registry) ResetRound() []*Client {
	participants := r.Partition(StageInRound, StageFinished)
	for _, c := range participants {
		c.FinishTime = 0
		r.move(c, StageWaiting)
	}
	return participants
}

// Check verifies that the partitions are disjoint and together hold exactly
// the registered clients.
func (r *Registry) Check() error {
	total := 0
	for stage, partition := range r.partitions {
		for id, c := range partition {
			registered, ok := r.clients[id]
			if !ok || registered != c {
				return fmt.Errorf("%s in %s partition is not registered", id, Stage(stage))
			}
			if c.stage != Stage(stage) {
				return fmt.Errorf("%s is %s but stored as %s", c, c.stage, Stage(stage))
			}
		}
		total += len(partition)
	}
	if total != len(r.clients) {
		return fmt.Errorf("partitions hold %d clients, %d registered", total, len(r.clients))
	}
	return nil
}
