package simulation

import (
	"errors"
	"fmt"

	"github.com/cfoust/kart/pkg/protocol"
)

var ErrNoSuchPickup = errors.New("no such pickup")

// Pickups tracks which coin and item box spawn points currently hold
// something. Indices are spawn point indices as defined by the map.
type Pickups struct {
	coins     []bool
	itemBoxes []bool
}

func NewPickups(coins, itemBoxes int) *Pickups {
	p := &Pickups{}
	p.Reset(coins, itemBoxes)
	return p
}

func filled(n int) []bool {
	if n < 0 {
		n = 0
	}
	slots := make([]bool, n)
	for i := range slots {
		slots[i] = true
	}
	return slots
}

// Reset makes every spawn point available again.
func (p *Pickups) Reset(coins, itemBoxes int) {
	p.coins = filled(coins)
	p.itemBoxes = filled(itemBoxes)
}

func (p *Pickups) slots(kind protocol.PickupKind) ([]bool, error) {
	switch kind {
	case protocol.PickupCoin:
		return p.coins, nil
	case protocol.PickupItemBox:
		return p.itemBoxes, nil
	}
	return nil, fmt.Errorf("%w: unknown kind %s", ErrNoSuchPickup, kind)
}

func (p *Pickups) slot(kind protocol.PickupKind, index int) ([]bool, error) {
	slots, err := p.slots(kind)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(slots) {
		return nil, fmt.Errorf("%w: %s %d (have %d)", ErrNoSuchPickup, kind, index, len(slots))
	}
	return slots, nil
}

// Pickup consumes a spawn point. It returns true only if the spawn point was
// available, so repeated attempts before a respawn return false.
func (p *Pickups) Pickup(kind protocol.PickupKind, index int) (bool, error) {
	slots, err := p.slot(kind, index)
	if err != nil {
		return false, err
	}
	if !slots[index] {
		return false, nil
	}
	slots[index] = false
	return true, nil
}

// Respawn makes a spawn point available. It returns true if that changed
// anything.
func (p *Pickups) Respawn(kind protocol.PickupKind, index int) (bool, error) {
	slots, err := p.slot(kind, index)
	if err != nil {
		return false, err
	}
	if slots[index] {
		return false, nil
	}
	slots[index] = true
	return true, nil
}

func (p *Pickups) Available(kind protocol.PickupKind, index int) bool {
	slots, err := p.slot(kind, index)
	return err == nil && slots[index]
}

func (p *Pickups) Len(kind protocol.PickupKind) int {
	slots, _ := p.slots(kind)
	return len(slots)
}
