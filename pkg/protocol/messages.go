package protocol

import (
	"time"

	"github.com/cfoust/kart/pkg/geom"
)

type MessageCode uint8

const (
	// client -> server
	N_REGISTER MessageCode = iota
	N_LOADEDMAP
	N_PLAYERUPDATE
	N_USEITEM
	N_PICKUP
	N_FINISHROUND

	// server -> client
	N_PREPAREROUND
	N_PLAYERCOUNT
	N_LOADEDTOOSLOW
	N_STARTROUND
	N_STARTRACE
	N_RACEUPDATE
	N_PICKUPSTATE
	N_HITBYITEM
	N_ENDROUND
)

var codeNames = map[MessageCode]string{
	N_REGISTER:      "N_REGISTER",
	N_LOADEDMAP:     "N_LOADEDMAP",
	N_PLAYERUPDATE:  "N_PLAYERUPDATE",
	N_USEITEM:       "N_USEITEM",
	N_PICKUP:        "N_PICKUP",
	N_FINISHROUND:   "N_FINISHROUND",
	N_PREPAREROUND:  "N_PREPAREROUND",
	N_PLAYERCOUNT:   "N_PLAYERCOUNT",
	N_LOADEDTOOSLOW: "N_LOADEDTOOSLOW",
	N_STARTROUND:    "N_STARTROUND",
	N_STARTRACE:     "N_STARTRACE",
	N_RACEUPDATE:    "N_RACEUPDATE",
	N_PICKUPSTATE:   "N_PICKUPSTATE",
	N_HITBYITEM:     "N_HITBYITEM",
	N_ENDROUND:      "N_ENDROUND",
}

func (c MessageCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return "N_UNKNOWN"
}

func IsClientMessage(code MessageCode) bool {
	return code <= N_FINISHROUND
}

type Message interface {
	Type() MessageCode
}

// Sent by clients.
type ClientMessage interface {
	Message
	clientMessage()
}

// Sent by the coordinator.
type ServerMessage interface {
	Message
	serverMessage()
}

// N_REGISTER
type Register struct {
	Name string
}

func (m Register) Type() MessageCode { return N_REGISTER }
func (Register) clientMessage()      {}

// N_LOADEDMAP
type LoadedMap struct{}

func (m LoadedMap) Type() MessageCode { return N_LOADEDMAP }
func (LoadedMap) clientMessage()      {}

// N_PLAYERUPDATE
type PlayerUpdate struct {
	Position geom.Vec2
	Heading  float64
	Progress TrackProgress
}

func (m PlayerUpdate) Type() MessageCode { return N_PLAYERUPDATE }
func (PlayerUpdate) clientMessage()      {}

func (m PlayerUpdate) State() PlayerState {
	return PlayerState{
		Position: m.Position,
		Heading:  m.Heading,
		Progress: m.Progress,
	}
}

// N_USEITEM
type UseItem struct {
	Kind ItemKind
}

func (m UseItem) Type() MessageCode { return N_USEITEM }
func (UseItem) clientMessage()      {}

// N_PICKUP
type PickUp struct {
	Kind  PickupKind
	Index int
}

func (m PickUp) Type() MessageCode { return N_PICKUP }
func (PickUp) clientMessage()      {}

// N_FINISHROUND
type FinishRound struct {
	RaceTime time.Duration
}

func (m FinishRound) Type() MessageCode { return N_FINISHROUND }
func (FinishRound) clientMessage()      {}

// N_PREPAREROUND
type PrepareRound struct {
	Map string
	// Path to the map geometry, opaque to the server.
	Geometry string
}

func (m PrepareRound) Type() MessageCode { return N_PREPAREROUND }
func (PrepareRound) serverMessage()      {}

// N_PLAYERCOUNT
type PlayerCountChanged struct {
	Count int
}

func (m PlayerCountChanged) Type() MessageCode { return N_PLAYERCOUNT }
func (PlayerCountChanged) serverMessage()      {}

// N_LOADEDTOOSLOW
type LoadedTooSlow struct{}

func (m LoadedTooSlow) Type() MessageCode { return N_LOADEDTOOSLOW }
func (LoadedTooSlow) serverMessage()      {}

type RoundParams struct {
	Map          string
	Participants []Participant
	StartSlots   []geom.Vec2
	Countdown    time.Duration
	Coins        int
	ItemBoxes    int
}

// N_STARTROUND
type StartRound struct {
	Params RoundParams
}

func (m StartRound) Type() MessageCode { return N_STARTROUND }
func (StartRound) serverMessage()      {}

// N_STARTRACE
type StartRace struct{}

func (m StartRace) Type() MessageCode { return N_STARTRACE }
func (StartRace) serverMessage()      {}

// N_RACEUPDATE
type RaceUpdate struct {
	Players     []PlayerSnapshot
	ActiveItems []ItemSnapshot
	RaceTime    time.Duration
}

func (m RaceUpdate) Type() MessageCode { return N_RACEUPDATE }
func (RaceUpdate) serverMessage()      {}

// N_PICKUPSTATE
type PickUpStateChange struct {
	Kind      PickupKind
	Index     int
	Available bool
}

func (m PickUpStateChange) Type() MessageCode { return N_PICKUPSTATE }
func (PickUpStateChange) serverMessage()      {}

// N_HITBYITEM
type HitByItem struct {
	Player ClientID
	Kind   ItemKind
}

func (m HitByItem) Type() MessageCode { return N_HITBYITEM }
func (HitByItem) serverMessage()      {}

// N_ENDROUND
type EndRound struct {
	Placements []Placement
}

func (m EndRound) Type() MessageCode { return N_ENDROUND }
func (EndRound) serverMessage()      {}
