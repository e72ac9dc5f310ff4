package maps

import (
	"errors"
	"fmt"
	"os"

	"github.com/cfoust/kart/pkg/geom"

	"gopkg.in/yaml.v3"
)

// Map is everything the coordinator needs to know about a track. The track
// geometry itself is opaque to the server and only passed on to clients.
type Map struct {
	Name     string `yaml:"name"`
	Geometry string `yaml:"geometry"`
	// Number of segments the track is divided into for progress tracking.
	Segments       int         `yaml:"segments"`
	StartPositions []geom.Vec2 `yaml:"startPositions"`
	Coins          int         `yaml:"coins"`
	ItemBoxes      int         `yaml:"itemBoxes"`
}

func (m *Map) Validate() error {
	if m.Name == "" {
		return errors.New("map has no name")
	}
	if m.Segments < 1 {
		return fmt.Errorf("map %s must have at least one track segment", m.Name)
	}
	if len(m.StartPositions) == 0 {
		return fmt.Errorf("map %s has no start positions", m.Name)
	}
	if m.Coins < 0 || m.ItemBoxes < 0 {
		return fmt.Errorf("map %s has a negative pickup count", m.Name)
	}
	return nil
}

// StartSlot returns the start position for the nth participant, wrapping
// when there are more participants than positions.
func (m *Map) StartSlot(n int) geom.Vec2 {
	if len(m.StartPositions) == 0 {
		return geom.Vec2{}
	}
	return m.StartPositions[n%len(m.StartPositions)]
}

func Parse(data []byte) (*Map, error) {
	var m Map
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func Load(path string) (*Map, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("invalid map descriptor %s: %w", path, err)
	}
	return m, nil
}
