package maps

import (
	"errors"

	"github.com/sasha-s/go-deadlock"
)

var ErrEmptyRotation = errors.New("no maps in rotation")

type Source interface {
	Names() ([]string, error)
	Get(name string) (*Map, error)
}

// Rotation cycles through the maps of a Source in order. If a preferred
// default map is set, it is played first.
type Rotation struct {
	source Source
	next   int
	first  string
	mutex  deadlock.Mutex
}

func NewRotation(source Source, first string) *Rotation {
	return &Rotation{
		source: source,
		first:  first,
	}
}

func (r *Rotation) Next() (*Map, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.first != "" {
		name := r.first
		r.first = ""
		if m, err := r.source.Get(name); err == nil {
			return m, nil
		}
	}

	names, err := r.source.Names()
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, ErrEmptyRotation
	}

	var lastErr error
	for range names {
		name := names[r.next%len(names)]
		r.next = (r.next + 1) % len(names)

		m, err := r.source.Get(name)
		if err != nil {
			lastErr = err
			continue
		}
		return m, nil
	}

	return nil, lastErr
}
