package maps

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const circuit = `
name: circuit
geometry: tracks/circuit.glb
segments: 24
startPositions:
  - {x: 0, y: 0}
  - {x: 2, y: 0}
coins: 10
itemBoxes: 4
`

func writeMap(t *testing.T, dir, file, contents string) string {
	path := filepath.Join(dir, file)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}

func TestParse(t *testing.T) {
	m, err := Parse([]byte(circuit))
	require.NoError(t, err)
	assert.Equal(t, "circuit", m.Name)
	assert.Equal(t, 24, m.Segments)
	assert.Equal(t, 10, m.Coins)
	assert.Equal(t, 4, m.ItemBoxes)
	assert.Equal(t, 2.0, m.StartSlot(1).X)
	// wraps around
	assert.Equal(t, 0.0, m.StartSlot(2).X)

	_, err = Parse([]byte("name: broken\nsegments: 0\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("segments: 3\nstartPositions: [{x: 1, y: 1}]\n"))
	assert.Error(t, err)
}

func TestCatalog(t *testing.T) {
	dir := t.TempDir()
	catalog, err := OpenCatalog(filepath.Join(t.TempDir(), "maps.db"))
	require.NoError(t, err)
	defer catalog.Close()

	writeMap(t, dir, "circuit.yaml", circuit)
	writeMap(t, dir, "broken.yaml", "name: [")
	writeMap(t, dir, "desert.yml", `
name: desert
geometry: tracks/desert.glb
segments: 12
startPositions: [{x: 5, y: 5}]
`)

	count, err := catalog.Index(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	names, err := catalog.Names()
	require.NoError(t, err)
	assert.Equal(t, []string{"circuit", "desert"}, names)

	record, err := catalog.Find("circuit")
	require.NoError(t, err)
	firstHash := record.Hash

	// Unchanged files keep their hash, changed ones are reindexed
	writeMap(t, dir, "desert.yml", `
name: desert
geometry: tracks/desert.glb
segments: 16
startPositions: [{x: 5, y: 5}]
`)
	_, err = catalog.Index(dir)
	require.NoError(t, err)

	record, err = catalog.Find("circuit")
	require.NoError(t, err)
	assert.Equal(t, firstHash, record.Hash)

	desert, err := catalog.Get("desert")
	require.NoError(t, err)
	assert.Equal(t, 16, desert.Segments)

	// Removed files disappear from the catalog
	require.NoError(t, os.Remove(filepath.Join(dir, "circuit.yaml")))
	count, err = catalog.Index(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = catalog.Get("circuit")
	assert.ErrorIs(t, err, ErrNotFound)
}

type fakeSource struct {
	names []string
}

func (f *fakeSource) Names() ([]string, error) { return f.names, nil }

func (f *fakeSource) Get(name string) (*Map, error) {
	for _, n := range f.names {
		if n == name {
			return &Map{Name: name, Segments: 1}, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
}

func TestRotation(t *testing.T) {
	rotation := NewRotation(&fakeSource{names: []string{"a", "b", "c"}}, "b")

	var order []string
	for i := 0; i < 5; i++ {
		m, err := rotation.Next()
		require.NoError(t, err)
		order = append(order, m.Name)
	}
	assert.Equal(t, []string{"b", "a", "b", "c", "a"}, order)

	_, err := NewRotation(&fakeSource{}, "").Next()
	assert.ErrorIs(t, err, ErrEmptyRotation)
}
