package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcess(t *testing.T) {
	// Default config
	config, err := Process([]string{})
	require.NoError(t, err)
	assert.Equal(t, 30, config.Race.TickRate)
	assert.Equal(t, 10*time.Second, config.Race.LoadTimeoutDuration())
	assert.Equal(t, 5*time.Second, config.Race.PickupRespawnDuration())
	assert.False(t, config.Server.Redis.Enabled())

	dir := t.TempDir()

	// yaml config
	{
		yaml := filepath.Join(dir, "config.yaml")
		err = os.WriteFile(yaml, []byte(`
server:
  port: 1234
race:
  loadTimeout: 2.5
`), 0644)
		require.NoError(t, err)
		config, err = Process([]string{yaml})
		require.NoError(t, err)
		assert.Equal(t, 1234, config.Server.Port)
		assert.Equal(t, 2500*time.Millisecond, config.Race.LoadTimeoutDuration())
		// schema defaults fill the rest
		assert.Equal(t, 10*time.Second, config.Race.GraceDuration())
		assert.Equal(t, 1.0, config.Items.RedShellHitRadius)
	}

	// json config
	{
		json := filepath.Join(dir, "config.json")
		err = os.WriteFile(json, []byte(`{
  "race": {
    "tickRate": 60
  }
}`), 0644)
		require.NoError(t, err)
		config, err = Process([]string{json})
		require.NoError(t, err)
		assert.Equal(t, time.Second/60, config.Race.TickInterval())
	}

	// multiple yaml
	{
		yaml1 := filepath.Join(dir, "config1.yaml")
		err = os.WriteFile(yaml1, []byte(`
server:
  port: 1234
`), 0644)
		require.NoError(t, err)

		yaml2 := filepath.Join(dir, "config2.yaml")
		err = os.WriteFile(yaml2, []byte(`
server:
  redis:
    address: "localhost:6379"
`), 0644)
		require.NoError(t, err)
		config, err = Process([]string{yaml1, yaml2})
		require.NoError(t, err)
		assert.Equal(t, 1234, config.Server.Port)
		assert.True(t, config.Server.Redis.Enabled())
	}

	// Invalid config
	{
		invalid := filepath.Join(dir, "invalid.yaml")
		err = os.WriteFile(invalid, []byte(`
race:
  tickRate: -1
`), 0644)
		require.NoError(t, err)
		_, err = Process([]string{invalid})
		assert.ErrorIs(t, err, ErrInvalidConfig)
		assert.ErrorContains(t, err, invalid)

		_, err = Process([]string{filepath.Join(dir, "missing.yaml")})
		assert.ErrorIs(t, err, ErrMissingFile)

		toml := filepath.Join(dir, "config.toml")
		require.NoError(t, os.WriteFile(toml, []byte("port = 1"), 0644))
		_, err = Process([]string{toml})
		assert.ErrorIs(t, err, ErrUnknownFormat)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	config, err := Process([]string{})
	require.NoError(t, err)

	data, err := Marshal(config)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "resolved.yaml")
	require.NoError(t, os.WriteFile(path, data, 0644))

	again, err := Process([]string{path})
	require.NoError(t, err)
	assert.Equal(t, config, again)
}
