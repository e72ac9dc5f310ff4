package config

import (
	"time"

	"github.com/cfoust/kart/pkg/simulation"
)

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

type RedisSettings struct {
	Address  string  `json:"address" yaml:"address"`
	Password string  `json:"password" yaml:"password"`
	DB       int     `json:"db" yaml:"db"`
	TTL      float64 `json:"ttl" yaml:"ttl"`
}

func (r RedisSettings) Enabled() bool {
	return r.Address != ""
}

func (r RedisSettings) Expiry() time.Duration {
	return seconds(r.TTL)
}

type IngressSettings struct {
	MessagesPerSecond float64 `json:"messagesPerSecond" yaml:"messagesPerSecond"`
	Burst             int     `json:"burst" yaml:"burst"`
}

type ServerSettings struct {
	Port         int             `json:"port" yaml:"port"`
	MapDirectory string          `json:"mapDirectory" yaml:"mapDirectory"`
	DBPath       string          `json:"dbPath" yaml:"dbPath"`
	DefaultMap   string          `json:"defaultMap" yaml:"defaultMap"`
	Redis        RedisSettings   `json:"redis" yaml:"redis"`
	Ingress      IngressSettings `json:"ingress" yaml:"ingress"`
}

// Durations are in seconds.
type RaceSettings struct {
	TickRate      int     `json:"tickRate" yaml:"tickRate"`
	LoadTimeout   float64 `json:"loadTimeout" yaml:"loadTimeout"`
	Countdown     float64 `json:"countdown" yaml:"countdown"`
	Grace         float64 `json:"grace" yaml:"grace"`
	PickupRespawn float64 `json:"pickupRespawn" yaml:"pickupRespawn"`
	InterRound    float64 `json:"interRound" yaml:"interRound"`
	CommandQueue  int     `json:"commandQueue" yaml:"commandQueue"`
	OutboundQueue int     `json:"outboundQueue" yaml:"outboundQueue"`
}

func (r RaceSettings) TickInterval() time.Duration {
	return time.Second / time.Duration(r.TickRate)
}

func (r RaceSettings) LoadTimeoutDuration() time.Duration   { return seconds(r.LoadTimeout) }
func (r RaceSettings) CountdownDuration() time.Duration     { return seconds(r.Countdown) }
func (r RaceSettings) GraceDuration() time.Duration         { return seconds(r.Grace) }
func (r RaceSettings) PickupRespawnDuration() time.Duration { return seconds(r.PickupRespawn) }
func (r RaceSettings) InterRoundDuration() time.Duration    { return seconds(r.InterRound) }

type ItemSettings struct {
	ShellSpeed        float64 `json:"shellSpeed" yaml:"shellSpeed"`
	Steering          float64 `json:"steering" yaml:"steering"`
	HitRadius         float64 `json:"hitRadius" yaml:"hitRadius"`
	RedShellHitRadius float64 `json:"redShellHitRadius" yaml:"redShellHitRadius"`
	SpawnOffset       float64 `json:"spawnOffset" yaml:"spawnOffset"`
}

type Config struct {
	Server ServerSettings `json:"server" yaml:"server"`
	Race   RaceSettings   `json:"race" yaml:"race"`
	Items  ItemSettings   `json:"items" yaml:"items"`
}

// Tuning returns the simulation parameters this configuration describes.
func (c *Config) Tuning() simulation.Tuning {
	return simulation.Tuning{
		TickRate:          c.Race.TickRate,
		ShellSpeed:        c.Items.ShellSpeed,
		Steering:          c.Items.Steering,
		HitRadius:         c.Items.HitRadius,
		RedShellHitRadius: c.Items.RedShellHitRadius,
		SpawnOffset:       c.Items.SpawnOffset,
	}
}
