package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aetherfm/pkg/model"
)

func TestDefaultConfigValidates(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestLoadCreatesMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Rotation.CoreRatio, cfg.Rotation.CoreRatio)

	if _, err := os.Stat(path); err != nil {
		t.Errorf("config file was not created: %v", err)
	}
}

func TestLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	orig := DefaultConfig()
	orig.Rotation.CoreRatio = 0.55
	orig.Station.Quantum = Duration(500 * time.Millisecond)
	require.NoError(t, Save(path, orig))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.55, cfg.Rotation.CoreRatio)
	assert.Equal(t, Duration(500*time.Millisecond), cfg.Station.Quantum)
}

func TestLoadRejectsBrokenYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("paths: [not a map"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidateFailures(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"missing content root", func(c *Config) { c.Paths.ContentRoot = "" }, "paths.content_root"},
		{"core ratio zero", func(c *Config) { c.Rotation.CoreRatio = 0 }, "rotation.core_ratio"},
		{"core ratio one", func(c *Config) { c.Rotation.CoreRatio = 1 }, "rotation.core_ratio"},
		{"graduation threshold", func(c *Config) { c.Rotation.GraduationThreshold = 0 }, "rotation.graduation_threshold"},
		{"negative window", func(c *Config) { c.Schedule.AnnouncementWindowS = -1 }, "schedule.announcement_window_s"},
		{"no shifts", func(c *Config) { c.Schedule.Shifts = nil }, "schedule.shifts"},
		{"shifts out of order", func(c *Config) {
			c.Schedule.Shifts = []model.Shift{
				{StartMinutes: 18 * 60, Persona: model.PersonaA},
				{StartMinutes: 6 * 60, Persona: model.PersonaB},
			}
		}, "schedule.shifts"},
		{"duplicate shift start", func(c *Config) {
			c.Schedule.Shifts = []model.Shift{
				{StartMinutes: 360, Persona: model.PersonaA},
				{StartMinutes: 360, Persona: model.PersonaB},
			}
		}, "schedule.shifts"},
		{"shift start out of range", func(c *Config) {
			c.Schedule.Shifts = []model.Shift{{StartMinutes: 24 * 60, Persona: model.PersonaA}}
		}, "schedule.shifts"},
		{"unknown shift persona", func(c *Config) {
			c.Schedule.Shifts = []model.Shift{{StartMinutes: 0, Persona: "C"}}
		}, "schedule.shifts"},
		{"duplicate persona", func(c *Config) {
			c.Personas = append(c.Personas, c.Personas[0])
		}, "personas"},
		{"weather hour out of range", func(c *Config) { c.Schedule.WeatherHours.Evening = 24 }, "schedule"},
		{"unknown writer provider", func(c *Config) { c.Writer.Provider = "gemni" }, "writer.provider"},
		{"unknown auditor provider", func(c *Config) { c.Auditor.Provider = "openai" }, "auditor.provider"},
		{"unknown tts engine", func(c *Config) { c.TTS.Engine = "edge" }, "tts.engine"},
		{"bad ordering", func(c *Config) { c.Pipeline.Ordering = "breadth_first" }, "pipeline.ordering"},
		{"negative regen cap", func(c *Config) { c.Pipeline.RegenCap = -1 }, "pipeline"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cfg := DefaultConfig()
			c.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			var ce *ConfigError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, c.field, ce.Field)
		})
	}
}

func TestPersonaLookup(t *testing.T) {
	cfg := DefaultConfig()
	p := cfg.Persona(model.PersonaA)
	require.NotNil(t, p)
	assert.Equal(t, "Aria", p.DisplayName)
	assert.Nil(t, cfg.Persona("Z"))
	assert.Equal(t, []model.PersonaID{model.PersonaA, model.PersonaB}, cfg.PersonaIDs())
}

func TestParseDuration(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
	}{
		{"250ms", 250 * time.Millisecond},
		{"90s", 90 * time.Second},
		{"1h30m", 90 * time.Minute},
		{"1d", 24 * time.Hour},
		{"2d12h", 60 * time.Hour},
		{"", 0},
	}
	for _, c := range cases {
		got, err := ParseDuration(c.in)
		require.NoError(t, err, c.in)
		assert.Equal(t, c.want, got, c.in)
	}

	_, err := ParseDuration("banana")
	assert.Error(t, err)
}

func TestDurationYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.Weather.CacheTTL = Duration(45 * time.Minute)
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Duration(45*time.Minute), loaded.Weather.CacheTTL)
}
