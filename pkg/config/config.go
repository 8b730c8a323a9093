// Package config holds the application configuration for the station runtime
// and the content pipeline.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"aetherfm/pkg/model"
)

// ConfigError signals invalid or missing configuration. It is fatal at
// startup and never recovered from.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// Config holds the full application configuration.
type Config struct {
	Paths    PathsConfig     `yaml:"paths"`
	Log      LogConfig       `yaml:"log"`
	Request  RequestConfig   `yaml:"request"`
	Writer   WriterConfig    `yaml:"writer"`
	Auditor  AuditorConfig   `yaml:"auditor"`
	TTS      TTSConfig       `yaml:"tts"`
	Rotation RotationConfig  `yaml:"rotation"`
	Schedule ScheduleConfig  `yaml:"schedule"`
	Personas []model.Persona `yaml:"personas"`
	Pipeline PipelineConfig  `yaml:"pipeline"`
	Station  StationConfig   `yaml:"station"`
	Weather  WeatherConfig   `yaml:"weather"`
}

// PathsConfig holds filesystem locations.
type PathsConfig struct {
	MusicDir    string `yaml:"music_dir"`
	ContentRoot string `yaml:"content_root"`
	Catalog     string `yaml:"catalog"`
	Rotation    string `yaml:"rotation"`
	Checkpoint  string `yaml:"checkpoint"`
	DB          string `yaml:"db"`
	Prompts     string `yaml:"prompts"`
}

// LogSettings holds settings for a specific logger.
type LogSettings struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Server   LogSettings `yaml:"server"`
	Pipeline LogSettings `yaml:"pipeline"`
}

// RequestConfig holds HTTP/backend request settings.
type RequestConfig struct {
	Retries int           `yaml:"retries"`
	Timeout Duration      `yaml:"timeout"`
	Backoff BackoffConfig `yaml:"backoff"`
}

// BackoffConfig holds exponential backoff settings.
type BackoffConfig struct {
	BaseDelay Duration `yaml:"base_delay"`
	MaxDelay  Duration `yaml:"max_delay"`
}

// WriterConfig holds settings for the script writer model.
type WriterConfig struct {
	Provider string   `yaml:"provider"` // "gemini", "fake"
	Model    string   `yaml:"model"`
	Key      string   `yaml:"key"`
	Timeout  Duration `yaml:"timeout"`
}

// AuditorConfig holds settings for the script auditor model.
type AuditorConfig struct {
	Provider      string   `yaml:"provider"` // "gemini", "fake"
	Model         string   `yaml:"model"`
	Key           string   `yaml:"key"`
	PassThreshold float64  `yaml:"pass_threshold"`
	Timeout       Duration `yaml:"timeout"`
}

// TTSConfig holds text-to-speech settings.
type TTSConfig struct {
	Engine   string   `yaml:"engine"` // "edge-ws", "fake"
	Endpoint string   `yaml:"endpoint"`
	Timeout  Duration `yaml:"timeout"`
}

// RotationConfig holds rotation engine settings.
type RotationConfig struct {
	CoreRatio           float64 `yaml:"core_ratio"`
	GraduationThreshold int     `yaml:"graduation_threshold"`
	AvoidRepeatWindow   int     `yaml:"avoid_repeat_window"`
}

// ScheduleConfig holds the shift schedule and window settings.
type ScheduleConfig struct {
	Shifts              []model.Shift `yaml:"shifts"`
	AnnouncementWindowS int           `yaml:"announcement_window_s"`
	WeatherHours        WeatherHours  `yaml:"weather_hours"`
	ShowHour            int           `yaml:"show_hour"`
	ShowID              string        `yaml:"show_id"`
}

// WeatherHours declares the three daily weather windows.
type WeatherHours struct {
	Morning int `yaml:"morning"`
	Midday  int `yaml:"midday"`
	Evening int `yaml:"evening"`
}

// PipelineConfig holds pipeline orchestration settings.
type PipelineConfig struct {
	RegenCap     int      `yaml:"regen_cap"`
	RetryCap     int      `yaml:"retry_cap"`
	Ordering     string   `yaml:"ordering"` // "stage_major", "item_major"
	ProgressTick Duration `yaml:"progress_tick"`
}

// StationConfig holds station runtime settings.
type StationConfig struct {
	Quantum       Duration `yaml:"quantum"`
	CommandBuffer int      `yaml:"command_buffer"`
	ShutdownGrace Duration `yaml:"shutdown_grace"`
}

// WeatherConfig holds weather provider settings.
type WeatherConfig struct {
	Endpoint string   `yaml:"endpoint"`
	Lat      float64  `yaml:"lat"`
	Lon      float64  `yaml:"lon"`
	CacheTTL Duration `yaml:"cache_ttl"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Paths: PathsConfig{
			MusicDir:    "./music",
			ContentRoot: "./data/content",
			Catalog:     "./data/catalog.json",
			Rotation:    "./data/rotation.json",
			Checkpoint:  "./data/pipeline_state.json",
			DB:          "./data/aetherfm.db",
			Prompts:     "",
		},
		Log: LogConfig{
			Server:   LogSettings{Path: "./logs/station.log", Level: "INFO"},
			Pipeline: LogSettings{Path: "./logs/pipeline.log", Level: "INFO"},
		},
		Request: RequestConfig{
			Retries: 3,
			Timeout: Duration(120 * time.Second),
			Backoff: BackoffConfig{
				BaseDelay: Duration(1 * time.Second),
				MaxDelay:  Duration(30 * time.Second),
			},
		},
		Writer: WriterConfig{
			Provider: "gemini",
			Model:    "gemini-2.5-flash-lite",
			Timeout:  Duration(90 * time.Second),
		},
		Auditor: AuditorConfig{
			Provider:      "gemini",
			Model:         "gemini-2.5-flash",
			PassThreshold: 7.0,
			Timeout:       Duration(90 * time.Second),
		},
		TTS: TTSConfig{
			Engine:  "edge-ws",
			Timeout: Duration(120 * time.Second),
		},
		Rotation: RotationConfig{
			CoreRatio:           0.7,
			GraduationThreshold: 5,
			AvoidRepeatWindow:   0,
		},
		Schedule: ScheduleConfig{
			Shifts: []model.Shift{
				{StartMinutes: 6 * 60, Persona: model.PersonaA},
				{StartMinutes: 18 * 60, Persona: model.PersonaB},
			},
			AnnouncementWindowS: 2,
			WeatherHours:        WeatherHours{Morning: 7, Midday: 12, Evening: 18},
			ShowHour:            20,
			ShowID:              "evening_show",
		},
		Personas: []model.Persona{
			{ID: model.PersonaA, DisplayName: "Aria", VoiceRef: "./voices/aria.wav",
				StyleCard: map[string]string{"tone": "warm", "pace": "relaxed"}},
			{ID: model.PersonaB, DisplayName: "Boone", VoiceRef: "./voices/boone.wav",
				StyleCard: map[string]string{"tone": "dry", "pace": "brisk"}},
		},
		Pipeline: PipelineConfig{
			RegenCap:     3,
			RetryCap:     3,
			Ordering:     "stage_major",
			ProgressTick: Duration(2 * time.Second),
		},
		Station: StationConfig{
			Quantum:       Duration(250 * time.Millisecond),
			CommandBuffer: 16,
			ShutdownGrace: Duration(2 * time.Second),
		},
		Weather: WeatherConfig{
			Endpoint: "https://api.open-meteo.com/v1/forecast",
			Lat:      40.7128,
			Lon:      -74.0060,
			CacheTTL: Duration(30 * time.Minute),
		},
	}
}

// Load loads the configuration from the given path. A missing file is created
// with defaults. The result is always validated.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if err := Save(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to save config file: %w", err)
	}

	// API keys fall back to the environment, never written back to disk.
	if cfg.Writer.Key == "" {
		cfg.Writer.Key = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.Auditor.Key == "" {
		cfg.Auditor.Key = cfg.Writer.Key
	}
	if cfg.TTS.Endpoint == "" {
		cfg.TTS.Endpoint = os.Getenv("TTS_ENDPOINT")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to the path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	header := []byte(`# AetherFM Configuration
# ---------------------
# Durations accept: ns, us, ms, s, m, h, d

`)
	if err := os.WriteFile(path, append(header, data...), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateDefault creates a default config file at the given path. Returns
// nil if the file already exists.
func GenerateDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return Save(path, DefaultConfig())
}

// Validate checks invariants that would otherwise surface as runtime bugs.
func (c *Config) Validate() error {
	if c.Paths.ContentRoot == "" {
		return &ConfigError{Field: "paths.content_root", Reason: "required"}
	}
	if r := c.Rotation.CoreRatio; r <= 0 || r >= 1 {
		return &ConfigError{Field: "rotation.core_ratio", Reason: "must be in (0,1)"}
	}
	if c.Rotation.GraduationThreshold <= 0 {
		return &ConfigError{Field: "rotation.graduation_threshold", Reason: "must be positive"}
	}
	if c.Schedule.AnnouncementWindowS < 0 {
		return &ConfigError{Field: "schedule.announcement_window_s", Reason: "must be nonnegative"}
	}
	if err := c.validateShifts(); err != nil {
		return err
	}
	for _, h := range []int{c.Schedule.WeatherHours.Morning, c.Schedule.WeatherHours.Midday, c.Schedule.WeatherHours.Evening, c.Schedule.ShowHour} {
		if h < 0 || h > 23 {
			return &ConfigError{Field: "schedule", Reason: fmt.Sprintf("hour %d out of range", h)}
		}
	}
	switch c.Writer.Provider {
	case "gemini", "fake":
	default:
		return &ConfigError{Field: "writer.provider", Reason: fmt.Sprintf("unknown provider %q", c.Writer.Provider)}
	}
	switch c.Auditor.Provider {
	case "gemini", "fake":
	default:
		return &ConfigError{Field: "auditor.provider", Reason: fmt.Sprintf("unknown provider %q", c.Auditor.Provider)}
	}
	switch c.TTS.Engine {
	case "edge-ws", "fake":
	default:
		return &ConfigError{Field: "tts.engine", Reason: fmt.Sprintf("unknown engine %q", c.TTS.Engine)}
	}
	if c.Pipeline.Ordering != "stage_major" && c.Pipeline.Ordering != "item_major" {
		return &ConfigError{Field: "pipeline.ordering", Reason: "must be stage_major or item_major"}
	}
	if c.Pipeline.RegenCap < 0 || c.Pipeline.RetryCap < 0 {
		return &ConfigError{Field: "pipeline", Reason: "caps must be nonnegative"}
	}
	return nil
}

func (c *Config) validateShifts() error {
	shifts := c.Schedule.Shifts
	if len(shifts) == 0 {
		return &ConfigError{Field: "schedule.shifts", Reason: "at least one shift required"}
	}
	known := make(map[model.PersonaID]bool, len(c.Personas))
	for _, p := range c.Personas {
		if p.ID == "" {
			return &ConfigError{Field: "personas", Reason: "persona id required"}
		}
		if known[p.ID] {
			return &ConfigError{Field: "personas", Reason: fmt.Sprintf("duplicate persona %q", p.ID)}
		}
		known[p.ID] = true
	}
	for i, s := range shifts {
		if s.StartMinutes < 0 || s.StartMinutes >= 24*60 {
			return &ConfigError{Field: "schedule.shifts", Reason: fmt.Sprintf("shift %d start out of range", i)}
		}
		if i > 0 && s.StartMinutes <= shifts[i-1].StartMinutes {
			return &ConfigError{Field: "schedule.shifts", Reason: "shifts must be strictly ascending"}
		}
		if !known[s.Persona] {
			return &ConfigError{Field: "schedule.shifts", Reason: fmt.Sprintf("unknown persona %q", s.Persona)}
		}
	}
	return nil
}

// Persona returns the persona with the given id, or nil.
func (c *Config) Persona(id model.PersonaID) *model.Persona {
	for i := range c.Personas {
		if c.Personas[i].ID == id {
			return &c.Personas[i]
		}
	}
	return nil
}

// PersonaIDs returns the configured persona ids in declaration order.
func (c *Config) PersonaIDs() []model.PersonaID {
	ids := make([]model.PersonaID, 0, len(c.Personas))
	for _, p := range c.Personas {
		ids = append(ids, p.ID)
	}
	return ids
}
