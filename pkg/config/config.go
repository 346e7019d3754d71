package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/cbodonnell/gameflow/pkg/log"
	"github.com/cbodonnell/gameflow/pkg/timeramp"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is read from the environment, optionally seeded from .env files.
type Config struct {
	LogLevel string `env:"GAMEFLOW_LOG_LEVEL" envDefault:"info"`
	// DatabaseURL selects the repository by scheme: sqlite://, postgresql:// or gdata://
	DatabaseURL   string `env:"GAMEFLOW_DATABASE_URL" envDefault:"sqlite://gameflow.db"`
	MigrationsDir string `env:"GAMEFLOW_MIGRATIONS_DIR" envDefault:"migrations/sqlite"`
	APIPort       int    `env:"GAMEFLOW_API_PORT" envDefault:"8080"`
	WSPort        int    `env:"GAMEFLOW_WS_PORT" envDefault:"8889"`
	TLSCertFile   string `env:"GAMEFLOW_TLS_CERT_FILE"`
	TLSKeyFile    string `env:"GAMEFLOW_TLS_KEY_FILE"`
	InitialScene  string `env:"GAMEFLOW_INITIAL_SCENE" envDefault:"Boot"`
	TuningFile    string `env:"GAMEFLOW_TUNING_FILE"`

	// FirebaseProjectID enables Firebase token verification for the API
	// and the notification socket.
	FirebaseProjectID       string `env:"GAMEFLOW_FIREBASE_PROJECT_ID"`
	FirebaseCredentialsFile string `env:"GAMEFLOW_FIREBASE_CREDENTIALS_FILE"`
	// APIToken enables a shared bearer token when Firebase is not configured.
	APIToken string `env:"GAMEFLOW_API_TOKEN"`

	Tuning Tuning
}

// Tuning holds the timing and scene settings of the session controller.
type Tuning struct {
	RampDuration time.Duration `yaml:"ramp_duration"`
	RampTick     time.Duration `yaml:"ramp_tick"`
	// RampEasing is one of linear, out-quad or in-out-quad.
	RampEasing        string        `yaml:"ramp_easing"`
	BootDelay         time.Duration `yaml:"boot_delay"`
	HookTimeout       time.Duration `yaml:"hook_timeout"`
	SceneLoadTimeout  time.Duration `yaml:"scene_load_timeout"`
	SceneLoadLatency  time.Duration `yaml:"scene_load_latency"`
	SaveInterval      time.Duration `yaml:"save_interval"`
	BroadcastInterval time.Duration `yaml:"broadcast_interval"`
	Scenes            SceneNames    `yaml:"scenes"`
}

type SceneNames struct {
	Boot     string `yaml:"boot"`
	MainMenu string `yaml:"main_menu"`
	Level    string `yaml:"level"`
}

// DefaultTuning returns the tuning used when no tuning file is given.
func DefaultTuning() Tuning {
	return Tuning{
		RampDuration:      time.Second,
		RampTick:          16 * time.Millisecond,
		RampEasing:        "out-quad",
		BootDelay:         time.Second,
		SceneLoadLatency:  100 * time.Millisecond,
		SaveInterval:      30 * time.Second,
		BroadcastInterval: 50 * time.Millisecond,
		Scenes: SceneNames{
			Boot:     "Boot",
			MainMenu: "MainMenu",
			Level:    "MiniGameLevel",
		},
	}
}

// Load reads the given .env files (".env" when none are given), parses the
// environment and then applies the tuning file, if any. Missing .env files
// are not an error.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				log.Debug("Env file %s not loaded: %v", file, err)
				continue
			}
			return nil, fmt.Errorf("failed to load env file %s: %v", file, err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse env: %w", err)
	}

	cfg.Tuning = DefaultTuning()
	if cfg.TuningFile != "" {
		tuning, err := LoadTuning(cfg.TuningFile)
		if err != nil {
			return nil, err
		}
		cfg.Tuning = tuning
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadTuning reads a YAML tuning file. Keys absent from the file keep
// their default value.
func LoadTuning(path string) (Tuning, error) {
	tuning := DefaultTuning()
	data, err := os.ReadFile(path)
	if err != nil {
		return tuning, fmt.Errorf("failed to read tuning file: %v", err)
	}
	if err := yaml.Unmarshal(data, &tuning); err != nil {
		return tuning, fmt.Errorf("failed to parse tuning file %s: %v", path, err)
	}
	return tuning, nil
}

func (c *Config) Validate() error {
	if _, err := log.ParseLogLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid GAMEFLOW_LOG_LEVEL: %v", err)
	}
	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		return fmt.Errorf("GAMEFLOW_TLS_CERT_FILE and GAMEFLOW_TLS_KEY_FILE must be set together")
	}
	return c.Tuning.Validate()
}

func (t Tuning) Validate() error {
	durations := []struct {
		name  string
		value time.Duration
	}{
		{"ramp_duration", t.RampDuration},
		{"ramp_tick", t.RampTick},
		{"boot_delay", t.BootDelay},
		{"hook_timeout", t.HookTimeout},
		{"scene_load_timeout", t.SceneLoadTimeout},
		{"scene_load_latency", t.SceneLoadLatency},
		{"save_interval", t.SaveInterval},
		{"broadcast_interval", t.BroadcastInterval},
	}
	for _, d := range durations {
		if d.value < 0 {
			return fmt.Errorf("invalid tuning: %s must not be negative", d.name)
		}
	}
	if t.RampTick == 0 {
		return fmt.Errorf("invalid tuning: ramp_tick must be positive")
	}
	if _, err := timeramp.ParseEase(t.RampEasing); err != nil {
		return fmt.Errorf("invalid tuning: ramp_easing: %v", err)
	}
	if t.Scenes.Boot == "" || t.Scenes.MainMenu == "" || t.Scenes.Level == "" {
		return fmt.Errorf("invalid tuning: every scene name must be set")
	}
	return nil
}
