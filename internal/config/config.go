package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// TrackingConfig covers the persistent channel to the tracking service.
type TrackingConfig struct {
	Endpoint             string `yaml:"endpoint" validate:"required,url"`
	ReconnectWaitSeconds int    `yaml:"reconnect_wait_seconds" validate:"gte=0"`
	RouteBufferCapacity  int    `yaml:"route_buffer_capacity" validate:"gte=0"`
}

// SamplingConfig governs the carrier-side position stream.
type SamplingConfig struct {
	IntervalSeconds    int `yaml:"interval_seconds" validate:"gte=0"`
	ReadTimeoutSeconds int `yaml:"read_timeout_seconds" validate:"gte=0"`
}

// GPSConfig selects and configures the device location provider.
type GPSConfig struct {
	Driver   string `yaml:"driver" validate:"omitempty,oneof=nmea sim none"`
	PortPath string `yaml:"port_path"`
	BaudRate int    `yaml:"baud_rate" validate:"gte=0"`
}

// BackendConfig points at the marketplace REST API.
type BackendConfig struct {
	BaseURL        string `yaml:"base_url" validate:"omitempty,url"`
	TimeoutSeconds int    `yaml:"timeout_seconds" validate:"gte=0"`
}

// WakeLockConfig controls the stay-awake resource held during tracking.
type WakeLockConfig struct {
	Enabled bool   `yaml:"enabled"`
	Name    string `yaml:"name"`
}

// WatchConfig configures the observer agent's local status endpoint.
type WatchConfig struct {
	Port int `yaml:"port" validate:"gte=0,lte=65535"`
}

type Config struct {
	Tracking TrackingConfig `yaml:"tracking" validate:"required"`
	Sampling SamplingConfig `yaml:"sampling"`
	GPS      GPSConfig      `yaml:"gps"`
	Backend  BackendConfig  `yaml:"backend"`
	WakeLock WakeLockConfig `yaml:"wakelock"`
	Watch    WatchConfig    `yaml:"watch"`
}

// LoadFromFile reads a YAML config, applies defaults, and validates it.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// applyDefaults fills in anything left unset.
func applyDefaults(cfg *Config) {
	if cfg.Tracking.ReconnectWaitSeconds == 0 {
		cfg.Tracking.ReconnectWaitSeconds = 3
	}
	if cfg.Tracking.RouteBufferCapacity == 0 {
		cfg.Tracking.RouteBufferCapacity = 2000
	}

	if cfg.Sampling.IntervalSeconds == 0 {
		cfg.Sampling.IntervalSeconds = 15
	}
	if cfg.Sampling.ReadTimeoutSeconds == 0 {
		cfg.Sampling.ReadTimeoutSeconds = 10
	}

	if cfg.GPS.Driver == "" {
		cfg.GPS.Driver = "none"
	}
	if cfg.GPS.BaudRate == 0 {
		cfg.GPS.BaudRate = 9600
	}

	if cfg.Backend.TimeoutSeconds == 0 {
		cfg.Backend.TimeoutSeconds = 10
	}

	if cfg.WakeLock.Name == "" {
		cfg.WakeLock.Name = "delivery-track"
	}

	if cfg.Watch.Port == 0 {
		cfg.Watch.Port = 8090
	}
}
