package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/claude/sleepbuddy/internal/synth"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	Logging   LoggingConfig   `yaml:"logging"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Sample    SampleConfig    `yaml:"sample"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

type AuthConfig struct {
	APIKey string `yaml:"api_key"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// AnalysisConfig controls classification of stored records.
type AnalysisConfig struct {
	ThresholdMultiplier float64 `yaml:"threshold_multiplier"`
	WindowDays          int     `yaml:"window_days"`
}

// SampleConfig holds the defaults of the synthetic data flow. A nil Seed
// draws a fresh one per run.
type SampleConfig struct {
	Days               int       `yaml:"days"`
	BaseSleepHours     float64   `yaml:"base_sleep_hours"`
	StdDevHours        float64   `yaml:"std_dev_hours"`
	NumAnomalies       int       `yaml:"num_anomalies"`
	AnomalyMultipliers []float64 `yaml:"anomaly_multipliers"`
	Seed               *uint64   `yaml:"seed"`
}

// Enabled reports whether a database is configured. Without one the server
// still analyzes uploaded and synthetic data but cannot store records.
func (d DatabaseConfig) Enabled() bool {
	return d.Host != ""
}

// DSN returns a PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslmode)
}

// Default returns a Config with every optional field set.
func Default() *Config {
	return &Config{
		Server:    ServerConfig{Host: "0.0.0.0", Port: 8080},
		Tailscale: TailscaleConfig{Hostname: "sleepbuddy", StateDir: "tsnet-state"},
		Logging:   LoggingConfig{Level: "info"},
		Analysis:  AnalysisConfig{ThresholdMultiplier: 1.5, WindowDays: 7},
		Sample: SampleConfig{
			Days:               7,
			BaseSleepHours:     7.5,
			StdDevHours:        1.0,
			NumAnomalies:       2,
			AnomalyMultipliers: []float64{2.0, 0.1},
		},
	}
}

// Load reads config from a YAML file on top of Default, then applies
// environment variable overrides.
// Env vars use the prefix SLEEPBUDDY_ and underscore-separated paths:
//
//	SLEEPBUDDY_SERVER_HOST, SLEEPBUDDY_SERVER_PORT,
//	SLEEPBUDDY_DB_HOST, SLEEPBUDDY_DB_PORT, SLEEPBUDDY_DB_NAME,
//	SLEEPBUDDY_DB_USER, SLEEPBUDDY_DB_PASSWORD, SLEEPBUDDY_DB_SSLMODE,
//	SLEEPBUDDY_AUTH_API_KEY,
//	SLEEPBUDDY_TAILSCALE_ENABLED, SLEEPBUDDY_TAILSCALE_HOSTNAME,
//	SLEEPBUDDY_LOG_LEVEL, SLEEPBUDDY_LOG_JSON,
//	SLEEPBUDDY_ANALYSIS_THRESHOLD_MULTIPLIER, SLEEPBUDDY_ANALYSIS_WINDOW_DAYS,
//	SLEEPBUDDY_SAMPLE_SEED
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SLEEPBUDDY_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("SLEEPBUDDY_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SLEEPBUDDY_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("SLEEPBUDDY_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("SLEEPBUDDY_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("SLEEPBUDDY_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("SLEEPBUDDY_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("SLEEPBUDDY_DB_SSLMODE"); v != "" {
		cfg.Database.SSLMode = v
	}
	if v := os.Getenv("SLEEPBUDDY_AUTH_API_KEY"); v != "" {
		cfg.Auth.APIKey = v
	}
	if v := os.Getenv("SLEEPBUDDY_TAILSCALE_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Tailscale.Enabled = b
		}
	}
	if v := os.Getenv("SLEEPBUDDY_TAILSCALE_HOSTNAME"); v != "" {
		cfg.Tailscale.Hostname = v
	}
	if v := os.Getenv("SLEEPBUDDY_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SLEEPBUDDY_LOG_JSON"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Logging.JSON = b
		}
	}
	if v := os.Getenv("SLEEPBUDDY_ANALYSIS_THRESHOLD_MULTIPLIER"); v != "" {
		if m, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Analysis.ThresholdMultiplier = m
		}
	}
	if v := os.Getenv("SLEEPBUDDY_ANALYSIS_WINDOW_DAYS"); v != "" {
		if d, err := strconv.Atoi(v); err == nil {
			cfg.Analysis.WindowDays = d
		}
	}
	if v := os.Getenv("SLEEPBUDDY_SAMPLE_SEED"); v != "" {
		if seed, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Sample.Seed = &seed
		}
	}
}

func (c *Config) validate() error {
	if c.Server.Port == 0 {
		return fmt.Errorf("server.port is required")
	}
	if c.Database.Enabled() {
		if c.Database.Port == 0 {
			return fmt.Errorf("database.port is required")
		}
		if c.Database.Name == "" {
			return fmt.Errorf("database.name is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database.user is required")
		}
		// Ingest writes to the database and is the only authenticated route.
		if c.Auth.APIKey == "" {
			return fmt.Errorf("auth.api_key is required when a database is configured")
		}
	}
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}
	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	if !positive(c.Analysis.ThresholdMultiplier) {
		return fmt.Errorf("analysis.threshold_multiplier must be positive")
	}
	if c.Analysis.WindowDays <= 0 {
		return fmt.Errorf("analysis.window_days must be positive")
	}
	if c.Sample.Days <= 0 || c.Sample.Days > synth.MaxDays {
		return fmt.Errorf("sample.days must be between 1 and %d", synth.MaxDays)
	}
	if !positive(c.Sample.BaseSleepHours) {
		return fmt.Errorf("sample.base_sleep_hours must be positive")
	}
	if c.Sample.StdDevHours < 0 || math.IsNaN(c.Sample.StdDevHours) {
		return fmt.Errorf("sample.std_dev_hours must not be negative")
	}
	if c.Sample.NumAnomalies < 0 {
		return fmt.Errorf("sample.num_anomalies must not be negative")
	}
	for i, m := range c.Sample.AnomalyMultipliers {
		if !positive(m) {
			return fmt.Errorf("sample.anomaly_multipliers[%d] must be positive", i)
		}
	}
	return nil
}

func positive(f float64) bool {
	return f > 0 && !math.IsInf(f, 0)
}
