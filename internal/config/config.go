// Package config loads the VisionAid runtime configuration from YAML, with
// defaults for every section and environment expansion for secrets.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/Rajvardhan-Desai/vision-aid/internal/logging"
)

// Config represents the main configuration
type Config struct {
	Version   string           `yaml:"version"`
	Logging   *logging.Config  `yaml:"logging"`
	Speech    *SpeechConfig    `yaml:"speech"`
	Voice     *VoiceConfig     `yaml:"voice"`
	Detection *DetectionConfig `yaml:"detection"`
	Ranging   *RangingConfig   `yaml:"ranging"`
	Faces     *FacesConfig     `yaml:"faces"`
	Email     *EmailConfig     `yaml:"email"`
	History   *HistoryConfig   `yaml:"history"`
	Remote    *RemoteConfig    `yaml:"remote"`
	Shutdown  *ShutdownConfig  `yaml:"shutdown"`
}

// SpeechConfig holds speech synthesis settings
type SpeechConfig struct {
	Volume       int `yaml:"volume"`         // espeak amplitude, 0-100
	Rate         int `yaml:"rate"`           // words per minute
	PopTimeoutMs int `yaml:"pop_timeout_ms"` // dispatcher queue wait per cycle
}

// VoiceConfig holds voice command settings
type VoiceConfig struct {
	WakeWord             string `yaml:"wake_word"`
	ConfirmWindowSeconds int    `yaml:"confirm_window_seconds"`
}

// DetectionConfig holds object and currency detection settings
type DetectionConfig struct {
	Threshold             float64 `yaml:"threshold"`
	CurrencyThreshold     float64 `yaml:"currency_threshold"`
	GridSize              int     `yaml:"grid_size"`
	RequiredFrames        int     `yaml:"required_frames"`
	CurrencyWindowSeconds int     `yaml:"currency_window_seconds"`
	AlertAll              bool    `yaml:"alert_all"`
}

// RangingConfig holds obstacle ranging settings
type RangingConfig struct {
	IntervalMs int `yaml:"interval_ms"`
	WindowSize int `yaml:"window_size"`
}

// FacesConfig holds face recognition settings
type FacesConfig struct {
	IntervalMs int     `yaml:"interval_ms"`
	Threshold  float64 `yaml:"threshold"`
}

// EmailConfig holds emergency contact email settings. Secrets come from the
// environment (see LoadEnv), referenced as ${VAR} in the YAML.
type EmailConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Schedule string `yaml:"schedule"`
	Timezone string `yaml:"timezone"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	From     string `yaml:"from"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Contact  string `yaml:"contact"`
}

// HistoryConfig holds announcement log settings
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// RemoteConfig holds caregiver feed settings
type RemoteConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// ShutdownConfig holds shutdown timing settings
type ShutdownConfig struct {
	JoinGraceSeconds     int `yaml:"join_grace_seconds"`
	DrainDeadlineSeconds int `yaml:"drain_deadline_seconds"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Version: "1.0",
		Logging: logging.DefaultConfig(),
		Speech: &SpeechConfig{
			Volume:       80,
			Rate:         150,
			PopTimeoutMs: 200,
		},
		Voice: &VoiceConfig{
			WakeWord:             "assistant",
			ConfirmWindowSeconds: 10,
		},
		Detection: &DetectionConfig{
			Threshold:             0.5,
			CurrencyThreshold:     0.85,
			GridSize:              50,
			RequiredFrames:        3,
			CurrencyWindowSeconds: 60,
		},
		Ranging: &RangingConfig{
			IntervalMs: 100,
			WindowSize: 7,
		},
		Faces: &FacesConfig{
			IntervalMs: 500,
			Threshold:  0.55,
		},
		Email: &EmailConfig{
			Enabled:  false,
			Schedule: "*/30 * * * *",
			Timezone: "UTC",
			Port:     587,
		},
		History: &HistoryConfig{
			Enabled: true,
			Path:    filepath.Join(homeDir, ".visionaid", "data"),
		},
		Remote: &RemoteConfig{
			Enabled: false,
			Addr:    "127.0.0.1:7180",
		},
		Shutdown: &ShutdownConfig{
			JoinGraceSeconds:     2,
			DrainDeadlineSeconds: 5,
		},
	}
}

// LoadEnv loads a .env file if one exists next to the config, making SMTP
// credentials available for ${VAR} expansion. A missing .env is not an
// error.
func LoadEnv(configPath string) {
	envPath := filepath.Join(filepath.Dir(configPath), ".env")
	if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
		logging.Warn("failed to load .env", "path", envPath, "error", err)
	}
}

// Load loads configuration from a file
func Load(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil // Return defaults if no config file
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	if err := yaml.Unmarshal([]byte(expanded), config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if config.History != nil {
		config.History.Path = expandPath(config.History.Path)
	}

	return config, nil
}

// Save saves configuration to a file
func Save(config *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// DefaultConfigPath returns the default configuration path
func DefaultConfigPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".visionaid", "config.yaml")
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[1:])
	}
	return path
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Speech == nil {
		return fmt.Errorf("speech configuration is required")
	}
	if c.Speech.Volume < 0 || c.Speech.Volume > 100 {
		return fmt.Errorf("invalid speech volume: %d", c.Speech.Volume)
	}
	if c.Voice != nil && c.Voice.WakeWord == "" {
		return fmt.Errorf("wake word cannot be empty")
	}
	if c.Email != nil && c.Email.Enabled {
		if c.Email.Host == "" || c.Email.Contact == "" {
			return fmt.Errorf("email host and contact are required when email is enabled")
		}
		if c.Email.Port < 1 || c.Email.Port > 65535 {
			return fmt.Errorf("invalid smtp port: %d", c.Email.Port)
		}
	}
	if c.Remote != nil && c.Remote.Enabled && c.Remote.Addr == "" {
		return fmt.Errorf("remote addr is required when the feed is enabled")
	}
	return nil
}

// ConfirmWindow returns the voice confirmation window as a duration.
func (c *Config) ConfirmWindow() time.Duration {
	if c.Voice == nil || c.Voice.ConfirmWindowSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Voice.ConfirmWindowSeconds) * time.Second
}
