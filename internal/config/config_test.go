package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Voice.WakeWord != "assistant" {
		t.Errorf("wake word = %q, want assistant", cfg.Voice.WakeWord)
	}
	if cfg.Detection.CurrencyThreshold != 0.85 {
		t.Errorf("currency threshold = %v, want 0.85", cfg.Detection.CurrencyThreshold)
	}
	if cfg.Shutdown.JoinGraceSeconds != 2 {
		t.Errorf("join grace = %d, want 2", cfg.Shutdown.JoinGraceSeconds)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
voice:
  wake_word: "helper"
  confirm_window_seconds: 5
speech:
  volume: 90
  rate: 160
  pop_timeout_ms: 200
detection:
  threshold: 0.6
  currency_threshold: 0.85
  grid_size: 50
  required_frames: 3
  currency_window_seconds: 60
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Voice.WakeWord != "helper" {
		t.Errorf("wake word = %q, want helper", cfg.Voice.WakeWord)
	}
	if cfg.Speech.Volume != 90 {
		t.Errorf("volume = %d, want 90", cfg.Speech.Volume)
	}
	if cfg.Detection.Threshold != 0.6 {
		t.Errorf("threshold = %v, want 0.6", cfg.Detection.Threshold)
	}
	// Untouched section keeps defaults.
	if cfg.Ranging.WindowSize != 7 {
		t.Errorf("ranging window = %d, want default 7", cfg.Ranging.WindowSize)
	}
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("SMTP_PASSWORD", "hunter2")
	t.Setenv("EMERGENCY_CONTACT", "contact@example.com")

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
email:
  enabled: true
  host: smtp.example.com
  port: 587
  password: ${SMTP_PASSWORD}
  contact: ${EMERGENCY_CONTACT}
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Email.Password != "hunter2" {
		t.Errorf("password = %q, env not expanded", cfg.Email.Password)
	}
	if cfg.Email.Contact != "contact@example.com" {
		t.Errorf("contact = %q, env not expanded", cfg.Email.Contact)
	}
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	cfg.Speech.Volume = 150
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for out-of-range volume")
	}
	cfg.Speech.Volume = 80

	cfg.Voice.WakeWord = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for empty wake word")
	}
	cfg.Voice.WakeWord = "assistant"

	cfg.Email.Enabled = true
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for enabled email without host/contact")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	cfg := DefaultConfig()
	cfg.Voice.WakeWord = "vision"

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Voice.WakeWord != "vision" {
		t.Errorf("wake word = %q after round trip", loaded.Voice.WakeWord)
	}
}
