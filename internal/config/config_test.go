package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"stockhold/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	cfg := config.Load()
	if cfg.HoldDuration != 2*time.Minute || cfg.SweepInterval != 30*time.Second {
		t.Fatalf("bad hold/sweep defaults: %+v", cfg)
	}
	if cfg.NotifyMaxAttempts != 3 || cfg.LockMode != "wait" {
		t.Fatalf("bad notifier/lock defaults: %+v", cfg)
	}
}

func TestLoadFileThenEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stockhold.yaml")
	yml := `
port: "9000"
hold_duration: 45s
sweep_interval: 1s
lock_mode: failfast
kafka_brokers: ["k1:9092", "k2:9092"]
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "9100")
	t.Setenv("SWEEP_INTERVAL", "250ms")

	cfg := config.Load()
	if cfg.Port != "9100" {
		t.Fatalf("env should win over file, got port=%s", cfg.Port)
	}
	if cfg.HoldDuration != 45*time.Second {
		t.Fatalf("want hold 45s from file, got %s", cfg.HoldDuration)
	}
	if cfg.SweepInterval != 250*time.Millisecond {
		t.Fatalf("want sweep 250ms from env, got %s", cfg.SweepInterval)
	}
	if cfg.LockMode != "failfast" || len(cfg.KafkaBrokers) != 2 {
		t.Fatalf("file values lost: %+v", cfg)
	}
	// untouched keys keep defaults
	if cfg.LockWaitTimeout != 5*time.Second {
		t.Fatalf("want default lock wait, got %s", cfg.LockWaitTimeout)
	}
}

func TestLoadIgnoresMalformedEnv(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("HOLD_DURATION", "soon")
	t.Setenv("KAFKA_BROKERS", " a:1 , ,b:2")
	cfg := config.Load()
	if cfg.HoldDuration != 2*time.Minute {
		t.Fatalf("malformed duration should be ignored, got %s", cfg.HoldDuration)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[0] != "a:1" {
		t.Fatalf("bad broker split: %v", cfg.KafkaBrokers)
	}
}
