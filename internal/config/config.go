package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port     string `yaml:"port"`
	DBDSN    string `yaml:"db_dsn"`
	LogFile  string `yaml:"log_file"`
	LogLevel string `yaml:"log_level"`
	SeedDemo bool   `yaml:"seed_demo"`

	HoldDuration    time.Duration `yaml:"hold_duration"`
	SweepInterval   time.Duration `yaml:"sweep_interval"`
	SweepBatch      int           `yaml:"sweep_batch"`
	LockMode        string        `yaml:"lock_mode"` // wait | failfast
	LockWaitTimeout time.Duration `yaml:"lock_wait_timeout"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`

	NotifyMaxAttempts int           `yaml:"notify_max_attempts"`
	NotifyBaseDelay   time.Duration `yaml:"notify_base_delay"`
	KafkaBrokers      []string      `yaml:"kafka_brokers"`
	KafkaTopic        string        `yaml:"kafka_topic"`

	OTLPEndpoint      string `yaml:"otlp_endpoint"`
	AdminUser         string `yaml:"admin_user"`
	AdminPasswordHash string `yaml:"admin_password_hash"` // bcrypt; empty disables /admin
}

func Default() Config {
	return Config{
		Port:              "8080",
		DBDSN:             "stockhold.db", // sqlite file in project root
		LogLevel:          "info",
		SeedDemo:          true,
		HoldDuration:      2 * time.Minute,
		SweepInterval:     30 * time.Second,
		SweepBatch:        500,
		LockMode:          "wait",
		LockWaitTimeout:   5 * time.Second,
		RequestTimeout:    10 * time.Second,
		NotifyMaxAttempts: 3,
		NotifyBaseDelay:   time.Second,
		KafkaTopic:        "inventory-events",
		AdminUser:         "admin",
	}
}

// Load reads CONFIG_FILE (YAML) when set, then lets environment variables
// override individual keys.
func Load() Config {
	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			log.Printf("[warn] could not read config file %s: %v", path, err)
		}
	}
	applyEnv(&cfg)

	log.Printf("[config] PORT=%s DB_DSN=%s LOG_FILE=%s HOLD=%s SWEEP=%s LOCK=%s/%s KAFKA=%v",
		cfg.Port, cfg.DBDSN, cfg.LogFile, cfg.HoldDuration, cfg.SweepInterval,
		cfg.LockMode, cfg.LockWaitTimeout, cfg.KafkaBrokers)
	return cfg
}

func loadFile(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(b, cfg)
}

func applyEnv(cfg *Config) {
	str(&cfg.Port, "PORT")
	str(&cfg.DBDSN, "DB_DSN")
	str(&cfg.LogFile, "LOG_FILE")
	str(&cfg.LogLevel, "LOG_LEVEL")
	boolean(&cfg.SeedDemo, "SEED_DEMO")

	duration(&cfg.HoldDuration, "HOLD_DURATION")
	duration(&cfg.SweepInterval, "SWEEP_INTERVAL")
	integer(&cfg.SweepBatch, "SWEEP_BATCH")
	str(&cfg.LockMode, "LOCK_MODE")
	duration(&cfg.LockWaitTimeout, "LOCK_WAIT_TIMEOUT")
	duration(&cfg.RequestTimeout, "REQUEST_TIMEOUT")

	integer(&cfg.NotifyMaxAttempts, "NOTIFY_MAX_ATTEMPTS")
	duration(&cfg.NotifyBaseDelay, "NOTIFY_BASE_DELAY")
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.KafkaBrokers = nil
		for _, b := range strings.Split(v, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}
	str(&cfg.KafkaTopic, "KAFKA_TOPIC")

	str(&cfg.OTLPEndpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	str(&cfg.AdminUser, "ADMIN_USER")
	str(&cfg.AdminPasswordHash, "ADMIN_PASSWORD_HASH")
}

func str(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func boolean(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		} else {
			log.Printf("[warn] ignoring %s=%q: %v", key, v, err)
		}
	}
}

func integer(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		} else {
			log.Printf("[warn] ignoring %s=%q: %v", key, v, err)
		}
	}
}

func duration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		} else {
			log.Printf("[warn] ignoring %s=%q: %v", key, v, err)
		}
	}
}
