// Package config loads triage settings from defaults, an optional YAML file
// and TRIAGE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/example/triage/internal/core/escalation"
	"github.com/example/triage/internal/db"
)

// EnvPrefix prefixes every environment override, e.g. TRIAGE_DB_PATH.
const EnvPrefix = "TRIAGE"

// Config is the full runtime configuration.
type Config struct {
	DB         DBConfig         `mapstructure:"db"`
	Log        LogConfig        `mapstructure:"log"`
	Patterns   FileConfig       `mapstructure:"patterns"`
	Contacts   FileConfig       `mapstructure:"contacts"`
	Escalation EscalationConfig `mapstructure:"escalation"`
	Sweep      SweepConfig      `mapstructure:"sweep"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Audit      AuditConfig      `mapstructure:"audit"`
}

// DBConfig holds sqlite settings.
type DBConfig struct {
	Path string `mapstructure:"path"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// FileConfig points at an optional YAML data file. Empty means the embedded default.
type FileConfig struct {
	File string `mapstructure:"file"`
}

// EscalationConfig holds tier selection and notification settings.
type EscalationConfig struct {
	NotifyTier    string                    `mapstructure:"notify_tier"`
	NotifyTimeout time.Duration             `mapstructure:"notify_timeout"`
	Thresholds    escalation.TierThresholds `mapstructure:"thresholds"`
}

// SweepConfig holds timeout sweep settings.
type SweepConfig struct {
	Interval          time.Duration `mapstructure:"interval"`
	RenotifyPerMinute int           `mapstructure:"renotify_per_minute"`
	SLA               SLAConfig     `mapstructure:"sla"`
}

// SLAConfig is the response window per tier.
type SLAConfig struct {
	PeerSupport       time.Duration `mapstructure:"peer_support"`
	CrisisCounselor   time.Duration `mapstructure:"crisis_counselor"`
	EmergencyTeam     time.Duration `mapstructure:"emergency_team"`
	EmergencyServices time.Duration `mapstructure:"emergency_services"`
}

// RedisConfig enables the redis notifier when Addr is set.
type RedisConfig struct {
	Addr    string `mapstructure:"addr"`
	Channel string `mapstructure:"channel"`
}

// MetricsConfig holds the metrics listener address used by serve.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// AuditConfig holds audit log retention.
type AuditConfig struct {
	RetentionDays int `mapstructure:"retention_days"`
}

// SLA converts the configured windows.
func (c SLAConfig) SLA() escalation.SLA {
	return escalation.SLA{
		escalation.TierPeerSupport:       c.PeerSupport,
		escalation.TierCrisisCounselor:   c.CrisisCounselor,
		escalation.TierEmergencyTeam:     c.EmergencyTeam,
		escalation.TierEmergencyServices: c.EmergencyServices,
	}
}

// Load reads the configuration. path wins over $TRIAGE_CONFIG; with neither set,
// ~/.triage/config.yaml is read if it exists.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("yaml")
	if path == "" {
		path = os.Getenv(EnvPrefix + "_CONFIG")
	}
	explicit := path != ""
	if explicit {
		v.SetConfigFile(path)
	} else if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".triage"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration with no file or environment applied.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	dbPath, err := db.DefaultPath()
	if err != nil {
		dbPath = "triage.db"
	}
	th := escalation.DefaultTierThresholds()
	sla := escalation.DefaultSLA()

	v.SetDefault("db.path", dbPath)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
	v.SetDefault("patterns.file", "")
	v.SetDefault("contacts.file", "")
	v.SetDefault("escalation.notify_tier", escalation.TierCrisisCounselor.String())
	v.SetDefault("escalation.notify_timeout", 10*time.Second)
	v.SetDefault("escalation.thresholds.crisis_counselor", th.CrisisCounselor)
	v.SetDefault("escalation.thresholds.emergency_team", th.EmergencyTeam)
	v.SetDefault("escalation.thresholds.emergency_services", th.EmergencyServices)
	v.SetDefault("sweep.interval", 30*time.Second)
	v.SetDefault("sweep.renotify_per_minute", 30)
	v.SetDefault("sweep.sla.peer_support", sla[escalation.TierPeerSupport])
	v.SetDefault("sweep.sla.crisis_counselor", sla[escalation.TierCrisisCounselor])
	v.SetDefault("sweep.sla.emergency_team", sla[escalation.TierEmergencyTeam])
	v.SetDefault("sweep.sla.emergency_services", sla[escalation.TierEmergencyServices])
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.channel", "triage:escalations")
	v.SetDefault("metrics.addr", ":9090")
	v.SetDefault("audit.retention_days", 90)
}

// NotifyTier parses the configured notification tier.
func (c *Config) NotifyTier() (escalation.Tier, error) {
	return escalation.ParseTier(c.Escalation.NotifyTier)
}

// Validate checks values that would otherwise fail deep inside a service.
func (c *Config) Validate() error {
	if c.DB.Path == "" {
		return errors.New("db.path must be set")
	}
	if _, err := c.NotifyTier(); err != nil {
		return fmt.Errorf("invalid escalation.notify_tier: %w", err)
	}
	if c.Escalation.NotifyTimeout <= 0 {
		return fmt.Errorf("escalation.notify_timeout must be positive, got %s", c.Escalation.NotifyTimeout)
	}
	if err := c.Escalation.Thresholds.Validate(); err != nil {
		return fmt.Errorf("invalid escalation.thresholds: %w", err)
	}
	if c.Sweep.Interval <= 0 {
		return fmt.Errorf("sweep.interval must be positive, got %s", c.Sweep.Interval)
	}
	if c.Sweep.RenotifyPerMinute < 1 {
		return fmt.Errorf("sweep.renotify_per_minute must be at least 1, got %d", c.Sweep.RenotifyPerMinute)
	}
	if err := c.Sweep.SLA.SLA().Validate(); err != nil {
		return fmt.Errorf("invalid sweep.sla: %w", err)
	}
	if c.Audit.RetentionDays < 1 {
		return fmt.Errorf("audit.retention_days must be at least 1, got %d", c.Audit.RetentionDays)
	}
	return nil
}
