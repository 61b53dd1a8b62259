// Package config loads and validates application configuration from YAML
// files and environment variables using viper.
package config

import (
	"fmt"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/netpulse/netpulse/pkg/models"
)

// Config represents the application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Metrics    MetricsConfig    `yaml:"metrics" mapstructure:"metrics"`
	Logging    LoggingConfig    `yaml:"logging" mapstructure:"logging"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Alerting   AlertingConfig   `yaml:"alerting" mapstructure:"alerting"`
	Storage    StorageConfig    `yaml:"storage" mapstructure:"storage"`
	Broadcast  BroadcastConfig  `yaml:"broadcast" mapstructure:"broadcast"`
	Reports    ReportsConfig    `yaml:"reports" mapstructure:"reports"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port        string   `yaml:"port" mapstructure:"port"`
	Host        string   `yaml:"host" mapstructure:"host"`
	CORSOrigins []string `yaml:"corsOrigins" mapstructure:"corsOrigins"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	Enabled               bool   `yaml:"enabled" mapstructure:"enabled"`
	Path                  string `yaml:"path" mapstructure:"path"`
	IncludeProcessMetrics bool   `yaml:"includeProcessMetrics" mapstructure:"includeProcessMetrics"`
	IncludeGoMetrics      bool   `yaml:"includeGoMetrics" mapstructure:"includeGoMetrics"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string            `yaml:"level" mapstructure:"level"`
	Format string            `yaml:"format" mapstructure:"format"`
	Output string            `yaml:"output" mapstructure:"output"`
	Fields map[string]string `yaml:"fields" mapstructure:"fields"`
}

// MonitoringConfig contains probe scheduling and classification settings
type MonitoringConfig struct {
	LatencyThresholdMS float64         `yaml:"latencyThresholdMs" mapstructure:"latencyThresholdMs"`
	DefaultInterval    time.Duration   `yaml:"defaultInterval" mapstructure:"defaultInterval"`
	PingTimeout        time.Duration   `yaml:"pingTimeout" mapstructure:"pingTimeout"`
	WindowSize         int             `yaml:"windowSize" mapstructure:"windowSize"`
	Targets            []models.Target `yaml:"targets" mapstructure:"targets"`
}

// AlertingConfig contains alert dispatch configuration
type AlertingConfig struct {
	Enabled  bool          `yaml:"enabled" mapstructure:"enabled"`
	Cooldown time.Duration `yaml:"cooldown" mapstructure:"cooldown"`
	Grouping string        `yaml:"grouping" mapstructure:"grouping"` // category or subject
	Email    EmailConfig   `yaml:"email" mapstructure:"email"`
	Webhook  WebhookConfig `yaml:"webhook" mapstructure:"webhook"`
}

// EmailConfig contains SMTP notifier settings
type EmailConfig struct {
	Enabled    bool     `yaml:"enabled" mapstructure:"enabled"`
	SMTPServer string   `yaml:"smtpServer" mapstructure:"smtpServer"`
	SMTPPort   int      `yaml:"smtpPort" mapstructure:"smtpPort"`
	Sender     string   `yaml:"sender" mapstructure:"sender"`
	Password   string   `yaml:"password" mapstructure:"password"`
	Recipients []string `yaml:"recipients" mapstructure:"recipients"`
}

// WebhookConfig contains webhook notifier settings
type WebhookConfig struct {
	Enabled bool          `yaml:"enabled" mapstructure:"enabled"`
	URL     string        `yaml:"url" mapstructure:"url"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// StorageConfig contains the persistence backend configuration
type StorageConfig struct {
	Backend       string        `yaml:"backend" mapstructure:"backend"` // badger, postgres, or none
	Path          string        `yaml:"path" mapstructure:"path"`
	PostgresURL   string        `yaml:"postgresUrl" mapstructure:"postgresUrl"`
	RetentionDays int           `yaml:"retentionDays" mapstructure:"retentionDays"`
	PruneInterval time.Duration `yaml:"pruneInterval" mapstructure:"pruneInterval"`
}

// BroadcastConfig contains dashboard broadcast settings
type BroadcastConfig struct {
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`
	TailSize int           `yaml:"tailSize" mapstructure:"tailSize"`
}

// ReportsConfig contains daily report aggregation settings
type ReportsConfig struct {
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`
}

// Grouping policy values for alerting.grouping.
const (
	GroupingCategory = "category"
	GroupingSubject  = "subject"
)

// LoadConfig loads configuration from file
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("server.port", "8765")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.corsOrigins", []string{"http://localhost:3000", "http://localhost:8765"})
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.includeProcessMetrics", true)
	v.SetDefault("metrics.includeGoMetrics", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("monitoring.latencyThresholdMs", 150.0)
	v.SetDefault("monitoring.defaultInterval", "2s")
	v.SetDefault("monitoring.pingTimeout", "5s")
	v.SetDefault("monitoring.windowSize", 1000)
	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.cooldown", "5m")
	v.SetDefault("alerting.grouping", GroupingCategory)
	v.SetDefault("alerting.email.smtpPort", 587)
	v.SetDefault("alerting.webhook.timeout", "10s")
	v.SetDefault("storage.backend", "badger")
	v.SetDefault("storage.path", "./data")
	v.SetDefault("storage.retentionDays", 30)
	v.SetDefault("storage.pruneInterval", "1h")
	v.SetDefault("broadcast.interval", "1s")
	v.SetDefault("broadcast.tailSize", 50)
	v.SetDefault("reports.interval", "24h")

	// Enable environment variable substitution
	v.AutomaticEnv()

	// Set config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/netpulse")
	}

	// Read config
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	// The text-unmarshaller hook lets models.Duration fields (per-target
	// intervals) decode from strings like "30s"
	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		mapstructure.TextUnmarshallerHookFunc(),
	))

	var config Config
	if err := v.Unmarshal(&config, decodeHook); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Apply defaults to targets
	for i := range config.Monitoring.Targets {
		target := &config.Monitoring.Targets[i]
		if target.Interval == 0 {
			target.Interval = models.Duration(config.Monitoring.DefaultInterval)
		}
		if target.Enabled == nil {
			enabled := true
			target.Enabled = &enabled
		}
	}

	return &config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}

	if c.Monitoring.LatencyThresholdMS <= 0 {
		return fmt.Errorf("monitoring.latencyThresholdMs must be positive")
	}
	if c.Monitoring.WindowSize <= 0 {
		return fmt.Errorf("monitoring.windowSize must be positive")
	}
	if c.Monitoring.PingTimeout <= 0 {
		return fmt.Errorf("monitoring.pingTimeout must be positive")
	}
	if c.Monitoring.PingTimeout > 5*time.Minute {
		return fmt.Errorf("monitoring.pingTimeout too long (max 5 minutes): %v", c.Monitoring.PingTimeout)
	}
	if c.Monitoring.DefaultInterval < time.Second {
		return fmt.Errorf("monitoring.defaultInterval too short (min 1 second): %v", c.Monitoring.DefaultInterval)
	}

	if len(c.Monitoring.Targets) == 0 {
		return fmt.Errorf("monitoring.targets must define at least one target")
	}

	targetNames := make(map[string]bool)
	for _, target := range c.Monitoring.Targets {
		if target.Name == "" {
			return fmt.Errorf("target name is required")
		}
		if target.Address == "" {
			return fmt.Errorf("target %s requires address", target.Name)
		}
		if targetNames[target.Name] {
			return fmt.Errorf("duplicate target name: %s", target.Name)
		}
		targetNames[target.Name] = true

		if target.Interval.ToDuration() < 0 {
			return fmt.Errorf("target %s has negative interval: %v", target.Name, target.Interval)
		}
		if target.Interval.ToDuration() > 0 && target.Interval.ToDuration() < time.Second {
			return fmt.Errorf("target %s interval too short (min 1 second): %v", target.Name, target.Interval)
		}
	}

	if c.Alerting.Enabled {
		if c.Alerting.Cooldown < 0 {
			return fmt.Errorf("alerting.cooldown cannot be negative")
		}
		switch c.Alerting.Grouping {
		case GroupingCategory, GroupingSubject:
		default:
			return fmt.Errorf("invalid alerting.grouping: %s", c.Alerting.Grouping)
		}
		if c.Alerting.Email.Enabled {
			if c.Alerting.Email.SMTPServer == "" {
				return fmt.Errorf("alerting.email.smtpServer is required when email alerts are enabled")
			}
			if c.Alerting.Email.Sender == "" {
				return fmt.Errorf("alerting.email.sender is required when email alerts are enabled")
			}
			if len(c.Alerting.Email.Recipients) == 0 {
				return fmt.Errorf("alerting.email.recipients is required when email alerts are enabled")
			}
		}
		if c.Alerting.Webhook.Enabled && c.Alerting.Webhook.URL == "" {
			return fmt.Errorf("alerting.webhook.url is required when webhook alerts are enabled")
		}
	}

	switch c.Storage.Backend {
	case "badger":
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for badger backend")
		}
	case "postgres":
		if c.Storage.PostgresURL == "" {
			return fmt.Errorf("storage.postgresUrl is required for postgres backend")
		}
	case "none":
	default:
		return fmt.Errorf("invalid storage.backend: %s", c.Storage.Backend)
	}
	if c.Storage.RetentionDays < 0 {
		return fmt.Errorf("storage.retentionDays cannot be negative")
	}

	if c.Broadcast.Interval <= 0 {
		return fmt.Errorf("broadcast.interval must be positive")
	}
	if c.Broadcast.TailSize < 0 {
		return fmt.Errorf("broadcast.tailSize cannot be negative")
	}

	if c.Reports.Interval <= 0 {
		return fmt.Errorf("reports.interval must be positive")
	}

	return nil
}
