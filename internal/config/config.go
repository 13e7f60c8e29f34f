package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/emergency-vehicle-system/service-dispatch/internal/common/database"
)

// Station source kinds.
const (
	StationSourceStatic   = "static"
	StationSourcePostgres = "postgres"
)

// KafkaConfig holds broker settings. Empty Brokers disables messaging.
type KafkaConfig struct {
	Brokers     []string
	GroupPrefix string
}

// DetectionConfig tunes the detection normalizer.
type DetectionConfig struct {
	Threshold float64
	Selection string
}

// StationConfig selects the station source and refresh cadence.
type StationConfig struct {
	Source          string
	ResolverPolicy  string
	RefreshInterval time.Duration
}

// RoutingConfig points at the external routing collaborator.
type RoutingConfig struct {
	URL       string
	Timeout   time.Duration
	RateLimit float64
}

// ServiceConfig holds all configuration for the dispatch service.
type ServiceConfig struct {
	Port        string
	AppEnv      string
	DBConfig    database.PostgresConfig
	KafkaConfig KafkaConfig
	Detection   DetectionConfig
	Stations    StationConfig
	Routing     RoutingConfig
}

// Load reads configuration from DISPATCH_* environment variables and an
// optional config.yaml.
func Load() (*ServiceConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("DISPATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	setDefaults(v)
	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service_port", ":8080")
	v.SetDefault("app_env", "development")

	v.SetDefault("db_host", "localhost")
	v.SetDefault("db_port", "5432")
	v.SetDefault("db_user", "postgres")
	v.SetDefault("db_password", "postgres")
	v.SetDefault("db_name", "emergency_dispatch")
	v.SetDefault("db_sslmode", "disable")

	v.SetDefault("kafka_brokers", "")
	v.SetDefault("kafka_group_prefix", "")

	v.SetDefault("detection_threshold", 0.4)
	v.SetDefault("detection_selection", "first")

	v.SetDefault("station_source", StationSourceStatic)
	v.SetDefault("resolver_policy", "nearest")
	v.SetDefault("station_refresh_interval", "5m")

	v.SetDefault("routing_url", "")
	v.SetDefault("routing_timeout", "10s")
	v.SetDefault("routing_rate_limit", 0)
}

func fromViper(v *viper.Viper) (*ServiceConfig, error) {
	port := v.GetString("service_port")
	if !strings.HasPrefix(port, ":") && !strings.Contains(port, ":") {
		port = ":" + port
	}

	cfg := &ServiceConfig{
		Port:   port,
		AppEnv: v.GetString("app_env"),
		DBConfig: database.PostgresConfig{
			Host:     v.GetString("db_host"),
			Port:     v.GetString("db_port"),
			User:     v.GetString("db_user"),
			Password: v.GetString("db_password"),
			DBName:   v.GetString("db_name"),
			SSLMode:  v.GetString("db_sslmode"),
		},
		KafkaConfig: KafkaConfig{
			Brokers:     splitList(v.GetString("kafka_brokers")),
			GroupPrefix: v.GetString("kafka_group_prefix"),
		},
		Detection: DetectionConfig{
			Threshold: v.GetFloat64("detection_threshold"),
			Selection: strings.ToLower(v.GetString("detection_selection")),
		},
		Stations: StationConfig{
			Source:          strings.ToLower(v.GetString("station_source")),
			ResolverPolicy:  strings.ToLower(v.GetString("resolver_policy")),
			RefreshInterval: v.GetDuration("station_refresh_interval"),
		},
		Routing: RoutingConfig{
			URL:       v.GetString("routing_url"),
			Timeout:   v.GetDuration("routing_timeout"),
			RateLimit: v.GetFloat64("routing_rate_limit"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot run with.
func (c *ServiceConfig) Validate() error {
	if c.Detection.Threshold < 0 || c.Detection.Threshold > 1 {
		return fmt.Errorf("detection threshold must be within [0,1], got %v", c.Detection.Threshold)
	}
	switch c.Detection.Selection {
	case "first", "best":
	default:
		return fmt.Errorf("unknown detection selection %q", c.Detection.Selection)
	}
	switch c.Stations.ResolverPolicy {
	case "nearest", "first":
	default:
		return fmt.Errorf("unknown resolver policy %q", c.Stations.ResolverPolicy)
	}
	switch c.Stations.Source {
	case StationSourceStatic, StationSourcePostgres:
	default:
		return fmt.Errorf("unknown station source %q", c.Stations.Source)
	}
	if c.Routing.RateLimit < 0 {
		return fmt.Errorf("routing rate limit cannot be negative")
	}
	if c.Stations.RefreshInterval < 0 {
		return fmt.Errorf("station refresh interval cannot be negative")
	}
	return nil
}

// MessagingEnabled reports whether Kafka brokers are configured.
func (c *ServiceConfig) MessagingEnabled() bool {
	return len(c.KafkaConfig.Brokers) > 0
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
