package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/qiniu/cloudmonitor/internal/alerting/model"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server      ServerConfig      `json:"server" yaml:"server"`
	Database    DatabaseConfig    `json:"database" yaml:"database"`
	Logging     LoggingConfig     `json:"logging" yaml:"logging"`
	Redis       RedisConfig       `json:"redis" yaml:"redis"`
	Monitor     MonitorConfig     `json:"monitor" yaml:"monitor"`
	Policy      PolicyConfig      `json:"policy" yaml:"policy"`
	Targets     []TargetConfig    `json:"targets" yaml:"targets"`
	Prometheus  PrometheusConfig  `json:"prometheus" yaml:"prometheus"`
	Notify      NotifyConfig      `json:"notify" yaml:"notify"`
	Remediation RemediationConfig `json:"remediation" yaml:"remediation"`
	Telemetry   TelemetryConfig   `json:"telemetry" yaml:"telemetry"`
}

type ServerConfig struct {
	BindAddr string `json:"bindAddr" yaml:"bindAddr"`
	Bearer   string `json:"bearer" yaml:"bearer"` // optional API token
}

type DatabaseConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	User     string `json:"user" yaml:"user"`
	Password string `json:"password" yaml:"password"`
	DBName   string `json:"dbname" yaml:"dbname"`
	SSLMode  string `json:"sslmode" yaml:"sslmode"`
}

// DSN renders a lib/pq connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

type LoggingConfig struct {
	Level   string `json:"level" yaml:"level"`
	Console bool   `json:"console" yaml:"console"`
}

type RedisConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Addr     string `json:"addr" yaml:"addr"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
}

type MonitorConfig struct {
	Interval               string  `json:"interval" yaml:"interval"` // tick cadence, e.g. "200ms"
	LogCapacity            int     `json:"logCapacity" yaml:"logCapacity"`
	PrimaryRecipient       string  `json:"primaryRecipient" yaml:"primaryRecipient"`
	SecondaryRecipient     string  `json:"secondaryRecipient" yaml:"secondaryRecipient"`
	RemediationProbability float64 `json:"remediationProbability" yaml:"remediationProbability"`
	NotifyOnResolve        bool    `json:"notifyOnResolve" yaml:"notifyOnResolve"`
	SecondaryEdgeTriggered bool    `json:"secondaryEdgeTriggered" yaml:"secondaryEdgeTriggered"`
}

// PolicyConfig keys are severity names or codes (critical|major|low, P0|P1|P2).
type PolicyConfig struct {
	Thresholds map[string]ThresholdConfig `json:"thresholds" yaml:"thresholds"`
	Repeats    map[string]string          `json:"repeats" yaml:"repeats"` // resend interval, e.g. "12s"
}

type ThresholdConfig struct {
	Latency     string   `json:"latency" yaml:"latency"`         // e.g. "1000ms"
	FailureRate *float64 `json:"failureRate" yaml:"failureRate"` // fraction, e.g. 0.05
}

// TargetConfig is one monitored target. Source is "synthetic" or "prometheus".
type TargetConfig struct {
	Name             string `json:"name" yaml:"name"`
	Source           string `json:"source" yaml:"source"`
	Seed             uint64 `json:"seed" yaml:"seed"`
	LatencyQuery     string `json:"latencyQuery" yaml:"latencyQuery"`
	FailureRateQuery string `json:"failureRateQuery" yaml:"failureRateQuery"`
}

type PrometheusConfig struct {
	URL          string `json:"url" yaml:"url"`
	QueryTimeout string `json:"queryTimeout" yaml:"queryTimeout"`
}

type NotifyConfig struct {
	Sinks   []string      `json:"sinks" yaml:"sinks"` // log, kafka, nats
	Timeout string        `json:"timeout" yaml:"timeout"`
	Kafka   KafkaConfig   `json:"kafka" yaml:"kafka"`
	NATS    NATSConfig    `json:"nats" yaml:"nats"`
	Breaker BreakerConfig `json:"breaker" yaml:"breaker"`
}

type KafkaConfig struct {
	Brokers []string `json:"brokers" yaml:"brokers"`
	Topic   string   `json:"topic" yaml:"topic"`
}

type NATSConfig struct {
	URL     string `json:"url" yaml:"url"`
	Subject string `json:"subject" yaml:"subject"`
}

type BreakerConfig struct {
	MaxFailures uint32 `json:"maxFailures" yaml:"maxFailures"`
	OpenTimeout string `json:"openTimeout" yaml:"openTimeout"`
}

type RemediationConfig struct {
	ObservationWindow string `json:"observationWindow" yaml:"observationWindow"`
}

type TelemetryConfig struct {
	EnableTracing bool   `json:"enableTracing" yaml:"enableTracing"`
	ServiceName   string `json:"serviceName" yaml:"serviceName"`
}

func Load() (*Config, error) {
	configFile := flag.String("f", "", "Path to configuration file (.json, .yaml or .yml)")
	flag.Parse()
	return LoadFile(*configFile)
}

// LoadFile builds the config from environment defaults, overlays path when
// non-empty, and fills whatever the file left blank.
func LoadFile(path string) (*Config, error) {
	cfg := FromEnv()
	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			log.Error().Err(err).Str("file", path).Msg("load config file failed")
			return nil, err
		}
	}
	cfg.fillDefaults()
	return cfg, nil
}

// FromEnv returns the environment-derived defaults.
func FromEnv() *Config {
	return &Config{
		Server: ServerConfig{
			BindAddr: getEnv("SERVER_BIND_ADDR", "0.0.0.0:8080"),
			Bearer:   getEnv("SERVER_BEARER", ""),
		},
		Database: DatabaseConfig{
			Enabled:  getEnvBool("DB_ENABLED", false),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "admin"),
			Password: getEnv("DB_PASSWORD", "password"),
			DBName:   getEnv("DB_NAME", "cloudmonitor"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Logging: LoggingConfig{
			Level:   getEnv("LOG_LEVEL", "info"),
			Console: getEnvBool("LOG_CONSOLE", false),
		},
		Redis: RedisConfig{
			Enabled:  getEnvBool("REDIS_ENABLED", false),
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Monitor: MonitorConfig{
			Interval:               getEnv("MONITOR_INTERVAL", "200ms"),
			LogCapacity:            getEnvInt("MONITOR_LOG_CAPACITY", model.DefaultLogCapacity),
			PrimaryRecipient:       getEnv("MONITOR_PRIMARY_RECIPIENT", "team@company.com"),
			SecondaryRecipient:     getEnv("MONITOR_SECONDARY_RECIPIENT", "boss@company.com"),
			RemediationProbability: getEnvFloat("MONITOR_REMEDIATION_PROBABILITY", 0.10),
			NotifyOnResolve:        getEnvBool("MONITOR_NOTIFY_ON_RESOLVE", false),
			SecondaryEdgeTriggered: getEnvBool("MONITOR_SECONDARY_EDGE_TRIGGERED", false),
		},
		Prometheus: PrometheusConfig{
			URL:          getEnv("PROMETHEUS_URL", "http://localhost:9090"),
			QueryTimeout: getEnv("PROMETHEUS_QUERY_TIMEOUT", "10s"),
		},
		Notify: NotifyConfig{
			Sinks:   splitList(getEnv("NOTIFY_SINKS", "log")),
			Timeout: getEnv("NOTIFY_TIMEOUT", "5s"),
			Kafka: KafkaConfig{
				Brokers: splitList(getEnv("KAFKA_BROKERS", "localhost:9092")),
				Topic:   getEnv("KAFKA_TOPIC", "cloudmonitor.notifications"),
			},
			NATS: NATSConfig{
				URL:     getEnv("NATS_URL", "nats://localhost:4222"),
				Subject: getEnv("NATS_SUBJECT", "cloudmonitor.notifications"),
			},
			Breaker: BreakerConfig{
				MaxFailures: uint32(getEnvInt("NOTIFY_BREAKER_MAX_FAILURES", 5)),
				OpenTimeout: getEnv("NOTIFY_BREAKER_OPEN_TIMEOUT", "30s"),
			},
		},
		Remediation: RemediationConfig{
			ObservationWindow: getEnv("REMEDIATION_OBSERVATION_WINDOW", "30m"),
		},
		Telemetry: TelemetryConfig{
			EnableTracing: getEnvBool("TRACING_ENABLED", false),
			ServiceName:   getEnv("TRACING_SERVICE_NAME", "cloudmonitor"),
		},
	}
}

// fill reasonable defaults when fields omitted in file
func (c *Config) fillDefaults() {
	if c.Server.BindAddr == "" {
		c.Server.BindAddr = "0.0.0.0:8080"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Monitor.Interval == "" {
		c.Monitor.Interval = "200ms"
	}
	if c.Monitor.LogCapacity <= 0 {
		c.Monitor.LogCapacity = model.DefaultLogCapacity
	}
	if c.Monitor.PrimaryRecipient == "" {
		c.Monitor.PrimaryRecipient = "team@company.com"
	}
	if c.Monitor.SecondaryRecipient == "" {
		c.Monitor.SecondaryRecipient = "boss@company.com"
	}
	if len(c.Targets) == 0 {
		c.Targets = []TargetConfig{{Name: "default", Source: "synthetic"}}
	}
	for i := range c.Targets {
		if c.Targets[i].Source == "" {
			c.Targets[i].Source = "synthetic"
		}
	}
	if len(c.Notify.Sinks) == 0 {
		c.Notify.Sinks = []string{"log"}
	}
	if c.Notify.Timeout == "" {
		c.Notify.Timeout = "5s"
	}
	if c.Notify.Breaker.MaxFailures == 0 {
		c.Notify.Breaker.MaxFailures = 5
	}
	if c.Remediation.ObservationWindow == "" {
		c.Remediation.ObservationWindow = "30m"
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "cloudmonitor"
	}
}

// AlertPolicy converts the policy section into validated tables. Severities the
// file does not mention keep their defaults.
func (c *Config) AlertPolicy() (model.Policy, error) {
	p := model.DefaultPolicy()
	for key, th := range c.Policy.Thresholds {
		sev, err := parsePolicySeverity(key)
		if err != nil {
			return model.Policy{}, err
		}
		cur := p.Thresholds[sev]
		if th.Latency != "" {
			d, err := time.ParseDuration(th.Latency)
			if err != nil {
				return model.Policy{}, fmt.Errorf("%w: %s latency: %v", model.ErrInvalidPolicy, key, err)
			}
			cur.LatencyLimit = d
		}
		if th.FailureRate != nil {
			cur.FailureRateLimit = *th.FailureRate
		}
		p.Thresholds[sev] = cur
	}
	for key, raw := range c.Policy.Repeats {
		sev, err := parsePolicySeverity(key)
		if err != nil {
			return model.Policy{}, err
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			return model.Policy{}, fmt.Errorf("%w: %s repeat: %v", model.ErrInvalidPolicy, key, err)
		}
		p.Repeats[sev] = d
	}
	if err := p.Validate(); err != nil {
		return model.Policy{}, err
	}
	return p, nil
}

func parsePolicySeverity(key string) (model.Severity, error) {
	sev, err := model.ParseSeverity(key)
	if err != nil {
		return model.SeverityNone, fmt.Errorf("%w: %v", model.ErrInvalidPolicy, err)
	}
	if sev == model.SeverityNone {
		return model.SeverityNone, fmt.Errorf("%w: %q is not an alerting severity", model.ErrInvalidPolicy, key)
	}
	return sev, nil
}

func loadFromFile(cfg *Config, filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", filePath, err)
	}

	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", filePath, err)
	}
	return nil
}

// ParseDuration returns d when s is empty or malformed.
func ParseDuration(s string, d time.Duration) time.Duration {
	if s == "" {
		return d
	}
	if v, err := time.ParseDuration(s); err == nil {
		return v
	}
	return d
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
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
