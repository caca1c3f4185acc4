package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "firecommand.cfg.json"

// Response policies for out-of-order engine completions.
const (
	PolicyHighestSequence = "highest-sequence"
	PolicyLastCompleted   = "last-completed"
)

// SessionConfig holds the session actor settings.
type SessionConfig struct {
	SettleDelay     time.Duration `json:"settleDelay" mapstructure:"settleDelay"`
	ResponsePolicy  string        `json:"responsePolicy" mapstructure:"responsePolicy"`
	SerializeEngine bool          `json:"serializeEngine" mapstructure:"serializeEngine"`
	InboxSize       int           `json:"inboxSize" mapstructure:"inboxSize"`
}

// PlaybackConfig holds the playback clock settings.
type PlaybackConfig struct {
	TickInterval time.Duration `json:"tickInterval" mapstructure:"tickInterval"`
}

// ClientConfig holds an external HTTP collaborator's endpoint.
type ClientConfig struct {
	URL     string        `json:"url" mapstructure:"url"`
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
}

// ServerConfig holds the HTTP/WebSocket listener settings.
type ServerConfig struct {
	Listen       string        `json:"listen" mapstructure:"listen"`
	WriteTimeout time.Duration `json:"writeTimeout" mapstructure:"writeTimeout"`
	AllowOrigins []string      `json:"allowOrigins" mapstructure:"allowOrigins"`
}

// ArchiveConfig holds the in-memory run archive settings.
type ArchiveConfig struct {
	Enabled bool `json:"enabled" mapstructure:"enabled"`
	MaxRuns int  `json:"maxRuns" mapstructure:"maxRuns"`
}

// InfluxConfig holds InfluxDB metrics export settings.
type InfluxConfig struct {
	Enabled   bool   `json:"enabled" mapstructure:"enabled"`
	Host      string `json:"host" mapstructure:"host"`
	Port      string `json:"port" mapstructure:"port"`
	Protocol  string `json:"protocol" mapstructure:"protocol"`
	Token     string `json:"token" mapstructure:"token"`
	Org       string `json:"org" mapstructure:"org"`
	Bucket    string `json:"bucket" mapstructure:"bucket"`
	BackupDir string `json:"backupDir" mapstructure:"backupDir"`
}

// OTelConfig holds OpenTelemetry settings.
type OTelConfig struct {
	Enabled        bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName    string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout   time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	MetricInterval time.Duration `json:"metricInterval" mapstructure:"metricInterval"`
	Endpoint       string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure       bool          `json:"insecure" mapstructure:"insecure"`
}

// GraylogConfig holds the GELF sink settings.
type GraylogConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Address string `json:"address" mapstructure:"address"`
}

// MonitorConfig holds the status monitor settings.
type MonitorConfig struct {
	Interval time.Duration `json:"interval" mapstructure:"interval"`
}

// SetDefaults registers every default value. Load calls it; tests that never
// read a file can call it directly.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./logs")

	viper.SetDefault("session.settleDelay", "2s")
	viper.SetDefault("session.responsePolicy", PolicyHighestSequence)
	viper.SetDefault("session.serializeEngine", true)
	viper.SetDefault("session.inboxSize", 4096)

	viper.SetDefault("playback.tickInterval", "100ms")

	viper.SetDefault("engine.url", "http://localhost:8000")
	viper.SetDefault("engine.timeout", "60s")
	viper.SetDefault("gis.url", "http://localhost:8000")
	viper.SetDefault("gis.timeout", "30s")
	viper.SetDefault("parser.url", "http://localhost:8000")
	viper.SetDefault("parser.timeout", "30s")

	viper.SetDefault("server.listen", ":8080")
	viper.SetDefault("server.writeTimeout", "10s")
	viper.SetDefault("server.allowOrigins", []string{})

	viper.SetDefault("archive.enabled", true)
	viper.SetDefault("archive.maxRuns", 50)

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "firecommand")
	viper.SetDefault("influx.bucket", "simulation")
	viper.SetDefault("influx.backupDir", "./logs")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "firecommand")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.metricInterval", "1m")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetDefault("monitor.interval", "10s")
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file. Defaults stay in
// effect when the file is missing; the error is still returned.
func Load(configDir string) error {
	SetDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetSessionConfig returns the session settings. Unknown response policies
// fall back to highest-sequence.
func GetSessionConfig() SessionConfig {
	policy := viper.GetString("session.responsePolicy")
	if policy != PolicyLastCompleted {
		policy = PolicyHighestSequence
	}
	return SessionConfig{
		SettleDelay:     viper.GetDuration("session.settleDelay"),
		ResponsePolicy:  policy,
		SerializeEngine: viper.GetBool("session.serializeEngine"),
		InboxSize:       viper.GetInt("session.inboxSize"),
	}
}

// GetPlaybackConfig returns the playback clock settings.
func GetPlaybackConfig() PlaybackConfig {
	return PlaybackConfig{
		TickInterval: viper.GetDuration("playback.tickInterval"),
	}
}

func clientConfig(prefix string) ClientConfig {
	return ClientConfig{
		URL:     viper.GetString(prefix + ".url"),
		Timeout: viper.GetDuration(prefix + ".timeout"),
	}
}

// GetEngineConfig returns the Execution Engine endpoint.
func GetEngineConfig() ClientConfig { return clientConfig("engine") }

// GetGISConfig returns the GIS provider endpoint.
func GetGISConfig() ClientConfig { return clientConfig("gis") }

// GetParserConfig returns the Command Parser endpoint.
func GetParserConfig() ClientConfig { return clientConfig("parser") }

// GetServerConfig returns the HTTP listener settings.
func GetServerConfig() ServerConfig {
	return ServerConfig{
		Listen:       viper.GetString("server.listen"),
		WriteTimeout: viper.GetDuration("server.writeTimeout"),
		AllowOrigins: viper.GetStringSlice("server.allowOrigins"),
	}
}

// GetArchiveConfig returns the run archive settings.
func GetArchiveConfig() ArchiveConfig {
	return ArchiveConfig{
		Enabled: viper.GetBool("archive.enabled"),
		MaxRuns: viper.GetInt("archive.maxRuns"),
	}
}

// GetInfluxConfig returns the InfluxDB settings.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:   viper.GetBool("influx.enabled"),
		Host:      viper.GetString("influx.host"),
		Port:      viper.GetString("influx.port"),
		Protocol:  viper.GetString("influx.protocol"),
		Token:     viper.GetString("influx.token"),
		Org:       viper.GetString("influx.org"),
		Bucket:    viper.GetString("influx.bucket"),
		BackupDir: viper.GetString("influx.backupDir"),
	}
}

// GetOTelConfig returns the OpenTelemetry settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:        viper.GetBool("otel.enabled"),
		ServiceName:    viper.GetString("otel.serviceName"),
		BatchTimeout:   viper.GetDuration("otel.batchTimeout"),
		MetricInterval: viper.GetDuration("otel.metricInterval"),
		Endpoint:       viper.GetString("otel.endpoint"),
		Insecure:       viper.GetBool("otel.insecure"),
	}
}

// GetGraylogConfig returns the GELF sink settings.
func GetGraylogConfig() GraylogConfig {
	return GraylogConfig{
		Enabled: viper.GetBool("graylog.enabled"),
		Address: viper.GetString("graylog.address"),
	}
}

// GetMonitorConfig returns the status monitor settings.
func GetMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Interval: viper.GetDuration("monitor.interval"),
	}
}
