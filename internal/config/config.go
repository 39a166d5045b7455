// Package config loads service configuration from defaults, an optional
// YAML file, and COMMUNDETECT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// JobsConfig configures staging and execution of community detection jobs.
type JobsConfig struct {
	// Path is the base directory for per-job staging directories.
	Path string `mapstructure:"path" yaml:"path"`

	// Command is the external algorithm binary or wrapper script.
	Command string `mapstructure:"command" yaml:"command"`

	Workers   int `mapstructure:"workers" yaml:"workers"`
	QueueSize int `mapstructure:"queue_size" yaml:"queue_size"`

	// Bounded filesystem-consistency waits; these are sub-second-scale
	// knobs, independent of the algorithm runtime budget below.
	DirWaitCount      int           `mapstructure:"dir_wait_count" yaml:"dir_wait_count"`
	DirWaitInterval   time.Duration `mapstructure:"dir_wait_interval" yaml:"dir_wait_interval"`
	InputWaitCount    int           `mapstructure:"input_wait_count" yaml:"input_wait_count"`
	InputWaitInterval time.Duration `mapstructure:"input_wait_interval" yaml:"input_wait_interval"`

	// ExecTimeout is the hard wall-clock budget per job.
	ExecTimeout time.Duration `mapstructure:"exec_timeout" yaml:"exec_timeout"`

	// RecordTTL is how long terminal job records remain queryable.
	RecordTTL time.Duration `mapstructure:"record_ttl" yaml:"record_ttl"`
}

// LimitsConfig configures per-client request rate limits. Submission is
// rate limited harder than polling.
type LimitsConfig struct {
	SubmitPerSecond float64 `mapstructure:"submit_per_second" yaml:"submit_per_second"`
	SubmitBurst     int     `mapstructure:"submit_burst" yaml:"submit_burst"`
	PollPerSecond   float64 `mapstructure:"poll_per_second" yaml:"poll_per_second"`
	PollBurst       int     `mapstructure:"poll_burst" yaml:"poll_burst"`
}

// StatusConfig configures the server-status probe.
type StatusConfig struct {
	// DiskFullCutoff is the disk usage percentage at which the status
	// endpoint starts reporting an error.
	DiskFullCutoff int `mapstructure:"disk_full_cutoff" yaml:"disk_full_cutoff"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
}

// Config is the full service configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Jobs    JobsConfig    `mapstructure:"jobs" yaml:"jobs"`
	Limits  LimitsConfig  `mapstructure:"limits" yaml:"limits"`
	Status  StatusConfig  `mapstructure:"status" yaml:"status"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("jobs.path", filepath.Join(os.TempDir(), "commundetect"))
	v.SetDefault("jobs.command", "infomap")
	v.SetDefault("jobs.workers", 1)
	v.SetDefault("jobs.queue_size", 64)
	v.SetDefault("jobs.dir_wait_count", 10)
	v.SetDefault("jobs.dir_wait_interval", "100ms")
	v.SetDefault("jobs.input_wait_count", 60)
	v.SetDefault("jobs.input_wait_interval", "100ms")
	v.SetDefault("jobs.exec_timeout", "120s")
	v.SetDefault("jobs.record_ttl", "1h")

	// Roughly 360/hour for submission, 3600/hour for polling.
	v.SetDefault("limits.submit_per_second", 0.1)
	v.SetDefault("limits.submit_burst", 10)
	v.SetDefault("limits.poll_per_second", 1.0)
	v.SetDefault("limits.poll_burst", 30)

	v.SetDefault("status.disk_full_cutoff", 90)

	v.SetDefault("logging.level", "info")
}

// Load reads configuration. If path is non-empty the file must exist;
// otherwise a commundetect.yaml next to the working directory is used if
// present. Environment variables such as COMMUNDETECT_SERVER_PORT
// override everything.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("COMMUNDETECT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("commundetect")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/commundetect")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d is out of range", c.Server.Port)
	}
	if strings.TrimSpace(c.Jobs.Path) == "" {
		return fmt.Errorf("jobs.path must not be empty")
	}
	if c.Status.DiskFullCutoff <= 0 || c.Status.DiskFullCutoff > 100 {
		return fmt.Errorf("status.disk_full_cutoff %d must be in 1..100", c.Status.DiskFullCutoff)
	}
	return nil
}

// Dump renders the effective configuration as YAML.
func (c *Config) Dump() (string, error) {
	b, err := yaml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}
	return string(b), nil
}
