// Package cmd implements the commundetect command line interface.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/3leaps/commundetect/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "commundetect",
	Short: "Community detection REST service",
	Long: `commundetect exposes graph community detection as a REST service.

Clients submit an edge list and an algorithm choice, then poll the
returned task id until the detected community tree is available as an
edge list of its own.`,
	SilenceUsage: true,
}

var (
	cfgFile  string
	logLevel string
)

// versionInfo is populated at build time via SetVersionInfo.
var versionInfo = struct {
	Version   string
	Commit    string
	BuildDate string
}{
	Version:   "0.3.0",
	Commit:    "HEAD",
	BuildDate: "unknown",
}

// SetVersionInfo records build metadata injected by the linker.
func SetVersionInfo(version, commit, buildDate string) {
	if version != "" {
		versionInfo.Version = version
	}
	if commit != "" {
		versionInfo.Commit = commit
	}
	if buildDate != "" {
		versionInfo.BuildDate = buildDate
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: ./commundetect.yaml if present)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the configured log level (debug|info|warn|error)")
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig resolves the effective configuration for a command run,
// applying the --log-level override on top of file and environment.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	return cfg, nil
}
