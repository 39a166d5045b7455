package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetVersionInfo(t *testing.T) {
	orig := versionInfo
	defer func() { versionInfo = orig }()

	SetVersionInfo("1.2.3", "abc123", "2026-01-15")
	assert.Equal(t, "1.2.3", versionInfo.Version)
	assert.Equal(t, "abc123", versionInfo.Commit)
	assert.Equal(t, "2026-01-15", versionInfo.BuildDate)

	// Empty values keep the previous build metadata.
	SetVersionInfo("", "", "")
	assert.Equal(t, "1.2.3", versionInfo.Version)
}

func TestLoadConfigLogLevelOverride(t *testing.T) {
	origLevel := logLevel
	defer func() { logLevel = origLevel }()

	logLevel = "debug"
	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestSubcommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "version", "config"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}
