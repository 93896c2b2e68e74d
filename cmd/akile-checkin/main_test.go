package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/akile-checkin/internal/common"
)

func resetFlags(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		configFiles = nil
		flagToken, flagTokenFile, flagSchedule, flagEngine, flagSaveToken = "", "", "", "", ""
		flagOnce, flagDebug, flagNoHeadless = false, false, false
	})
}

func TestLoadConfig_FlagsOverrideFileAndEnv(t *testing.T) {
	resetFlags(t)

	path := filepath.Join(t.TempDir(), "akile-checkin.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[scheduler]
at = "07:00"

[browser]
engine = "rod"
`), 0644))
	t.Setenv("AKILE_SCHEDULE", "07:30")

	configFiles = []string{path}
	flagSchedule = "09:45"
	flagOnce = true
	flagNoHeadless = true

	config, err := loadConfig()
	require.NoError(t, err)

	assert.Equal(t, "09:45", config.Scheduler.At)
	assert.Equal(t, "rod", config.Browser.Engine)
	assert.True(t, config.Scheduler.Once)
	assert.False(t, config.Browser.Headless)
}

func TestLoadConfig_RejectsInvalidSchedule(t *testing.T) {
	resetFlags(t)
	configFiles = []string{filepath.Join(t.TempDir(), "missing.toml")}

	_, err := loadConfig()
	assert.Error(t, err, "explicit config file must exist")

	configFiles = nil
	flagSchedule = "25:99"
	_, err = loadConfig()
	assert.ErrorIs(t, err, common.ErrInvalidConfig)
}

func TestRootCommand_Flags(t *testing.T) {
	for _, name := range []string{"token", "token-file", "schedule", "once", "no-headless", "save-token", "engine"} {
		assert.NotNil(t, rootCmd.Flags().Lookup(name), name)
	}
	for short, long := range map[string]string{"t": "token", "f": "token-file", "s": "schedule", "o": "save-token"} {
		flag := rootCmd.Flags().ShorthandLookup(short)
		require.NotNil(t, flag, short)
		assert.Equal(t, long, flag.Name)
	}
	assert.NotNil(t, rootCmd.PersistentFlags().ShorthandLookup("c"))
	assert.NotNil(t, rootCmd.PersistentFlags().ShorthandLookup("d"))
}
