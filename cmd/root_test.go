package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"run", "batch", "bench", "predict", "serve", "fetch", "status", "migrate"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "saturn", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestModelCommands_HaveModelDirFlag(t *testing.T) {
	for _, c := range []string{"run", "batch", "bench", "serve"} {
		cmd, _, err := rootCmd.Find([]string{c})
		require.NoError(t, err)
		assert.NotNil(t, cmd.Flags().Lookup("model-dir"), "%s should have --model-dir", c)
	}
	for _, c := range []string{"ctr", "winrate"} {
		cmd, _, err := rootCmd.Find([]string{"predict", c})
		require.NoError(t, err)
		assert.Equal(t, c, cmd.Name())
		assert.NotNil(t, cmd.Flags().Lookup("model-dir"), "predict %s should have --model-dir", c)
	}
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag)
	assert.Equal(t, "0", flag.DefValue)
	assert.NotNil(t, serveCmd.Flags().Lookup("record"))
}

func TestRootCmd_PersistentPreRunE_WithConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	configContent := `
store:
  driver: postgres
  database_url: postgres://localhost/saturn
log:
  level: info
  format: console
model:
  dir: /srv/models/current
`
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "saturn.yaml"), []byte(configContent), 0o644))

	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(tmpDir))
	defer os.Chdir(origDir) //nolint:errcheck

	oldCfg := cfg
	cfg = nil
	defer func() { cfg = oldCfg }()

	require.NoError(t, rootCmd.PersistentPreRunE(rootCmd, nil))
	require.NotNil(t, cfg)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "/srv/models/current", cfg.Model.Dir)
}

func TestRootCmd_PersistentPreRunE_BadLogLevel(t *testing.T) {
	tmpDir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(tmpDir))
	defer os.Chdir(origDir) //nolint:errcheck
	t.Setenv("SATURN_LOG_LEVEL", "loud")

	oldCfg := cfg
	defer func() { cfg = oldCfg }()

	err := rootCmd.PersistentPreRunE(rootCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "init logger")
}
