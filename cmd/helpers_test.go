package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/saturn/internal/config"
	"github.com/sells-group/saturn/internal/scoring"
)

const testSettings = `{
	"features": [{"type": "DirectNumber", "args": {"column": "user_extlba"}}],
	"default_multiplier_cap": 1.0,
	"adgroup_multiplier_cap": [{"adgroup_id": "A1", "cap": 4.0}]
}`

const testCatalog = `{
	"class_name": "CatalogModel",
	"input": 0,
	"adgroups": {
		"A1": {"quantile": {"x": [0, 1], "y": [0, 1]}},
		"A2": {"quantile": {"x": [0, 1], "y": [0, 1]}}
	}
}`

// writeModelDir lays out a small model with a two-adgroup bench dataset.
func writeModelDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"model_config.json":            testSettings,
		scoring.ObjectFile:             testCatalog,
		"brand_default_svr.txt":        "B1 0.5 0.6\n",
		"adgroup_quantile_cutoff.txt":  "A2 0.85\n",
		"data_test/adgroup_ids.txt":    "B1\tA1\nA2\n",
		"data_test/user_extlba/A1.txt": "0.1\n0.5\n-1\n",
		"data_test/user_extlba/A2.txt": "0.9\n0.2\n0.86\n",
	}
	for name, body := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}
	return dir
}

// useTestConfig installs default config pointing at modelDir and a temp
// sqlite database, and restores the previous config afterwards.
func useTestConfig(t *testing.T, modelDir string) *config.Config {
	t.Helper()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(t.TempDir()))
	c, err := config.Load()
	require.NoError(t, os.Chdir(origDir))
	require.NoError(t, err)

	c.Model.Dir = modelDir
	c.Store.DatabaseURL = filepath.Join(t.TempDir(), "saturn.db")

	old := cfg
	cfg = c
	t.Cleanup(func() { cfg = old })
	return c
}

// setFlags sets flags on cmd and restores them after the test.
func setFlags(t *testing.T, cmd *cobra.Command, kv map[string]string) {
	t.Helper()
	for k, v := range kv {
		f := cmd.Flags().Lookup(k)
		require.NotNil(t, f, "flag %q", k)
		old, changed := f.Value.String(), f.Changed
		require.NoError(t, cmd.Flags().Set(k, v))
		t.Cleanup(func() {
			_ = f.Value.Set(old)
			f.Changed = changed
		})
	}
}

// execute runs cmd's RunE with captured output.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetContext(context.Background())
	t.Cleanup(func() { cmd.SetOut(nil) })
	err := cmd.RunE(cmd, args)
	return buf.String(), err
}
