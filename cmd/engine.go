package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/saturn/internal/svr"
)

// addModelDirFlag registers --model-dir on a command that loads the engine.
func addModelDirFlag(cmd *cobra.Command) {
	cmd.Flags().String("model-dir", "", "model directory (default from config)")
}

// openEngine loads the engine from --model-dir or model.dir.
func openEngine(cmd *cobra.Command) (*svr.Engine, error) {
	dir, _ := cmd.Flags().GetString("model-dir")
	if dir == "" {
		dir = cfg.Model.Dir
	}
	files := svr.Files{
		Settings:      cfg.Model.SettingsFile,
		BrandDefaults: cfg.Model.BrandDefaultsFile,
		Cutoffs:       cfg.Model.CutoffFile,
	}
	return svr.Open(dir,
		svr.WithFiles(files),
		svr.WithLogger(zap.L().With(zap.String("command", cmd.Name()))),
	)
}
