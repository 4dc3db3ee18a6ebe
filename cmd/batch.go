package main

import (
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/saturn/internal/batch"
	"github.com/sells-group/saturn/internal/report"
)

var batchCmd = &cobra.Command{
	Use:   "batch <requests-file>",
	Short: "Score a file of requests",
	Long: "Reads brand_id, adgroup_id, svr and an optional pacing column from a TSV or CSV file, " +
		"scores every row concurrently and writes the results as a table, CSV or XLSX.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		applyBatchFlags(cmd)
		if err := cfg.Validate("batch"); err != nil {
			return err
		}
		format, err := report.ParseFormat(cfg.Batch.Format)
		if err != nil {
			return err
		}
		outPath, _ := cmd.Flags().GetString("out")
		if format == report.FormatXLSX && outPath == "" {
			return eris.New("batch: xlsx output needs --out")
		}
		save, _ := cmd.Flags().GetBool("save")
		batchID, _ := cmd.Flags().GetString("batch-id")

		reqs, err := batch.ReadFile(ctx, args[0])
		if err != nil {
			return err
		}

		eng, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer eng.Close() //nolint:errcheck

		out, err := batch.Process(ctx, eng, reqs, batch.Options{
			Workers: cfg.Batch.Workers,
			QPS:     cfg.Batch.QPS,
			BatchID: batchID,
		})
		if err != nil {
			return err
		}

		if save {
			st, err := openMigratedStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
			if err := st.SaveResults(ctx, out.Results); err != nil {
				return eris.Wrap(err, "batch: save results")
			}
			zap.L().Info("batch saved", zap.String("batch_id", out.BatchID), zap.Int("rows", len(out.Results)))
		}

		var w io.Writer = cmd.OutOrStdout()
		if outPath != "" {
			f, err := os.Create(outPath)
			if err != nil {
				return eris.Wrapf(err, "batch: create %s", outPath)
			}
			defer f.Close() //nolint:errcheck
			w = f
		}
		return report.Write(w, format, out.Results)
	},
}

// applyBatchFlags lets explicit flags override the batch config section.
func applyBatchFlags(cmd *cobra.Command) {
	if cmd.Flags().Changed("workers") {
		cfg.Batch.Workers, _ = cmd.Flags().GetInt("workers")
	}
	if cmd.Flags().Changed("qps") {
		cfg.Batch.QPS, _ = cmd.Flags().GetFloat64("qps")
	}
	if cmd.Flags().Changed("format") {
		cfg.Batch.Format, _ = cmd.Flags().GetString("format")
	}
}

func init() {
	addModelDirFlag(batchCmd)
	batchCmd.Flags().Int("workers", 0, "concurrent workers (default from config)")
	batchCmd.Flags().Float64("qps", 0, "max requests per second, 0 for unthrottled (default from config)")
	batchCmd.Flags().String("format", "", "output format: table, csv or xlsx (default from config)")
	batchCmd.Flags().String("out", "", "output file (default stdout)")
	batchCmd.Flags().Bool("save", false, "persist results to the store")
	batchCmd.Flags().String("batch-id", "", "batch ID recorded with saved results (default random)")
	rootCmd.AddCommand(batchCmd)
}
