package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/saturn/internal/bench"
	"github.com/sells-group/saturn/internal/model"
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Measure engine throughput over the model's test dataset",
	Long: "Loads data_test/adgroup_ids.txt and data_test/user_extlba/<adgroup>.txt from the model directory, " +
		"scores every request against every listed adgroup and reports qps and latency.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("bench"); err != nil {
			return err
		}
		workers, _ := cmd.Flags().GetInt("workers")
		qps, _ := cmd.Flags().GetFloat64("qps")
		pacing, _ := cmd.Flags().GetFloat64("pacing")

		eng, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer eng.Close() //nolint:errcheck

		ds, err := bench.LoadDataset(ctx, eng.ModelID())
		if err != nil {
			return err
		}
		zap.L().Info("bench dataset loaded",
			zap.Int("adgroups", len(ds.Entities)),
			zap.Int("requests", ds.Requests()),
		)

		rep, err := bench.Run(ctx, eng, ds, bench.Options{Workers: workers, QPS: qps, Pacing: pacing})
		if err != nil {
			return err
		}
		return rep.Write(cmd.OutOrStdout())
	},
}

func init() {
	addModelDirFlag(benchCmd)
	benchCmd.Flags().Int("workers", 1, "concurrent workers")
	benchCmd.Flags().Float64("qps", 0, "max requests per second, 0 for unthrottled")
	benchCmd.Flags().Float64("pacing", model.NoPacing, "pacing signal sent with every request; -1 for none")
	rootCmd.AddCommand(benchCmd)
}
