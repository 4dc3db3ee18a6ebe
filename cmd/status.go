package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/saturn/internal/monitoring"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Summarize recorded results and check alert thresholds",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if cmd.Flags().Changed("lookback") {
			cfg.Monitoring.LookbackWindowHours, _ = cmd.Flags().GetInt("lookback")
		}
		if err := cfg.Validate("status"); err != nil {
			return err
		}
		asJSON, _ := cmd.Flags().GetBool("json")

		st, err := openMigratedStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		checker := monitoring.NewChecker(
			monitoring.NewCollector(st, nil),
			monitoring.NewAlerter(cfg.Monitoring),
			cfg.Monitoring,
		)
		snap, alerts, err := checker.Check(ctx)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				*monitoring.MetricsSnapshot
				Alerts []monitoring.Alert `json:"alerts"`
			}{snap, alerts})
		}
		formatStatus(out, snap, alerts)
		return nil
	},
}

func formatStatus(w io.Writer, snap *monitoring.MetricsSnapshot, alerts []monitoring.Alert) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Window:\tlast %dh\n", snap.LookbackHours)
	fmt.Fprintf(tw, "Total:\t%d\n", snap.Total)
	fmt.Fprintf(tw, "OK:\t%d\n", snap.OK)
	fmt.Fprintf(tw, "Errors:\t%d (%.1f%%)\n", snap.Errors, snap.ErrorRate*100)
	fmt.Fprintf(tw, "Pass-through:\t%d (%.1f%%)\n", snap.PassThrough, snap.PassThroughRate*100)
	fmt.Fprintf(tw, "Cached:\t%d\n", snap.Cached)
	fmt.Fprintf(tw, "Mean multiplier:\t%.4f\n", snap.MeanMultiplier)
	tw.Flush() //nolint:errcheck

	if len(alerts) == 0 {
		fmt.Fprintln(w, "\nNo alerts.")
		return
	}
	fmt.Fprintln(w, "\nAlerts:")
	for _, a := range alerts {
		fmt.Fprintf(w, "  [%s] %s\n", a.Severity, a.Message)
	}
}

func init() {
	statusCmd.Flags().Int("lookback", 0, "lookback window in hours (default from config)")
	statusCmd.Flags().Bool("json", false, "print the snapshot as JSON")
	rootCmd.AddCommand(statusCmd)
}
