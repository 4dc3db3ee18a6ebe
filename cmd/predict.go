package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/saturn/internal/prob"
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Score a request with a probability model",
	Long:  "Runs one request through the click-through or win-rate model of a probability model directory.",
}

func newPredictCmd(kind prob.Kind, short string) *cobra.Command {
	inputs := prob.Inputs(kind)
	cmd := &cobra.Command{
		Use:   fmt.Sprintf("%s <%d values>", kind, len(inputs)),
		Short: short,
		Long:  fmt.Sprintf("Values are positional, in this order:\n  %v", inputs),
		Args:  cobra.ExactArgs(len(inputs)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPredict(cmd, kind, args)
		},
	}
	addModelDirFlag(cmd)
	return cmd
}

func runPredict(cmd *cobra.Command, kind prob.Kind, args []string) error {
	if err := cfg.Validate("predict"); err != nil {
		return err
	}
	dir, _ := cmd.Flags().GetString("model-dir")
	if dir == "" {
		dir = cfg.Model.Dir
	}
	p, err := prob.Open(dir, kind, cfg.Model.SettingsFile,
		zap.L().With(zap.String("command", "predict "+string(kind))))
	if err != nil {
		return err
	}
	defer p.Close() //nolint:errcheck

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "model file path: %s\n", p.ModelID())
	fmt.Fprintf(out, "model kind:      %s\n", p.Kind())
	fmt.Fprintln(out)

	start := time.Now()
	got, err := p.Predict(args)
	elapsed := time.Since(start)
	if err != nil {
		fmt.Fprintln(out, "ERROR!")
		fmt.Fprintln(out, err.Error())
		return nil
	}
	fmt.Fprintln(out, "model output")
	fmt.Fprintf(out, "prob:            %g\n", got)
	fmt.Fprintf(out, "time:            %.6f milliseconds\n", float64(elapsed.Nanoseconds())/1e6)
	return nil
}

var (
	predictCTRCmd     = newPredictCmd(prob.KindCTR, "Predict click-through probability")
	predictWinRateCmd = newPredictCmd(prob.KindWinRate, "Predict win probability")
)

func init() {
	predictCmd.AddCommand(predictCTRCmd, predictWinRateCmd)
	rootCmd.AddCommand(predictCmd)
}
