package main

import (
	"fmt"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/saturn/internal/model"
)

var runCmd = &cobra.Command{
	Use:   "run <brand-id> <adgroup-id> <psvr>",
	Short: "Compute the bid multiplier for a single request",
	Long:  "Runs one request through the engine. A negative psvr asks for the configured default score.",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("run"); err != nil {
			return err
		}
		score, err := strconv.ParseFloat(args[2], 64)
		if err != nil {
			return eris.Wrapf(err, "run: parse psvr %q", args[2])
		}
		pacing, _ := cmd.Flags().GetFloat64("pacing")

		eng, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer eng.Close() //nolint:errcheck

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "model file path: %s\n", eng.ModelID())
		fmt.Fprintf(out, "brand ID:        %s\n", args[0])
		fmt.Fprintf(out, "adgroup ID:      %s\n", args[1])
		fmt.Fprintf(out, "predicted SVR:   %g\n", score)
		if pacing != model.NoPacing {
			fmt.Fprintf(out, "pacing:          %g\n", pacing)
		}
		fmt.Fprintln(out)

		res, runErr := eng.Run(model.NewRequest(args[0], args[1], score).WithPacing(pacing))
		if runErr != nil {
			fmt.Fprintln(out, "ERROR!")
			fmt.Fprintln(out, res.Message)
			return nil
		}
		fmt.Fprintln(out, "model output")
		fmt.Fprintf(out, "svr:             %g\n", res.Score)
		fmt.Fprintf(out, "multiplier:      %g\n", res.Multiplier)
		if res.PassThrough {
			fmt.Fprintln(out, "(adgroup not in model, multiplier passed through)")
		}
		return nil
	},
}

func init() {
	addModelDirFlag(runCmd)
	runCmd.Flags().Float64("pacing", model.NoPacing, "pacing signal in [0,1]; -1 for none")
	rootCmd.AddCommand(runCmd)
}
