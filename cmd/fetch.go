package main

import (
	"fmt"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/saturn/internal/fetcher"
	"github.com/sells-group/saturn/internal/scoring"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download a model bundle over HTTP(S) or FTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if cmd.Flags().Changed("base-url") {
			cfg.Fetch.BaseURL, _ = cmd.Flags().GetString("base-url")
		}
		if err := cfg.Validate("fetch"); err != nil {
			return err
		}
		dest, _ := cmd.Flags().GetString("dest")
		if dest == "" {
			dest = cfg.Model.Dir
		}

		f, err := fetcher.New(cfg.Fetch.BaseURL, fetcher.Options{
			Timeout:     time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
			MaxRetries:  cfg.Fetch.MaxRetries,
			RateLimit:   cfg.Fetch.RateLimit,
			FTPUser:     cfg.Fetch.FTPUser,
			FTPPassword: cfg.Fetch.FTPPassword,
		})
		if err != nil {
			return err
		}

		rep, err := fetcher.FetchBundle(ctx, f, cfg.Fetch.BaseURL, dest, bundleFiles())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		names := make([]string, 0, len(rep.Written))
		for name := range rep.Written {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(out, "fetched  %-32s %d bytes\n", name, rep.Written[name])
		}
		for _, name := range rep.Skipped {
			fmt.Fprintf(out, "skipped  %s (not on server)\n", name)
		}
		return nil
	},
}

// bundleFiles lists what makes up a model directory.
func bundleFiles() []fetcher.BundleFile {
	return []fetcher.BundleFile{
		{Name: cfg.Model.SettingsFile},
		{Name: scoring.ObjectFile},
		{Name: cfg.Model.BrandDefaultsFile, Optional: true},
		{Name: cfg.Model.CutoffFile, Optional: true},
	}
}

func init() {
	fetchCmd.Flags().String("base-url", "", "bundle base URL, http(s):// or ftp:// (default from config)")
	fetchCmd.Flags().String("dest", "", "destination directory (default model.dir)")
	rootCmd.AddCommand(fetchCmd)
}
