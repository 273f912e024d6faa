package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	envFile string
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "hyperadar",
		Short:        "Rank hyped tokens and serve them as a live bubble map",
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before config")

	root.AddCommand(fetchCmd())
	root.AddCommand(rankCmd())
	root.AddCommand(layoutCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(runCmd())

	return root
}

func fetchCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch one snapshot and save it as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(cmd.Context(), out)
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "snapshot.json", "output file")
	return cmd
}

func rankCmd() *cobra.Command {
	var opts rankOptions

	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Show tokens ordered by hype",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRank(cmd.Context(), opts)
		},
	}

	cmd.Flags().BoolVar(&opts.json, "json", false, "output as JSON")
	cmd.Flags().StringVar(&opts.timeframe, "timeframe", "", "5m, 1h, 6h or 24h (default: from config)")
	cmd.Flags().IntVar(&opts.limit, "limit", 0, "max tokens to rank (default: from config)")
	cmd.Flags().StringVarP(&opts.query, "query", "q", "", "substring filter on name or symbol")
	cmd.Flags().IntVar(&opts.show, "show", 25, "rows to print")
	return cmd
}

func layoutCmd() *cobra.Command {
	var opts layoutOptions

	cmd := &cobra.Command{
		Use:   "layout",
		Short: "Run the bubble layout headless and print placements",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLayout(cmd.Context(), opts)
		},
	}

	cmd.Flags().Float64Var(&opts.width, "width", 1200, "surface width in pixels")
	cmd.Flags().IntVar(&opts.steps, "steps", 300, "simulation steps to run")
	cmd.Flags().StringVar(&opts.timeframe, "timeframe", "", "5m, 1h, 6h or 24h (default: from config)")
	return cmd
}

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP and websocket server over a single snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), port, false)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}

func runCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start daemon with refresh scheduler, alerts and server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), port, true)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}
