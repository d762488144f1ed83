package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var Version = "dev"

// root flags
var (
	configPaths []string
	dataDir     string
	storeDriver string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "notice-cache",
		Short: "Notice cache - fetch, cache and interpret aeronautical notices",
		Long: `Notice cache answers "which notices are active at these locations for
this window", calling the upstream API only for locations whose cached
notices are older than the freshness window.

Examples:
  notice-cache fetch KSEA KPDX
  notice-cache fetch KSEA --start 2024-01-01 --end 2024-01-02 --annotate
  notice-cache brief 12345,67890 --role pilot
  notice-cache serve --config notice-cache.toml`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringSliceVarP(&configPaths, "config", "c", nil, "config file(s), TOML or YAML; later files win")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "directory for database and index files (default: ./data)")
	rootCmd.PersistentFlags().StringVar(&storeDriver, "store", "", "store driver: sqlite, postgres or memory")

	rootCmd.AddCommand(fetchCmd())
	rootCmd.AddCommand(getCmd())
	rootCmd.AddCommand(annotateCmd())
	rootCmd.AddCommand(briefCmd())
	rootCmd.AddCommand(searchCmd())
	rootCmd.AddCommand(reindexCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(mcpCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
