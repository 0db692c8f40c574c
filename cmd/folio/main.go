package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	serverAddr string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "folio",
		Short: "Folio - content cache for a portfolio site",
		Long:  "Serves site content through a Redis-backed read-through cache and exposes cache admin operations",
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (JSON or YAML)")
	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", "http://localhost:8080", "Daemon address for cache commands")

	rootCmd.AddCommand(
		daemonCmd(),
		cacheCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
