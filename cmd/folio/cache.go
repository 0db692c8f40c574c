package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/oriys/folio/internal/output"
	"github.com/spf13/cobra"
)

var outputFormat string

func cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the cache of a running daemon",
	}
	cmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "Output format: table, json, yaml")
	cmd.AddCommand(
		cacheStatsCmd(),
		cacheInvalidateCmd(),
		cacheActionCmd("invalidate-all", "Invalidate every content type", "/cache/invalidate-all"),
		cacheActionCmd("warm", "Warm every registered content type", "/cache/warm"),
		cacheActionCmd("reset-stats", "Reset hit/miss counters", "/cache/reset-stats"),
		cacheActionCmd("reconnect", "Reconnect to the cache backend", "/cache/reconnect"),
		cacheFlushCmd(),
	)
	return cmd
}

func cacheStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cache hit/miss statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			var stats output.StatsRow
			if err := adminRequest(cmd.Context(), http.MethodGet, "/cache/stats", &stats); err != nil {
				return err
			}
			return printer().PrintStats(stats)
		},
	}
}

func cacheInvalidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "invalidate <content-type>",
		Short: "Invalidate every entry of one content type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out map[string]any
			if err := adminRequest(cmd.Context(), http.MethodPost, "/cache/invalidate/"+args[0], &out); err != nil {
				return err
			}
			return printer().PrintResult(out)
		},
	}
}

func cacheFlushCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "flush",
		Short: "Delete every key in the cache namespace",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("flush deletes every cached entry; re-run with --yes to confirm")
			}
			var out map[string]any
			if err := adminRequest(cmd.Context(), http.MethodPost, "/cache/flush", &out); err != nil {
				return err
			}
			return printer().PrintResult(out)
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the flush")
	return cmd
}

func cacheActionCmd(use, short, path string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			var out map[string]any
			if err := adminRequest(cmd.Context(), http.MethodPost, path, &out); err != nil {
				return err
			}
			return printer().PrintResult(out)
		},
	}
}

// adminRequest calls the daemon's admin surface and decodes a JSON answer.
func adminRequest(ctx context.Context, method, path string, out any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Minute)
	defer cancel()

	url := strings.TrimRight(serverAddr, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("contact daemon at %s: %w", serverAddr, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, strings.TrimSpace(string(body)))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func printer() *output.Printer {
	return output.NewPrinter(output.ParseFormat(outputFormat))
}
