package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newStatsCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show aggregate job and usage statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			stats, err := client.Stats(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, stats)
			}
			rows := [][]string{
				{"Total jobs", strconv.Itoa(stats.Total)},
				{"Active", strconv.Itoa(stats.Active)},
				{"Completed", strconv.Itoa(stats.Completed)},
				{"Failed", strconv.Itoa(stats.Failed)},
				{"Cancelled", strconv.Itoa(stats.Cancelled)},
				{"Timed out", strconv.Itoa(stats.TimedOut)},
				{"Input tokens", strconv.FormatInt(stats.InputTokens, 10)},
				{"Output tokens", strconv.FormatInt(stats.OutputTokens, 10)},
				{"Estimated cost", fmt.Sprintf("$%.4f", stats.EstimatedCostUSD)},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Metric", "Value"}, rows, map[int]bool{1: true}))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the full response as JSON")
	return cmd
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check daemon reachability and show a summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			healthCtx, cancel := context.WithTimeout(cmd.Context(), waitTimeout)
			defer cancel()
			if err := client.Health(healthCtx); err != nil {
				fmt.Fprintln(out, renderStatusLine("Daemon", statusError, err.Error(), colorize))
				return fmt.Errorf("daemon unreachable")
			}
			fmt.Fprintln(out, renderStatusLine("Daemon", statusOK, client.baseURL, colorize))

			stats, err := client.Stats(cmd.Context())
			if err != nil {
				fmt.Fprintln(out, renderStatusLine("Jobs", statusWarn, err.Error(), colorize))
			} else {
				summary := fmt.Sprintf("%d total, %d active, %d failed", stats.Total, stats.Active, stats.Failed)
				kind := statusOK
				if stats.Failed > 0 {
					kind = statusWarn
				}
				fmt.Fprintln(out, renderStatusLine("Jobs", kind, summary, colorize))
			}

			cacheStats, err := client.CacheStats(cmd.Context())
			if err != nil {
				fmt.Fprintln(out, renderStatusLine("Cache", statusWarn, err.Error(), colorize))
			} else {
				summary := fmt.Sprintf("%d entries, %d hits", cacheStats.Entries, cacheStats.HitTotal)
				fmt.Fprintln(out, renderStatusLine("Cache", statusOK, summary, colorize))
			}
			return nil
		},
	}
}
