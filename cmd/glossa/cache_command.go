package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the translation cache",
	}

	cacheCmd.AddCommand(newCacheStatsCommand(ctx))
	cacheCmd.AddCommand(newCacheInvalidateCommand(ctx))
	cacheCmd.AddCommand(newCacheInvalidateURLCommand(ctx))

	return cacheCmd
}

func newCacheStatsCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache occupancy",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			stats, err := client.CacheStats(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, stats)
			}
			rows := [][]string{
				{"Entries", strconv.FormatInt(stats.Entries, 10)},
				{"Expired", strconv.FormatInt(stats.Expired, 10)},
				{"Pinned", strconv.FormatInt(stats.Pinned, 10)},
				{"Hits", strconv.FormatInt(stats.HitTotal, 10)},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Metric", "Value"}, rows, map[int]bool{1: true}))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the full response as JSON")
	return cmd
}

func newCacheInvalidateCommand(ctx *commandContext) *cobra.Command {
	var sourceLang, targetLang string

	cmd := &cobra.Command{
		Use:   "invalidate <content-hash>",
		Short: "Remove cached translations for a content hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			deleted, err := client.InvalidateCache(cmd.Context(), args[0], sourceLang, targetLang)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cache entries\n", deleted)
			return nil
		},
	}

	cmd.Flags().StringVar(&sourceLang, "source", "", "Limit to a source language")
	cmd.Flags().StringVar(&targetLang, "target", "", "Limit to a target language")
	return cmd
}

func newCacheInvalidateURLCommand(ctx *commandContext) *cobra.Command {
	var sourceLang, targetLang string

	cmd := &cobra.Command{
		Use:   "invalidate-url <url>",
		Short: "Remove cached translations for a page URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			deleted, err := client.InvalidateCacheByURL(cmd.Context(), args[0], sourceLang, targetLang)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cache entries\n", deleted)
			return nil
		},
	}

	cmd.Flags().StringVar(&sourceLang, "source", "", "Limit to a source language")
	cmd.Flags().StringVar(&targetLang, "target", "", "Limit to a target language")
	return cmd
}
