package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var (
		userID  string
		limit   int
		offset  int
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List a user's past translation jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				return fmt.Errorf("--user is required")
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}
			resp, err := client.History(cmd.Context(), userID, limit, offset)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, resp)
			}

			out := cmd.OutOrStdout()
			if len(resp.Jobs) == 0 {
				fmt.Fprintln(out, "No jobs found")
				return nil
			}
			colorize := shouldColorize(out)
			rows := make([][]string, 0, len(resp.Jobs))
			for _, job := range resp.Jobs {
				rows = append(rows, []string{
					job.JobID,
					colorStatus(job.Status, colorize),
					job.SourceLang + ">" + job.TargetLang,
					job.Snippet,
					strconv.Itoa(job.ChunksTotal),
					fmt.Sprintf("$%.4f", job.EstimatedCostUSD),
					job.CreatedAt.Local().Format("2006-01-02 15:04"),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Job", "Status", "Langs", "Snippet", "Chunks", "Cost", "Created"},
				rows,
				map[int]bool{4: true, 5: true},
			))
			fmt.Fprintf(out, "Showing %d of %d jobs\n", len(resp.Jobs), resp.Total)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "User identifier")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of jobs to list")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of jobs to skip")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the full response as JSON")
	return cmd
}
