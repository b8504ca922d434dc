package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newJobCommand(ctx *commandContext) *cobra.Command {
	jobCmd := &cobra.Command{
		Use:   "job",
		Short: "Inspect and manage translation jobs",
	}

	jobCmd.AddCommand(newJobShowCommand(ctx))
	jobCmd.AddCommand(newJobCancelCommand(ctx))
	jobCmd.AddCommand(newJobRateCommand(ctx))

	return jobCmd
}

func newJobShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	var showText bool

	cmd := &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show a job's status and chunk breakdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			job, err := client.Job(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, job)
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			fmt.Fprintf(out, "Job:      %s\n", job.JobID)
			fmt.Fprintf(out, "Status:   %s\n", colorStatus(job.Status, colorize))
			fmt.Fprintf(out, "Progress: %d%% (%d/%d chunks, %d failed)\n",
				job.Progress, job.ChunksCompleted, job.ChunksTotal, job.ChunksFailed)
			fmt.Fprintf(out, "Usage:    %d in / %d out tokens, $%.4f\n",
				job.InputTokens, job.OutputTokens, job.EstimatedCostUSD)
			if job.ErrorMessage != "" {
				fmt.Fprintf(out, "Error:    %s\n", job.ErrorMessage)
			}
			if len(job.Chunks) > 0 {
				rows := make([][]string, 0, len(job.Chunks))
				for _, chunk := range job.Chunks {
					kind := "text"
					if chunk.IsCodeBlock {
						kind = "code"
						if chunk.CodeLanguage != "" {
							kind = "code (" + chunk.CodeLanguage + ")"
						}
					}
					rows = append(rows, []string{
						strconv.Itoa(chunk.Index),
						colorStatus(chunk.Status, colorize),
						kind,
						chunk.ErrorMessage,
					})
				}
				fmt.Fprintln(out, renderTable([]string{"Chunk", "Status", "Kind", "Error"}, rows, map[int]bool{0: true}))
			}
			if showText && job.TranslatedText != "" {
				fmt.Fprintln(out)
				fmt.Fprintln(out, job.TranslatedText)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the full response as JSON")
	cmd.Flags().BoolVar(&showText, "text", false, "Also print the translated text")
	return cmd
}

func newJobCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a pending or processing job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			job, err := client.Cancel(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Job %s is now %s\n", job.JobID, job.Status)
			return nil
		},
	}
}

func newJobRateCommand(ctx *commandContext) *cobra.Command {
	var rating int
	var comment string

	cmd := &cobra.Command{
		Use:   "rate <job-id>",
		Short: "Rate a finished translation (+1 good, -1 bad)",
		Long: `Rate records feedback for a finished job. A positive rating keeps the
cached translation around longer; a negative rating evicts it so the
next request retranslates the document.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if rating != 1 && rating != -1 {
				return fmt.Errorf("rating must be 1 or -1, got %d", rating)
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}
			if err := client.Feedback(cmd.Context(), args[0], rating, comment); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Feedback recorded")
			return nil
		},
	}

	cmd.Flags().IntVar(&rating, "rating", 1, "Rating: 1 (good) or -1 (bad)")
	cmd.Flags().StringVar(&comment, "comment", "", "Optional comment")
	return cmd
}
