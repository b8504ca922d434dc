package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"glossa/internal/api"
	"glossa/internal/translator"
)

func newTranslateCommand(ctx *commandContext) *cobra.Command {
	var (
		sourceLang string
		targetLang string
		pageURL    string
		model      string
		userID     string
		sessionID  string
		chunkSize  int
		maxChunks  int
		stream     bool
		jsonOut    bool
	)

	cmd := &cobra.Command{
		Use:   "translate [file]",
		Short: "Translate a document from a file or stdin",
		Long: `Translate reads the document from the given file (or stdin when no
file is supplied), submits it to the daemon, and prints the translated
text. With --stream the translation is printed chunk by chunk as the
daemon completes each one.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readDocument(args)
			if err != nil {
				return err
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}

			req := api.TranslateRequest{
				Text:       text,
				SourceLang: sourceLang,
				TargetLang: targetLang,
				PageURL:    pageURL,
				Model:      model,
				UserID:     userID,
				SessionID:  sessionID,
				ChunkSize:  chunkSize,
				MaxChunks:  maxChunks,
			}

			out := cmd.OutOrStdout()
			if stream {
				return streamTranslate(cmd, client, req, jsonOut)
			}

			resp, err := client.Translate(cmd.Context(), req)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, resp)
			}
			fmt.Fprintln(out, resp.TranslatedText)
			if resp.ErrorMessage != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", resp.ErrorMessage)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&sourceLang, "source", "s", "", "Source language code (e.g. en)")
	cmd.Flags().StringVarP(&targetLang, "target", "t", "", "Target language code (e.g. fr)")
	cmd.Flags().StringVar(&pageURL, "url", "", "Page URL the document came from")
	cmd.Flags().StringVar(&model, "model", "", "Override the configured model")
	cmd.Flags().StringVar(&userID, "user", "", "User identifier recorded with the job")
	cmd.Flags().StringVar(&sessionID, "session", "", "Session identifier recorded with the job")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "Override the chunk size in characters")
	cmd.Flags().IntVar(&maxChunks, "max-chunks", 0, "Override the maximum chunk count")
	cmd.Flags().BoolVar(&stream, "stream", false, "Print chunks as they complete")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the full response as JSON")
	_ = cmd.MarkFlagRequired("source")
	_ = cmd.MarkFlagRequired("target")

	return cmd
}

func streamTranslate(cmd *cobra.Command, client *apiClient, req api.TranslateRequest, jsonOut bool) error {
	out := cmd.OutOrStdout()

	var streamErr string
	err := client.TranslateStream(cmd.Context(), req, func(event translator.Event) error {
		if jsonOut {
			return writeJSON(cmd, event)
		}
		switch event.Type {
		case translator.EventChunk:
			fmt.Fprint(out, event.Text)
		case translator.EventDone:
			if event.Cached {
				fmt.Fprint(out, event.Text)
			}
			fmt.Fprintln(out)
		case translator.EventError:
			streamErr = event.Error
		}
		return nil
	})
	if err != nil {
		return err
	}
	if streamErr != "" {
		return fmt.Errorf("translation failed: %s", streamErr)
	}
	return nil
}

func readDocument(args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("read document: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", fmt.Errorf("document %s is empty", args[0])
	}
	return string(data), nil
}
