package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scimuse/scimuse/internal/bootstrap"
)

func newIngestCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <pdf>...",
		Short: "Extract, caption and index one or more PDF files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				for _, path := range args {
					report, err := app.Ingestor.Ingest(ctx, path)
					if err != nil {
						return fmt.Errorf("ingest %s: %w", path, err)
					}
					if report.Duplicate {
						fmt.Fprintf(cmd.OutOrStdout(), "%s: already ingested (document %s)\n", path, report.DocumentID)
						continue
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s: document %s, %d text chunks, %d figures, %d vectors\n",
						path, report.DocumentID, report.TextChunks, report.Figures, report.Embeddings)
				}
				return nil
			})
		},
	}
}
