package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newReindexCmd() *cobra.Command {
	var actor string

	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Re-ingest every document and rebuild the vector index",
		Long: `Drop and re-create the chunks of every document from its stored file,
then rebuild the vector index from scratch. Per-document failures are
reported and skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			report, err := a.docs.ReindexAll(cmd.Context(), actor)
			if err != nil {
				return err
			}

			fmt.Printf("documents: %d total, %d succeeded, %d failed\n",
				report.TotalDocuments, report.SuccessDocuments, report.FailedDocuments)
			for engine, n := range report.EngineCounts {
				fmt.Printf("  engine %s: %d\n", engine, n)
			}
			for w, n := range report.WarningCounts {
				fmt.Printf("  warning %s: %d\n", w, n)
			}
			for _, f := range report.Failures {
				fmt.Printf("  failed %v (%v): %v\n", f["document_id"], f["title"], f["error"])
			}
			fmt.Printf("index: %d vectors\n", a.index.Index().Ntotal())
			return nil
		},
	}

	cmd.Flags().StringVarP(&actor, "actor", "a", "", "Acting user id")
	return cmd
}
