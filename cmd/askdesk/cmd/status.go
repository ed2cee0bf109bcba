package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show index and store statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			ctx := cmd.Context()

			docs, err := a.documents.ListAll(ctx)
			if err != nil {
				return err
			}
			chunkCount, err := a.chunks.Count(ctx)
			if err != nil {
				return err
			}
			codes, err := a.departments.ListCodes(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("index path:  %s\n", a.cfg.Paths.IndexPath)
			fmt.Printf("dimension:   %d\n", a.index.Index().Dimension())
			fmt.Printf("vectors:     %d\n", a.index.Index().Ntotal())
			fmt.Printf("documents:   %d\n", len(docs))
			fmt.Printf("chunks:      %d\n", chunkCount)
			fmt.Printf("departments: %v\n", codes)
			return nil
		},
	}
}
