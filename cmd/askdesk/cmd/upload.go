package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newUploadCmd() *cobra.Command {
	var department string
	var actor string
	var concurrency int

	cmd := &cobra.Command{
		Use:   "upload [files...]",
		Short: "Upload and index documents for a department",
		Long: `Upload one or more files (PDF, text, markdown, CSV) to a department.
Each file is ingested and indexed immediately; failures are reported
per file and do not stop the batch.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpload(cmd.Context(), department, actor, args, concurrency)
		},
	}

	cmd.Flags().StringVarP(&department, "department", "d", "", "Department code (required)")
	cmd.Flags().StringVarP(&actor, "actor", "a", "", "Acting user id")
	cmd.Flags().IntVar(&concurrency, "concurrency", 2, "Parallel uploads")
	_ = cmd.MarkFlagRequired("department")

	return cmd
}

func runUpload(ctx context.Context, department, actor string, paths []string, concurrency int) error {
	a, cleanup, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	if concurrency <= 0 {
		concurrency = 1
	}

	var mu sync.Mutex
	success := 0
	var firstErr error

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, p := range paths {
		g.Go(func() error {
			data, err := os.ReadFile(p)
			if err == nil {
				_, err = a.docs.Upload(gctx, actor, department, filepath.Base(p), data)
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				fmt.Fprintf(os.Stderr, "failed: %s: %v\n", p, err)
				if firstErr == nil {
					firstErr = err
				}
				// Keep uploading the rest of the batch.
				return nil
			}
			success++
			fmt.Printf("uploaded: %s\n", p)
			return nil
		})
	}
	_ = g.Wait()

	failed := len(paths) - success
	fmt.Printf("done: %d succeeded, %d failed\n", success, failed)
	if firstErr != nil {
		return firstErr
	}
	return nil
}
