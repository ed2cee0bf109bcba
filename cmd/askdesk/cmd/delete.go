package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDeleteCmd() *cobra.Command {
	var actor string

	cmd := &cobra.Command{
		Use:   "delete [document-id...]",
		Short: "Delete documents and their index entries",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			for _, id := range args {
				if err := a.docs.Delete(cmd.Context(), actor, id); err != nil {
					return fmt.Errorf("delete %s: %w", id, err)
				}
				fmt.Printf("deleted: %s\n", id)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&actor, "actor", "a", "", "Acting user id")
	return cmd
}
