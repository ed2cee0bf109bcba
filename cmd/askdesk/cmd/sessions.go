package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSessionsCmd() *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect and reset chat sessions",
	}
	cmd.PersistentFlags().StringVarP(&user, "user", "u", "", "Session owner id")

	show := &cobra.Command{
		Use:   "show",
		Short: "Show the open session and its recent messages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			session, err := a.sessions.GetOrCreateOpenSession(cmd.Context(), user)
			if err != nil {
				return err
			}
			fmt.Printf("session: %s (started %s)\n", session.ID, session.CreatedAt.Format("2006-01-02 15:04"))
			return printRecentHistory(cmd.Context(), a, session.ID)
		},
	}

	reset := &cobra.Command{
		Use:   "reset",
		Short: "Close the open session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			if err := a.sessions.ResetSession(cmd.Context(), user); err != nil {
				return err
			}
			fmt.Println("session reset")
			return nil
		},
	}

	cmd.AddCommand(show, reset)
	return cmd
}
