package cmd

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kishika1sei/askdesk/internal/model"
)

func newDepartmentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "departments",
		Short: "Manage the department catalog",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List department codes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			codes, err := a.departments.ListCodes(cmd.Context())
			if err != nil {
				return err
			}
			for _, code := range codes {
				d, err := a.departments.GetByCode(cmd.Context(), code)
				if err != nil {
					return err
				}
				fmt.Printf("%-12s %s\n", d.Code, d.Name)
			}
			return nil
		},
	}

	add := &cobra.Command{
		Use:   "add [code] [name]",
		Short: "Add a department",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			d := &model.Department{
				ID:   uuid.NewString(),
				Code: args[0],
				Name: args[1],
			}
			if err := a.departments.Create(cmd.Context(), d); err != nil {
				return err
			}
			fmt.Printf("added: %s (%s)\n", d.Code, d.ID)
			return nil
		},
	}

	cmd.AddCommand(list, add)
	return cmd
}
