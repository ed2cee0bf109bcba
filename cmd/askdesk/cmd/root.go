// Package cmd provides the CLI commands for askdesk.
package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	deskerrors "github.com/kishika1sei/askdesk/internal/errors"
)

// Exit codes. Upload failures distinguish the two operator-actionable
// causes so shell scripts can branch on them.
const (
	ExitOK              = 0
	ExitError           = 1
	ExitUnsupportedFile = 2
	ExitScanPDF         = 3
)

var (
	configPath string
	debugMode  bool
)

// NewRootCmd creates the root command for the askdesk CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "askdesk",
		Short: "Internal document Q&A service",
		Long: `askdesk answers internal questions from uploaded department documents.

Documents (PDF, text, markdown, CSV) are chunked, embedded, and indexed;
questions are routed to a department and answered from the retrieved
context with citations.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: $HOME/.askdesk/config.yaml)")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	cmd.AddCommand(newUploadCmd())
	cmd.AddCommand(newDeleteCmd())
	cmd.AddCommand(newReindexCmd())
	cmd.AddCommand(newChatCmd())
	cmd.AddCommand(newSessionsCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newDepartmentsCmd())

	return cmd
}

// Execute runs the CLI and maps errors to exit codes.
func Execute() int {
	// Provider keys come from the environment; a local .env is a
	// convenience for development.
	_ = godotenv.Load()

	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitCodeFor(err)
	}
	return ExitOK
}

func exitCodeFor(err error) int {
	switch deskerrors.GetCode(err) {
	case deskerrors.ErrCodeUnsupportedFileType:
		return ExitUnsupportedFile
	case deskerrors.ErrCodeScanPdf:
		return ExitScanPDF
	default:
		return ExitError
	}
}
