package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/kishika1sei/askdesk/internal/chat"
	"github.com/kishika1sei/askdesk/internal/model"
	"github.com/kishika1sei/askdesk/internal/vecindex"
)

func newChatCmd() *cobra.Command {
	var user string
	var oneShot string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Ask questions against the indexed documents",
		Long: `Start an interactive turn loop, or answer a single question with
--message. The open session is resumed when one exists; /reset closes it
and /quit exits.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			if oneShot != "" {
				return runChatTurn(cmd.Context(), a, user, oneShot)
			}
			return runChatLoop(cmd.Context(), a, user)
		},
	}

	cmd.Flags().StringVarP(&user, "user", "u", "", "Session owner id")
	cmd.Flags().StringVarP(&oneShot, "message", "m", "", "Answer a single question and exit")
	return cmd
}

func runChatTurn(ctx context.Context, a *app, user, message string) error {
	session, err := a.sessions.GetOrCreateOpenSession(ctx, user)
	if err != nil {
		return err
	}
	result, err := a.rag.Turn(ctx, session, message)
	if err != nil {
		return err
	}
	printTurn(result)
	return nil
}

func runChatLoop(ctx context.Context, a *app, user string) error {
	session, err := a.sessions.GetOrCreateOpenSession(ctx, user)
	if err != nil {
		return err
	}

	// Pick up index updates from concurrent uploads while the loop is open.
	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	watcher := vecindex.NewWatcher(a.index.Index(), a.logger.With("component", "watcher"))
	go func() { _ = watcher.Run(watchCtx) }()

	interactive := isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
	if interactive {
		fmt.Println("askdesk chat (/reset to start over, /quit to exit)")
		if err := printRecentHistory(ctx, a, session.ID); err != nil {
			return err
		}
	}

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		if interactive {
			fmt.Print("> ")
		}
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch line {
		case "/quit", "/exit":
			return nil
		case "/reset":
			if err := a.sessions.ResetSession(ctx, user); err != nil {
				return err
			}
			session, err = a.sessions.GetOrCreateOpenSession(ctx, user)
			if err != nil {
				return err
			}
			if interactive {
				fmt.Println("session reset")
			}
			continue
		}

		result, err := a.rag.Turn(ctx, session, line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		printTurn(result)
	}
	return scanner.Err()
}

// printRecentHistory replays the tail of the resumed session so the user
// sees where the conversation left off.
func printRecentHistory(ctx context.Context, a *app, sessionID string) error {
	msgs, err := a.chatStore.RecentMessages(ctx, sessionID, a.cfg.Chat.RecentMessageDisplay)
	if err != nil {
		return err
	}
	for _, m := range msgs {
		switch m.Role {
		case model.ChatRoleUser:
			fmt.Printf("> %s\n", m.Content)
		case model.ChatRoleAssistant:
			fmt.Println(m.Content)
		}
	}
	return nil
}

func printTurn(result *chat.TurnResult) {
	fmt.Println(result.Answer)
	for _, c := range result.Citations {
		fmt.Printf("  [%s] %s\n", c.Title, formatLocator(c.Locator))
	}
}

func formatLocator(loc model.Locator) string {
	switch loc.Type {
	case "page_set":
		return fmt.Sprintf("pages %s", joinInts(loc.Pages))
	case "chunk_set":
		return fmt.Sprintf("chunks %s", joinInts(loc.Chunks))
	}
	return loc.Type
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = fmt.Sprintf("%d", x)
	}
	return strings.Join(parts, ", ")
}
