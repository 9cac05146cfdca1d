package cmd

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/datatalk-io/datatalk/internal/conversation"
)

var sessionsUserID string

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect saved conversations",
}

func init() {
	sessionsCmd.PersistentFlags().StringVar(&sessionsUserID, "user", "", "user ID (defaults to $USER)")
	sessionsCmd.AddCommand(sessionsListCmd, sessionsShowCmd, sessionsDeleteCmd)
	rootCmd.AddCommand(sessionsCmd)
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your sessions, most recently active first",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		sessions, err := a.engine.ListConversations(ctx, resolveUser(sessionsUserID), 50)
		if err != nil {
			return fmt.Errorf("list sessions: %w", err)
		}
		if len(sessions) == 0 {
			fmt.Println("No saved sessions.")
			return nil
		}
		for _, s := range sessions {
			fmt.Printf("%s  %3d turns  last active %s\n",
				s.SessionID, s.TurnCount, formatTime(s.UpdatedAt))
		}
		return nil
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show the recent messages of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		sessionID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid session ID %q: %w", args[0], err)
		}

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		messages, err := a.engine.RecentHistory(ctx, sessionID, resolveUser(sessionsUserID), 50)
		if err != nil {
			return fmt.Errorf("show session: %w", err)
		}
		for _, m := range messages {
			label := "You"
			if m.Role == conversation.RoleAssistant {
				label = "Datatalk"
			}
			fmt.Printf("[%d] %s> %s\n\n", m.Sequence, label, m.Content)
		}
		return nil
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Delete a session and its messages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		sessionID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid session ID %q: %w", args[0], err)
		}

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		owner, err := a.store.Owner(ctx, sessionID)
		if err != nil {
			return err
		}
		if owner != resolveUser(sessionsUserID) {
			return fmt.Errorf("session %s belongs to another user", sessionID)
		}

		if err := a.store.Delete(ctx, sessionID); err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
		fmt.Printf("Deleted session %s\n", sessionID)
		return nil
	},
}

func formatTime(t time.Time) string {
	diff := time.Since(t)
	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return fmt.Sprintf("%d minutes ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%d hours ago", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%d days ago", int(diff.Hours()/24))
	default:
		return t.Format("2006-01-02 15:04")
	}
}
