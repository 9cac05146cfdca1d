package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/datatalk-io/datatalk/internal/engine"
)

var (
	askSessionID string
	askUserID    string
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question about your data",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askSessionID, "session", "", "session ID to continue (new session when empty)")
	askCmd.Flags().StringVar(&askUserID, "user", "", "user ID owning the session (defaults to $USER)")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	sessionID := uuid.Nil
	if askSessionID != "" {
		sessionID, err = uuid.Parse(askSessionID)
		if err != nil {
			return fmt.Errorf("invalid session ID %q: %w", askSessionID, err)
		}
	}

	resp, err := a.engine.AnswerQuestion(ctx, engine.Request{
		SessionID: sessionID,
		UserID:    resolveUser(askUserID),
		Question:  strings.Join(args, " "),
	})
	if err != nil && !errors.Is(err, engine.ErrNotPersisted) {
		return err
	}

	fmt.Println(resp.Answer)
	if resp.Query != "" {
		fmt.Printf("\nQuery:\n%s\n", resp.Query)
	}
	if sessionID == uuid.Nil {
		fmt.Printf("\nSession: %s (continue with --session)\n", resp.SessionID)
	}
	if errors.Is(err, engine.ErrNotPersisted) {
		fmt.Fprintln(os.Stderr, "warning: this exchange could not be saved to the conversation history")
	}
	return nil
}

func resolveUser(flag string) string {
	if flag != "" {
		return flag
	}
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "default"
}
