package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/aixgo-dev/dailyagent/pkg/assistant"
)

func newChatCmd(o *rootOptions) *cobra.Command {
	var message string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the assistant, interactively or with a single message",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(o.cfg, o.log)
			if err != nil {
				return err
			}
			defer a.close()

			if message != "" {
				res, err := a.coord.Chat(cmd.Context(), message, "")
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), res.Response)
				return nil
			}
			return repl(cmd.Context(), a.coord, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "send one message and exit")
	return cmd
}

// repl keeps a single session across turns until exit, EOF or Ctrl-C.
// "/new" starts a fresh session.
func repl(ctx context.Context, coord *assistant.Coordinator, out io.Writer) error {
	line := liner.NewLiner()
	defer func() { _ = line.Close() }()
	line.SetCtrlCAborts(true)

	if !coord.Available() {
		_, _ = fmt.Fprintln(out, "Conversational AI is not available; set an API key to chat.")
	}
	_, _ = fmt.Fprintln(out, "Type a message, /new for a new conversation, or exit to quit.")

	var sessionID string
	for {
		input, err := line.Prompt("you> ")
		if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}

		input = strings.TrimSpace(input)
		switch strings.ToLower(input) {
		case "":
			continue
		case "exit", "quit":
			return nil
		case "/new":
			if sessionID != "" {
				coord.Forget(sessionID)
			}
			sessionID = ""
			_, _ = fmt.Fprintln(out, "Started a new conversation.")
			continue
		}
		line.AppendHistory(input)

		res, err := coord.Chat(ctx, input, sessionID)
		if err != nil {
			_, _ = fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		sessionID = res.SessionID
		_, _ = fmt.Fprintf(out, "assistant> %s\n\n", res.Response)
	}
}
