package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hrygo/personaflow/plugin/ai/agent"
)

// componentsFactory is replaced in tests.
var componentsFactory = func(ctx context.Context) (*components, error) {
	prof, err := loadProfile()
	if err != nil {
		return nil, err
	}
	return openComponents(ctx, prof)
}

func newChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat [utterance]",
		Short: "Talk to a persona, printing one JSON event per line",
		Long: "Talk to a persona. With an utterance argument one turn is run; " +
			"otherwise every stdin line is a turn and the conversation history is kept between them.",
		RunE: func(cmd *cobra.Command, args []string) error {
			personaID, _ := cmd.Flags().GetString("persona")
			historyFile, _ := cmd.Flags().GetString("history-file")

			var history []agent.Turn
			if historyFile != "" {
				data, err := os.ReadFile(historyFile)
				if err != nil {
					return fmt.Errorf("read history file: %w", err)
				}
				if err := json.Unmarshal(data, &history); err != nil {
					return fmt.Errorf("parse history file: %w", err)
				}
			}

			comps, err := componentsFactory(cmd.Context())
			if err != nil {
				return err
			}
			defer comps.Close()

			in := cmd.InOrStdin()
			if len(args) > 0 {
				in = strings.NewReader(strings.Join(args, " "))
			}
			return runChat(cmd.Context(), comps.orchestrator, personaID, history, in, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringP("persona", "p", "", "persona id (required)")
	cmd.Flags().String("history-file", "", "JSON array of {role, content} turns to start from")
	_ = cmd.MarkFlagRequired("persona")
	return cmd
}

// runChat runs one turn per non-empty input line and writes every event as a JSON line.
// The final event of each turn is appended to the history as the persona's reply.
func runChat(ctx context.Context, orch *agent.Orchestrator, personaID string, history []agent.Turn, in io.Reader, out io.Writer) error {
	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		utterance := strings.TrimSpace(scanner.Text())
		if utterance == "" {
			continue
		}

		var reply string
		err := orch.Respond(ctx, &agent.Request{
			PersonaID: personaID,
			Utterance: utterance,
			History:   history,
		}, func(e *agent.Event) error {
			if e.Type.IsFinal() {
				reply = e.Content
			}
			return enc.Encode(e)
		})
		if err != nil {
			return err
		}
		history = append(history,
			agent.Turn{Role: agent.RoleUser, Content: utterance},
			agent.Turn{Role: agent.RoleAgent, Content: reply},
		)
	}
	return scanner.Err()
}
