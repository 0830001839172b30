package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	a2ago "github.com/a2aproject/a2a-go/a2a"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/hupe1980/legalmesh"
	"github.com/hupe1980/legalmesh/a2a"
)

var probeStream bool

var askCmd = &cobra.Command{
	Use:   "ask [query]",
	Short: "Answer one query, or read queries from stdin until \"exit\"",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		c, err := loadComponents(ctx)
		if err != nil {
			return err
		}
		defer c.Close()

		mesh, err := c.NewMesh(ctx)
		if err != nil {
			return err
		}

		sessionID := uuid.NewString()

		if len(args) == 1 {
			answer, err := mesh.Ask(ctx, sessionID, args[0])
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), answer)

			return nil
		}

		return chat(ctx, mesh, sessionID, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

// chat answers one query per input line in a single session.
func chat(ctx context.Context, mesh *legalmesh.Mesh, sessionID string, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)

	for {
		fmt.Fprint(out, "> ")

		if !scanner.Scan() {
			return scanner.Err()
		}

		query := strings.TrimSpace(scanner.Text())

		switch {
		case query == "":
			continue
		case strings.EqualFold(query, "exit"):
			return nil
		}

		answer, err := mesh.Ask(ctx, sessionID, query)
		if err != nil {
			fmt.Fprintln(out, "error:", err)
			continue
		}

		fmt.Fprintln(out, answer)
	}
}

var probeCmd = &cobra.Command{
	Use:   "probe query",
	Short: "Fetch the remote delegate's card and send it a message",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		logger := cfg.Logger()
		client := a2a.NewClient(cfg.Delegate.CardURL, func(o *a2a.ClientOptions) { o.Logger = logger })
		defer func() { _ = client.Close() }()
		out := cmd.OutOrStdout()

		card, err := client.Card(ctx)
		if err != nil {
			logger.Error("probe.card.failed", "url", cfg.Delegate.CardURL, "error", err.Error())
			return err
		}

		if err := printJSON(out, card); err != nil {
			return err
		}

		params := &a2ago.MessageSendParams{Message: a2a.NewUserMessage(args[0])}

		if !probeStream {
			res, err := client.SendMessage(ctx, params)
			if err != nil {
				return err
			}

			return printJSON(out, res)
		}

		for ev, err := range client.SendMessageStream(ctx, params) {
			if err != nil {
				return err
			}

			if err := printJSON(out, ev); err != nil {
				return err
			}
		}

		return nil
	},
}

func init() {
	probeCmd.Flags().BoolVar(&probeStream, "stream", false, "use message/stream")
}

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(w, string(b))

	return err
}
