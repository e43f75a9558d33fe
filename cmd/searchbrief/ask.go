package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/searchbrief/client"
)

func askCMD() *cobra.Command {
	var server string
	var token string
	var sessionID int64

	var ask = &cobra.Command{
		Use:   "ask [query]",
		Short: "Search from the terminal; without a query starts an interactive prompt",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			if token == "" {
				token = os.Getenv("SEARCHBRIEF_TOKEN")
			}
			c := client.New(server, token)
			out := cmd.OutOrStdout()
			c.Navigate = func(id int64) { fmt.Fprintf(out, "\n[session %d]\n", id) }
			if sessionID > 0 {
				if err := c.Open(ctx, sessionID); err != nil {
					return fmt.Errorf("open session %d: %w", sessionID, err)
				}
				fmt.Fprintf(out, "[session %d, %d searches]\n", sessionID, len(c.View.Searches()))
			}

			if len(args) > 0 {
				return askOnce(ctx, c, out, strings.Join(args, " "))
			}
			return repl(ctx, c, cmd.InOrStdin(), out)
		},
	}
	ask.Flags().StringVar(&server, "server", "http://localhost:10001", "searchbrief server URL")
	ask.Flags().StringVar(&token, "token", "", "bearer token (default $SEARCHBRIEF_TOKEN)")
	ask.Flags().Int64Var(&sessionID, "session", 0, "continue an existing session")

	return ask
}

func repl(ctx context.Context, c *client.Client, in io.Reader, out io.Writer) error {
	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !sc.Scan() {
			return sc.Err()
		}
		line := strings.TrimSpace(sc.Text())
		switch line {
		case "":
			continue
		case ":quit", ":q":
			return nil
		case ":new":
			c.View.Reset()
			fmt.Fprintln(out, "[new session]")
			continue
		}
		if err := askOnce(ctx, c, out, line); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintln(out, "error:", err)
		}
	}
}

func askOnce(ctx context.Context, c *client.Client, out io.Writer, query string) error {
	res, err := c.Search(ctx, query, func(tok string) { fmt.Fprint(out, tok) })
	fmt.Fprintln(out)
	if errors.Is(err, client.ErrLimitReached) {
		fmt.Fprintln(out, res.Message)
		return nil
	}
	if err != nil {
		return err
	}
	if res.Empty {
		fmt.Fprintln(out, res.Message)
		return nil
	}
	for i, r := range res.Search.Results {
		fmt.Fprintf(out, "%2d. %s (%s)\n    %s\n", i+1, r.Title, r.Source, r.Link)
	}
	if len(res.Search.Suggestions) > 0 {
		fmt.Fprintln(out, "Try next:")
		for _, s := range res.Search.Suggestions {
			fmt.Fprintln(out, "  -", s)
		}
	}
	return nil
}
