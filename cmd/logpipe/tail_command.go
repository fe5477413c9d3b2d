package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"logpipe/internal/store"
)

func newTailCommand(dbFlag *string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Show the most recent events received by logpiped",
		RunE: func(cmd *cobra.Command, args []string) error {
			eventStore, err := store.Open(*dbFlag)
			if err != nil {
				return err
			}
			defer eventStore.Close()

			events, err := eventStore.Tail(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(events) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no events recorded")
				return nil
			}

			rows := make([][]string, 0, len(events))
			for _, evt := range events {
				rows = append(rows, []string{
					fmt.Sprintf("%d", evt.ID),
					evt.ReceivedAt.Local().Format(time.TimeOnly),
					evt.Source,
					shortSession(evt.SessionID),
					strings.TrimRight(evt.Payload, "\n"),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Received", "Source", "Session", "Payload"},
				rows,
				stdoutIsTerminal(),
			))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of events to show")
	return cmd
}

func shortSession(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}

// stdoutIsTerminal reports whether colourful output makes sense.
func stdoutIsTerminal() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
