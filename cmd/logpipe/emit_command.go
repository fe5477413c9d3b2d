package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"logpipe"
)

func newEmitCommand() *cobra.Command {
	var (
		serverAddr string
		wsURL      string
		count      int
		message    string
	)

	cmd := &cobra.Command{
		Use:   "emit",
		Short: "Send test log messages through the async pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			appender, err := buildAppender(serverAddr, wsURL)
			if err != nil {
				return err
			}

			pipeline, err := logpipe.New(logpipe.Options{Level: "trace"}, appender)
			if err != nil {
				_ = appender.Close()
				return err
			}
			logger := pipeline.Logger()
			for i := 0; i < count; i++ {
				logger.Info(fmt.Sprintf("%s %d", message, i))
			}
			// Close drains the queue, so every message is on the wire before
			// the command returns.
			if err := pipeline.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent %d messages\n", count)
			return nil
		},
	}

	cmd.Flags().StringVar(&serverAddr, "server", "", "TCP log server address")
	cmd.Flags().StringVar(&wsURL, "ws", "", "Web-socket log server URL (ws:// or wss://)")
	cmd.Flags().IntVar(&count, "count", 3, "Number of messages to send")
	cmd.Flags().StringVar(&message, "message", "This is message", "Message prefix")

	return cmd
}

func buildAppender(serverAddr, wsURL string) (*logpipe.AsyncAppender, error) {
	haveServer := strings.TrimSpace(serverAddr) != ""
	haveWS := strings.TrimSpace(wsURL) != ""
	switch {
	case haveServer && haveWS:
		return nil, errors.New("--server and --ws are mutually exclusive")
	case haveServer:
		return logpipe.NewServer(serverAddr).Build()
	case haveWS:
		return logpipe.NewWebSocket(wsURL).Build()
	default:
		return nil, errors.New("one of --server or --ws is required")
	}
}
