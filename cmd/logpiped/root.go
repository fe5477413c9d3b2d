package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"logpipe/internal/receiver"
	"logpipe/internal/store"
)

func newRootCommand() *cobra.Command {
	var (
		tcpBind  string
		wsBind   string
		dbPath   string
		lockPath string
		level    string
	)

	cmd := &cobra.Command{
		Use:           "logpiped",
		Short:         "Log receiver daemon for logpipe TCP and web-socket streams",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), tcpBind, wsBind, dbPath, lockPath, level)
		},
	}

	cmd.Flags().StringVar(&tcpBind, "tcp-bind", "127.0.0.1:55555", "TCP listen address (empty to disable)")
	cmd.Flags().StringVar(&wsBind, "ws-bind", "127.0.0.1:44444", "Web-socket listen address (empty to disable)")
	cmd.Flags().StringVar(&dbPath, "db", "logpipe.db", "Path to the event database")
	cmd.Flags().StringVar(&lockPath, "lock", "logpiped.lock", "Path to the single-instance lock file")
	cmd.Flags().StringVar(&level, "level", "info", "Daemon log level")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	cobra.OnFinalize(cancel)
	cmd.SetContext(ctx)

	return cmd
}

func run(ctx context.Context, tcpBind, wsBind, dbPath, lockPath, level string) error {
	logger := newDaemonLogger(level)

	if strings.TrimSpace(tcpBind) == "" && strings.TrimSpace(wsBind) == "" {
		return errors.New("at least one of --tcp-bind and --ws-bind is required")
	}

	lock := flock.New(lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another logpiped instance is already running")
	}
	defer lock.Unlock() //nolint:errcheck

	eventStore, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer eventStore.Close()

	// Inserts run off the signal context so messages draining during
	// shutdown still land in the store.
	insertCtx := context.WithoutCancel(ctx)
	server := receiver.New(func(msg receiver.Message) {
		_, insertErr := eventStore.Insert(insertCtx, store.Event{
			SessionID:  msg.SessionID,
			Source:     msg.Source,
			ReceivedAt: msg.ReceivedAt,
			Payload:    msg.Payload,
		})
		if insertErr != nil {
			logger.Warn("store log event", "error", insertErr)
		}
	}, logger)
	defer server.Close()

	if strings.TrimSpace(tcpBind) != "" {
		addr, listenErr := server.ListenTCP(tcpBind)
		if listenErr != nil {
			return listenErr
		}
		logger.Info("listening for tcp log streams", "addr", addr.String())
	}
	if strings.TrimSpace(wsBind) != "" {
		addr, listenErr := server.ListenWebSocket(wsBind)
		if listenErr != nil {
			return listenErr
		}
		logger.Info("listening for web-socket log streams", "addr", addr.String())
	}

	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}

func newDaemonLogger(level string) *slog.Logger {
	var slogLevel slog.Level
	if err := slogLevel.UnmarshalText([]byte(level)); err != nil {
		slogLevel = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slogLevel}))
}
