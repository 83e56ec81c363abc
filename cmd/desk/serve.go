package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zulandar/crewdesk/internal/exporter"
	"github.com/zulandar/crewdesk/internal/server"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long:  "Serves sessions, chat turns, collaborations and the session event feed over HTTP. Sessions are exported on the configured cron schedule.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to crewdesk config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides server.port)")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := openApp(ctx, configPath, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	exp, err := exporter.New(exporter.Opts{
		Source:   a.sessions,
		Dir:      a.cfg.Export.Dir,
		Schedule: a.cfg.Export.Schedule,
	})
	if err != nil {
		return err
	}
	if exp.Scheduled() {
		go exp.Run(ctx)
		fmt.Fprintf(cmd.OutOrStdout(), "Exporting sessions to %s on %q\n", a.cfg.Export.Dir, a.cfg.Export.Schedule)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			fmt.Fprintf(cmd.OutOrStdout(), "\nReceived %s, shutting down...\n", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	if port <= 0 {
		port = a.cfg.Server.Port
	}
	return server.Start(ctx, server.StartOpts{
		Deps: server.Deps{
			Sessions:  a.sessions,
			Conductor: a.conductor,
			Webhook:   a.webhook,
		},
		Port: port,
		Out:  cmd.OutOrStdout(),
	})
}
