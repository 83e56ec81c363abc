package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zulandar/crewdesk/internal/console"
	"golang.org/x/term"
)

// isTerminal reports whether stdout is an interactive terminal.
var isTerminal = func() bool { return term.IsTerminal(int(os.Stdout.Fd())) }

func newChatCmd() *cobra.Command {
	var (
		configPath string
		logFile    string
		altScreen  bool
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Open the terminal chat console",
		Long:  "Opens an interactive console on the active session. Type /help inside for session, collaboration and handoff commands.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, configPath, logFile, altScreen)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to crewdesk config file")
	cmd.Flags().StringVar(&logFile, "log-file", "", "write logs to this file (logs are discarded otherwise)")
	cmd.Flags().BoolVar(&altScreen, "alt-screen", true, "use the terminal's alternate screen")
	return cmd
}

func runChat(cmd *cobra.Command, configPath, logFile string, altScreen bool) error {
	if !isTerminal() {
		return fmt.Errorf("chat needs an interactive terminal; use 'desk serve' for programmatic access")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The console owns the screen, so logs go to a file or nowhere.
	var logOut io.Writer = io.Discard
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		logOut = f
	}

	a, err := openApp(ctx, configPath, logOut)
	if err != nil {
		return err
	}
	defer a.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	return console.Run(ctx, console.Opts{
		Sessions:  a.sessions,
		Conductor: a.conductor,
		AltScreen: altScreen,
	})
}
