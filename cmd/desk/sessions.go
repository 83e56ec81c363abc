package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/crewdesk/internal/session"
)

func newSessionsCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage chat sessions",
		Long:  "Lists, creates, renames, duplicates, clears, deletes and exports chat sessions. Sessions are named by id or by name.",
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to crewdesk config file")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List sessions",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withSessions(cmd, configPath, runSessionsList)
			},
		},
		&cobra.Command{
			Use:   "new [name]",
			Short: "Create a session and make it active",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withSessions(cmd, configPath, func(cmd *cobra.Command, m *session.Manager) error {
					name := ""
					if len(args) == 1 {
						name = args[0]
					}
					id := m.CreateSession(cmd.Context(), name)
					s, _ := m.Session(id)
					fmt.Fprintf(cmd.OutOrStdout(), "Created session %q (%s)\n", s.Name, s.ID)
					return m.PersistError()
				})
			},
		},
		&cobra.Command{
			Use:   "rename <session> <new-name>",
			Short: "Rename a session",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withSessions(cmd, configPath, func(cmd *cobra.Command, m *session.Manager) error {
					id, err := resolveSession(m, args[0])
					if err != nil {
						return err
					}
					if !m.RenameSession(cmd.Context(), id, args[1]) {
						return fmt.Errorf("cannot rename session to %q: the name is empty or taken", args[1])
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Renamed %s to %q\n", id, strings.TrimSpace(args[1]))
					return m.PersistError()
				})
			},
		},
		&cobra.Command{
			Use:   "delete <session>",
			Short: "Delete a session",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withSessions(cmd, configPath, func(cmd *cobra.Command, m *session.Manager) error {
					id, err := resolveSession(m, args[0])
					if err != nil {
						return err
					}
					if !m.DeleteSession(cmd.Context(), id) {
						return fmt.Errorf("cannot delete the last session")
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
					return m.PersistError()
				})
			},
		},
		&cobra.Command{
			Use:   "duplicate <session>",
			Short: "Copy a session into a new active session",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withSessions(cmd, configPath, func(cmd *cobra.Command, m *session.Manager) error {
					id, err := resolveSession(m, args[0])
					if err != nil {
						return err
					}
					copyID, ok := m.DuplicateSession(cmd.Context(), id)
					if !ok {
						return fmt.Errorf("duplicate %s failed", id)
					}
					s, _ := m.Session(copyID)
					fmt.Fprintf(cmd.OutOrStdout(), "Created session %q (%s)\n", s.Name, s.ID)
					return m.PersistError()
				})
			},
		},
		&cobra.Command{
			Use:   "clear <session>",
			Short: "Reset a session to the greeting",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withSessions(cmd, configPath, func(cmd *cobra.Command, m *session.Manager) error {
					id, err := resolveSession(m, args[0])
					if err != nil {
						return err
					}
					m.ClearSessionMessages(cmd.Context(), id)
					fmt.Fprintf(cmd.OutOrStdout(), "Cleared %s\n", id)
					return m.PersistError()
				})
			},
		},
		newSessionsExportCmd(&configPath),
	)
	return cmd
}

func newSessionsExportCmd(configPath *string) *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "export [session]",
		Short: "Export all sessions, or one session, as JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSessions(cmd, *configPath, func(cmd *cobra.Command, m *session.Manager) error {
				var w io.Writer = cmd.OutOrStdout()
				if outPath != "" {
					f, err := os.Create(outPath)
					if err != nil {
						return fmt.Errorf("create %s: %w", outPath, err)
					}
					defer f.Close()
					w = f
				}
				if len(args) == 0 {
					return m.ExportAllSessions(w)
				}
				id, err := resolveSession(m, args[0])
				if err != nil {
					return err
				}
				return m.ExportSession(id, w)
			})
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "write to this file instead of stdout")
	return cmd
}

// withSessions opens the database-backed session store and runs fn on it.
func withSessions(cmd *cobra.Command, configPath string, fn func(*cobra.Command, *session.Manager) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
		cmd.SetContext(ctx)
	}
	a, err := openApp(ctx, configPath, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(cmd, a.sessions)
}

func runSessionsList(cmd *cobra.Command, m *session.Manager) error {
	out := cmd.OutOrStdout()
	active := m.ActiveID()
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\tID\tNAME\tAGENT\tMESSAGES\tLAST ACTIVITY")
	for _, s := range m.Sessions() {
		mark := ""
		if s.ID == active {
			mark = "*"
		}
		agent := s.CurrentAgent
		if agent == "" {
			agent = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n", mark, s.ID, s.Name, agent, s.MessageCount(),
			s.LastActivity.Local().Format("2006-01-02 15:04"))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	info := m.StorageInfo()
	fmt.Fprintf(out, "\n%d sessions, %d messages, %d bytes stored\n", len(m.Sessions()), info.MessageCount, info.Used)
	return nil
}

// resolveSession accepts a session id or a case-insensitive name.
func resolveSession(m *session.Manager, ref string) (string, error) {
	if _, ok := m.Session(ref); ok {
		return ref, nil
	}
	for _, s := range m.Sessions() {
		if strings.EqualFold(s.Name, ref) {
			return s.ID, nil
		}
	}
	return "", fmt.Errorf("no session %q", ref)
}
