package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"visra.app/studio/internal/core"
	"visra.app/studio/internal/store"
)

var (
	exportFormat string
	exportOut    string
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	idStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Italic(true)

	countStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	dateStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage saved design sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved sessions, most recently created first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, _, err := openWorkspace()
		if err != nil {
			return err
		}
		defer ws.Close()

		printSessions(cmd.OutOrStdout(), ws.Dir.Summaries())
		return nil
	},
}

var sessionsRenameCmd = &cobra.Command{
	Use:   "rename <session-id> <title>",
	Short: "Rename a session",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, _, err := openWorkspace()
		if err != nil {
			return err
		}
		defer ws.Close()

		if err := ws.Dir.Rename(args[0], args[1]); err != nil {
			return fmt.Errorf("failed to rename session %s: %w", args[0], err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Renamed %s to %q\n", args[0], args[1])
		return nil
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Delete a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, _, err := openWorkspace()
		if err != nil {
			return err
		}
		defer ws.Close()

		if err := core.DeleteSavedSession(ws.Store, ws.Dir, args[0]); err != nil {
			return fmt.Errorf("failed to delete session %s: %w", args[0], err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
		return nil
	},
}

var sessionsExportCmd = &cobra.Command{
	Use:   "export <session-id>",
	Short: "Export a session with its messages as JSON or YAML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, _, err := openWorkspace()
		if err != nil {
			return err
		}
		defer ws.Close()

		session, ok := ws.Dir.Get(args[0])
		if !ok {
			return fmt.Errorf("session %s: %w", args[0], core.ErrSessionNotFound)
		}
		data, err := encodeSession(session, exportFormat)
		if err != nil {
			return err
		}

		if exportOut == "" {
			_, err = cmd.OutOrStdout().Write(data)
			return err
		}
		if err := os.WriteFile(exportOut, data, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", exportOut, err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Exported %s to %s\n", session.ID, exportOut)
		return nil
	},
}

func encodeSession(session store.ChatSession, format string) ([]byte, error) {
	switch format {
	case "json":
		data, err := json.MarshalIndent(session, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode session: %w", err)
		}
		return append(data, '\n'), nil
	case "yaml", "yml":
		data, err := yaml.Marshal(session)
		if err != nil {
			return nil, fmt.Errorf("failed to encode session: %w", err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("unsupported format %q (use json or yaml)", format)
}

func printSessions(w io.Writer, sessions []core.SessionSummary) {
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No sessions yet. Start one with: visra send \"Make it cozy\" --image room.jpg")
		return
	}
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%d sessions", len(sessions))))
	for _, s := range sessions {
		when := time.UnixMilli(s.Timestamp).Local().Format("2006-01-02 15:04")
		fmt.Fprintf(w, "%s  %s\n    %s  %s\n",
			titleStyle.Render(s.Title),
			idStyle.Render(s.ID),
			countStyle.Render(fmt.Sprintf("%d messages", s.MessageCount)),
			dateStyle.Render(when))
	}
}

func init() {
	sessionsExportCmd.Flags().StringVarP(&exportFormat, "format", "f", "json", "Output format: json or yaml")
	sessionsExportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Write to a file instead of stdout")

	sessionsCmd.AddCommand(sessionsListCmd, sessionsRenameCmd, sessionsDeleteCmd, sessionsExportCmd)
	rootCmd.AddCommand(sessionsCmd)
}
