package cmd

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/mattsolo1/grove-mdpad/internal/tui/browser"
	"github.com/mattsolo1/grove-mdpad/pkg/service"
)

// NewTuiCmd creates the `mdpad tui` command.
func NewTuiCmd(svc **service.Service) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Browse notes in an interactive terminal UI",
		Long: `Launch an interactive Terminal User Interface for browsing and managing
notes: fold folders, preview and edit notes, create, rename and delete.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Check for TTY
			if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
				return fmt.Errorf("TUI mode requires an interactive terminal")
			}

			s := *svc
			if err := s.Watch(cmd.Context()); err != nil {
				return err
			}
			m := browser.New(s)
			defer m.Close()

			p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
			if _, err := p.Run(); err != nil {
				return fmt.Errorf("error running program: %w", err)
			}
			return nil
		},
	}

	return cmd
}
