package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/mattsolo1/grove-mdpad/pkg/frontmatter"
	"github.com/mattsolo1/grove-mdpad/pkg/repository"
	"github.com/mattsolo1/grove-mdpad/pkg/service"
)

func NewNewCmd(svc **service.Service) *cobra.Command {
	var (
		noteName  string
		noteTitle string
		noteTags  []string
		fromStdin bool
	)

	cmd := &cobra.Command{
		Use:   "new [text...]",
		Short: "Create a new note",
		Long: `Create a new note in the notes directory.

Without --name the file is named after the first characters of the note,
the same way the editor names a note on its first keystroke.

Examples:
  mdpad new "Groceries: milk, eggs"
  mdpad new -n plans "Ship the release"
  mdpad new -n meeting --title "Weekly sync" --tag work

  # From stdin (auto-detected):
  echo "Quick thought" | mdpad new
  mdpad new -n imported < ideas.txt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s := *svc

			// Auto-detect stdin if not explicitly set
			if !cmd.Flags().Changed("stdin") {
				fd := os.Stdin.Fd()
				fromStdin = !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd) && len(args) == 0
			}

			content := strings.Join(args, " ")
			if fromStdin {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				content = string(data)
			}

			if noteTitle != "" || len(noteTags) > 0 {
				fm := &frontmatter.Frontmatter{
					Title:   noteTitle,
					Tags:    frontmatter.MergeTags(noteTags),
					Created: frontmatter.FormatTimestamp(time.Now()),
				}
				if noteName == "" {
					noteName = noteTitle
				}
				if noteName == "" {
					noteName = repository.NormalizeFilename(content)
				}
				content = frontmatter.BuildContent(fm, content)
			}

			if noteName != "" {
				note, err := s.CreateNamedNote(ctx, noteName, content)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", s.Repo.Rel(note.Path))
				return nil
			}

			note, err := s.CreateNote(ctx, content)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", s.Repo.Rel(note.Path))
			return nil
		},
	}

	cmd.Flags().StringVarP(&noteName, "name", "n", "", "File name without extension")
	cmd.Flags().StringVar(&noteTitle, "title", "", "Add frontmatter with this title")
	cmd.Flags().StringSliceVar(&noteTags, "tag", nil, "Add frontmatter tags (repeatable)")
	cmd.Flags().BoolVar(&fromStdin, "stdin", false, "Read content from stdin (auto-detected when piped)")

	return cmd
}
