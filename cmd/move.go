package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mattsolo1/grove-mdpad/pkg/service"
)

func NewMoveCmd(svc **service.Service) *cobra.Command {
	return &cobra.Command{
		Use:     "move <path> <new-name>",
		Aliases: []string{"mv"},
		Short:   "Rename a note or folder",
		Long: `Rename a note or folder in place. Notes are renamed without their
extension, which is always .md.

Examples:
  mdpad mv Groceries.md shopping
  mdpad mv journal diary`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := *svc
			path, err := s.Move(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Moved: %s\n", s.Repo.Rel(path))
			return nil
		},
	}
}
