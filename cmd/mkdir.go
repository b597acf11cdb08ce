package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mattsolo1/grove-mdpad/pkg/service"
)

func NewMkdirCmd(svc **service.Service) *cobra.Command {
	return &cobra.Command{
		Use:   "mkdir <folder>",
		Short: "Create a folder",
		Long: `Create a folder under the notes directory. Nested paths are created
with their parents.

Examples:
  mdpad mkdir projects
  mdpad mkdir projects/2024`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := *svc
			path, err := s.Store.NewFolder(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", s.Repo.Rel(path))
			return nil
		},
	}
}
