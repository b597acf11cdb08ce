package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mattsolo1/grove-mdpad/pkg/frontmatter"
	"github.com/mattsolo1/grove-mdpad/pkg/service"
)

func NewCatCmd(svc **service.Service) *cobra.Command {
	var showTitle bool

	cmd := &cobra.Command{
		Use:   "cat <note>",
		Short: "Print a note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := *svc
			n, err := s.Resolve(args[0])
			if err != nil {
				return err
			}
			if n.IsFolder() {
				return fmt.Errorf("%s is a folder", args[0])
			}
			if n.Err != "" {
				return fmt.Errorf("%s: %s", args[0], n.Err)
			}

			if showTitle {
				fmt.Fprintln(cmd.OutOrStdout(), frontmatter.Title(n.Content, n.Path))
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), n.Content)
			return nil
		},
	}

	cmd.Flags().BoolVar(&showTitle, "title", false, "Print only the note title")

	return cmd
}
