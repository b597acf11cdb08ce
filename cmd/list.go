package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mattsolo1/grove-mdpad/pkg/service"
	"github.com/mattsolo1/grove-mdpad/pkg/tree"
)

type listEntry struct {
	Path   string `json:"path"`
	Folder bool   `json:"folder"`
	Depth  int    `json:"depth"`
	Size   int64  `json:"size"`
	Error  string `json:"error,omitempty"`
}

func NewListCmd(svc **service.Service) *cobra.Command {
	var (
		listJSON bool
		listRoot string
	)

	cmd := &cobra.Command{
		Use:     "list [folder]",
		Short:   "List notes and folders",
		Aliases: []string{"ls"},
		Long: `List the notes under the notes directory as a tree.

Examples:
  mdpad ls              # Everything
  mdpad ls journal      # Only the journal folder
  mdpad ls --json       # Machine readable`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := *svc
			files := s.Store.State().Files

			if len(args) > 0 {
				listRoot = args[0]
			}
			if listRoot != "" {
				folder, err := s.Resolve(listRoot)
				if err != nil {
					return err
				}
				if !folder.IsFolder() {
					return fmt.Errorf("%s is not a folder", listRoot)
				}
				files = folder.Files
			}

			rows := tree.AllRows(files)
			if listJSON {
				entries := make([]listEntry, 0, len(rows))
				for _, r := range rows {
					entries = append(entries, listEntry{
						Path:   s.Repo.Rel(r.Node.Path),
						Folder: r.Node.IsFolder(),
						Depth:  r.Depth,
						Size:   r.Node.Size,
						Error:  r.Node.Err,
					})
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			}

			if len(rows) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No notes found")
				return nil
			}
			for _, r := range rows {
				name := r.Node.Name
				if r.Node.IsFolder() {
					name += "/"
				}
				if r.Node.Err != "" {
					name += "  (unreadable)"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s%s\n", strings.Repeat("  ", r.Depth), name)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&listJSON, "json", false, "Output in JSON format")

	return cmd
}
