package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mattsolo1/grove-mdpad/pkg/service"
)

func NewSearchCmd(svc **service.Service) *cobra.Command {
	var (
		searchLimit int
		searchJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search notes",
		Long: `Search note titles, tags and contents. Every word has to match.

Examples:
  mdpad search groceries
  mdpad search "release plan" -l 5`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := *svc
			query := strings.Join(args, " ")

			results, err := s.Search(cmd.Context(), query, searchLimit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if searchJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(results)
			}

			if len(results) == 0 {
				fmt.Fprintln(out, "No results found")
				return nil
			}

			fmt.Fprintf(out, "Found %d results:\n\n", len(results))
			for i, r := range results {
				fmt.Fprintf(out, "%d. %s\n", i+1, r.Title)
				fmt.Fprintf(out, "   %s\n", s.Repo.Rel(r.Path))
				if r.Snippet != "" {
					snippet := strings.NewReplacer("<match>", "", "</match>", "", "\n", " ").Replace(r.Snippet)
					fmt.Fprintf(out, "   %s\n", snippet)
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&searchLimit, "limit", "l", 20, "Maximum number of results")
	cmd.Flags().BoolVar(&searchJSON, "json", false, "Output in JSON format")

	return cmd
}
