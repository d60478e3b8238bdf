package app

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newCategoriesCmd(st *state) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "List the permitted categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := st.mustServices()
			if err != nil {
				return err
			}
			defer svc.close()

			cats, err := svc.categories.Load(cmd.Context())
			if err != nil {
				return err
			}
			return printCategories(cmd, cats, asJSON)
		},
	}
	add := &cobra.Command{
		Use:   "add <category>...",
		Short: "Add categories to the set",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := st.mustServices()
			if err != nil {
				return err
			}
			defer svc.close()

			cats, err := svc.categories.Add(cmd.Context(), args...)
			if err != nil {
				return err
			}
			if !asJSON {
				ok("%d categories", len(cats))
			}
			return printCategories(cmd, cats, asJSON)
		},
	}
	cmd.AddCommand(add)
	cmd.PersistentFlags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func printCategories(cmd *cobra.Command, cats []string, asJSON bool) error {
	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{"categories": cats})
	}
	for _, c := range cats {
		fmt.Fprintln(out, c)
	}
	return nil
}
