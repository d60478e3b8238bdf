package app

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/reelshelf/internal/config"
)

func newCompletionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell autocompletion scripts",
		Long: `Generate autocompletion scripts for your shell. Record paths given to
'reelshelf show' complete from the configured store.

Examples:
  source <(reelshelf completion bash)
  source <(reelshelf completion zsh)
  reelshelf completion fish > ~/.config/fish/completions/reelshelf.fish`,
		Args:                  cobra.ExactArgs(1),
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		PersistentPreRunE:     func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletionV2(out, true)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			default:
				return cmd.Help()
			}
		},
	}
}

// completeRecordPaths completes "<category>/" first, then the slugs of
// that category. Completion runs without the root pre-run hook, so the
// config is loaded here when needed.
func completeRecordPaths(st *state) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) > 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		if st.cfg == nil {
			cfg, err := config.Load(st.flagConfig)
			if err != nil {
				return nil, cobra.ShellCompDirectiveError
			}
			st.cfg = cfg
		}
		svc, err := st.mustServices()
		if err != nil {
			return nil, cobra.ShellCompDirectiveError
		}
		defer svc.close()

		category, _, found := strings.Cut(toComplete, "/")
		if !found {
			cats, err := svc.pages.Categories(cmd.Context())
			if err != nil {
				return nil, cobra.ShellCompDirectiveError
			}
			out := make([]string, 0, len(cats))
			for _, c := range cats {
				if strings.HasPrefix(c, toComplete) {
					out = append(out, c+"/")
				}
			}
			return out, cobra.ShellCompDirectiveNoFileComp | cobra.ShellCompDirectiveNoSpace
		}

		recs, err := svc.pages.List(cmd.Context(), category)
		if err != nil {
			return nil, cobra.ShellCompDirectiveError
		}
		var out []string
		for _, r := range recs {
			p := category + "/" + r.Slug
			if strings.HasPrefix(p, toComplete) {
				out = append(out, p+"\t"+r.Title)
			}
		}
		return out, cobra.ShellCompDirectiveNoFileComp
	}
}
