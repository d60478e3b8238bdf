package app

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/blackwell-systems/reelshelf/internal/config"
)

func newConfigCmd(st *state) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the config file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with the default settings",
		Long: `Write a config file with the default settings. Secrets are never written:
the file names the environment variables they are read from.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(st.flagConfig)
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.Save(config.Default(), path); err != nil {
				return fmt.Errorf("writing config: %w", err)
			}
			ok("wrote %s", path)
			fmt.Println()
			fmt.Println("Next:")
			fmt.Printf("  set %s, %s and %s\n", config.EnvPrefix+"_GITHUB_OWNER", config.EnvPrefix+"_GITHUB_REPO", "GITHUB_TOKEN")
			fmt.Println("  reelshelf serve")
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective settings (file, environment and defaults)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(st.cfg); err != nil {
				return err
			}
			if err := enc.Close(); err != nil {
				return err
			}
			for _, feature := range []string{config.FeatureStore, config.FeatureCDN} {
				if err := st.cfg.Validate(feature); err != nil {
					warn("%v", err)
				}
			}
			return nil
		},
	}

	cmd.AddCommand(initCmd, showCmd)
	return cmd
}
