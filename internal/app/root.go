// Package app implements the reelshelf command line.
package app

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/blackwell-systems/reelshelf/internal/config"
	"github.com/blackwell-systems/reelshelf/internal/util"
)

var appVersion = "dev"

// SetVersion sets the version reported by `reelshelf version` and /health.
func SetVersion(v string) {
	if v != "" {
		appVersion = v
	}
}

// state is shared by the commands of one invocation.
type state struct {
	cfg *config.Config

	flagConfig        string
	flagNoColor       bool
	flagNoInteractive bool
	flagLogLevel      string
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	st := &state{}
	root := &cobra.Command{
		Use:   "reelshelf",
		Short: "Publish a video catalog from a GitHub repository",
		Long: `reelshelf keeps a movie and video catalog as markdown pages and paginated
JSON collections in a GitHub repository, serves it as a website with
sitemaps, and relays uploads to a CDN storage zone.

Run 'reelshelf config init' to write a starter config, then 'reelshelf serve'.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().BoolVar(&st.flagNoColor, "no-color", false, "Disable colored output")
	root.PersistentFlags().BoolVar(&st.flagNoInteractive, "no-interactive", false, "Disable interactive TUI mode")
	root.PersistentFlags().StringVar(&st.flagConfig, "config", "", "Config file path (default: ~/.config/reelshelf/config.yml)")
	root.PersistentFlags().StringVar(&st.flagLogLevel, "log-level", "", "Override log.level (debug, info, warn, error)")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		util.InitColor(st.flagNoColor)
		cfg, err := config.Load(st.flagConfig)
		if err != nil {
			// config init must work even when the existing file is broken.
			if cmd.Name() == "init" && cmd.Parent() != nil && cmd.Parent().Name() == "config" {
				cfg = config.Default()
			} else {
				return fmt.Errorf("loading config: %w", err)
			}
		}
		if st.flagLogLevel != "" {
			cfg.Log.Level = st.flagLogLevel
		}
		st.cfg = cfg
		return nil
	}

	root.AddCommand(
		newServeCmd(st),
		newChannelsCmd(st),
		newShowCmd(st),
		newSitemapCmd(st),
		newAppendCmd(st),
		newCategoriesCmd(st),
		newConfigCmd(st),
		newVersionCmd(),
		newCompletionCmd(),
	)
	return root
}

// Execute is the entry point called from main.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error:"), err)
		os.Exit(1)
	}
}

// ok prints a green success line.
func ok(format string, a ...any) {
	fmt.Println(color.GreenString("✓"), fmt.Sprintf(format, a...))
}

// warn prints a yellow warning line.
func warn(format string, a ...any) {
	warnTo(os.Stderr, format, a...)
}

func warnTo(w io.Writer, format string, a ...any) {
	fmt.Fprintln(w, color.YellowString("!"), fmt.Sprintf(format, a...))
}

// header prints a cyan section heading.
func header(format string, a ...any) {
	fmt.Println(color.CyanString(fmt.Sprintf(format, a...)))
}
