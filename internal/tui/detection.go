package tui

import (
	"github.com/blackwell-systems/reelshelf/internal/util"
	"github.com/spf13/cobra"
)

// ShouldUseTUI returns true if the command should use interactive TUI mode:
// stdout is a terminal, --no-interactive is not set and no machine readable
// output (--json) was asked for.
func ShouldUseTUI(cmd *cobra.Command) bool {
	if !util.IsTTY() {
		return false
	}
	if noInteractive, _ := cmd.Flags().GetBool("no-interactive"); noInteractive {
		return false
	}
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return false
	}
	return true
}
