package cmd

import (
	"github.com/akyaiy/cortexlink/hooks"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:     "run",
	Aliases: []string{"r"},
	Short:   "Connect and stream",
	Long: `
"run" connects to the Cortex service, authorizes with the configured credentials,
opens a session, subscribes to the mental command stream and hands every message to
the enabled consumers until interrupted`,
	Run: hooks.Run,
}

func init() {
	rootCmd.AddCommand(runCmd)
}
