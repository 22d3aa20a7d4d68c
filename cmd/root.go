package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/akyaiy/cortexlink/hooks"
	"github.com/akyaiy/cortexlink/internal/core/corestate"
	"github.com/akyaiy/cortexlink/internal/engine/logs"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "cortexlink",
	Short: "Cortex stream client",
	Long:  "cortexlink connects to the Emotiv Cortex service, runs the session handshake and streams mental commands",
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

func Execute() {
	log.SetOutput(os.Stdout)
	log.SetPrefix(logs.SetBrightBlack(fmt.Sprintf("(%s) ", corestate.StageNotReady)))
	log.SetFlags(log.Ldate | log.Ltime)
	hooks.Compositor.LoadCMDLine(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
