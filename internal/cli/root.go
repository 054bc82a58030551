package cli

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/mucbot/mucbot/internal/cli.version=1.2.3"
	version = "1.4.0"
	logo    = "\n" +
		"                           _             _\n" +
		"   _ __ ___  _   _   ___ | |__    ___  | |_\n" +
		"  | '_ ` _ \\| | | | / __|| '_ \\  / _ \\ | __|\n" +
		"  | | | | | | |_| || (__ | |_) || (_) || |_\n" +
		"  |_| |_| |_|\\__,_| \\___||_.__/  \\___/  \\__|\n"
)

var rootCmd = &cobra.Command{
	Use:   "mucbot",
	Short: "mucbot - AI companion for one XMPP chat room",
	Long:  color.CyanString(logo) + "\nAn OMEMO-capable XMPP room bot that decides when to speak using a local Ollama backend.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(inviteCmd)
	rootCmd.AddCommand(traceCmd)
}
