package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the mailwarm application
var rootCmd = &cobra.Command{
	Use:   "mailwarm",
	Short: "Warm Gmail session exposed as named RPC methods",
	Long: `mailwarm keeps one authenticated Gmail session alive and answers named
method calls (gmail.inbox, gmail.send, ...) against it.

It can run as:
  - An MCP (Model Context Protocol) server for AI assistants (serve)
  - A one-shot CLI that dispatches a single call (call)`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// configPath is the --config flag shared by every subcommand.
var configPath string

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "mailwarm version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the config file (default: ~/.config/mailwarm/config.yaml)")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newCallCmd())
	rootCmd.AddCommand(newMethodsCmd())
	rootCmd.AddCommand(newHealthCmd())
	rootCmd.AddCommand(newAuthCmd())
	rootCmd.AddCommand(newVersionCmd())
}
