package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the meetsched application
var rootCmd = &cobra.Command{
	Use:   "meetsched",
	Short: "Schedules Google Meet meetings through Google Calendar",
	Long: `meetsched is a small web service that lets a Google user sign in
with OAuth2 and create or list Google Meet-enabled calendar events
through a pair of JSON endpoints.`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "meetsched version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the meetsched version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("meetsched version %s\n", version)
		},
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())
}
