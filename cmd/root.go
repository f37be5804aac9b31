package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Sushi-Mampfer/notes/config"
)

func Root(config *config.Config) *cobra.Command {
	rootCmd := &cobra.Command{}
	rootCmd.AddCommand(server(config))
	rootCmd.AddCommand(sync(config))
	return rootCmd
}
