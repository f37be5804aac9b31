package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Sushi-Mampfer/notes/config"
	server2 "github.com/Sushi-Mampfer/notes/server"
)

func server(config *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "start the ingestion http server",
		Run: func(cmd *cobra.Command, args []string) {
			server2.RunHttp(config)
		},
	}
}
