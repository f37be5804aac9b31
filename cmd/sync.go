package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Sushi-Mampfer/notes/config"
	"github.com/Sushi-Mampfer/notes/device"
	"github.com/Sushi-Mampfer/notes/dto"
	"github.com/Sushi-Mampfer/notes/service"
)

func sync(cfg *config.Config) *cobra.Command {
	var url string
	var all bool

	cmd := &cobra.Command{
		Use:   "sync [id...]",
		Short: "upload recordings to the ingestion endpoint as one batch",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
			ctx := logger.WithContext(context.Background())

			store, err := device.Open(cfg.Device.DBPath)
			if err != nil {
				return err
			}
			defer store.Close()

			var ids []uint32
			if all {
				recs, err := store.List(ctx)
				if err != nil {
					return err
				}
				for _, rec := range recs {
					if !rec.Uploaded {
						ids = append(ids, rec.ID)
					}
				}
			} else {
				for _, arg := range args {
					id, err := strconv.ParseUint(arg, 10, 32)
					if err != nil {
						return fmt.Errorf("invalid recording id %q: %w", arg, err)
					}
					ids = append(ids, uint32(id))
				}
			}
			if len(ids) == 0 {
				return fmt.Errorf("nothing to upload")
			}

			if url == "" {
				url, err = store.EndpointURL(ctx)
				if err != nil {
					return err
				}
			}
			if url == "" {
				return fmt.Errorf("no endpoint url given and none saved")
			}

			sel := dto.UploadSelection{Url: url, Files: ids}
			return service.NewSyncClient(store, nil).Upload(ctx, sel)
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "ingestion endpoint, e.g. http://host:8080 (defaults to the last used one)")
	cmd.Flags().BoolVar(&all, "all", false, "upload every recording not yet uploaded")
	return cmd
}
