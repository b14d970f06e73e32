package ingest

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/tflnexus/tflnexus/pkg/database"
	"github.com/tflnexus/tflnexus/pkg/store"
	"github.com/tflnexus/tflnexus/pkg/tfl"
	"github.com/tflnexus/tflnexus/pkg/util"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "ingest",
		Usage: "Load the network graph from the upstream API",
		Subcommands: []*cli.Command{
			{
				Name:  "network",
				Usage: "load services, stops and edges for the configured modes",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:  "mode",
						Usage: "mode to load (repeatable, defaults to the core modes)",
					},
				},
				Action: func(c *cli.Context) error {
					env := util.GetEnvironmentVariables()

					apiKey := env["NEXUS_TFL_API_KEY"]
					if apiKey == "" {
						return errors.New("NEXUS_TFL_API_KEY must be set")
					}

					if err := database.Connect(); err != nil {
						log.Fatal().Err(err).Msg("Failed to connect to database")
					}

					st := store.NewGormStore(database.GlobalGorm)
					loader := NewLoader(tfl.NewClient(apiKey), st, c.StringSlice("mode"), log.Logger)

					_, err := loader.LoadNetwork(context.Background())

					return err
				},
			},
		},
	}
}
