package api

import (
	"github.com/rs/zerolog/log"
	"github.com/tflnexus/tflnexus/pkg/database"
	"github.com/tflnexus/tflnexus/pkg/store"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "Provides the core web API",
		Subcommands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run web api server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "listen",
						Value: ":8080",
						Usage: "listen target for the web server",
					},
				},
				Action: func(c *cli.Context) error {
					if err := database.Connect(); err != nil {
						log.Fatal().Err(err).Msg("Failed to connect to database")
					}

					return SetupServer(c.String("listen"), store.NewGormStore(database.GlobalGorm))
				},
			},
		},
	}
}
