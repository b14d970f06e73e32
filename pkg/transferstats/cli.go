package transferstats

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/tflnexus/tflnexus/pkg/database"
	"github.com/tflnexus/tflnexus/pkg/store"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "transfers",
		Usage: "Compute transfer statistics at interchange stops",
		Subcommands: []*cli.Command{
			{
				Name:  "compute",
				Usage: "recompute transfer statistics for every interchange stop",
				Action: func(c *cli.Context) error {
					if err := database.Connect(); err != nil {
						log.Fatal().Err(err).Msg("Failed to connect to database")
					}

					st := store.NewGormStore(database.GlobalGorm)
					computer := NewComputer(st, DefaultConfig(), log.Logger)

					_, err := computer.ComputeAll(context.Background())

					return err
				},
			},
		},
	}
}
