package severity

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
		Name:  "severity",
		Usage: "Manage learned severity delay estimates",
		Subcommands: []*cli.Command{
			{
				Name:  "sample",
				Usage: "run one sampling pass over the currently open disruptions",
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
					learner := NewLearner(tfl.NewClient(apiKey), st, DefaultConfig(), log.Logger)

					ctx := context.Background()

					if err := learner.Seed(ctx); err != nil {
						return err
					}

					return learner.SampleOpenDisruptions(ctx)
				},
			},
		},
	}
}
