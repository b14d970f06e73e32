package disruption

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/tflnexus/tflnexus/pkg/database"
	"github.com/tflnexus/tflnexus/pkg/severity"
	"github.com/tflnexus/tflnexus/pkg/store"
	"github.com/tflnexus/tflnexus/pkg/tfl"
	"github.com/tflnexus/tflnexus/pkg/util"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "disruptions",
		Usage: "Monitor live line disruptions",
		Subcommands: []*cli.Command{
			{
				Name:  "monitor",
				Usage: "continuously poll the disruption feed and track lifecycles",
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
					client := tfl.NewClient(apiKey)

					learner := severity.NewLearner(client, st, severity.DefaultConfig(), log.Logger)
					monitor := NewMonitor(client, st, learner, DefaultMonitorConfig(), log.Logger)

					ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
					defer stop()

					return monitor.Run(ctx)
				},
			},
		},
	}
}
