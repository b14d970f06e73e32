package historical

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tflnexus/tflnexus/pkg/database"
	"github.com/tflnexus/tflnexus/pkg/store"
	"github.com/tflnexus/tflnexus/pkg/tfl"
	"github.com/tflnexus/tflnexus/pkg/util"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "historical",
		Usage: "Build the historical delay record set",
		Subcommands: []*cli.Command{
			{
				Name:  "backfill",
				Usage: "derive hourly delay records from resolved disruptions",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "days",
						Value: 0,
						Usage: "only process disruptions resolved in the last N days (0 = all)",
					},
				},
				Action: func(c *cli.Context) error {
					if err := database.Connect(); err != nil {
						log.Fatal().Err(err).Msg("Failed to connect to database")
					}

					st := store.NewGormStore(database.GlobalGorm)
					deriver := NewDeriver(st, nil, log.Logger)

					var since *time.Time
					if days := c.Int("days"); days > 0 {
						cutoff := time.Now().UTC().AddDate(0, 0, -days)
						since = &cutoff
					}

					_, err := deriver.DeriveFromDisruptions(context.Background(), since)

					return err
				},
			},
			{
				Name:  "collect-arrivals",
				Usage: "snapshot live arrival predictions at the top interchange stops",
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
					collector := NewCollector(tfl.NewClient(apiKey), st, nil, log.Logger)

					_, err := collector.CollectArrivals(context.Background())

					return err
				},
			},
		},
	}
}
