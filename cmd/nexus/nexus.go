package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tflnexus/tflnexus/pkg/api"
	"github.com/tflnexus/tflnexus/pkg/disruption"
	"github.com/tflnexus/tflnexus/pkg/historical"
	"github.com/tflnexus/tflnexus/pkg/ingest"
	"github.com/tflnexus/tflnexus/pkg/severity"
	"github.com/tflnexus/tflnexus/pkg/transferstats"
	"github.com/urfave/cli/v2"

	_ "time/tzdata"
)

func main() {
	if os.Getenv("NEXUS_LOG_FORMAT") != "JSON" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}

	if os.Getenv("NEXUS_DEBUG") == "YES" {
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	} else {
		log.Logger = log.Logger.Level(zerolog.InfoLevel)
	}

	app := &cli.App{
		Name:        "nexus",
		Description: "Single binary of truth for TfL Nexus - runs all the services",

		Commands: []*cli.Command{
			ingest.RegisterCLI(),
			disruption.RegisterCLI(),
			severity.RegisterCLI(),
			historical.RegisterCLI(),
			transferstats.RegisterCLI(),
			api.RegisterCLI(),
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal().Err(err).Send()
	}
}
