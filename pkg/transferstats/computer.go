// Package transferstats computes pairwise service-to-service delay
// correlation statistics at interchange stops from historical delay
// records. Every run is a full recompute; rows are overwritten, never
// blended with previous runs, so estimation error cannot compound.
package transferstats

import (
	"context"
	"errors"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/rs/zerolog"
	"github.com/tflnexus/tflnexus/pkg/models"
	"github.com/tflnexus/tflnexus/pkg/store"
)

type Config struct {
	// MinSampleSize is the minimum number of overlapping timestamps a
	// service pair needs before a statistic is written at all.
	MinSampleSize int

	// SuccessThresholdMinutes bounds the delay differential counted as a
	// successful transfer.
	SuccessThresholdMinutes float64

	// MaxRecordsPerService caps how much history each side contributes.
	MaxRecordsPerService int
}

func DefaultConfig() Config {
	return Config{
		MinSampleSize:           10,
		SuccessThresholdMinutes: 5.0,
		MaxRecordsPerService:    1000,
	}
}

// ComputeStats summarises one full recompute.
type ComputeStats struct {
	Computed int
	Updated  int
	Skipped  int
}

type Computer struct {
	store  store.Store
	config Config
	logger zerolog.Logger

	now func() time.Time
}

func NewComputer(st store.Store, config Config, logger zerolog.Logger) *Computer {
	return &Computer{
		store:  st,
		config: config,
		logger: logger,

		now: func() time.Time { return time.Now().UTC() },
	}
}

// ComputeAll recomputes transfer statistics for every interchange stop. A
// stop qualifies as an interchange when more than one distinct service
// runs over its incident edges.
func (c *Computer) ComputeAll(ctx context.Context) (ComputeStats, error) {
	totals := ComputeStats{}

	interchangeStops, err := c.store.InterchangeStopIDs(ctx)
	if err != nil {
		return totals, err
	}

	c.logger.Info().Int("count", len(interchangeStops)).Msg("Found interchange stops")

	err = c.store.Batch(ctx, func(st store.Store) error {
		for _, stopID := range interchangeStops {
			result, err := c.computeForStop(ctx, st, stopID)
			if err != nil {
				c.logger.Error().Err(err).Uint("stopid", stopID).Msg("Error computing transfers for stop")
				totals.Skipped++
				continue
			}

			totals.Computed += result.Computed
			totals.Updated += result.Updated
			totals.Skipped += result.Skipped
		}

		return nil
	})
	if err != nil {
		return totals, err
	}

	c.logger.Info().
		Int("computed", totals.Computed).
		Int("updated", totals.Updated).
		Int("skipped", totals.Skipped).
		Msg("Transfer statistics computation complete")

	return totals, nil
}

func (c *Computer) computeForStop(ctx context.Context, st store.Store, stopID uint) (ComputeStats, error) {
	result := ComputeStats{}

	services, err := st.ServicesAtStop(ctx, stopID)
	if err != nil {
		return result, err
	}
	if len(services) < 2 {
		return result, nil
	}

	for _, fromService := range services {
		for _, toService := range services {
			if fromService == toService {
				continue
			}

			written, existed, err := c.computePair(ctx, st, stopID, fromService, toService)
			if err != nil {
				c.logger.Error().Err(err).
					Uint("stopid", stopID).
					Uint("from", fromService).
					Uint("to", toService).
					Msg("Error computing transfer pair")
				result.Skipped++
				continue
			}

			switch {
			case !written:
				result.Skipped++
			case existed:
				result.Updated++
			default:
				result.Computed++
			}
		}
	}

	return result, nil
}

func (c *Computer) computePair(ctx context.Context, st store.Store, stopID uint, fromService uint, toService uint) (bool, bool, error) {
	delaysFrom, err := st.RecentDelaysForService(ctx, fromService, c.config.MaxRecordsPerService)
	if err != nil {
		return false, false, err
	}
	delaysTo, err := st.RecentDelaysForService(ctx, toService, c.config.MaxRecordsPerService)
	if err != nil {
		return false, false, err
	}

	differentials := WeightedDifferentials(delaysFrom, delaysTo)
	if len(differentials) < c.config.MinSampleSize {
		c.logger.Debug().
			Uint("stopid", stopID).
			Uint("from", fromService).
			Uint("to", toService).
			Int("samples", len(differentials)).
			Msg("Insufficient samples for transfer statistic")
		return false, false, nil
	}

	mean, _ := stats.Mean(differentials)
	variance, _ := stats.PopulationVariance(differentials)
	stdDev, _ := stats.StandardDeviationPopulation(differentials)

	successes := 0
	for _, differential := range differentials {
		if differential < c.config.SuccessThresholdMinutes {
			successes++
		}
	}
	successRate := float64(successes) / float64(len(differentials))

	existing, err := st.TransferStatistic(ctx, stopID, fromService, toService)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return false, false, err
	}

	statistic := &models.TransferStatistic{
		StopID:        stopID,
		FromServiceID: fromService,
		ToServiceID:   toService,

		MeanDelay:     mean,
		DelayVariance: variance,
		DelayStdDev:   stdDev,
		SampleCount:   len(differentials),
		SuccessRate:   successRate,

		LastComputed: c.now(),
	}
	if existing != nil {
		statistic.ID = existing.ID
	}

	if err := st.UpsertTransferStatistic(ctx, statistic); err != nil {
		return false, false, err
	}

	return true, existing != nil, nil
}

// WeightedDifferentials intersects the two delay series on timestamp and
// computes |from - to| scaled by the mean of the per-side confidence
// weights: 1.0 for directly measured high-confidence records, 0.5 for
// disruption-derived approximations. Low-confidence disagreement is
// discounted rather than trusted at face value.
func WeightedDifferentials(delaysFrom []models.HistoricalDelay, delaysTo []models.HistoricalDelay) []float64 {
	delaysByTimestamp := map[int64]models.HistoricalDelay{}
	for _, delay := range delaysTo {
		delaysByTimestamp[delay.Timestamp.Unix()] = delay
	}

	var differentials []float64

	for _, delayFrom := range delaysFrom {
		delayTo, shared := delaysByTimestamp[delayFrom.Timestamp.Unix()]
		if !shared {
			continue
		}

		weight := (confidenceWeight(delayFrom.ConfidenceLevel) + confidenceWeight(delayTo.ConfidenceLevel)) / 2

		differential := delayFrom.DelayMinutes - delayTo.DelayMinutes
		if differential < 0 {
			differential = -differential
		}

		differentials = append(differentials, differential*weight)
	}

	return differentials
}

func confidenceWeight(confidenceLevel string) float64 {
	if confidenceLevel == models.ConfidenceHigh {
		return 1.0
	}

	return 0.5
}
