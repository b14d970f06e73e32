package historical

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/tflnexus/tflnexus/pkg/models"
	"github.com/tflnexus/tflnexus/pkg/store"
	"github.com/tflnexus/tflnexus/pkg/tfl"
)

// StopArrivalsAPI is the slice of the TfL client the collector needs.
type StopArrivalsAPI interface {
	StopArrivals(ctx context.Context, naptanID string) ([]tfl.ArrivalPrediction, error)
}

// TopInterchangeStops is the default set of high-traffic interchange
// naptan ids snapshotted by the arrival collector.
var TopInterchangeStops = []string{
	"940GZZLUKSX", // King's Cross St. Pancras
	"940GZZLUOXC", // Oxford Circus
	"940GZZLUBND", // Bond Street
	"940GZZLUWLO", // Waterloo
	"940GZZLULNB", // London Bridge
	"940GZZLUBKE", // Barking
	"940GZZLUSTD", // Stratford
	"940GZZLUBST", // Baker Street
	"940GZZLUVIC", // Victoria
	"940GZZLULVT", // Liverpool Street
}

// CollectStats summarises one arrival collection run.
type CollectStats struct {
	RecordsCreated int
	StopsProcessed int
	Errors         int
}

// Collector snapshots live arrival predictions at interchange stops.
type Collector struct {
	client StopArrivalsAPI
	store  store.Store
	stops  []string
	logger zerolog.Logger

	now func() time.Time
}

func NewCollector(client StopArrivalsAPI, st store.Store, stops []string, logger zerolog.Logger) *Collector {
	if len(stops) == 0 {
		stops = TopInterchangeStops
	}

	return &Collector{
		client: client,
		store:  st,
		stops:  stops,
		logger: logger,

		now: func() time.Time { return time.Now().UTC() },
	}
}

// CollectArrivals fetches arrival predictions for every configured stop
// and records them. Unknown stops and lines are skipped, not fatal.
func (c *Collector) CollectArrivals(ctx context.Context) (CollectStats, error) {
	stats := CollectStats{}

	stopMap, err := c.buildStopMap(ctx)
	if err != nil {
		return stats, err
	}

	serviceMap, err := c.store.ServiceMap(ctx)
	if err != nil {
		return stats, err
	}

	var records []models.ArrivalRecord

	for _, naptanID := range c.stops {
		stopID, known := stopMap[naptanID]
		if !known {
			c.logger.Warn().Str("naptanid", naptanID).Msg("Stop not in database, skipping")
			continue
		}

		arrivals, err := c.client.StopArrivals(ctx, naptanID)
		if err != nil {
			c.logger.Error().Err(err).Str("naptanid", naptanID).Msg("Error collecting arrivals")
			stats.Errors++
			continue
		}

		collected := c.arrivalRecords(arrivals, stopID, serviceMap)
		records = append(records, collected...)

		stats.RecordsCreated += len(collected)
		stats.StopsProcessed++
	}

	if err := c.store.AddArrivalRecords(ctx, records); err != nil {
		return stats, err
	}

	c.logger.Info().
		Int("records", stats.RecordsCreated).
		Int("stops", stats.StopsProcessed).
		Int("errors", stats.Errors).
		Msg("Arrival collection complete")

	return stats, nil
}

func (c *Collector) buildStopMap(ctx context.Context) (map[string]uint, error) {
	stops, err := c.store.StopsByNaptan(ctx, c.stops)
	if err != nil {
		return nil, err
	}

	stopMap := map[string]uint{}
	for _, stop := range stops {
		stopMap[stop.TfLStopID] = stop.ID
	}

	return stopMap, nil
}

func (c *Collector) arrivalRecords(arrivals []tfl.ArrivalPrediction, stopID uint, serviceMap map[string]uint) []models.ArrivalRecord {
	timestamp := c.now()

	var records []models.ArrivalRecord
	for _, arrival := range arrivals {
		serviceID, known := serviceMap[arrival.LineID]
		if !known {
			continue
		}

		expectedArrival := timestamp
		if parsed := tfl.ParseTimestamp(arrival.ExpectedArrival); parsed != nil {
			expectedArrival = *parsed
		}

		records = append(records, models.ArrivalRecord{
			StopID:    stopID,
			ServiceID: serviceID,

			VehicleID:       arrival.VehicleID,
			ExpectedArrival: expectedArrival,
			TimeToStation:   arrival.TimeToStation,
			Timestamp:       timestamp,
		})
	}

	return records
}
