package historical

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tflnexus/tflnexus/pkg/models"
	"github.com/tflnexus/tflnexus/pkg/store"
	"github.com/tflnexus/tflnexus/pkg/tfl"
)

type fakeStopArrivalsAPI struct {
	arrivals map[string][]tfl.ArrivalPrediction
	failing  map[string]bool
}

func (f *fakeStopArrivalsAPI) StopArrivals(ctx context.Context, naptanID string) ([]tfl.ArrivalPrediction, error) {
	if f.failing[naptanID] {
		return nil, errors.New("upstream unavailable")
	}

	return f.arrivals[naptanID], nil
}

func TestCollectArrivals(t *testing.T) {
	memoryStore := store.NewMemoryStore()
	stop := memoryStore.SeedStop(models.Stop{TfLStopID: "940GZZLUKSX", Name: "King's Cross", Mode: "tube"})
	service := memoryStore.SeedService(models.Service{TfLLineID: "victoria", LineName: "Victoria", Mode: "tube"})

	client := &fakeStopArrivalsAPI{
		arrivals: map[string][]tfl.ArrivalPrediction{
			"940GZZLUKSX": {
				{VehicleID: "201", LineID: "victoria", TimeToStation: 90, ExpectedArrival: "2026-08-01T10:01:30Z"},
				{VehicleID: "202", LineID: "unknown-line", TimeToStation: 120},
			},
		},
	}

	collector := NewCollector(client, memoryStore, []string{"940GZZLUKSX"}, zerolog.Nop())
	collector.now = func() time.Time { return time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC) }

	stats, err := collector.CollectArrivals(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.RecordsCreated)
	assert.Equal(t, 1, stats.StopsProcessed)
	assert.Equal(t, 0, stats.Errors)

	records := memoryStore.ArrivalRecords()
	require.Len(t, records, 1)

	assert.Equal(t, stop.ID, records[0].StopID)
	assert.Equal(t, service.ID, records[0].ServiceID)
	assert.Equal(t, "201", records[0].VehicleID)
	assert.Equal(t, 90, records[0].TimeToStation)
	assert.Equal(t, time.Date(2026, 8, 1, 10, 1, 30, 0, time.UTC), records[0].ExpectedArrival)
	assert.Equal(t, time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC), records[0].Timestamp)
}

func TestCollectArrivalsSkipsUnknownStops(t *testing.T) {
	memoryStore := store.NewMemoryStore()

	client := &fakeStopArrivalsAPI{arrivals: map[string][]tfl.ArrivalPrediction{}}
	collector := NewCollector(client, memoryStore, []string{"940GZZLUKSX"}, zerolog.Nop())

	stats, err := collector.CollectArrivals(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, stats.StopsProcessed)
	assert.Empty(t, memoryStore.ArrivalRecords())
}

func TestCollectArrivalsCountsUpstreamErrors(t *testing.T) {
	memoryStore := store.NewMemoryStore()
	memoryStore.SeedStop(models.Stop{TfLStopID: "940GZZLUKSX", Name: "King's Cross", Mode: "tube"})
	memoryStore.SeedStop(models.Stop{TfLStopID: "940GZZLUOXC", Name: "Oxford Circus", Mode: "tube"})
	service := memoryStore.SeedService(models.Service{TfLLineID: "victoria", LineName: "Victoria", Mode: "tube"})

	client := &fakeStopArrivalsAPI{
		arrivals: map[string][]tfl.ArrivalPrediction{
			"940GZZLUOXC": {
				{VehicleID: "203", LineID: "victoria", TimeToStation: 45},
			},
		},
		failing: map[string]bool{"940GZZLUKSX": true},
	}

	collector := NewCollector(client, memoryStore, []string{"940GZZLUKSX", "940GZZLUOXC"}, zerolog.Nop())

	stats, err := collector.CollectArrivals(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Errors)
	assert.Equal(t, 1, stats.StopsProcessed)

	records := memoryStore.ArrivalRecords()
	require.Len(t, records, 1)
	assert.Equal(t, service.ID, records[0].ServiceID)
}

func TestNewCollectorDefaultsToTopInterchanges(t *testing.T) {
	collector := NewCollector(&fakeStopArrivalsAPI{}, store.NewMemoryStore(), nil, zerolog.Nop())

	assert.Equal(t, TopInterchangeStops, collector.stops)
}
