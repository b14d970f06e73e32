package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tflnexus/tflnexus/pkg/models"
)

func TestMajorInterchangeStopsOrderedByServiceCount(t *testing.T) {
	memoryStore := NewMemoryStore()

	small := memoryStore.SeedStop(models.Stop{TfLStopID: "940GZZLUTMP", Name: "Temple", Mode: "tube"})
	big := memoryStore.SeedStop(models.Stop{TfLStopID: "940GZZLUKSX", Name: "King's Cross", Mode: "tube"})
	offMode := memoryStore.SeedStop(models.Stop{TfLStopID: "910GSTFD", Name: "Stratford", Mode: "national-rail"})

	serviceA := memoryStore.SeedService(models.Service{TfLLineID: "victoria", Mode: "tube"})
	serviceB := memoryStore.SeedService(models.Service{TfLLineID: "northern", Mode: "tube"})
	serviceC := memoryStore.SeedService(models.Service{TfLLineID: "circle", Mode: "tube"})

	for _, serviceID := range []uint{serviceA.ID, serviceB.ID, serviceC.ID} {
		memoryStore.SeedEdge(models.Edge{FromStopID: big.ID, ToStopID: small.ID, ServiceID: serviceID, SequenceOrder: 1})
		memoryStore.SeedEdge(models.Edge{FromStopID: offMode.ID, ToStopID: big.ID, ServiceID: serviceID, SequenceOrder: 1})
	}
	memoryStore.SeedEdge(models.Edge{FromStopID: small.ID, ToStopID: big.ID, ServiceID: serviceA.ID, SequenceOrder: 2})

	stops, err := memoryStore.MajorInterchangeStops(context.Background(), []string{"tube"}, 3, 10)
	require.NoError(t, err)

	// Only the big stop reaches three distinct services on an in-mode stop;
	// the off-mode stop is excluded despite its edges.
	require.Len(t, stops, 1)
	assert.Equal(t, "940GZZLUKSX", stops[0].TfLStopID)
}

func TestInterchangeStopIDsRequireMultipleServices(t *testing.T) {
	memoryStore := NewMemoryStore()

	interchange := memoryStore.SeedStop(models.Stop{TfLStopID: "940GZZLUKSX", Mode: "tube"})
	terminus := memoryStore.SeedStop(models.Stop{TfLStopID: "940GZZLUTMP", Mode: "tube"})

	victoria := memoryStore.SeedService(models.Service{TfLLineID: "victoria", Mode: "tube"})
	northern := memoryStore.SeedService(models.Service{TfLLineID: "northern", Mode: "tube"})

	memoryStore.SeedEdge(models.Edge{FromStopID: interchange.ID, ToStopID: terminus.ID, ServiceID: victoria.ID, SequenceOrder: 1})
	memoryStore.SeedEdge(models.Edge{FromStopID: interchange.ID, ToStopID: terminus.ID, ServiceID: northern.ID, SequenceOrder: 1})
	memoryStore.SeedEdge(models.Edge{FromStopID: terminus.ID, ToStopID: interchange.ID, ServiceID: victoria.ID, SequenceOrder: 2})

	stopIDs, err := memoryStore.InterchangeStopIDs(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []uint{interchange.ID}, stopIDs)
}

func TestResolveDisruptionsNotIn(t *testing.T) {
	memoryStore := NewMemoryStore()
	ctx := context.Background()

	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, memoryStore.CreateDisruption(ctx, &models.LiveDisruption{Fingerprint: "disr-real-aaaaaaaaaaaa", StartTime: now}))
	require.NoError(t, memoryStore.CreateDisruption(ctx, &models.LiveDisruption{Fingerprint: "disr-real-bbbbbbbbbbbb", StartTime: now}))

	alreadyResolved := now.Add(-time.Hour)
	require.NoError(t, memoryStore.CreateDisruption(ctx, &models.LiveDisruption{
		Fingerprint:   "disr-real-cccccccccccc",
		StartTime:     now.Add(-2 * time.Hour),
		ActualEndTime: &alreadyResolved,
	}))

	resolved, err := memoryStore.ResolveDisruptionsNotIn(ctx, map[string]bool{"disr-real-aaaaaaaaaaaa": true}, now)
	require.NoError(t, err)
	assert.Equal(t, 1, resolved)

	open, err := memoryStore.OpenDisruptions(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "disr-real-aaaaaaaaaaaa", open[0].Fingerprint)

	// The record resolved in an earlier sweep keeps its original end time.
	stored, err := memoryStore.DisruptionByFingerprint(ctx, "disr-real-cccccccccccc")
	require.NoError(t, err)
	require.NotNil(t, stored.ActualEndTime)
	assert.Equal(t, alreadyResolved, *stored.ActualEndTime)
}
