package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tflnexus/tflnexus/pkg/store"
	"github.com/tflnexus/tflnexus/pkg/tfl"
)

type fakeNetworkAPI struct {
	lines     []tfl.Line
	sequences map[string]*tfl.RouteSequenceResponse
}

func (f *fakeNetworkAPI) LinesByMode(ctx context.Context, modes []string) ([]tfl.Line, error) {
	return f.lines, nil
}

func (f *fakeNetworkAPI) RouteSequence(ctx context.Context, lineID string, direction string) (*tfl.RouteSequenceResponse, error) {
	sequence, known := f.sequences[lineID]
	if !known {
		return nil, errors.New("sequence unavailable")
	}

	return sequence, nil
}

func victoriaSequence() *tfl.RouteSequenceResponse {
	return &tfl.RouteSequenceResponse{
		LineID:    "victoria",
		Direction: "outbound",
		Stations: []tfl.MatchedStop{
			{ID: "940GZZLUBXN", Name: "Brixton", Latitude: 51.462, Longitude: -0.114, Zone: "2"},
			{ID: "940GZZLUSKW", Name: "Stockwell", Latitude: 51.472, Longitude: -0.122, Zone: "2"},
			{ID: "940GZZLUVXL", Name: "Vauxhall", Latitude: 51.485, Longitude: -0.124, Zone: "1+2"},
		},
		OrderedLineRoutes: []tfl.OrderedLineRoute{
			{NaptanIDs: []string{"940GZZLUBXN", "940GZZLUSKW", "940GZZLUVXL"}},
		},
	}
}

func TestLoadNetwork(t *testing.T) {
	memoryStore := store.NewMemoryStore()

	client := &fakeNetworkAPI{
		lines: []tfl.Line{
			{ID: "victoria", Name: "Victoria", ModeName: "tube"},
		},
		sequences: map[string]*tfl.RouteSequenceResponse{
			"victoria": victoriaSequence(),
		},
	}

	loader := NewLoader(client, memoryStore, nil, zerolog.Nop())

	stats, err := loader.LoadNetwork(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Services)
	assert.Equal(t, 3, stats.Stops)
	assert.Equal(t, 2, stats.Edges)
	assert.Equal(t, 0, stats.Errors)

	serviceMap, err := memoryStore.ServiceMap(context.Background())
	require.NoError(t, err)
	require.Contains(t, serviceMap, "victoria")

	stops, err := memoryStore.StopsByNaptan(context.Background(), []string{"940GZZLUBXN", "940GZZLUSKW", "940GZZLUVXL"})
	require.NoError(t, err)
	require.Len(t, stops, 3)
	assert.Equal(t, "tube", stops[0].Mode)

	edges := memoryStore.Edges()
	require.Len(t, edges, 2)
	assert.Equal(t, serviceMap["victoria"], edges[0].ServiceID)
	assert.NotEqual(t, edges[0].FromStopID, edges[0].ToStopID)
}

func TestLoadNetworkIsIdempotent(t *testing.T) {
	memoryStore := store.NewMemoryStore()

	client := &fakeNetworkAPI{
		lines: []tfl.Line{
			{ID: "victoria", Name: "Victoria", ModeName: "tube"},
		},
		sequences: map[string]*tfl.RouteSequenceResponse{
			"victoria": victoriaSequence(),
		},
	}

	loader := NewLoader(client, memoryStore, nil, zerolog.Nop())

	_, err := loader.LoadNetwork(context.Background())
	require.NoError(t, err)

	_, err = loader.LoadNetwork(context.Background())
	require.NoError(t, err)

	stops, err := memoryStore.StopsByNaptan(context.Background(), []string{"940GZZLUBXN", "940GZZLUSKW", "940GZZLUVXL"})
	require.NoError(t, err)
	assert.Len(t, stops, 3)

	assert.Len(t, memoryStore.Edges(), 2)
}

func TestLoadNetworkCountsFailedLines(t *testing.T) {
	memoryStore := store.NewMemoryStore()

	client := &fakeNetworkAPI{
		lines: []tfl.Line{
			{ID: "victoria", Name: "Victoria", ModeName: "tube"},
			{ID: "northern", Name: "Northern", ModeName: "tube"},
		},
		sequences: map[string]*tfl.RouteSequenceResponse{
			"victoria": victoriaSequence(),
		},
	}

	loader := NewLoader(client, memoryStore, nil, zerolog.Nop())

	stats, err := loader.LoadNetwork(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Services)
	assert.Equal(t, 1, stats.Errors)
}
