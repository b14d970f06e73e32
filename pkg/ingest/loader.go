// Package ingest populates the network graph (services, stops, edges)
// from the upstream line and route-sequence endpoints. It runs as a
// one-shot command, before or alongside the live monitors; everything
// else in the system only reads the graph.
package ingest

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/tflnexus/tflnexus/pkg/models"
	"github.com/tflnexus/tflnexus/pkg/store"
	"github.com/tflnexus/tflnexus/pkg/tfl"
)

// NetworkAPI is the slice of the TfL client the loader needs.
type NetworkAPI interface {
	LinesByMode(ctx context.Context, modes []string) ([]tfl.Line, error)
	RouteSequence(ctx context.Context, lineID string, direction string) (*tfl.RouteSequenceResponse, error)
}

var DefaultModes = []string{"tube", "dlr", "overground", "elizabeth-line"}

// LoadStats summarises one network load.
type LoadStats struct {
	Services int
	Stops    int
	Edges    int
	Errors   int
}

type Loader struct {
	client NetworkAPI
	store  store.Store
	modes  []string
	logger zerolog.Logger
}

func NewLoader(client NetworkAPI, st store.Store, modes []string, logger zerolog.Logger) *Loader {
	if len(modes) == 0 {
		modes = DefaultModes
	}

	return &Loader{
		client: client,
		store:  st,
		modes:  modes,
		logger: logger,
	}
}

// LoadNetwork upserts every line of the configured modes along with its
// stops, then rebuilds each service's edge list from the outbound route
// sequence. A line whose sequence cannot be fetched keeps its previous
// edges.
func (l *Loader) LoadNetwork(ctx context.Context) (LoadStats, error) {
	stats := LoadStats{}

	lines, err := l.client.LinesByMode(ctx, l.modes)
	if err != nil {
		return stats, err
	}

	l.logger.Info().Int("count", len(lines)).Strs("modes", l.modes).Msg("Found lines")

	err = l.store.Batch(ctx, func(st store.Store) error {
		for _, line := range lines {
			loaded, err := l.loadLine(ctx, st, line)
			if err != nil {
				l.logger.Error().Err(err).Str("lineid", line.ID).Msg("Error loading line")
				stats.Errors++
				continue
			}

			stats.Services++
			stats.Stops += loaded.Stops
			stats.Edges += loaded.Edges
		}

		return nil
	})
	if err != nil {
		return stats, err
	}

	l.logger.Info().
		Int("services", stats.Services).
		Int("stops", stats.Stops).
		Int("edges", stats.Edges).
		Int("errors", stats.Errors).
		Msg("Network load complete")

	return stats, nil
}

func (l *Loader) loadLine(ctx context.Context, st store.Store, line tfl.Line) (LoadStats, error) {
	stats := LoadStats{}

	service := &models.Service{
		TfLLineID: line.ID,
		LineName:  line.Name,
		Mode:      line.ModeName,
	}
	if err := st.UpsertService(ctx, service); err != nil {
		return stats, err
	}

	sequence, err := l.client.RouteSequence(ctx, line.ID, "outbound")
	if err != nil {
		return stats, err
	}

	stopIDsByNaptan, upserted, err := l.upsertStations(ctx, st, sequence.Stations, line.ModeName)
	if err != nil {
		return stats, err
	}
	stats.Stops = upserted

	var edges []models.Edge
	for branchID, route := range sequence.OrderedLineRoutes {
		for i := 1; i < len(route.NaptanIDs); i++ {
			fromStopID, fromKnown := stopIDsByNaptan[route.NaptanIDs[i-1]]
			toStopID, toKnown := stopIDsByNaptan[route.NaptanIDs[i]]
			if !fromKnown || !toKnown {
				continue
			}

			edges = append(edges, models.Edge{
				FromStopID:    fromStopID,
				ToStopID:      toStopID,
				ServiceID:     service.ID,
				SequenceOrder: i,
				BranchID:      branchID,
			})
		}
	}

	if err := st.ReplaceServiceEdges(ctx, service.ID, edges); err != nil {
		return stats, err
	}
	stats.Edges = len(edges)

	return stats, nil
}

func (l *Loader) upsertStations(ctx context.Context, st store.Store, stations []tfl.MatchedStop, mode string) (map[string]uint, int, error) {
	stopIDsByNaptan := map[string]uint{}
	upserted := 0

	for _, station := range stations {
		naptanID := station.ID
		if naptanID == "" {
			naptanID = station.StationID
		}
		if naptanID == "" {
			continue
		}
		if _, seen := stopIDsByNaptan[naptanID]; seen {
			continue
		}

		stop := &models.Stop{
			TfLStopID: naptanID,
			Name:      station.Name,
			Mode:      mode,

			Latitude:  station.Latitude,
			Longitude: station.Longitude,
			Zone:      station.Zone,
		}
		if err := st.UpsertStop(ctx, stop); err != nil {
			return nil, upserted, err
		}

		stopIDsByNaptan[naptanID] = stop.ID
		upserted++
	}

	return stopIDsByNaptan, upserted, nil
}
