package disruption

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/tflnexus/tflnexus/pkg/models"
	"github.com/tflnexus/tflnexus/pkg/store"
	"github.com/tflnexus/tflnexus/pkg/tfl"
)

// DisruptionsAPI is the slice of the TfL client the monitor needs.
type DisruptionsAPI interface {
	DisruptionsByMode(ctx context.Context, modes []string) ([]tfl.Disruption, error)
	LineStatusByMode(ctx context.Context, modes []string) ([]tfl.LineWithStatus, error)
	DisruptionCategories(ctx context.Context) ([]string, error)
}

// Sampler is triggered every Nth poll cycle; in production it is the
// severity learner.
type Sampler interface {
	Seed(ctx context.Context) error
	SampleOpenDisruptions(ctx context.Context) error
}

type MonitorConfig struct {
	Modes        []string
	PollInterval time.Duration

	// SampleEveryNCycles triggers the sampler once per this many cycles.
	SampleEveryNCycles int
}

func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Modes:              []string{"tube", "dlr", "overground", "elizabeth-line"},
		PollInterval:       120 * time.Second,
		SampleEveryNCycles: 10,
	}
}

// CycleStats summarises one poll cycle.
type CycleStats struct {
	New      int
	Updated  int
	Resolved int
	Errors   int
}

// Monitor tracks the lifecycle of live disruptions: absent -> open ->
// updated* -> resolved. Resolution is inferred from absence in the
// upstream feed; there is no explicit resolved event to key on.
type Monitor struct {
	client DisruptionsAPI
	store  store.Store

	sampler Sampler
	config  MonitorConfig
	logger  zerolog.Logger

	pollCount int
	now       func() time.Time
}

func NewMonitor(client DisruptionsAPI, st store.Store, sampler Sampler, config MonitorConfig, logger zerolog.Logger) *Monitor {
	return &Monitor{
		client:  client,
		store:   st,
		sampler: sampler,
		config:  config,
		logger:  logger,

		now: func() time.Time { return time.Now().UTC() },
	}
}

// Run executes poll cycles until ctx is cancelled. A cycle's failure is
// logged and followed by the normal sleep; cycles are independent and a
// single failure never terminates the daemon.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info().
		Strs("modes", m.config.Modes).
		Dur("pollinterval", m.config.PollInterval).
		Msg("Disruption monitor started")

	m.initializeMetadata(ctx)

	for {
		if ctx.Err() != nil {
			m.logger.Info().Msg("Disruption monitor stopping")
			return nil
		}

		stats, err := m.PollCycle(ctx)
		if err != nil {
			m.logger.Error().Err(err).Msg("Poll cycle failed")
		} else {
			m.pollCount++

			if m.sampler != nil && m.config.SampleEveryNCycles > 0 && m.pollCount%m.config.SampleEveryNCycles == 0 {
				if err := m.sampler.SampleOpenDisruptions(ctx); err != nil {
					m.logger.Error().Err(err).Msg("Severity learning failed")
				}
			}

			m.logger.Info().
				Int("new", stats.New).
				Int("updated", stats.Updated).
				Int("resolved", stats.Resolved).
				Int("errors", stats.Errors).
				Msg("Poll cycle complete")
		}

		select {
		case <-ctx.Done():
			m.logger.Info().Msg("Disruption monitor stopping")
			return nil
		case <-time.After(m.config.PollInterval):
		}
	}
}

func (m *Monitor) initializeMetadata(ctx context.Context) {
	if m.sampler != nil {
		if err := m.sampler.Seed(ctx); err != nil {
			m.logger.Error().Err(err).Msg("Severity metadata initialization failed")
		}
	}

	if err := m.seedDisruptionCategories(ctx); err != nil {
		m.logger.Error().Err(err).Msg("Disruption category initialization failed")
	}
}

func (m *Monitor) seedDisruptionCategories(ctx context.Context) error {
	count, err := m.store.DisruptionCategoryCount(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		m.logger.Info().Int64("count", count).Msg("Disruption categories already loaded")
		return nil
	}

	categories, err := m.client.DisruptionCategories(ctx)
	if err != nil {
		return err
	}

	for _, categoryName := range categories {
		category := &models.DisruptionCategory{CategoryName: categoryName}
		if err := m.store.CreateDisruptionCategory(ctx, category); err != nil {
			return err
		}
	}

	m.logger.Info().Int("count", len(categories)).Msg("Loaded disruption categories")

	return nil
}

// PollCycle fetches the currently reported disruptions, persists creates
// and staleness-tested updates, and finally sweeps open records absent
// from this cycle's active set to resolved. All store mutations commit as
// one batch, so classification and persistence always complete before the
// resolution sweep runs.
func (m *Monitor) PollCycle(ctx context.Context) (CycleStats, error) {
	startTime := m.now()
	stats := CycleStats{}

	disruptions, err := m.client.DisruptionsByMode(ctx, m.config.Modes)
	if err != nil {
		return stats, fmt.Errorf("fetching disruptions: %w", err)
	}

	severityByLine, err := m.fetchLineSeverities(ctx)
	if err != nil {
		return stats, fmt.Errorf("fetching line statuses: %w", err)
	}

	err = m.store.Batch(ctx, func(st store.Store) error {
		serviceMap, err := st.ServiceMap(ctx)
		if err != nil {
			return err
		}

		activeFingerprints := map[string]bool{}

		for _, disruptionData := range disruptions {
			result, err := m.processDisruption(ctx, st, disruptionData, serviceMap, severityByLine)
			if err != nil {
				m.logger.Error().Err(err).Str("category", disruptionData.Category).Msg("Error processing disruption")
				stats.Errors++
				continue
			}

			stats.New += result.created
			stats.Updated += result.updated
			for _, fingerprint := range result.activeFingerprints {
				activeFingerprints[fingerprint] = true
			}
		}

		resolved, err := st.ResolveDisruptionsNotIn(ctx, activeFingerprints, m.now())
		if err != nil {
			return err
		}
		stats.Resolved = resolved

		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("poll cycle batch: %w", err)
	}

	m.logger.Debug().
		Dur("duration", m.now().Sub(startTime)).
		Int("disruptions", len(disruptions)).
		Msg("Processed poll cycle")

	return stats, nil
}

// fetchLineSeverities builds a per-line view of the current worst status
// severity. TfL's severity ordinals run from most severe upwards, with
// "Good Service" carrying no disruption.
func (m *Monitor) fetchLineSeverities(ctx context.Context) (map[string]tfl.LineStatus, error) {
	lines, err := m.client.LineStatusByMode(ctx, m.config.Modes)
	if err != nil {
		return nil, err
	}

	severityByLine := map[string]tfl.LineStatus{}
	for _, line := range lines {
		for _, status := range line.LineStatuses {
			if status.StatusSeverityDescription == "Good Service" {
				continue
			}

			existing, ok := severityByLine[line.ID]
			if !ok || status.StatusSeverity < existing.StatusSeverity {
				severityByLine[line.ID] = status
			}
		}
	}

	return severityByLine, nil
}

type processResult struct {
	created            int
	updated            int
	activeFingerprints []string
}

func (m *Monitor) processDisruption(ctx context.Context, st store.Store, disruptionData tfl.Disruption, serviceMap map[string]uint, severityByLine map[string]tfl.LineStatus) (processResult, error) {
	result := processResult{}

	lineIDs := ExtractLineIDs(disruptionData.AffectedRoutes)
	if len(lineIDs) == 0 {
		return result, nil
	}

	classification := Classify(disruptionData)

	for _, lineID := range lineIDs {
		serviceID, known := serviceMap[lineID]
		if !known {
			m.logger.Warn().Str("lineid", lineID).Msg("Unknown line ID")
			continue
		}

		fingerprint := Fingerprint(serviceID, disruptionData.Category, disruptionData.Type, disruptionData.Created, disruptionData.Description)

		existing, err := st.DisruptionByFingerprint(ctx, fingerprint)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return result, err
		}

		if existing == nil {
			record := m.newDisruptionRecord(fingerprint, serviceID, disruptionData, classification, severityByLine[lineID])
			if err := st.CreateDisruption(ctx, record); err != nil {
				return result, err
			}
			result.created++
		} else if !existing.Resolved() && m.shouldUpdate(existing, disruptionData) {
			m.applyUpdate(existing, disruptionData, classification, severityByLine[lineID])
			if err := st.UpdateDisruption(ctx, existing); err != nil {
				return result, err
			}
			result.updated++
		}

		result.activeFingerprints = append(result.activeFingerprints, fingerprint)
	}

	return result, nil
}

// shouldUpdate is the staleness test: a record only mutates when upstream
// reports a newer lastUpdate than stored, which keeps "last updated"
// event-driven rather than poll-driven.
func (m *Monitor) shouldUpdate(existing *models.LiveDisruption, disruptionData tfl.Disruption) bool {
	apiLastUpdate := tfl.ParseTimestamp(disruptionData.LastUpdate)
	if apiLastUpdate == nil {
		return true
	}
	if existing.LastUpdate == nil {
		return true
	}

	return apiLastUpdate.After(*existing.LastUpdate)
}

func (m *Monitor) newDisruptionRecord(fingerprint string, serviceID uint, disruptionData tfl.Disruption, classification Classification, lineStatus tfl.LineStatus) *models.LiveDisruption {
	created := tfl.ParseTimestamp(disruptionData.Created)
	if created == nil {
		now := m.now()
		created = &now
	}

	description := disruptionData.Description
	if description == "" {
		description = "No description"
	}

	return &models.LiveDisruption{
		Fingerprint: fingerprint,
		ServiceID:   serviceID,

		Category:            categoryOrUnknown(disruptionData.Category),
		CategoryDescription: disruptionData.CategoryDescription,
		DisruptionType:      disruptionData.Type,
		Description:         description,
		Summary:             disruptionData.Summary,
		AdditionalInfo:      disruptionData.AdditionalInfo,
		ClosureText:         disruptionData.ClosureText,

		Severity:      lineStatus.StatusSeverityDescription,
		SeverityLevel: lineStatus.StatusSeverity,

		IsFullSuspension:    classification.IsFullSuspension,
		IsPartialSuspension: classification.IsPartialSuspension,

		AffectedSectionStartNaptan: classification.StartNaptan,
		AffectedSectionEndNaptan:   classification.EndNaptan,

		AffectedStopsJSON:  marshalJSON(disruptionData.AffectedStops),
		AffectedRoutesJSON: marshalJSON(disruptionData.AffectedRoutes),

		Created:    *created,
		LastUpdate: tfl.ParseTimestamp(disruptionData.LastUpdate),
		ValidFrom:  tfl.ParseTimestamp(disruptionData.ValidFrom),
		ValidTo:    tfl.ParseTimestamp(disruptionData.ValidTo),

		StartTime: *created,
	}
}

func (m *Monitor) applyUpdate(existing *models.LiveDisruption, disruptionData tfl.Disruption, classification Classification, lineStatus tfl.LineStatus) {
	if disruptionData.Description != "" {
		existing.Description = disruptionData.Description
	}
	existing.Summary = disruptionData.Summary
	existing.AdditionalInfo = disruptionData.AdditionalInfo
	existing.ClosureText = disruptionData.ClosureText
	existing.CategoryDescription = disruptionData.CategoryDescription

	if lineStatus.StatusSeverityDescription != "" {
		existing.Severity = lineStatus.StatusSeverityDescription
		existing.SeverityLevel = lineStatus.StatusSeverity
	}

	existing.IsFullSuspension = classification.IsFullSuspension
	existing.IsPartialSuspension = classification.IsPartialSuspension
	existing.AffectedSectionStartNaptan = classification.StartNaptan
	existing.AffectedSectionEndNaptan = classification.EndNaptan

	existing.AffectedStopsJSON = marshalJSON(disruptionData.AffectedStops)
	existing.AffectedRoutesJSON = marshalJSON(disruptionData.AffectedRoutes)

	existing.LastUpdate = tfl.ParseTimestamp(disruptionData.LastUpdate)
	existing.ValidTo = tfl.ParseTimestamp(disruptionData.ValidTo)
	existing.UpdatedAt = m.now()
}

func categoryOrUnknown(category string) string {
	if category == "" {
		return "Unknown"
	}

	return category
}

func marshalJSON(value any) string {
	encoded, err := json.Marshal(value)
	if err != nil {
		return ""
	}

	return string(encoded)
}
