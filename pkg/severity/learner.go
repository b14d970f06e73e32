// Package severity maintains the adaptive mapping from categorical
// disruption severities to expected delay magnitudes. Estimates live in
// the store, are seeded once from the upstream severity catalog, and are
// refined by sampling live arrivals while disruptions are open.
package severity

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"
	"github.com/tflnexus/tflnexus/pkg/models"
	"github.com/tflnexus/tflnexus/pkg/store"
	"github.com/tflnexus/tflnexus/pkg/tfl"
)

// ArrivalsAPI is the slice of the TfL client the learner needs.
type ArrivalsAPI interface {
	SeverityCodes(ctx context.Context) ([]tfl.SeverityCode, error)
	LineArrivalsAtStop(ctx context.Context, lineIDs []string, naptanID string) ([]tfl.ArrivalPrediction, error)
}

type Config struct {
	Enabled bool

	// Sampling stops for a level once its confidence reaches
	// HighConfidenceThreshold and its sample count reaches MaxSampleCount.
	HighConfidenceThreshold float64
	MaxSampleCount          int

	// ConfidenceThreshold is the mean confidence above which overall
	// sampling frequency can be reduced.
	ConfidenceThreshold float64

	MinSamplesForUpdate int
	SampleWindow        time.Duration

	// Stops touched by at least MajorStopThreshold distinct services
	// qualify as fallback sampling locations.
	MajorStopThreshold int

	// Expected headway per mode, in seconds. Gaps beyond 1.5x the
	// expected headway yield delay samples.
	DefaultFrequencySeconds map[string]int

	Modes []string
}

func DefaultConfig() Config {
	return Config{
		Enabled: true,

		HighConfidenceThreshold: 0.9,
		MaxSampleCount:          100,
		ConfidenceThreshold:     0.75,
		MinSamplesForUpdate:     20,
		SampleWindow:            7 * 24 * time.Hour,
		MajorStopThreshold:      3,

		DefaultFrequencySeconds: map[string]int{
			"tube":           180,
			"dlr":            240,
			"overground":     420,
			"elizabeth-line": 300,
		},

		Modes: []string{"tube", "dlr", "overground", "elizabeth-line"},
	}
}

const (
	initialConfidence   = 0.3
	confidenceIncrement = 0.05
	confidenceCap       = 0.95

	sampleWeightPerSample = 0.1
	sampleWeightCap       = 5.0

	// Batches whose mean excess is under this are treated as noise.
	noiseFloorSeconds = 30

	fallbackDelayMinutes     = 10.0
	defaultFrequencySeconds  = 300
	maxArrivalsPerPrediction = 10
	maxStopsPerDisruption    = 3
	maxFallbackStops         = 5
	majorStopLimit           = 30
)

// Suspension-flavoured severity descriptions carry no numeric delay
// estimate at all; nil, not zero.
var suspensionDescriptionKeywords = []string{"suspend", "closed", "closure", "no service"}

// initialDelayMap is the hand-tuned prior delay table indexed by ordinal
// severity level. Level 10 ("Good Service") has no estimate.
var initialDelayMap = map[int]*float64{
	0:  floatPtr(0),
	1:  floatPtr(1),
	2:  floatPtr(3),
	3:  floatPtr(5),
	4:  floatPtr(8),
	5:  floatPtr(10),
	6:  floatPtr(12),
	7:  floatPtr(15),
	8:  floatPtr(20),
	9:  floatPtr(25),
	10: nil,
}

func floatPtr(value float64) *float64 {
	return &value
}

type Learner struct {
	client ArrivalsAPI
	store  store.Store
	config Config
	logger zerolog.Logger

	majorStops []models.Stop

	now func() time.Time
}

func NewLearner(client ArrivalsAPI, st store.Store, config Config, logger zerolog.Logger) *Learner {
	return &Learner{
		client: client,
		store:  st,
		config: config,
		logger: logger,

		now: func() time.Time { return time.Now().UTC() },
	}
}

// Seed loads the severity definitions from the upstream catalog (once;
// subsequent calls with populated definitions are no-ops) and refreshes
// the major interchange stop fallback list.
func (l *Learner) Seed(ctx context.Context) error {
	if err := l.seedSeverityDefinitions(ctx); err != nil {
		return err
	}

	return l.loadMajorStops(ctx)
}

func (l *Learner) seedSeverityDefinitions(ctx context.Context) error {
	count, err := l.store.SeverityLevelCount(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		l.logger.Info().Int64("count", count).Msg("Severity definitions already loaded")
		return nil
	}

	severityCodes, err := l.client.SeverityCodes(ctx)
	if err != nil {
		return err
	}

	for _, code := range severityCodes {
		record := NewSeverityRecord(code)
		if err := l.store.CreateSeverityLevel(ctx, record); err != nil {
			return err
		}
	}

	l.logger.Info().Int("count", len(severityCodes)).Msg("Loaded severity definitions")

	return nil
}

// NewSeverityRecord builds the initial belief for one severity catalog
// entry: the prior delay table value, or no estimate at all for
// suspension-flavoured descriptions, and the low starting confidence.
func NewSeverityRecord(code tfl.SeverityCode) *models.SeverityLevel {
	descriptionLower := strings.ToLower(code.Description)

	isSuspension := false
	for _, keyword := range suspensionDescriptionKeywords {
		if strings.Contains(descriptionLower, keyword) {
			isSuspension = true
			break
		}
	}

	var estimatedDelay *float64
	if !isSuspension {
		mapped, known := initialDelayMap[code.SeverityLevel]
		if known {
			estimatedDelay = mapped
		} else {
			estimatedDelay = floatPtr(fallbackDelayMinutes)
		}
	}

	return &models.SeverityLevel{
		ModeName:      code.ModeName,
		SeverityLevel: code.SeverityLevel,
		Description:   code.Description,

		EstimatedDelayMinutes: estimatedDelay,
		IsSuspension:          isSuspension,
		SampleCount:           0,
		ConfidenceScore:       initialConfidence,
	}
}

func (l *Learner) loadMajorStops(ctx context.Context) error {
	stops, err := l.store.MajorInterchangeStops(ctx, l.config.Modes, l.config.MajorStopThreshold, majorStopLimit)
	if err != nil {
		return err
	}

	l.majorStops = stops
	l.logger.Info().Int("count", len(stops)).Msg("Identified major interchange stops for sampling")

	return nil
}

// SampleOpenDisruptions collects delay samples for every open disruption
// whose severity level is not yet well characterized, then applies the
// incremental estimate update. The per-disruption fan-out is parallel and
// idempotent; all writes land in one store batch.
func (l *Learner) SampleOpenDisruptions(ctx context.Context) error {
	if !l.config.Enabled {
		return nil
	}

	openDisruptions, err := l.store.OpenDisruptions(ctx)
	if err != nil {
		return err
	}
	if len(openDisruptions) == 0 {
		l.logger.Debug().Msg("No active disruptions, skipping delay sampling")
		return nil
	}

	samplePool := pool.NewWithResults[[]models.RealtimeDelaySample]().WithContext(ctx)
	for _, openDisruption := range openDisruptions {
		openDisruption := openDisruption

		samplePool.Go(func(ctx context.Context) ([]models.RealtimeDelaySample, error) {
			samples, err := l.sampleDisruption(ctx, openDisruption)
			if err != nil {
				l.logger.Error().Err(err).Str("fingerprint", openDisruption.Fingerprint).Msg("Failed to sample disruption")
				return nil, nil
			}

			return samples, nil
		})
	}

	sampleBatches, err := samplePool.Wait()
	if err != nil {
		return err
	}

	var allSamples []models.RealtimeDelaySample
	for _, batch := range sampleBatches {
		allSamples = append(allSamples, batch...)
	}

	// A pass with no new evidence must not touch the estimates: re-blending
	// the same trailing-window samples would ratchet confidence upwards
	// without anything new having been observed.
	if len(allSamples) == 0 {
		l.logger.Debug().Msg("No delay samples collected, skipping estimate update")
		return nil
	}

	return l.store.Batch(ctx, func(st store.Store) error {
		if err := st.AddDelaySamples(ctx, allSamples); err != nil {
			return err
		}
		l.logger.Info().Int("count", len(allSamples)).Msg("Collected delay samples")

		return l.updateEstimates(ctx, st)
	})
}

func (l *Learner) sampleDisruption(ctx context.Context, openDisruption models.LiveDisruption) ([]models.RealtimeDelaySample, error) {
	service, err := l.store.ServiceByID(ctx, openDisruption.ServiceID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	severityRecord, err := l.store.SeverityLevel(ctx, service.Mode, openDisruption.SeverityLevel)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	// Converged levels stop generating load.
	if severityRecord.ConfidenceScore >= l.config.HighConfidenceThreshold &&
		severityRecord.SampleCount >= l.config.MaxSampleCount {
		return nil, nil
	}

	relevantStops, err := l.findAffectedStops(ctx, openDisruption)
	if err != nil {
		return nil, err
	}
	if len(relevantStops) == 0 {
		relevantStops = l.fallbackStops()
	}
	if len(relevantStops) > maxStopsPerDisruption {
		relevantStops = relevantStops[:maxStopsPerDisruption]
	}

	severityLabel := openDisruption.Severity
	if severityLabel == "" {
		severityLabel = fmt.Sprintf("Level_%d", openDisruption.SeverityLevel)
	}

	disruptionID := openDisruption.ID
	now := l.now()

	var samples []models.RealtimeDelaySample

	for _, stop := range relevantStops {
		arrivals, err := l.client.LineArrivalsAtStop(ctx, []string{service.TfLLineID}, stop.TfLStopID)
		if err != nil {
			l.logger.Warn().Err(err).Str("stop", stop.Name).Msg("Failed to sample arrivals")
			continue
		}

		observations := DeriveDelayObservations(arrivals, l.expectedFrequency(service.Mode))

		for _, observation := range observations {
			samples = append(samples, models.RealtimeDelaySample{
				ServiceID:    service.ID,
				StopID:       stop.ID,
				DisruptionID: &disruptionID,

				SeverityAtTime: severityLabel,
				VehicleID:      observation.VehicleID,

				ExpectedArrival:      observation.ExpectedArrival,
				MeasuredDelaySeconds: observation.DelaySeconds,
				Timestamp:            now,

				PlatformName: observation.PlatformName,
				Direction:    observation.Direction,
			})
		}
	}

	return samples, nil
}

func (l *Learner) expectedFrequency(mode string) int {
	if frequency, known := l.config.DefaultFrequencySeconds[mode]; known {
		return frequency
	}

	return defaultFrequencySeconds
}

func (l *Learner) findAffectedStops(ctx context.Context, openDisruption models.LiveDisruption) ([]models.Stop, error) {
	naptanIDs := AffectedStopNaptans(openDisruption.AffectedStopsJSON)
	if len(naptanIDs) == 0 {
		return nil, nil
	}

	return l.store.StopsByNaptan(ctx, naptanIDs)
}

func (l *Learner) fallbackStops() []models.Stop {
	var stops []models.Stop
	for _, stop := range l.majorStops {
		if stop.TfLStopID == "" {
			continue
		}
		stops = append(stops, stop)
		if len(stops) == maxFallbackStops {
			break
		}
	}

	return stops
}

// DelayObservation is one gap-derived delay measurement.
type DelayObservation struct {
	VehicleID       string
	ExpectedArrival time.Time
	DelaySeconds    int
	PlatformName    string
	Direction       string
}

// DeriveDelayObservations compares successive arrivals' time-to-station
// against the expected headway. A gap beyond 1.5x the expected headway
// yields an observation of the excess; a batch whose mean excess is under
// the noise floor is discarded entirely as carrying no real delay signal.
func DeriveDelayObservations(arrivals []tfl.ArrivalPrediction, expectedFrequencySeconds int) []DelayObservation {
	if len(arrivals) == 0 {
		return nil
	}

	sorted := make([]tfl.ArrivalPrediction, len(arrivals))
	copy(sorted, arrivals)
	sort.SliceStable(sorted, func(a, b int) bool {
		return sorted[a].TimeToStation < sorted[b].TimeToStation
	})

	if len(sorted) > maxArrivalsPerPrediction {
		sorted = sorted[:maxArrivalsPerPrediction]
	}

	var observations []DelayObservation

	for i := 1; i < len(sorted); i++ {
		interval := sorted[i].TimeToStation - sorted[i-1].TimeToStation
		if float64(interval) <= float64(expectedFrequencySeconds)*1.5 {
			continue
		}

		excessDelay := interval - expectedFrequencySeconds

		expectedArrival := time.Now().UTC()
		if parsed := tfl.ParseTimestamp(sorted[i].ExpectedArrival); parsed != nil {
			expectedArrival = *parsed
		}

		observations = append(observations, DelayObservation{
			VehicleID:       sorted[i].VehicleID,
			ExpectedArrival: expectedArrival,
			DelaySeconds:    excessDelay,
			PlatformName:    sorted[i].PlatformName,
			Direction:       sorted[i].Direction,
		})
	}

	if len(observations) > 0 {
		total := 0
		for _, observation := range observations {
			total += observation.DelaySeconds
		}
		if float64(total)/float64(len(observations)) < noiseFloorSeconds {
			return nil
		}
	}

	return observations
}

// updateEstimates applies the confidence-weighted blend to every
// non-suspension severity level with enough fresh samples.
func (l *Learner) updateEstimates(ctx context.Context, st store.Store) error {
	severityLevels, err := st.NonSuspensionSeverityLevels(ctx)
	if err != nil {
		return err
	}

	windowStart := l.now().Add(-l.config.SampleWindow)

	for i := range severityLevels {
		severityLevel := severityLevels[i]

		recentSamples, err := st.RecentSamplesForSeverity(ctx, severityLevel.ModeName, severityLevel.SeverityLevel, windowStart)
		if err != nil {
			return err
		}

		if len(recentSamples) < l.config.MinSamplesForUpdate {
			l.logger.Debug().
				Str("mode", severityLevel.ModeName).
				Int("level", severityLevel.SeverityLevel).
				Int("samples", len(recentSamples)).
				Msg("Insufficient samples for severity update")
			continue
		}

		totalSeconds := 0
		for _, sample := range recentSamples {
			totalSeconds += sample.MeasuredDelaySeconds
		}
		sampleMeanMinutes := float64(totalSeconds) / float64(len(recentSamples)) / 60.0

		oldEstimate := fallbackDelayMinutes
		if severityLevel.EstimatedDelayMinutes != nil {
			oldEstimate = *severityLevel.EstimatedDelayMinutes
		}
		oldConfidence := severityLevel.ConfidenceScore

		newEstimate, newConfidence := BlendEstimate(oldEstimate, oldConfidence, sampleMeanMinutes, len(recentSamples))

		now := l.now()
		severityLevel.EstimatedDelayMinutes = &newEstimate
		severityLevel.ConfidenceScore = newConfidence
		severityLevel.SampleCount = len(recentSamples)
		severityLevel.LastUpdated = &now

		if err := st.UpdateSeverityLevel(ctx, &severityLevel); err != nil {
			return err
		}

		l.logger.Info().
			Str("mode", severityLevel.ModeName).
			Int("level", severityLevel.SeverityLevel).
			Float64("oldestimate", oldEstimate).
			Float64("newestimate", newEstimate).
			Float64("oldconfidence", oldConfidence).
			Float64("newconfidence", newConfidence).
			Int("samples", len(recentSamples)).
			Msg("Updated severity estimate")
	}

	return nil
}

// BlendEstimate applies the incremental update rule:
//
//	new = (old*confidence + sampleMean*weight) / (confidence + weight)
//
// with weight = min(sampleCount*0.1, 5.0), capping the influence of any
// single batch, and confidence raised by a fixed increment up to the cap.
// Confidence here is a proxy for rounds of evidence, not a posterior. The
// formula and caps are load-bearing for behavioural compatibility.
func BlendEstimate(oldEstimate float64, oldConfidence float64, sampleMean float64, sampleCount int) (float64, float64) {
	sampleWeight := math.Min(float64(sampleCount)*sampleWeightPerSample, sampleWeightCap)

	newEstimate := (oldEstimate*oldConfidence + sampleMean*sampleWeight) / (oldConfidence + sampleWeight)
	newEstimate = math.Round(newEstimate*100) / 100

	newConfidence := math.Min(oldConfidence+confidenceIncrement, confidenceCap)

	return newEstimate, newConfidence
}

// Estimate returns the current delay estimate for a (mode, level) pair,
// nil when the level is a suspension or unknown.
func (l *Learner) Estimate(ctx context.Context, mode string, level int) (*float64, error) {
	severityLevel, err := l.store.SeverityLevel(ctx, mode, level)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return severityLevel.EstimatedDelayMinutes, nil
}

// ShouldReduceSampling reports whether the average non-suspension
// confidence has crossed the threshold where sampling frequency can drop.
func (l *Learner) ShouldReduceSampling(ctx context.Context) (bool, error) {
	averageConfidence, err := l.store.AverageNonSuspensionConfidence(ctx)
	if err != nil {
		return false, err
	}

	return averageConfidence >= l.config.ConfidenceThreshold, nil
}
