package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tflnexus/tflnexus/pkg/models"
)

// MemoryStore is an in-memory Store implementation for tests. Batch runs
// the callback directly without rollback semantics.
type MemoryStore struct {
	mu sync.Mutex

	nextID uint

	stops              []models.Stop
	services           []models.Service
	edges              []models.Edge
	disruptions        []models.LiveDisruption
	severityLevels     []models.SeverityLevel
	categories         []models.DisruptionCategory
	delaySamples       []models.RealtimeDelaySample
	historicalDelays   []models.HistoricalDelay
	arrivalRecords     []models.ArrivalRecord
	transferStatistics []models.TransferStatistic
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1}
}

func (s *MemoryStore) allocateID() uint {
	id := s.nextID
	s.nextID++

	return id
}

// Seed helpers used by tests and by nothing else.

func (s *MemoryStore) SeedStop(stop models.Stop) models.Stop {
	s.mu.Lock()
	defer s.mu.Unlock()

	if stop.ID == 0 {
		stop.ID = s.allocateID()
	}
	s.stops = append(s.stops, stop)

	return stop
}

func (s *MemoryStore) SeedService(service models.Service) models.Service {
	s.mu.Lock()
	defer s.mu.Unlock()

	if service.ID == 0 {
		service.ID = s.allocateID()
	}
	s.services = append(s.services, service)

	return service
}

func (s *MemoryStore) SeedEdge(edge models.Edge) models.Edge {
	s.mu.Lock()
	defer s.mu.Unlock()

	if edge.ID == 0 {
		edge.ID = s.allocateID()
	}
	s.edges = append(s.edges, edge)

	return edge
}

func (s *MemoryStore) Batch(ctx context.Context, fn func(Store) error) error {
	return fn(s)
}

func (s *MemoryStore) ServiceMap(ctx context.Context) (map[string]uint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	serviceMap := map[string]uint{}
	for _, service := range s.services {
		serviceMap[service.TfLLineID] = service.ID
	}

	return serviceMap, nil
}

func (s *MemoryStore) ServiceByID(ctx context.Context, id uint) (*models.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, service := range s.services {
		if service.ID == id {
			found := service
			return &found, nil
		}
	}

	return nil, ErrNotFound
}

func (s *MemoryStore) StopsByNaptan(ctx context.Context, naptanIDs []string) ([]models.Stop, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wanted := map[string]bool{}
	for _, id := range naptanIDs {
		wanted[id] = true
	}

	var stops []models.Stop
	for _, stop := range s.stops {
		if wanted[stop.TfLStopID] {
			stops = append(stops, stop)
		}
	}

	return stops, nil
}

func (s *MemoryStore) MajorInterchangeStops(ctx context.Context, modes []string, minServices int, limit int) ([]models.Stop, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	modeSet := map[string]bool{}
	for _, mode := range modes {
		modeSet[mode] = true
	}

	serviceCounts := map[uint]map[uint]bool{}
	for _, edge := range s.edges {
		for _, stopID := range []uint{edge.FromStopID, edge.ToStopID} {
			if serviceCounts[stopID] == nil {
				serviceCounts[stopID] = map[uint]bool{}
			}
			serviceCounts[stopID][edge.ServiceID] = true
		}
	}

	var stops []models.Stop
	for _, stop := range s.stops {
		if !modeSet[stop.Mode] {
			continue
		}
		if len(serviceCounts[stop.ID]) >= minServices {
			stops = append(stops, stop)
		}
	}

	sort.SliceStable(stops, func(a, b int) bool {
		return len(serviceCounts[stops[a].ID]) > len(serviceCounts[stops[b].ID])
	})

	if len(stops) > limit {
		stops = stops[:limit]
	}

	return stops, nil
}

func (s *MemoryStore) UpsertStop(ctx context.Context, stop *models.Stop) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.stops {
		if s.stops[i].TfLStopID == stop.TfLStopID {
			stop.ID = s.stops[i].ID
			s.stops[i] = *stop
			return nil
		}
	}

	if stop.ID == 0 {
		stop.ID = s.allocateID()
	}
	s.stops = append(s.stops, *stop)

	return nil
}

func (s *MemoryStore) UpsertService(ctx context.Context, service *models.Service) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.services {
		if s.services[i].TfLLineID == service.TfLLineID {
			service.ID = s.services[i].ID
			s.services[i] = *service
			return nil
		}
	}

	if service.ID == 0 {
		service.ID = s.allocateID()
	}
	s.services = append(s.services, *service)

	return nil
}

func (s *MemoryStore) ReplaceServiceEdges(ctx context.Context, serviceID uint, edges []models.Edge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var kept []models.Edge
	for _, edge := range s.edges {
		if edge.ServiceID != serviceID {
			kept = append(kept, edge)
		}
	}

	for i := range edges {
		if edges[i].ID == 0 {
			edges[i].ID = s.allocateID()
		}
		kept = append(kept, edges[i])
	}
	s.edges = kept

	return nil
}

// Edges returns a copy of all stored edges.
func (s *MemoryStore) Edges() []models.Edge {
	s.mu.Lock()
	defer s.mu.Unlock()

	edges := make([]models.Edge, len(s.edges))
	copy(edges, s.edges)

	return edges
}

func (s *MemoryStore) DisruptionByFingerprint(ctx context.Context, fingerprint string) (*models.LiveDisruption, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.disruptions {
		if s.disruptions[i].Fingerprint == fingerprint {
			found := s.disruptions[i]
			return &found, nil
		}
	}

	return nil, ErrNotFound
}

func (s *MemoryStore) CreateDisruption(ctx context.Context, disruption *models.LiveDisruption) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if disruption.ID == 0 {
		disruption.ID = s.allocateID()
	}
	disruption.CreatedAt = time.Now().UTC()
	s.disruptions = append(s.disruptions, *disruption)

	return nil
}

func (s *MemoryStore) UpdateDisruption(ctx context.Context, disruption *models.LiveDisruption) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.disruptions {
		if s.disruptions[i].ID == disruption.ID {
			s.disruptions[i] = *disruption
			return nil
		}
	}

	return ErrNotFound
}

func (s *MemoryStore) OpenDisruptions(ctx context.Context) ([]models.LiveDisruption, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var open []models.LiveDisruption
	for _, disruption := range s.disruptions {
		if disruption.ActualEndTime == nil {
			open = append(open, disruption)
		}
	}

	return open, nil
}

func (s *MemoryStore) ResolvedDisruptions(ctx context.Context, since *time.Time) ([]models.LiveDisruption, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var resolved []models.LiveDisruption
	for _, disruption := range s.disruptions {
		if disruption.ActualEndTime == nil {
			continue
		}
		if since != nil && disruption.ActualEndTime.Before(*since) {
			continue
		}
		resolved = append(resolved, disruption)
	}

	return resolved, nil
}

func (s *MemoryStore) ResolveDisruptionsNotIn(ctx context.Context, activeFingerprints map[string]bool, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resolved := 0
	for i := range s.disruptions {
		if s.disruptions[i].ActualEndTime != nil {
			continue
		}
		if activeFingerprints[s.disruptions[i].Fingerprint] {
			continue
		}

		endTime := now
		s.disruptions[i].ActualEndTime = &endTime
		s.disruptions[i].UpdatedAt = now
		resolved++
	}

	return resolved, nil
}

func (s *MemoryStore) SeverityLevelCount(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return int64(len(s.severityLevels)), nil
}

func (s *MemoryStore) CreateSeverityLevel(ctx context.Context, level *models.SeverityLevel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if level.ID == 0 {
		level.ID = s.allocateID()
	}
	s.severityLevels = append(s.severityLevels, *level)

	return nil
}

func (s *MemoryStore) SeverityLevel(ctx context.Context, mode string, level int) (*models.SeverityLevel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.severityLevels {
		if s.severityLevels[i].ModeName == mode && s.severityLevels[i].SeverityLevel == level {
			found := s.severityLevels[i]
			return &found, nil
		}
	}

	return nil, ErrNotFound
}

func (s *MemoryStore) SeverityLevels(ctx context.Context, mode string) ([]models.SeverityLevel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var levels []models.SeverityLevel
	for _, level := range s.severityLevels {
		if mode == "" || level.ModeName == mode {
			levels = append(levels, level)
		}
	}

	sort.SliceStable(levels, func(a, b int) bool {
		if levels[a].ModeName != levels[b].ModeName {
			return levels[a].ModeName < levels[b].ModeName
		}
		return levels[a].SeverityLevel < levels[b].SeverityLevel
	})

	return levels, nil
}

func (s *MemoryStore) NonSuspensionSeverityLevels(ctx context.Context) ([]models.SeverityLevel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var levels []models.SeverityLevel
	for _, level := range s.severityLevels {
		if !level.IsSuspension {
			levels = append(levels, level)
		}
	}

	return levels, nil
}

func (s *MemoryStore) UpdateSeverityLevel(ctx context.Context, level *models.SeverityLevel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.severityLevels {
		if s.severityLevels[i].ID == level.ID {
			s.severityLevels[i] = *level
			return nil
		}
	}

	return ErrNotFound
}

func (s *MemoryStore) AverageNonSuspensionConfidence(ctx context.Context) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0.0
	count := 0
	for _, level := range s.severityLevels {
		if level.IsSuspension {
			continue
		}
		total += level.ConfidenceScore
		count++
	}

	if count == 0 {
		return 0, nil
	}

	return total / float64(count), nil
}

func (s *MemoryStore) DisruptionCategoryCount(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return int64(len(s.categories)), nil
}

func (s *MemoryStore) CreateDisruptionCategory(ctx context.Context, category *models.DisruptionCategory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if category.ID == 0 {
		category.ID = s.allocateID()
	}
	s.categories = append(s.categories, *category)

	return nil
}

func (s *MemoryStore) AddDelaySamples(ctx context.Context, samples []models.RealtimeDelaySample) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sample := range samples {
		if sample.ID == 0 {
			sample.ID = s.allocateID()
		}
		s.delaySamples = append(s.delaySamples, sample)
	}

	return nil
}

func (s *MemoryStore) RecentSamplesForSeverity(ctx context.Context, mode string, severityLevel int, since time.Time) ([]models.RealtimeDelaySample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	serviceModes := map[uint]string{}
	for _, service := range s.services {
		serviceModes[service.ID] = service.Mode
	}

	disruptionLevels := map[uint]int{}
	for _, disruption := range s.disruptions {
		disruptionLevels[disruption.ID] = disruption.SeverityLevel
	}

	var matched []models.RealtimeDelaySample
	for _, sample := range s.delaySamples {
		if serviceModes[sample.ServiceID] != mode {
			continue
		}
		if sample.Timestamp.Before(since) {
			continue
		}
		if sample.DisruptionID == nil {
			continue
		}
		if disruptionLevels[*sample.DisruptionID] != severityLevel {
			continue
		}
		matched = append(matched, sample)
	}

	return matched, nil
}

func (s *MemoryStore) HistoricalDelayExists(ctx context.Context, serviceID uint, timestamp time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, delay := range s.historicalDelays {
		if delay.ServiceID == serviceID && delay.Timestamp.Equal(timestamp) {
			return true, nil
		}
	}

	return false, nil
}

func (s *MemoryStore) AddHistoricalDelay(ctx context.Context, delay *models.HistoricalDelay) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if delay.ID == 0 {
		delay.ID = s.allocateID()
	}
	s.historicalDelays = append(s.historicalDelays, *delay)

	return nil
}

func (s *MemoryStore) RecentDelaysForService(ctx context.Context, serviceID uint, limit int) ([]models.HistoricalDelay, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var delays []models.HistoricalDelay
	for _, delay := range s.historicalDelays {
		if delay.ServiceID == serviceID {
			delays = append(delays, delay)
		}
	}

	sort.SliceStable(delays, func(a, b int) bool {
		return delays[a].Timestamp.After(delays[b].Timestamp)
	})

	if len(delays) > limit {
		delays = delays[:limit]
	}

	return delays, nil
}

func (s *MemoryStore) AddArrivalRecords(ctx context.Context, records []models.ArrivalRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, record := range records {
		if record.ID == 0 {
			record.ID = s.allocateID()
		}
		s.arrivalRecords = append(s.arrivalRecords, record)
	}

	return nil
}

// ArrivalRecords returns a copy of all collected arrival records.
func (s *MemoryStore) ArrivalRecords() []models.ArrivalRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := make([]models.ArrivalRecord, len(s.arrivalRecords))
	copy(records, s.arrivalRecords)

	return records
}

// DelaySamples returns a copy of all collected realtime delay samples.
func (s *MemoryStore) DelaySamples() []models.RealtimeDelaySample {
	s.mu.Lock()
	defer s.mu.Unlock()

	samples := make([]models.RealtimeDelaySample, len(s.delaySamples))
	copy(samples, s.delaySamples)

	return samples
}

// HistoricalDelays returns a copy of all historical delay records.
func (s *MemoryStore) HistoricalDelays() []models.HistoricalDelay {
	s.mu.Lock()
	defer s.mu.Unlock()

	delays := make([]models.HistoricalDelay, len(s.historicalDelays))
	copy(delays, s.historicalDelays)

	return delays
}

func (s *MemoryStore) InterchangeStopIDs(ctx context.Context) ([]uint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	serviceCounts := map[uint]map[uint]bool{}
	for _, edge := range s.edges {
		if serviceCounts[edge.FromStopID] == nil {
			serviceCounts[edge.FromStopID] = map[uint]bool{}
		}
		serviceCounts[edge.FromStopID][edge.ServiceID] = true
	}

	var stopIDs []uint
	for stopID, services := range serviceCounts {
		if len(services) > 1 {
			stopIDs = append(stopIDs, stopID)
		}
	}

	sort.Slice(stopIDs, func(a, b int) bool { return stopIDs[a] < stopIDs[b] })

	return stopIDs, nil
}

func (s *MemoryStore) ServicesAtStop(ctx context.Context, stopID uint) ([]uint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	services := map[uint]bool{}
	for _, edge := range s.edges {
		if edge.FromStopID == stopID || edge.ToStopID == stopID {
			services[edge.ServiceID] = true
		}
	}

	var serviceIDs []uint
	for serviceID := range services {
		serviceIDs = append(serviceIDs, serviceID)
	}

	sort.Slice(serviceIDs, func(a, b int) bool { return serviceIDs[a] < serviceIDs[b] })

	return serviceIDs, nil
}

func (s *MemoryStore) TransferStatistic(ctx context.Context, stopID uint, fromServiceID uint, toServiceID uint) (*models.TransferStatistic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.transferStatistics {
		statistic := s.transferStatistics[i]
		if statistic.StopID == stopID && statistic.FromServiceID == fromServiceID && statistic.ToServiceID == toServiceID {
			found := statistic
			return &found, nil
		}
	}

	return nil, ErrNotFound
}

func (s *MemoryStore) UpsertTransferStatistic(ctx context.Context, statistic *models.TransferStatistic) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.transferStatistics {
		existing := &s.transferStatistics[i]
		if existing.StopID == statistic.StopID &&
			existing.FromServiceID == statistic.FromServiceID &&
			existing.ToServiceID == statistic.ToServiceID {
			statistic.ID = existing.ID
			*existing = *statistic
			return nil
		}
	}

	if statistic.ID == 0 {
		statistic.ID = s.allocateID()
	}
	s.transferStatistics = append(s.transferStatistics, *statistic)

	return nil
}

func (s *MemoryStore) TransferStatisticsForStop(ctx context.Context, stopID uint) ([]models.TransferStatistic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var statistics []models.TransferStatistic
	for _, statistic := range s.transferStatistics {
		if statistic.StopID == stopID {
			statistics = append(statistics, statistic)
		}
	}

	return statistics, nil
}

var _ Store = (*MemoryStore)(nil)
