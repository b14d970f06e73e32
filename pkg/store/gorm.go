package store

import (
	"context"
	"errors"
	"time"

	"github.com/tflnexus/tflnexus/pkg/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore is the Postgres-backed Store implementation.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Batch(ctx context.Context, fn func(Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

func (s *GormStore) ServiceMap(ctx context.Context) (map[string]uint, error) {
	var services []models.Service
	if err := s.db.WithContext(ctx).Select("id", "tfl_line_id").Find(&services).Error; err != nil {
		return nil, err
	}

	serviceMap := map[string]uint{}
	for _, service := range services {
		serviceMap[service.TfLLineID] = service.ID
	}

	return serviceMap, nil
}

func (s *GormStore) ServiceByID(ctx context.Context, id uint) (*models.Service, error) {
	var service models.Service
	err := s.db.WithContext(ctx).First(&service, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &service, nil
}

func (s *GormStore) StopsByNaptan(ctx context.Context, naptanIDs []string) ([]models.Stop, error) {
	var stops []models.Stop
	err := s.db.WithContext(ctx).Where("tfl_stop_id IN ?", naptanIDs).Find(&stops).Error

	return stops, err
}

func (s *GormStore) MajorInterchangeStops(ctx context.Context, modes []string, minServices int, limit int) ([]models.Stop, error) {
	var stops []models.Stop

	err := s.db.WithContext(ctx).Raw(`
		SELECT stops.* FROM stops
		JOIN edges ON stops.id = edges.from_stop_id OR stops.id = edges.to_stop_id
		WHERE stops.mode IN ?
		GROUP BY stops.id
		HAVING COUNT(DISTINCT edges.service_id) >= ?
		ORDER BY COUNT(DISTINCT edges.service_id) DESC
		LIMIT ?`,
		modes, minServices, limit,
	).Scan(&stops).Error

	return stops, err
}

func (s *GormStore) UpsertStop(ctx context.Context, stop *models.Stop) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "tfl_stop_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "mode", "latitude", "longitude", "zone", "updated_at",
		}),
	}).Create(stop).Error
}

func (s *GormStore) UpsertService(ctx context.Context, service *models.Service) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "tfl_line_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"line_name", "mode", "updated_at",
		}),
	}).Create(service).Error
}

func (s *GormStore) ReplaceServiceEdges(ctx context.Context, serviceID uint, edges []models.Edge) error {
	if err := s.db.WithContext(ctx).Where("service_id = ?", serviceID).Delete(&models.Edge{}).Error; err != nil {
		return err
	}
	if len(edges) == 0 {
		return nil
	}

	return s.db.WithContext(ctx).Create(&edges).Error
}

func (s *GormStore) DisruptionByFingerprint(ctx context.Context, fingerprint string) (*models.LiveDisruption, error) {
	var disruption models.LiveDisruption
	err := s.db.WithContext(ctx).Where("fingerprint = ?", fingerprint).First(&disruption).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &disruption, nil
}

func (s *GormStore) CreateDisruption(ctx context.Context, disruption *models.LiveDisruption) error {
	return s.db.WithContext(ctx).Create(disruption).Error
}

func (s *GormStore) UpdateDisruption(ctx context.Context, disruption *models.LiveDisruption) error {
	return s.db.WithContext(ctx).Save(disruption).Error
}

func (s *GormStore) OpenDisruptions(ctx context.Context) ([]models.LiveDisruption, error) {
	var disruptions []models.LiveDisruption
	err := s.db.WithContext(ctx).Where("actual_end_time IS NULL").Find(&disruptions).Error

	return disruptions, err
}

func (s *GormStore) ResolvedDisruptions(ctx context.Context, since *time.Time) ([]models.LiveDisruption, error) {
	query := s.db.WithContext(ctx).Where("actual_end_time IS NOT NULL")
	if since != nil {
		query = query.Where("actual_end_time >= ?", *since)
	}

	var disruptions []models.LiveDisruption
	err := query.Find(&disruptions).Error

	return disruptions, err
}

func (s *GormStore) ResolveDisruptionsNotIn(ctx context.Context, activeFingerprints map[string]bool, now time.Time) (int, error) {
	fingerprints := make([]string, 0, len(activeFingerprints))
	for fingerprint := range activeFingerprints {
		fingerprints = append(fingerprints, fingerprint)
	}

	query := s.db.WithContext(ctx).Model(&models.LiveDisruption{}).Where("actual_end_time IS NULL")
	if len(fingerprints) > 0 {
		query = query.Where("fingerprint NOT IN ?", fingerprints)
	}

	result := query.Updates(map[string]any{
		"actual_end_time": now,
		"updated_at":      now,
	})

	return int(result.RowsAffected), result.Error
}

func (s *GormStore) SeverityLevelCount(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.SeverityLevel{}).Count(&count).Error

	return count, err
}

func (s *GormStore) CreateSeverityLevel(ctx context.Context, level *models.SeverityLevel) error {
	return s.db.WithContext(ctx).Create(level).Error
}

func (s *GormStore) SeverityLevel(ctx context.Context, mode string, level int) (*models.SeverityLevel, error) {
	var severityLevel models.SeverityLevel
	err := s.db.WithContext(ctx).
		Where("mode_name = ? AND severity_level = ?", mode, level).
		First(&severityLevel).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &severityLevel, nil
}

func (s *GormStore) SeverityLevels(ctx context.Context, mode string) ([]models.SeverityLevel, error) {
	query := s.db.WithContext(ctx)
	if mode != "" {
		query = query.Where("mode_name = ?", mode)
	}

	var levels []models.SeverityLevel
	err := query.Order("mode_name, severity_level").Find(&levels).Error

	return levels, err
}

func (s *GormStore) NonSuspensionSeverityLevels(ctx context.Context) ([]models.SeverityLevel, error) {
	var levels []models.SeverityLevel
	err := s.db.WithContext(ctx).Where("is_suspension = ?", false).Find(&levels).Error

	return levels, err
}

func (s *GormStore) UpdateSeverityLevel(ctx context.Context, level *models.SeverityLevel) error {
	return s.db.WithContext(ctx).Save(level).Error
}

func (s *GormStore) AverageNonSuspensionConfidence(ctx context.Context) (float64, error) {
	var average float64
	err := s.db.WithContext(ctx).Model(&models.SeverityLevel{}).
		Where("is_suspension = ?", false).
		Select("COALESCE(AVG(confidence_score), 0)").
		Scan(&average).Error

	return average, err
}

func (s *GormStore) DisruptionCategoryCount(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.DisruptionCategory{}).Count(&count).Error

	return count, err
}

func (s *GormStore) CreateDisruptionCategory(ctx context.Context, category *models.DisruptionCategory) error {
	return s.db.WithContext(ctx).Create(category).Error
}

func (s *GormStore) AddDelaySamples(ctx context.Context, samples []models.RealtimeDelaySample) error {
	if len(samples) == 0 {
		return nil
	}

	return s.db.WithContext(ctx).Create(&samples).Error
}

func (s *GormStore) RecentSamplesForSeverity(ctx context.Context, mode string, severityLevel int, since time.Time) ([]models.RealtimeDelaySample, error) {
	var samples []models.RealtimeDelaySample

	err := s.db.WithContext(ctx).
		Joins("JOIN services ON services.id = realtime_delay_samples.service_id").
		Joins("JOIN live_disruptions ON live_disruptions.id = realtime_delay_samples.disruption_id").
		Where("services.mode = ?", mode).
		Where("live_disruptions.severity_level = ?", severityLevel).
		Where("realtime_delay_samples.timestamp >= ?", since).
		Find(&samples).Error

	return samples, err
}

func (s *GormStore) HistoricalDelayExists(ctx context.Context, serviceID uint, timestamp time.Time) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.HistoricalDelay{}).
		Where("service_id = ? AND timestamp = ?", serviceID, timestamp).
		Count(&count).Error

	return count > 0, err
}

func (s *GormStore) AddHistoricalDelay(ctx context.Context, delay *models.HistoricalDelay) error {
	return s.db.WithContext(ctx).Create(delay).Error
}

func (s *GormStore) RecentDelaysForService(ctx context.Context, serviceID uint, limit int) ([]models.HistoricalDelay, error) {
	var delays []models.HistoricalDelay
	err := s.db.WithContext(ctx).
		Where("service_id = ?", serviceID).
		Order("timestamp DESC").
		Limit(limit).
		Find(&delays).Error

	return delays, err
}

func (s *GormStore) AddArrivalRecords(ctx context.Context, records []models.ArrivalRecord) error {
	if len(records) == 0 {
		return nil
	}

	return s.db.WithContext(ctx).Create(&records).Error
}

func (s *GormStore) InterchangeStopIDs(ctx context.Context) ([]uint, error) {
	var stopIDs []uint

	err := s.db.WithContext(ctx).Model(&models.Edge{}).
		Select("from_stop_id").
		Group("from_stop_id").
		Having("COUNT(DISTINCT service_id) > 1").
		Scan(&stopIDs).Error

	return stopIDs, err
}

func (s *GormStore) ServicesAtStop(ctx context.Context, stopID uint) ([]uint, error) {
	var serviceIDs []uint

	err := s.db.WithContext(ctx).Model(&models.Edge{}).
		Distinct("service_id").
		Where("from_stop_id = ? OR to_stop_id = ?", stopID, stopID).
		Scan(&serviceIDs).Error

	return serviceIDs, err
}

func (s *GormStore) TransferStatistic(ctx context.Context, stopID uint, fromServiceID uint, toServiceID uint) (*models.TransferStatistic, error) {
	var statistic models.TransferStatistic
	err := s.db.WithContext(ctx).
		Where("stop_id = ? AND from_service_id = ? AND to_service_id = ?", stopID, fromServiceID, toServiceID).
		First(&statistic).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &statistic, nil
}

func (s *GormStore) UpsertTransferStatistic(ctx context.Context, statistic *models.TransferStatistic) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "stop_id"}, {Name: "from_service_id"}, {Name: "to_service_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"mean_delay", "delay_variance", "delay_std_dev", "sample_count", "success_rate", "last_computed",
		}),
	}).Create(statistic).Error
}

func (s *GormStore) TransferStatisticsForStop(ctx context.Context, stopID uint) ([]models.TransferStatistic, error) {
	var statistics []models.TransferStatistic
	err := s.db.WithContext(ctx).Where("stop_id = ?", stopID).Find(&statistics).Error

	return statistics, err
}

var _ Store = (*GormStore)(nil)
