// Package store is the persistence boundary of the reliability core. The
// monitor, learner and statistics engines operate against the Store
// interface; production wiring uses the gorm-backed implementation and
// tests use the in-memory one.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/tflnexus/tflnexus/pkg/models"
)

// ErrNotFound is returned by single-record lookups with no match.
var ErrNotFound = errors.New("record not found")

type Store interface {
	// Batch runs fn against a store whose mutations commit atomically
	// when fn returns nil and roll back when it returns an error.
	Batch(ctx context.Context, fn func(Store) error) error

	// Services & stops (written by the ingest loader, read everywhere).
	ServiceMap(ctx context.Context) (map[string]uint, error)
	ServiceByID(ctx context.Context, id uint) (*models.Service, error)
	StopsByNaptan(ctx context.Context, naptanIDs []string) ([]models.Stop, error)
	MajorInterchangeStops(ctx context.Context, modes []string, minServices int, limit int) ([]models.Stop, error)
	UpsertStop(ctx context.Context, stop *models.Stop) error
	UpsertService(ctx context.Context, service *models.Service) error
	ReplaceServiceEdges(ctx context.Context, serviceID uint, edges []models.Edge) error

	// Disruptions.
	DisruptionByFingerprint(ctx context.Context, fingerprint string) (*models.LiveDisruption, error)
	CreateDisruption(ctx context.Context, disruption *models.LiveDisruption) error
	UpdateDisruption(ctx context.Context, disruption *models.LiveDisruption) error
	OpenDisruptions(ctx context.Context) ([]models.LiveDisruption, error)
	ResolvedDisruptions(ctx context.Context, since *time.Time) ([]models.LiveDisruption, error)
	ResolveDisruptionsNotIn(ctx context.Context, activeFingerprints map[string]bool, now time.Time) (int, error)

	// Severity levels.
	SeverityLevelCount(ctx context.Context) (int64, error)
	CreateSeverityLevel(ctx context.Context, level *models.SeverityLevel) error
	SeverityLevel(ctx context.Context, mode string, level int) (*models.SeverityLevel, error)
	SeverityLevels(ctx context.Context, mode string) ([]models.SeverityLevel, error)
	NonSuspensionSeverityLevels(ctx context.Context) ([]models.SeverityLevel, error)
	UpdateSeverityLevel(ctx context.Context, level *models.SeverityLevel) error
	AverageNonSuspensionConfidence(ctx context.Context) (float64, error)

	// Disruption categories.
	DisruptionCategoryCount(ctx context.Context) (int64, error)
	CreateDisruptionCategory(ctx context.Context, category *models.DisruptionCategory) error

	// Realtime delay samples.
	AddDelaySamples(ctx context.Context, samples []models.RealtimeDelaySample) error
	RecentSamplesForSeverity(ctx context.Context, mode string, severityLevel int, since time.Time) ([]models.RealtimeDelaySample, error)

	// Historical delays & arrival records.
	HistoricalDelayExists(ctx context.Context, serviceID uint, timestamp time.Time) (bool, error)
	AddHistoricalDelay(ctx context.Context, delay *models.HistoricalDelay) error
	RecentDelaysForService(ctx context.Context, serviceID uint, limit int) ([]models.HistoricalDelay, error)
	AddArrivalRecords(ctx context.Context, records []models.ArrivalRecord) error

	// Transfer statistics.
	InterchangeStopIDs(ctx context.Context) ([]uint, error)
	ServicesAtStop(ctx context.Context, stopID uint) ([]uint, error)
	TransferStatistic(ctx context.Context, stopID uint, fromServiceID uint, toServiceID uint) (*models.TransferStatistic, error)
	UpsertTransferStatistic(ctx context.Context, statistic *models.TransferStatistic) error
	TransferStatisticsForStop(ctx context.Context, stopID uint) ([]models.TransferStatistic, error)
}
