package models

import (
	"time"
)

// Stop is a transport stop across any mode. Stops are populated by the
// ingestion pipeline and read here for sampling and interchange lookup.
type Stop struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	TfLStopID   string `gorm:"column:tfl_stop_id;size:50;uniqueIndex;not null"`
	Name        string `gorm:"size:200;not null"`
	Mode        string `gorm:"size:50;index;not null"`
	Latitude    float64
	Longitude   float64
	Zone        string `gorm:"size:10"`
	HubNaptanID string `gorm:"size:50"`
	StopType    string `gorm:"size:50"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Service is a transport line (tube line, DLR branch, etc).
type Service struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	TfLLineID string `gorm:"column:tfl_line_id;size:50;uniqueIndex;not null"`
	LineName  string `gorm:"size:100;not null"`
	Mode      string `gorm:"size:50;index;not null"`
	Operator  string `gorm:"size:100"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Edge is a directional stop-to-stop link on a service.
type Edge struct {
	ID                  uint `gorm:"primaryKey;autoIncrement"`
	FromStopID          uint `gorm:"index;not null"`
	ToStopID            uint `gorm:"index;not null"`
	ServiceID           uint `gorm:"index;not null"`
	ScheduledTravelTime int
	SequenceOrder       int `gorm:"not null"`
	BranchID            int

	CreatedAt time.Time
}

// LiveDisruption is one observed disruption affecting one service.
//
// The Fingerprint is generated locally (see pkg/disruption.Fingerprint)
// rather than taken from the upstream API, because one upstream disruption
// spans multiple services and is fanned out into one record per service.
// A record with a non-nil ActualEndTime is terminal.
type LiveDisruption struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	Fingerprint string `gorm:"size:100;uniqueIndex;not null"`
	ServiceID   uint   `gorm:"index;not null"`

	Category            string `gorm:"size:50;not null"`
	CategoryDescription string `gorm:"size:200"`
	DisruptionType      string `gorm:"size:50"`
	Description         string `gorm:"type:text;not null"`
	Summary             string `gorm:"type:text"`
	AdditionalInfo      string `gorm:"type:text"`
	ClosureText         string `gorm:"type:text"`

	Severity      string `gorm:"size:50"`
	SeverityLevel int

	IsFullSuspension    bool
	IsPartialSuspension bool

	AffectedSectionStartNaptan string `gorm:"size:50"`
	AffectedSectionEndNaptan   string `gorm:"size:50"`

	AffectedStopsJSON  string `gorm:"type:jsonb"`
	AffectedRoutesJSON string `gorm:"type:jsonb"`

	Created    time.Time
	LastUpdate *time.Time
	ValidFrom  *time.Time
	ValidTo    *time.Time

	StartTime     time.Time
	ActualEndTime *time.Time `gorm:"index"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Resolved reports whether the disruption has been closed off by the
// resolution sweep.
func (d *LiveDisruption) Resolved() bool {
	return d.ActualEndTime != nil
}

// SeverityLevel is the current belief about the expected delay for one
// (mode, ordinal severity level) pair.
//
// Suspension levels carry no numeric estimate - EstimatedDelayMinutes is
// nil, not zero. ConfidenceScore starts at a low prior and only ever
// increases, capped below 1.0.
type SeverityLevel struct {
	ID            uint   `gorm:"primaryKey;autoIncrement"`
	ModeName      string `gorm:"size:50;not null;uniqueIndex:idx_mode_level"`
	SeverityLevel int    `gorm:"not null;uniqueIndex:idx_mode_level"`
	Description   string `gorm:"size:200;not null"`

	EstimatedDelayMinutes *float64
	IsSuspension          bool
	SampleCount           int
	ConfidenceScore       float64

	LastUpdated *time.Time
	CreatedAt   time.Time
}

// DisruptionCategory is one entry from the upstream disruption category
// catalog, seeded once at monitor startup.
type DisruptionCategory struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	CategoryName string `gorm:"size:100;uniqueIndex;not null"`

	CreatedAt time.Time
}

// RealtimeDelaySample is one measured delay excess observed at a stop while
// a disruption was open.
type RealtimeDelaySample struct {
	ID           uint  `gorm:"primaryKey;autoIncrement"`
	ServiceID    uint  `gorm:"index;not null"`
	StopID       uint  `gorm:"index;not null"`
	DisruptionID *uint `gorm:"index"`

	SeverityAtTime string `gorm:"size:50"`
	VehicleID      string `gorm:"size:50"`

	ExpectedArrival      time.Time
	MeasuredDelaySeconds int `gorm:"not null"`
	Timestamp            time.Time

	PlatformName string `gorm:"size:100"`
	Direction    string `gorm:"size:50"`
}

// Data source and confidence tags for HistoricalDelay records.
const (
	DataSourceDisruptionDerived = "disruption_derived"
	DataSourceArrivalMeasured   = "arrival_measured"

	ConfidenceLow  = "low"
	ConfidenceHigh = "high"
)

// HistoricalDelay is one hourly delay observation for a service. At most
// one record exists per (service, timestamp).
type HistoricalDelay struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	ServiceID uint      `gorm:"index;not null;uniqueIndex:idx_service_ts"`
	Timestamp time.Time `gorm:"not null;uniqueIndex:idx_service_ts"`

	DelayMinutes float64 `gorm:"not null"`
	Severity     string  `gorm:"size:50"`

	HourOfDay  int
	DayOfWeek  int
	IsPeakHour bool

	DataSource       string `gorm:"size:30;not null"`
	ConfidenceLevel  string `gorm:"size:10;not null"`
	TimetableVersion string `gorm:"size:50"`

	CreatedAt time.Time
}

// ArrivalRecord is a raw arrival prediction snapshot collected at an
// interchange stop.
type ArrivalRecord struct {
	ID        uint `gorm:"primaryKey;autoIncrement"`
	StopID    uint `gorm:"index;not null"`
	ServiceID uint `gorm:"index;not null"`

	VehicleID       string `gorm:"size:50"`
	ExpectedArrival time.Time
	TimeToStation   int
	Timestamp       time.Time

	TimetableVersion string `gorm:"size:50"`
}

// TransferStatistic is the aggregate reliability metric for one ordered
// (stop, from service, to service) triple. Rows are fully recomputed and
// overwritten on each run, never blended with previous values.
type TransferStatistic struct {
	ID            uint `gorm:"primaryKey;autoIncrement"`
	StopID        uint `gorm:"not null;uniqueIndex:idx_stop_pair"`
	FromServiceID uint `gorm:"not null;uniqueIndex:idx_stop_pair"`
	ToServiceID   uint `gorm:"not null;uniqueIndex:idx_stop_pair"`

	MeanDelay     float64
	DelayVariance float64
	DelayStdDev   float64
	SampleCount   int
	SuccessRate   float64

	LastComputed time.Time
	CreatedAt    time.Time
}
