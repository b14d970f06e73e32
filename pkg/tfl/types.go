package tfl

// ArrivalPrediction is a single entry from a TfL arrivals endpoint.
type ArrivalPrediction struct {
	ID            string `json:"id"`
	OperationType int    `json:"operationType"`
	VehicleID     string `json:"vehicleId"`

	NaptanID    string `json:"naptanId"`
	StationName string `json:"stationName"`

	LineID   string `json:"lineId"`
	LineName string `json:"lineName"`

	PlatformName string `json:"platformName"`
	Direction    string `json:"direction"`
	Bearing      string `json:"bearing"`

	DestinationNaptanID string `json:"destinationNaptanId"`
	DestinationName     string `json:"destinationName"`

	TimeToStation int `json:"timeToStation"`

	CurrentLocation string `json:"currentLocation"`
	Towards         string `json:"towards"`

	ExpectedArrival string `json:"expectedArrival"`

	ModeName string `json:"modeName"`
}

// SeverityCode is one entry of the Line/Meta/Severity catalog.
type SeverityCode struct {
	ModeName      string `json:"modeName"`
	SeverityLevel int    `json:"severityLevel"`
	Description   string `json:"description"`
}

// StopPointRef is the stop reference embedded in disruption payloads.
type StopPointRef struct {
	NaptanID   string `json:"naptanId"`
	CommonName string `json:"commonName"`
}

// RouteSectionNaptanEntry is one stop of an affected route section,
// positioned by its Ordinal.
type RouteSectionNaptanEntry struct {
	Ordinal   int          `json:"ordinal"`
	StopPoint StopPointRef `json:"stopPoint"`
}

// AffectedRoute is one route section named by a disruption.
type AffectedRoute struct {
	ID        string `json:"id"`
	LineID    string `json:"lineId"`
	Name      string `json:"name"`
	Direction string `json:"direction"`

	RouteSectionNaptanEntrySequence []RouteSectionNaptanEntry `json:"routeSectionNaptanEntrySequence"`
}

// Disruption is a raw line disruption record from
// Line/Mode/{modes}/Disruption.
type Disruption struct {
	Category            string `json:"category"`
	CategoryDescription string `json:"categoryDescription"`
	Type                string `json:"type"`

	Description    string `json:"description"`
	Summary        string `json:"summary"`
	AdditionalInfo string `json:"additionalInfo"`
	ClosureText    string `json:"closureText"`

	Created    string `json:"created"`
	LastUpdate string `json:"lastUpdate"`
	ValidFrom  string `json:"validFrom"`
	ValidTo    string `json:"validTo"`

	AffectedRoutes []AffectedRoute `json:"affectedRoutes"`
	AffectedStops  []StopPointRef  `json:"affectedStops"`
}

// Line is one entry of Line/Mode/{mode}.
type Line struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ModeName string `json:"modeName"`
}

// LineStatus is the status block attached to a line when requested with
// detail, carrying the ordinal severity for the line's current state.
type LineStatus struct {
	StatusSeverity            int    `json:"statusSeverity"`
	StatusSeverityDescription string `json:"statusSeverityDescription"`
	Reason                    string `json:"reason"`
}

// LineWithStatus is one entry of Line/Mode/{modes}/Status.
type LineWithStatus struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	ModeName     string       `json:"modeName"`
	LineStatuses []LineStatus `json:"lineStatuses"`
}

// OrderedLineRoute is one ordered stop sequence of a line.
type OrderedLineRoute struct {
	Name      string   `json:"name"`
	NaptanIDs []string `json:"naptanIds"`
}

// MatchedStop is one station of a route sequence, with its position and
// fare zone.
type MatchedStop struct {
	StationID string `json:"stationId"`
	ID        string `json:"id"`
	Name      string `json:"name"`

	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
	Zone      string  `json:"zone"`
}

// RouteSequenceResponse is the reply to Line/{id}/Route/Sequence/{direction}.
type RouteSequenceResponse struct {
	LineID            string             `json:"lineId"`
	Direction         string             `json:"direction"`
	Stations          []MatchedStop      `json:"stations"`
	OrderedLineRoutes []OrderedLineRoute `json:"orderedLineRoutes"`
}
