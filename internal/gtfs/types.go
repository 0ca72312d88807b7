package gtfs

import "time"

// VehiclePosition is one observation of one vehicle at one instant.
// Optional feed fields are pointers; absent values stay nil and are
// stored as NULL.
type VehiclePosition struct {
	RecordedAt          time.Time
	FeedTimestamp       int64
	VehicleID           string
	RouteID             *string
	TripID              *string
	DirectionID         *int
	Latitude            float64
	Longitude           float64
	CurrentStopSequence *int
	StopID              *string
	CurrentStatus       *string
	VehicleTimestamp    *int64
	StartDate           *string // service day, YYYYMMDD
	BlockID             *string
}
