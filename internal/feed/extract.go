package feed

import (
	"time"

	gtfsrt "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"

	"bus-collector/internal/gtfs"
)

// Extract converts a feed snapshot into position records. Entities without a
// vehicle payload, vehicle id, or coordinates are skipped; the rest of the
// batch is kept. Note the standard protobuf feed carries no block id, so
// BlockID stays nil.
func Extract(msg *gtfsrt.FeedMessage, recordedAt time.Time) []gtfs.VehiclePosition {
	var feedTS int64
	if msg.Header != nil && msg.Header.Timestamp != nil {
		feedTS = int64(*msg.Header.Timestamp)
	}

	var positions []gtfs.VehiclePosition
	for _, entity := range msg.Entity {
		vehicle := entity.Vehicle
		if vehicle == nil {
			continue
		}
		if vehicle.Vehicle == nil || vehicle.Vehicle.Id == nil || *vehicle.Vehicle.Id == "" {
			continue
		}
		if vehicle.Position == nil || vehicle.Position.Latitude == nil || vehicle.Position.Longitude == nil {
			continue
		}

		pos := gtfs.VehiclePosition{
			RecordedAt:    recordedAt,
			FeedTimestamp: feedTS,
			VehicleID:     *vehicle.Vehicle.Id,
			Latitude:      float64(*vehicle.Position.Latitude),
			Longitude:     float64(*vehicle.Position.Longitude),
		}

		if trip := vehicle.Trip; trip != nil {
			pos.RouteID = trip.RouteId
			pos.TripID = trip.TripId
			pos.StartDate = trip.StartDate
			if trip.DirectionId != nil {
				dir := int(*trip.DirectionId)
				pos.DirectionID = &dir
			}
		}

		if vehicle.CurrentStopSequence != nil {
			seq := int(*vehicle.CurrentStopSequence)
			pos.CurrentStopSequence = &seq
		}
		pos.StopID = vehicle.StopId
		if vehicle.CurrentStatus != nil {
			status := vehicle.CurrentStatus.String()
			pos.CurrentStatus = &status
		}
		if vehicle.Timestamp != nil {
			ts := int64(*vehicle.Timestamp)
			pos.VehicleTimestamp = &ts
		}

		positions = append(positions, pos)
	}
	return positions
}
