package publisher

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"bus-collector/internal/gtfs"
)

// NATSPublisher mirrors stored positions to NATS for live consumers.
// Publishing is best effort: the persistence path never depends on it.
type NATSPublisher struct {
	nc      *nats.Conn
	metrics PublisherMetrics
}

type PublisherMetrics interface {
	NATSPublishedInc()
	NATSPublishErrInc()
	NATSSetConnected(connected bool)
}

func NewNATSPublisher(url string, m PublisherMetrics) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("bus-collector"),
		nats.DisconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Warn().Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(true)
			}
			log.Info().Msg("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Info().Msg("nats closed")
		}),
	)
	if err != nil {
		return nil, err
	}
	if m != nil {
		m.NATSSetConnected(true)
	}
	return &NATSPublisher{nc: nc, metrics: m}, nil
}

func (p *NATSPublisher) Close() {
	if p.nc != nil {
		p.nc.Drain()
		p.nc.Close()
	}
}

type PositionMessage struct {
	VehicleID  string    `json:"vehicleId"`
	RouteID    string    `json:"routeId,omitempty"`
	TripID     string    `json:"tripId,omitempty"`
	Lat        float64   `json:"lat"`
	Lon        float64   `json:"lon"`
	Status     string    `json:"status,omitempty"`
	RecordedAt time.Time `json:"recordedAt"`
}

// PublishPosition sends one observation to positions.<route>.<vehicle>.
func (p *NATSPublisher) PublishPosition(pos gtfs.VehiclePosition) error {
	msg := PositionMessage{
		VehicleID:  pos.VehicleID,
		Lat:        pos.Latitude,
		Lon:        pos.Longitude,
		RecordedAt: pos.RecordedAt,
	}
	if pos.RouteID != nil {
		msg.RouteID = *pos.RouteID
	}
	if pos.TripID != nil {
		msg.TripID = *pos.TripID
	}
	if pos.CurrentStatus != nil {
		msg.Status = *pos.CurrentStatus
	}

	subject := fmt.Sprintf("positions.%s.%s", subjectToken(msg.RouteID), subjectToken(msg.VehicleID))
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	err = p.nc.Publish(subject, b)
	if p.metrics != nil {
		if err != nil {
			p.metrics.NATSPublishErrInc()
		} else {
			p.metrics.NATSPublishedInc()
		}
	}
	return err
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS token cannot contain spaces, '>', '*', or trailing '.'
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
