// Package storage persists authorized telemetry into InfluxDB. It consumes
// the storage/auth channel (only the auth forwarder publishes there), turning
// each message into one point: measurement = entity, tags = message tags,
// fields = message fields.
package storage

import (
	"log"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/lwx123321/smart-garden/internal/model"
	"github.com/lwx123321/smart-garden/pkg/mqttbus"
)

type Bus interface {
	Subscribe(pattern string, h mqttbus.Handler) error
}

var pointsWritten = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "garden_storage_points_total",
	Help: "Telemetry points handed to the Influx write buffer, by measurement.",
}, []string{"measurement"})

type Service struct {
	bus      Bus
	channels model.Channels
	writer   *Writer
	now      func() time.Time
}

func NewService(bus Bus, channels model.Channels, writer *Writer) *Service {
	return &Service{bus: bus, channels: channels, writer: writer, now: time.Now}
}

func (s *Service) Start() error {
	return s.bus.Subscribe(s.channels.StorageAuthPattern(), s.HandleAuthorized)
}

// HandleAuthorized converts one authorized telemetry message into an Influx
// point. Writes are async; errors surface through the writer's error
// listener, not here.
func (s *Service) HandleAuthorized(topicStr string, payload []byte) {
	msg, err := model.DecodeMessage(payload)
	if err != nil {
		log.Printf("storage: %s: %v", topicStr, err)
		return
	}
	entity := s.channels.StorageAuthEntity(topicStr)
	if entity == "" {
		log.Printf("storage: cannot derive measurement from %s", topicStr)
		return
	}
	p := s.Point(entity, msg)
	if p == nil {
		log.Printf("storage: %s: message has no numeric fields, skipping", topicStr)
		return
	}
	s.writer.api.WritePoint(p)
	s.writer.MarkIngest(entity)
	pointsWritten.WithLabelValues(entity).Inc()
}

// Point builds the Influx point for a message, coercing every field to
// float64. Non-numeric fields are dropped; a message with none is nil.
func (s *Service) Point(measurement string, msg model.Message) *write.Point {
	fields := make(map[string]interface{}, len(msg.Fields))
	for k, v := range msg.Fields {
		f, err := model.ToFloat(v)
		if err != nil {
			continue
		}
		fields[k] = f
	}
	if len(fields) == 0 {
		return nil
	}
	tags := make(map[string]string, len(msg.Tags))
	for k, v := range msg.Tags {
		tags[k] = v
	}
	return influxdb2.NewPoint(measurement, tags, fields, s.now())
}
