package storage

import (
	"encoding/json"
	"net/http"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
)

// Conn is the liveness view of the bus client.
type Conn interface {
	IsConnected() bool
}

type healthHandler struct {
	bus    Conn
	influx influxdb2.Client
	writer *Writer
}

// NewHealthHandler reports bus/influx liveness plus the age of the last
// async write error.
func NewHealthHandler(bus Conn, i influxdb2.Client, w *Writer) http.Handler {
	return &healthHandler{bus: bus, influx: i, writer: w}
}

func (h *healthHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	type status struct {
		Status          string  `json:"status"`
		BusConnected    bool    `json:"bus_connected"`
		InfluxOK        bool    `json:"influx_ok"`
		LastWriteErrorS float64 `json:"last_write_error_age_sec"`
	}
	st := status{
		BusConnected:    h.bus != nil && h.bus.IsConnected(),
		InfluxOK:        h.influx != nil,
		LastWriteErrorS: h.writer.LastErrorAge().Seconds(),
	}
	if st.BusConnected && st.InfluxOK && h.writer.LastErrorAge() > 30*time.Second {
		st.Status = "ok"
	} else if st.BusConnected || st.InfluxOK {
		st.Status = "degraded"
	} else {
		st.Status = "down"
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(st)
}

type readyHandler struct {
	bus      Conn
	influx   influxdb2.Client
	writer   *Writer
	minError time.Duration
}

// NewReadyHandler returns 200 only while every dependency is healthy.
func NewReadyHandler(bus Conn, i influxdb2.Client, w *Writer, minOkErrorAge time.Duration) http.Handler {
	return &readyHandler{bus: bus, influx: i, writer: w, minError: minOkErrorAge}
}

func (h *readyHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	ready := h.bus != nil && h.bus.IsConnected() && h.influx != nil && h.writer.LastErrorAge() > h.minError
	if !ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	w.Header().Set("Content-Type", "application/json")
	type resp struct {
		Ready bool `json:"ready"`
	}
	_ = json.NewEncoder(w).Encode(resp{Ready: ready})
}
