package weather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCurrent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"sunrise":"2026-08-31T06:12:00+02:00","sunset":"2026-08-31T19:58:00+02:00",` +
			`"cloudiness":35,"rain_probability":1.2}`))
	}))
	defer srv.Close()

	c := New(srv.URL, srv.URL, time.Second)
	cur, err := c.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 35.0, cur.Cloudiness)
	assert.Equal(t, 1.2, cur.RainProbability)
	assert.Equal(t, 6, cur.Sunrise.Hour())
	assert.True(t, cur.Sunset.After(cur.Sunrise))
}

func TestCurrentBadTimestamp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"sunrise":"yesterday","sunset":"2026-08-31T19:58:00+02:00"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, srv.URL, time.Second).Current(context.Background())
	assert.ErrorContains(t, err, "bad sunrise")
}

func TestHistory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"time":"2026-08-30T00:00:00Z","temperature_2m":22.5,"relative_humidity_2m":61,"precipitation":0},` +
			`{"time":"2026-08-30T01:00:00Z","temperature_2m":21.5,"relative_humidity_2m":63,"precipitation":0.2}]`))
	}))
	defer srv.Close()

	rows, err := New(srv.URL, srv.URL, time.Second).History(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 21.5, rows[1].Temperature)
}

func TestTrailingAverages(t *testing.T) {
	rows := []HourlyRecord{
		{Temperature: 10, Humidity: 40},
		{Temperature: 20, Humidity: 50},
		{Temperature: 30, Humidity: 60},
	}

	avgT, avgH, ok := TrailingAverages(rows, 2)
	require.True(t, ok)
	assert.Equal(t, 25.0, avgT)
	assert.Equal(t, 55.0, avgH)

	// window larger than the series uses what is there
	avgT, _, ok = TrailingAverages(rows, 24)
	require.True(t, ok)
	assert.Equal(t, 20.0, avgT)

	_, _, ok = TrailingAverages(nil, 24)
	assert.False(t, ok)
}
