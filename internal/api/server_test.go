package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiniou-labs/level.report/internal/db"
	"github.com/kiniou-labs/level.report/internal/tanklevel"
)

type fakeSink struct {
	updates []float64
}

func (f *fakeSink) UpdateTemperature(celsius float64) {
	f.updates = append(f.updates, celsius)
}

type fakeBridge struct {
	commands []string
	err      error
}

func (f *fakeBridge) SendCommand(command string) error {
	if f.err != nil {
		return f.err
	}
	f.commands = append(f.commands, command)
	return nil
}

func newTestServer(t *testing.T) (*Server, *db.DB, *fakeSink, *fakeBridge) {
	t.Helper()
	store, err := db.NewDB(filepath.Join(t.TempDir(), "api_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	sink := &fakeSink{}
	bridge := &fakeBridge{}
	return NewServer(store, sink, bridge, "session-test"), store, sink, bridge
}

func seedReading(t *testing.T, store *db.DB, smoothed float64) {
	t.Helper()
	result := tanklevel.TrimResult{
		RawMin: smoothed - 2, RawMax: smoothed + 2,
		TrimmedMin: smoothed - 1, TrimmedMax: smoothed + 1,
		TrimmedMean: smoothed,
	}
	geometry, err := tanklevel.NewGeometry(90, 40, 10)
	require.NoError(t, err)
	require.NoError(t, store.RecordReading("session-test", result, smoothed, geometry.Derive(smoothed)))
}

func TestLatestReadingEndpoint(t *testing.T) {
	server, store, _, _ := newTestServer(t)
	mux := server.ServeMux()

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readings/latest", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code, "empty database")

	seedReading(t, store, 50)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readings/latest", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got db.StoredReading
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 50.0, got.Smoothed)
	assert.Equal(t, 30.0, got.UsefulLevel)
	assert.InDelta(t, 37.5, got.UsefulPercent, 1e-9)
}

func TestLatestReadingUnitsConversion(t *testing.T) {
	server, store, _, _ := newTestServer(t)
	seedReading(t, store, 50)
	mux := server.ServeMux()

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readings/latest?units=in", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got db.StoredReading
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.InDelta(t, 50.0/2.54, got.Smoothed, 0.001)
	assert.InDelta(t, 30.0/2.54, got.UsefulLevel, 0.001)
	// Percent is dimensionless and must not be converted.
	assert.InDelta(t, 37.5, got.UsefulPercent, 1e-9)
}

func TestLatestReadingVolumeUnitsConversion(t *testing.T) {
	server, store, _, _ := newTestServer(t)
	seedReading(t, store, 50)
	mux := server.ServeMux()

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readings/latest?volume_units=gal", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got db.StoredReading
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	// 30 cm useful over a 40 cm radius cylinder is ~150.8 L.
	assert.InDelta(t, 150.796*0.264172, got.VolumeLiters, 0.01)
	assert.Equal(t, 30.0, got.UsefulLevel, "lengths stay in cm without ?units=")
}

func TestReadingsEndpoint(t *testing.T) {
	server, store, _, _ := newTestServer(t)
	mux := server.ServeMux()

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readings", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()), "empty window returns empty list, not null")

	for i := 0; i < 3; i++ {
		seedReading(t, store, 50+float64(i))
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readings", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got []db.StoredReading
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Len(t, got, 3)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readings?limit=2", nil))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Len(t, got, 2)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readings?since=yesterday", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostTemperature(t *testing.T) {
	server, store, sink, bridge := newTestServer(t)
	mux := server.ServeMux()

	body := strings.NewReader(`{"celsius": 23.5}`)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/temperature", body))
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, []float64{23.5}, sink.updates, "pipeline must receive the update")
	assert.Equal(t, []string{"T=23.5"}, bridge.commands, "bridge must receive the push")

	stored, err := store.LatestTemperature()
	require.NoError(t, err)
	assert.Equal(t, 23.5, stored.Celsius)
	assert.Equal(t, "api", stored.Source)
}

func TestPostTemperatureBridgeFailureIsNotFatal(t *testing.T) {
	server, _, sink, bridge := newTestServer(t)
	bridge.err = fmt.Errorf("port gone")
	mux := server.ServeMux()

	body := strings.NewReader(`{"celsius": 19.0, "source": "dht11"}`)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/temperature", body))

	assert.Equal(t, http.StatusOK, rec.Code, "serial failure must not fail the API call")
	assert.Equal(t, []float64{19}, sink.updates)
}

func TestPostTemperatureRejectsBadBody(t *testing.T) {
	server, _, _, _ := newTestServer(t)
	mux := server.ServeMux()

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/temperature", strings.NewReader("not json")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLevelChart(t *testing.T) {
	server, store, _, _ := newTestServer(t)
	mux := server.ServeMux()

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/charts/level", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code, "no data yet")

	seedReading(t, store, 50)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/charts/level", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "useful level")

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/charts/level?hours=0", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
