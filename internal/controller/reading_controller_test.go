package controller_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"plantlab/internal/controller"
	"plantlab/internal/models"
	"plantlab/internal/repository"
	"plantlab/internal/routes"
	"plantlab/internal/service"
)

type staticSensors models.SensorConfig

func (s staticSensors) Current() models.SensorConfig { return models.SensorConfig(s) }

var now = time.Unix(1700003600, 0)

func newTestServer(t *testing.T, demo bool) http.Handler {
	t.Helper()
	sensors := staticSensors{
		AlarmThreshold: 30,
		Sensors: []models.Sensor{
			{ID: "S1", Label: "Série 1"},
			{ID: "S2", Label: "Série 2"},
		},
	}
	svc := service.NewReadingService(repository.NewMemoryRepository(100), sensors, service.Options{
		DemoMode:     demo,
		OfflineAfter: 3 * time.Minute,
		Now:          func() time.Time { return now },
	}, zap.NewNop())
	return routes.NewHandler(controller.NewReadingController(svc, zap.NewNop()), []string{"*"}, zap.NewNop())
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := do(t, newTestServer(t, false), http.MethodGet, "/api/health", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestConfigAndSensors(t *testing.T) {
	h := newTestServer(t, false)

	rec := do(t, h, http.MethodGet, "/api/config", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"alarm_threshold":30,"sensors":[{"id":"S1","label":"Série 1"},{"id":"S2","label":"Série 2"}]}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/api/sensors", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"id":"S1","label":"Série 1"},{"id":"S2","label":"Série 2"}]`, rec.Body.String())
}

func TestIngestThenLatest(t *testing.T) {
	h := newTestServer(t, false)

	rec := do(t, h, http.MethodPost, "/api/ingest", `{"sensor_id":"S1","adc":2100,"percent":42.5,"ts":1700003590}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"ok":true,"sensor_id":"S1","stored_ts":1700003590}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/api/latest", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var latest map[string]*models.LatestValue
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &latest))
	require.NotNil(t, latest["S1"])
	assert.Equal(t, 42.5, latest["S1"].Percent)
	assert.Equal(t, int64(1700003590), latest["S1"].TS)
	require.Contains(t, latest, "S2")
	assert.Nil(t, latest["S2"])
	assert.Contains(t, rec.Body.String(), `"S2":null`)
}

func TestIngestServerAssignsTimestamp(t *testing.T) {
	rec := do(t, newTestServer(t, false), http.MethodPost, "/api/ingest", `{"sensor_id":"s2","percent":12,"ts":0}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"ok":true,"sensor_id":"S2","stored_ts":1700003600}`, rec.Body.String())
}

func TestIngestRejectsUnknownSensor(t *testing.T) {
	h := newTestServer(t, false)

	rec := do(t, h, http.MethodPost, "/api/ingest", `{"sensor_id":"S9","percent":50}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body models.APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, models.ErrorCodeUnknownSensor, body.Code)

	rec = do(t, h, http.MethodGet, "/api/sensors", "")
	assert.NotContains(t, rec.Body.String(), "S9")
	rec = do(t, h, http.MethodGet, "/api/latest", "")
	assert.NotContains(t, rec.Body.String(), "S9")
}

func TestIngestRejectsMalformedPayloads(t *testing.T) {
	h := newTestServer(t, false)

	cases := map[string]string{
		"not json":        `sensor_id=S1`,
		"wrong type":      `{"sensor_id":"S1","percent":"wet"}`,
		"missing percent": `{"sensor_id":"S1","adc":2000}`,
		"missing sensor":  `{"percent":20}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/ingest", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}

	rec := do(t, h, http.MethodGet, "/api/latest", "")
	assert.JSONEq(t, `{"S1":null,"S2":null}`, rec.Body.String())
}

func TestHistoryByMinutes(t *testing.T) {
	h := newTestServer(t, false)
	for _, body := range []string{
		`{"sensor_id":"S1","percent":30,"ts":1700003500}`,
		`{"sensor_id":"S1","percent":10,"ts":1699990000}`,
		`{"sensor_id":"S1","percent":20,"ts":1700003000}`,
	} {
		require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/api/ingest", body).Code)
	}

	rec := do(t, h, http.MethodGet, "/api/history?minutes=60", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"S1":[{"ts":1700003000,"percent":20},{"ts":1700003500,"percent":30}],"S2":[]}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/api/history/s1?minutes=720", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"ts":1699990000,"percent":10},{"ts":1700003000,"percent":20},{"ts":1700003500,"percent":30}]`, rec.Body.String())
}

func TestHistoryRangeCap(t *testing.T) {
	h := newTestServer(t, false)

	rec := do(t, h, http.MethodGet, "/api/history?start=2024-01-01&end=2024-02-09", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body models.APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, models.ErrorCodeRangeTooLarge, body.Code)

	rec = do(t, h, http.MethodGet, "/api/history?start=2024-01-01&end=2024-01-31", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHistoryInvalidWindow(t *testing.T) {
	h := newTestServer(t, false)

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/history?minutes=abc", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/history?start=2024-01-01", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/history/S1?minutes=-1", "").Code)
}

func TestSensorHistoryUnknownSensor(t *testing.T) {
	rec := do(t, newTestServer(t, false), http.MethodGet, "/api/history/S9", "")

	require.Equal(t, http.StatusNotFound, rec.Code)
	var body models.APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, models.ErrorCodeResourceNotFound, body.Code)
}

func TestDemoHistoryIsStableAcrossCalls(t *testing.T) {
	h := newTestServer(t, true)

	first := do(t, h, http.MethodGet, "/api/history/S1?minutes=30", "")
	second := do(t, h, http.MethodGet, "/api/history/S1?minutes=30", "")

	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())

	var points []models.HistoryPoint
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &points))
	assert.Len(t, points, 30)
}

func TestMethodNotAllowed(t *testing.T) {
	rec := do(t, newTestServer(t, false), http.MethodGet, "/api/ingest", "")

	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	var body models.APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, models.ErrorCodeMethodNotAllowed, body.Code)
}

func TestUnknownRoute(t *testing.T) {
	rec := do(t, newTestServer(t, false), http.MethodGet, "/api/moisture", "")

	require.Equal(t, http.StatusNotFound, rec.Code)
	var body models.APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, models.ErrorCodeResourceNotFound, body.Code)
}

func TestCORSPreflight(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/api/ingest", nil)
	req.Header.Set("Origin", "http://dashboard.local")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()

	newTestServer(t, false).ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
