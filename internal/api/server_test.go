package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/neodb/internal/config"
	"github.com/Aman-CERP/neodb/internal/database"
	"github.com/Aman-CERP/neodb/internal/models"
	"github.com/Aman-CERP/neodb/internal/telemetry"
	"github.com/Aman-CERP/neodb/internal/write"
)

func testDatabase(t *testing.T) *database.NEODatabase {
	t.Helper()

	neoRecords := []models.NEORecord{
		{Designation: "433", Name: "Eros", Diameter: "16.84"},
		{Designation: "2020 FK", Hazardous: true},
		{Designation: "99942", Name: "Apophis", Diameter: "0.37", Hazardous: true},
	}
	approachRecords := []models.ApproachRecord{
		{Designation: "433", Time: "1900-Dec-27 01:30", Distance: "0.314", Velocity: "4.2"},
		{Designation: "2020 FK", Time: "2020-Jan-01 06:00", Distance: "0.025", Velocity: "8.1"},
		{Designation: "99942", Time: "2029-Apr-13 21:46", Distance: "0.00025", Velocity: "7.42"},
		{Designation: "2020 FK", Time: "2020-Jan-01 18:00", Distance: "0.031", Velocity: "9.7"},
		{Designation: "X 999", Time: "2020-Jan-01 12:00", Distance: "0.2", Velocity: "3.3"},
	}

	var neos []*models.NearEarthObject
	for _, rec := range neoRecords {
		neo, err := models.NewNearEarthObject(rec)
		require.NoError(t, err)
		neos = append(neos, neo)
	}
	var approaches []*models.CloseApproach
	for _, rec := range approachRecords {
		ca, err := models.NewCloseApproach(rec)
		require.NoError(t, err)
		approaches = append(approaches, ca)
	}

	db, err := database.New(neos, approaches)
	require.NoError(t, err)
	return db
}

func newTestServer(t *testing.T, logs io.Writer) *Server {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Server.MaxResults = 3
	if logs == nil {
		logs = io.Discard
	}
	logger := slog.New(slog.NewJSONHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return NewServer(testDatabase(t), cfg, logger)
}

func get(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestHealthz(t *testing.T) {
	rec := get(t, newTestServer(t, nil), "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, map[string]string{"status": "ok"}, decode[map[string]string](t, rec))
}

func TestStats(t *testing.T) {
	rec := get(t, newTestServer(t, nil), "/api/stats")

	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[database.Stats](t, rec)
	assert.Equal(t, 3, stats.NEOs)
	assert.Equal(t, 2, stats.NamedNEOs)
	assert.Equal(t, 5, stats.Approaches)
	assert.Equal(t, 1, stats.OrphanedApproaches)
}

func TestGetNEO(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		name           string
		target         string
		wantStatus     int
		wantDes        string
		wantApproaches int
	}{
		{"by designation", "/api/neos/433", http.StatusOK, "433", 0},
		{"escaped designation", "/api/neos/2020%20FK", http.StatusOK, "2020 FK", 0},
		{"with approaches", "/api/neos/2020%20FK?approaches=true", http.StatusOK, "2020 FK", 2},
		{"by name", "/api/neos?name=Apophis", http.StatusOK, "99942", 0},
		{"unknown designation", "/api/neos/nope", http.StatusNotFound, "", 0},
		{"unknown name", "/api/neos?name=Ceres", http.StatusNotFound, "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// When: requesting the object
			rec := get(t, s, tt.target)

			// Then: status and body match
			require.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus != http.StatusOK {
				body := decode[ErrorResponse](t, rec)
				assert.Equal(t, NotFoundMessage, body.Error)
				assert.Equal(t, "NOT_FOUND", body.Code)
				return
			}
			body := decode[NEOResponse](t, rec)
			assert.Equal(t, tt.wantDes, body.NEO.Designation)
			assert.Len(t, body.Approaches, tt.wantApproaches)
		})
	}
}

func TestGetNEO_NullFields(t *testing.T) {
	rec := get(t, newTestServer(t, nil), "/api/neos/2020%20FK")

	require.Equal(t, http.StatusOK, rec.Code)
	var raw map[string]map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.Nil(t, raw["neo"]["name"])
	assert.Nil(t, raw["neo"]["diameter_km"])
	assert.Equal(t, true, raw["neo"]["potentially_hazardous"])
}

func TestFindNEO_RequiresName(t *testing.T) {
	rec := get(t, newTestServer(t, nil), "/api/neos")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[ErrorResponse](t, rec)
	assert.Equal(t, "ERR_402_MISSING_FIELD", body.Code)
	assert.NotEmpty(t, body.Suggestion)
}

func TestApproaches(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		name      string
		query     string
		wantTimes []string
	}{
		{"default limit is max results", "", []string{"1900-12-27 01:30", "2020-01-01 06:00", "2029-04-13 21:46"}},
		{"explicit limit", "?limit=1", []string{"1900-12-27 01:30"}},
		{"limit capped", "?limit=100&start_date=2000-01-01", []string{"2020-01-01 06:00", "2029-04-13 21:46", "2020-01-01 18:00"}},
		{"date", "?date=2020-01-01", []string{"2020-01-01 06:00", "2020-01-01 18:00", "2020-01-01 12:00"}},
		{"end date", "?end_date=1999-12-31", []string{"1900-12-27 01:30"}},
		{"distance and velocity", "?max_distance=0.1&min_velocity=8", []string{"2020-01-01 06:00", "2020-01-01 18:00"}},
		{"not hazardous", "?hazardous=false", []string{"1900-12-27 01:30"}},
		{"diameter", "?max_diameter=1", []string{"2029-04-13 21:46"}},
		{"designation", "?designation=X%20999", []string{"2020-01-01 12:00"}},
		{"no matches", "?designation=433&date=2020-01-01", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// When: querying approaches
			rec := get(t, s, "/api/approaches"+tt.query)

			// Then: a JSON array of matches in dataset order is returned
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			views := decode[[]models.ApproachView](t, rec)
			times := make([]string, 0, len(views))
			for _, v := range views {
				times = append(times, v.DateTimeUTC)
			}
			assert.Equal(t, tt.wantTimes, times)
		})
	}
}

func TestApproaches_MatchesFileWriterShape(t *testing.T) {
	// Given: the same selection written by the JSON file writer
	s := newTestServer(t, nil)
	var want bytes.Buffer
	_, err := write.WriteJSON(&want, s.db.Query())
	require.NoError(t, err)

	// When: requesting every approach over HTTP
	rec := get(t, s, "/api/approaches?limit=3")
	var all []models.ApproachView
	require.NoError(t, json.Unmarshal(want.Bytes(), &all))

	// Then: the body uses the writer's indentation and null NEO handling
	assert.True(t, strings.HasPrefix(rec.Body.String(), "[\n    {\n        \"datetime_utc\""))
	assert.Equal(t, all[:3], decode[[]models.ApproachView](t, rec))
}

func TestApproaches_CSV(t *testing.T) {
	rec := get(t, newTestServer(t, nil), "/api/approaches?designation=X%20999&format=csv")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, strings.Join(write.CSVHeader, ","), lines[0])
	assert.Equal(t, "2020-01-01 12:00,0.2,3.3,,,,False", lines[1])
}

func TestApproaches_BadRequest(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		name     string
		query    string
		wantCode string
	}{
		{"bad date", "?date=2020/01/01", "ERR_406_INVALID_FILTER"},
		{"bad float", "?min_distance=near", "ERR_406_INVALID_FILTER"},
		{"bad bool", "?hazardous=maybe", "ERR_406_INVALID_FILTER"},
		{"bad limit", "?limit=-2", "ERR_406_INVALID_FILTER"},
		{"empty range", "?min_velocity=10&max_velocity=5", "ERR_406_INVALID_FILTER"},
		{"reversed dates", "?start_date=2021-01-01&end_date=2020-01-01", "ERR_406_INVALID_FILTER"},
		{"bad format", "?format=xml", "ERR_207_UNSUPPORTED_FORMAT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, s, "/api/approaches"+tt.query)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			body := decode[ErrorResponse](t, rec)
			assert.Equal(t, tt.wantCode, body.Code)
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestMetrics_CountsApproachQueries(t *testing.T) {
	// Given: a capped query, a filtered query and a query with no match
	s := newTestServer(t, nil)
	for _, q := range []string{"", "?designation=X%20999", "?designation=433&date=2020-01-01"} {
		require.Equal(t, http.StatusOK, get(t, s, "/api/approaches"+q).Code)
	}
	// Rejected requests are not counted.
	require.Equal(t, http.StatusBadRequest, get(t, s, "/api/approaches?limit=0").Code)

	// When: reading the metrics
	rec := get(t, s, "/api/metrics")

	// Then: each served query is reported by source and criteria
	require.Equal(t, http.StatusOK, rec.Code)
	snap := decode[telemetry.Snapshot](t, rec)
	assert.Equal(t, int64(3), snap.TotalQueries)
	assert.Equal(t, int64(1), snap.ZeroResultCount)
	assert.Equal(t, int64(1), snap.TruncatedCount)
	assert.Zero(t, snap.CacheHits)
	assert.Equal(t, map[string]int64{"http": 3}, snap.SourceCounts)
	assert.Equal(t, []string{"date,designation"}, snap.ZeroResultQueries)
	require.NotEmpty(t, snap.TopCriteria)
	assert.Equal(t, telemetry.CriterionCount{Criterion: "designation", Count: 2}, snap.TopCriteria[0])
}

func TestUnknownRoute(t *testing.T) {
	rec := get(t, newTestServer(t, nil), "/nowhere")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decode[ErrorResponse](t, rec).Code)
}

func TestRequestLogging(t *testing.T) {
	// Given: a server logging to a buffer
	var logs bytes.Buffer
	s := newTestServer(t, &logs)

	// When: serving a request
	get(t, s, "/api/neos/433")

	// Then: one structured line carries method, path, status and request id
	var entry map[string]any
	for _, line := range strings.Split(strings.TrimSpace(logs.String()), "\n") {
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		if m["msg"] == "request" {
			entry = m
		}
	}
	require.NotNil(t, entry)
	assert.Equal(t, "GET", entry["method"])
	assert.Equal(t, "/api/neos/433", entry["path"])
	assert.EqualValues(t, 200, entry["status"])
	assert.NotEmpty(t, entry["request_id"])
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	// Given: a server on an ephemeral port
	s := newTestServer(t, nil)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	// When: a real client calls it and the context is canceled
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get("http://" + ln.Addr().String() + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	cancel()

	// Then: the request succeeded and Serve returns cleanly
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}
