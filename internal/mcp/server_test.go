package mcp

import (
	"context"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/neodb/internal/config"
	"github.com/Aman-CERP/neodb/internal/database"
	"github.com/Aman-CERP/neodb/internal/models"
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

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Query.DefaultLimit = 2
	cfg.Server.MaxResults = 3
	s, err := NewServer(testDatabase(t), cfg)
	require.NoError(t, err)
	return s
}

func TestNewServer_RequiresDatabase(t *testing.T) {
	_, err := NewServer(nil, nil)
	assert.Error(t, err)
}

func TestServer_InfoAndTools(t *testing.T) {
	s := newTestServer(t)

	name, _ := s.Info()
	assert.Equal(t, "neodb", name)

	var names []string
	for _, tool := range s.ListTools() {
		names = append(names, tool.Name)
		assert.NotEmpty(t, tool.Description)
	}
	assert.Equal(t, []string{ToolGetNEO, ToolQueryApproaches, ToolDatasetStatus}, names)
	assert.NotNil(t, s.MCPServer())
}

func TestCallTool_GetNEO(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		args      map[string]any
		wantFound bool
		wantDes   string
	}{
		{"by designation", map[string]any{"designation": "433"}, true, "433"},
		{"by name", map[string]any{"name": "Apophis"}, true, "99942"},
		{"trimmed designation", map[string]any{"designation": " 2020 FK "}, true, "2020 FK"},
		{"unknown designation", map[string]any{"designation": "nope"}, false, ""},
		{"unknown name", map[string]any{"name": "Ceres"}, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// When: looking up the object
			result, err := s.CallTool(ctx, ToolGetNEO, tt.args)

			// Then: found objects come back serialized, misses carry a message
			require.NoError(t, err)
			out, ok := result.(*GetNEOOutput)
			require.True(t, ok)
			assert.Equal(t, tt.wantFound, out.Found)
			if tt.wantFound {
				require.NotNil(t, out.NEO)
				assert.Equal(t, tt.wantDes, out.NEO.Designation)
				assert.Empty(t, out.Approaches)
			} else {
				assert.Nil(t, out.NEO)
				assert.Equal(t, NotFoundMessage, out.Message)
			}
		})
	}
}

func TestCallTool_GetNEO_IncludeApproaches(t *testing.T) {
	s := newTestServer(t)

	result, err := s.CallTool(context.Background(), ToolGetNEO, map[string]any{
		"designation":        "2020 FK",
		"include_approaches": true,
	})

	require.NoError(t, err)
	out := result.(*GetNEOOutput)
	require.Len(t, out.Approaches, 2)
	assert.Equal(t, "2020-01-01 06:00", out.Approaches[0].DateTimeUTC)
	assert.Equal(t, "2020-01-01 18:00", out.Approaches[1].DateTimeUTC)
	assert.Nil(t, out.NEO.Name)
}

func TestCallTool_GetNEO_InvalidParams(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	tests := []struct {
		name string
		args map[string]any
	}{
		{"no selector", map[string]any{}},
		{"both selectors", map[string]any{"designation": "433", "name": "Eros"}},
		{"wrong type", map[string]any{"designation": 433}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.CallTool(ctx, ToolGetNEO, tt.args)

			require.Error(t, err)
			assert.Equal(t, ErrCodeInvalidParams, MapError(err).Code)
		})
	}
}

func TestCallTool_QueryApproaches(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	tests := []struct {
		name          string
		args          map[string]any
		wantTimes     []string
		wantLimit     int
		wantTruncated bool
	}{
		{
			name:          "default limit truncates",
			args:          nil,
			wantTimes:     []string{"1900-12-27 01:30", "2020-01-01 06:00"},
			wantLimit:     2,
			wantTruncated: true,
		},
		{
			name:      "limit capped by max results",
			args:      map[string]any{"limit": 50},
			wantTimes: []string{"1900-12-27 01:30", "2020-01-01 06:00", "2029-04-13 21:46"},
			wantLimit: 3,
			// five approaches exist
			wantTruncated: true,
		},
		{
			name:      "date includes orphans",
			args:      map[string]any{"date": "2020-01-01", "limit": 3},
			wantTimes: []string{"2020-01-01 06:00", "2020-01-01 18:00", "2020-01-01 12:00"},
			wantLimit: 3,
		},
		{
			name:      "hazardous excludes orphans",
			args:      map[string]any{"hazardous": true, "max_distance": 0.03, "limit": 3},
			wantTimes: []string{"2020-01-01 06:00", "2029-04-13 21:46"},
			wantLimit: 3,
		},
		{
			name:      "diameter skips unknown diameters",
			args:      map[string]any{"min_diameter": 0.1, "limit": 3},
			wantTimes: []string{"1900-12-27 01:30", "2029-04-13 21:46"},
			wantLimit: 3,
		},
		{
			name:      "no matches",
			args:      map[string]any{"designation": "433", "start_date": "2000-01-01"},
			wantTimes: []string{},
			wantLimit: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// When: querying approaches
			result, err := s.CallTool(ctx, ToolQueryApproaches, tt.args)

			// Then: results follow dataset order within the limit
			require.NoError(t, err)
			out := result.(*QueryOutput)
			times := make([]string, 0, len(out.Results))
			for _, r := range out.Results {
				times = append(times, r.DateTimeUTC)
			}
			assert.Equal(t, tt.wantTimes, times)
			assert.Equal(t, len(tt.wantTimes), out.Count)
			assert.Equal(t, tt.wantLimit, out.Limit)
			assert.Equal(t, tt.wantTruncated, out.Truncated)
		})
	}
}

func TestCallTool_QueryApproaches_OrphanHasNilNEO(t *testing.T) {
	s := newTestServer(t)

	result, err := s.CallTool(context.Background(), ToolQueryApproaches, map[string]any{"designation": "X 999"})

	require.NoError(t, err)
	out := result.(*QueryOutput)
	require.Len(t, out.Results, 1)
	assert.Nil(t, out.Results[0].NEO)
}

func TestCallTool_QueryApproaches_CachesByCanonicalInput(t *testing.T) {
	// Given: a server with an empty cache
	s := newTestServer(t)
	ctx := context.Background()

	// When: the same query is issued twice with different spellings
	first, err := s.CallTool(ctx, ToolQueryApproaches, map[string]any{"designation": "2020 FK"})
	require.NoError(t, err)
	second, err := s.CallTool(ctx, ToolQueryApproaches, map[string]any{"designation": " 2020 FK", "limit": 2})
	require.NoError(t, err)
	other, err := s.CallTool(ctx, ToolQueryApproaches, map[string]any{"designation": "433"})
	require.NoError(t, err)

	// Then: the second call is served from the cache
	assert.Same(t, first, second)
	assert.NotSame(t, first, other)
	assert.Equal(t, 2, s.cache.Len())
}

func TestCallTool_QueryApproaches_InvalidParams(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	tests := []struct {
		name string
		args map[string]any
	}{
		{"bad date", map[string]any{"date": "01/01/2020"}},
		{"empty distance range", map[string]any{"min_distance": 0.5, "max_distance": 0.1}},
		{"wrong type", map[string]any{"hazardous": "yes"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.CallTool(ctx, ToolQueryApproaches, tt.args)

			require.Error(t, err)
			assert.Equal(t, ErrCodeInvalidParams, MapError(err).Code)
		})
	}
}

func TestCallTool_QueryApproaches_CanceledContext(t *testing.T) {
	s := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.CallTool(ctx, ToolQueryApproaches, nil)

	require.Error(t, err)
	assert.Equal(t, ErrCodeTimeout, MapError(err).Code)
}

func TestCallTool_DatasetStatus(t *testing.T) {
	s := newTestServer(t)

	result, err := s.CallTool(context.Background(), ToolDatasetStatus, nil)

	require.NoError(t, err)
	out := result.(*DatasetStatusOutput)
	assert.Equal(t, 3, out.Stats.NEOs)
	assert.Equal(t, 5, out.Stats.Approaches)
	assert.Equal(t, 4, out.Stats.LinkedApproaches)
	assert.Equal(t, 1, out.Stats.OrphanedApproaches)
	assert.Equal(t, 3, out.MaxResults)
}

func TestCallTool_DatasetStatus_ReportsQueryMetrics(t *testing.T) {
	// Given: a repeated query and a query with no match
	s := newTestServer(t)
	ctx := context.Background()
	for _, designation := range []string{"2020 FK", "2020 FK", "nobody"} {
		_, err := s.CallTool(ctx, ToolQueryApproaches, map[string]any{"designation": designation})
		require.NoError(t, err)
	}

	// When: asking for the status
	result, err := s.CallTool(ctx, ToolDatasetStatus, nil)
	require.NoError(t, err)

	// Then: the query metrics count hits, misses and criteria
	q := result.(*DatasetStatusOutput).Queries
	require.NotNil(t, q)
	assert.Equal(t, int64(3), q.TotalQueries)
	assert.Equal(t, int64(1), q.CacheHits)
	assert.Equal(t, int64(1), q.ZeroResultCount)
	assert.Equal(t, map[string]int64{"mcp": 3}, q.SourceCounts)
	assert.Equal(t, []string{"designation"}, q.ZeroResultQueries)
}

func TestCallTool_UnknownTool(t *testing.T) {
	s := newTestServer(t)

	_, err := s.CallTool(context.Background(), "search", nil)

	require.Error(t, err)
	assert.Equal(t, ErrCodeMethodNotFound, MapError(err).Code)
}

func TestServer_InMemorySession(t *testing.T) {
	// Given: a client connected to the server over in-memory transports
	s := newTestServer(t)
	ctx := context.Background()
	clientTransport, serverTransport := mcp.NewInMemoryTransports()

	serverSession, err := s.MCPServer().Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	defer serverSession.Close()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	defer session.Close()

	// When: listing and calling tools
	tools, err := session.ListTools(ctx, nil)
	require.NoError(t, err)
	result, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      ToolGetNEO,
		Arguments: map[string]any{"name": "Eros"},
	})
	require.NoError(t, err)

	// Then: all tools are advertised and the lookup succeeds
	assert.Len(t, tools.Tools, 3)
	assert.False(t, result.IsError)
	structured, ok := result.StructuredContent.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, structured["found"])
}

func TestServer_Serve_UnknownTransport(t *testing.T) {
	s := newTestServer(t)

	err := s.Serve(context.Background(), "sse")

	assert.Error(t, err)
}
