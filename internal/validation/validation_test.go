package validation

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/neodb/internal/config"
	"github.com/Aman-CERP/neodb/internal/database"
	neoerrors "github.com/Aman-CERP/neodb/internal/errors"
	"github.com/Aman-CERP/neodb/internal/mcp"
	"github.com/Aman-CERP/neodb/internal/models"
)

const suiteYAML = `
cases:
  - id: apophis-2029
    name: Apophis passes in 2029
    args: {designation: "99942", start_date: "2029-01-01", end_date: "2029-12-31"}
    expect_count: 1
    expect: ["99942"]
  - id: new-year-2020
    args: {date: "2020-01-01"}
    expect_min: 2
    expect: ["2020 FK"]
    notes: the orphan X 999 has no designation to report
  - id: eros-by-name
    tool: get_neo
    args: {name: Eros}
    expect: ["433"]
  - id: reversed-range
    args: {start_date: "2021-01-01", end_date: "2020-01-01"}
    expect_error: true
negative:
  - id: unknown-tool
    tool: no_such_tool
  - id: empty-name
    tool: get_neo
    args: {name: ""}
`

func testServer(t *testing.T) *mcp.Server {
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

	s, err := mcp.NewServer(db, config.NewConfig())
	require.NoError(t, err)
	return s
}

func intPtr(n int) *int { return &n }

// =============================================================================
// Suite loading
// =============================================================================

func TestParseSuite_FillsDefaults(t *testing.T) {
	suite, err := ParseSuite([]byte(suiteYAML))
	require.NoError(t, err)

	require.Len(t, suite.Cases, 4)
	require.Len(t, suite.Negative, 2)
	assert.Equal(t, mcp.ToolQueryApproaches, suite.Cases[0].Tool)
	assert.Equal(t, "get_neo", suite.Cases[2].Tool)
	assert.Equal(t, "2029-01-01", suite.Cases[0].Args["start_date"])
	assert.Equal(t, intPtr(1), suite.Cases[0].ExpectCount)
	assert.NotNil(t, suite.Negative[0].Args)
	assert.True(t, suite.Negative[1].Negative)
	assert.False(t, suite.Cases[0].Negative)

	ids := make([]string, 0, 6)
	for _, c := range suite.All() {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{"apophis-2029", "new-year-2020", "eros-by-name", "reversed-range", "unknown-tool", "empty-name"}, ids)
}

func TestParseSuite_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		message string
	}{
		{"misspelled key", "cases:\n  - id: a\n    expect_cuont: 1\n", "invalid suite file"},
		{"missing id", "cases:\n  - args: {date: \"2020-01-01\"}\n", "case 1 has no id"},
		{"duplicate id", "cases:\n  - id: a\nnegative:\n  - id: a\n", `duplicate case id "a"`},
		{"not yaml", "cases: [", "invalid suite file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSuite([]byte(tt.doc))

			require.Error(t, err)
			assert.True(t, neoerrors.IsValidation(err))
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestLoadSuite(t *testing.T) {
	// Given: a suite on disk
	path := filepath.Join(t.TempDir(), "suite.yaml")
	require.NoError(t, os.WriteFile(path, []byte(suiteYAML), 0o644))

	// When: loading it and a missing file
	suite, err := LoadSuite(path)
	_, missingErr := LoadSuite(filepath.Join(t.TempDir(), "absent.yaml"))

	// Then: the suite parses and the missing file maps to not found
	require.NoError(t, err)
	assert.Len(t, suite.All(), 6)
	assert.Equal(t, neoerrors.ErrCodeFileNotFound, neoerrors.GetCode(missingErr))
}

// =============================================================================
// Running
// =============================================================================

func TestRunAll_AgainstMCPServer(t *testing.T) {
	// Given: the sample suite and a server over a small dataset
	suite, err := ParseSuite([]byte(suiteYAML))
	require.NoError(t, err)
	v := New(testServer(t))

	// When: running every case
	report := v.RunAll(context.Background(), suite)

	// Then: every case passes
	assert.Equal(t, 6, report.Total)
	assert.Equal(t, 6, report.Passed, "failures: %+v", report.Failed())
	assert.Empty(t, report.Failed())
	assert.False(t, report.Timestamp.IsZero())

	newYear := report.Results[1]
	assert.Equal(t, 3, newYear.Count)
	assert.Equal(t, []string{"2020 FK"}, newYear.Designations)
}

func TestRunCase_ReportsMisses(t *testing.T) {
	v := New(testServer(t))

	tests := []struct {
		name    string
		c       Case
		failure string
	}{
		{
			"wrong count",
			Case{ID: "a", Tool: mcp.ToolQueryApproaches, Args: map[string]any{"designation": "2020 FK"}, ExpectCount: intPtr(1)},
			"expected 1 results, got 2",
		},
		{
			"too few",
			Case{ID: "b", Tool: mcp.ToolQueryApproaches, Args: map[string]any{"designation": "433"}, ExpectMin: intPtr(5)},
			"expected at least 5 results, got 1",
		},
		{
			"missing designation",
			Case{ID: "c", Tool: mcp.ToolQueryApproaches, Args: map[string]any{"date": "2029-04-13"}, Expect: []string{"433"}},
			`designation "433" not in results`,
		},
		{
			"unexpected answer",
			Case{ID: "d", Tool: mcp.ToolGetNEO, Args: map[string]any{"designation": "433"}, ExpectError: true},
			"expected an error, got an answer",
		},
		{
			"not found object",
			Case{ID: "e", Tool: mcp.ToolGetNEO, Args: map[string]any{"designation": "1"}, Expect: []string{"1"}},
			`designation "1" not in results`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := v.RunCase(context.Background(), tt.c)

			assert.False(t, result.Passed)
			assert.Equal(t, tt.failure, result.Failure)
		})
	}
}

type failingCaller struct{}

func (failingCaller) CallTool(context.Context, string, map[string]any) (any, error) {
	return nil, errors.New("boom")
}

func TestRunCase_ErrorFailsRegularCase(t *testing.T) {
	v := New(failingCaller{})

	regular := v.RunCase(context.Background(), Case{ID: "a", Tool: mcp.ToolQueryApproaches})
	negative := v.RunCase(context.Background(), Case{ID: "b", Tool: mcp.ToolQueryApproaches, Negative: true})

	assert.False(t, regular.Passed)
	assert.Equal(t, "boom", regular.Failure)
	assert.True(t, negative.Passed)
}

func TestRunAll_StopsWhenCancelled(t *testing.T) {
	suite, err := ParseSuite([]byte(suiteYAML))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := New(testServer(t)).RunAll(ctx, suite)

	assert.Zero(t, report.Total)
}
