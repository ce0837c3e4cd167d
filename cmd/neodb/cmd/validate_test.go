package cmd

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	neoerrors "github.com/Aman-CERP/neodb/internal/errors"
)

const passingSuite = `
cases:
  - id: new-year
    args: {date: "2020-01-01"}
    expect_count: 2
    expect: ["2020 AB", "433"]
  - id: apophis
    name: Apophis by name
    tool: get_neo
    args: {name: Apophis}
    expect: ["99942"]
negative:
  - id: bad-tool
    tool: nope
`

func TestValidateCmd_PassingSuite(t *testing.T) {
	// Given: a workspace and a suite that matches it
	setupWorkspace(t)
	require.NoError(t, os.WriteFile("checks.yaml", []byte(passingSuite), 0o644))

	// When: validating
	stdout, _, err := run(t, nil, "validate", "checks.yaml")

	// Then: every case is listed and the run succeeds
	require.NoError(t, err)
	assert.Contains(t, stdout, "neodb Validation")
	assert.Contains(t, stdout, "new-year: 2 results")
	assert.Contains(t, stdout, "apophis (Apophis by name): 1 results")
	assert.Contains(t, stdout, "3/3 cases passed")
}

func TestValidateCmd_FailingCaseErrors(t *testing.T) {
	setupWorkspace(t)
	require.NoError(t, os.WriteFile("checks.yaml", []byte(`
cases:
  - id: eros-count
    args: {designation: "433"}
    expect_count: 5
`), 0o644))

	stdout, _, err := run(t, nil, "validate", "checks.yaml")

	require.Error(t, err)
	assert.Equal(t, neoerrors.ErrCodeInvalidInput, neoerrors.GetCode(err))
	assert.Contains(t, err.Error(), "1 of 1 cases failed")
	assert.Contains(t, stdout, "eros-count: expected 5 results, got 2")
	assert.Contains(t, stdout, "0/1 cases passed")
}

func TestValidateCmd_JSON(t *testing.T) {
	// Given: a passing suite
	setupWorkspace(t)
	require.NoError(t, os.WriteFile("checks.yaml", []byte(passingSuite), 0o644))

	// When: asking for JSON
	stdout, _, err := run(t, nil, "validate", "checks.yaml", "--json")
	require.NoError(t, err)

	// Then: the report decodes with per-case designations
	var report struct {
		Passed  int `json:"passed"`
		Total   int `json:"total"`
		Results []struct {
			Passed       bool     `json:"passed"`
			Designations []string `json:"designations"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	assert.Equal(t, 3, report.Passed)
	assert.Equal(t, 3, report.Total)
	assert.Equal(t, []string{"2020 AB", "433"}, report.Results[0].Designations)
}

func TestValidateCmd_MissingSuite(t *testing.T) {
	setupWorkspace(t)

	_, _, err := run(t, nil, "validate", "absent.yaml")

	require.Error(t, err)
	assert.Equal(t, neoerrors.ErrCodeFileNotFound, neoerrors.GetCode(err))
}
