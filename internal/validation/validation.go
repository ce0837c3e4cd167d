// Package validation runs data-driven expectation suites against a loaded
// dataset through the MCP tool interface.
//
// A suite is a YAML file of cases. Each case names a tool, its arguments and
// what the answer must look like, so a refreshed dataset can be checked for
// regressions without rebuilding the application:
//
//	cases:
//	  - id: apophis-2029
//	    args: {designation: "99942", start_date: "2029-01-01", end_date: "2029-12-31"}
//	    expect_count: 1
//	    expect: ["99942"]
//
// The negative section holds cases that only need to answer without
// crashing; a rejected query counts as a pass there.
package validation

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	neoerrors "github.com/Aman-CERP/neodb/internal/errors"
	"github.com/Aman-CERP/neodb/internal/mcp"
)

// Case defines one expectation.
type Case struct {
	ID          string         `yaml:"id" json:"id"`
	Name        string         `yaml:"name,omitempty" json:"name,omitempty"`
	Tool        string         `yaml:"tool,omitempty" json:"tool"`
	Args        map[string]any `yaml:"args,omitempty" json:"args,omitempty"`
	ExpectCount *int           `yaml:"expect_count,omitempty" json:"expect_count,omitempty"`
	ExpectMin   *int           `yaml:"expect_min,omitempty" json:"expect_min,omitempty"`
	Expect      []string       `yaml:"expect,omitempty" json:"expect,omitempty"` // designations that must appear
	ExpectError bool           `yaml:"expect_error,omitempty" json:"expect_error,omitempty"`
	Notes       string         `yaml:"notes,omitempty" json:"-"`
	Negative    bool           `yaml:"-" json:"negative,omitempty"`
}

// Suite holds every case loaded from one file.
type Suite struct {
	Cases    []Case `yaml:"cases"`
	Negative []Case `yaml:"negative"`
}

// All returns the regular cases followed by the negative ones.
func (s *Suite) All() []Case {
	all := make([]Case, 0, len(s.Cases)+len(s.Negative))
	all = append(all, s.Cases...)
	return append(all, s.Negative...)
}

// LoadSuite reads and checks a suite file. Unknown keys are rejected so a
// misspelled expectation cannot silently pass.
func LoadSuite(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, neoerrors.IOError(fmt.Sprintf("suite file not found: %s", path), err).
				WithSuggestion("Pass the path of a YAML suite file")
		}
		return nil, neoerrors.New(neoerrors.ErrCodeFilePermission, "cannot read suite", err).
			WithDetail("path", path)
	}
	return ParseSuite(data)
}

// ParseSuite decodes a suite document.
func ParseSuite(data []byte) (*Suite, error) {
	var s Suite
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, neoerrors.ValidationError("invalid suite file", err).
			WithSuggestion("Check the YAML syntax and key names")
	}

	for i := range s.Negative {
		s.Negative[i].Negative = true
	}

	seen := make(map[string]bool)
	for i, c := range s.All() {
		if c.ID == "" {
			return nil, neoerrors.ValidationError(fmt.Sprintf("case %d has no id", i+1), nil)
		}
		if seen[c.ID] {
			return nil, neoerrors.ValidationError(fmt.Sprintf("duplicate case id %q", c.ID), nil)
		}
		seen[c.ID] = true
	}

	fill := func(cases []Case) {
		for i := range cases {
			if cases[i].Tool == "" {
				cases[i].Tool = mcp.ToolQueryApproaches
			}
			if cases[i].Args == nil {
				cases[i].Args = map[string]any{}
			}
		}
	}
	fill(s.Cases)
	fill(s.Negative)
	return &s, nil
}

// Result captures the outcome of a single case.
type Result struct {
	Case         Case          `json:"case"`
	Passed       bool          `json:"passed"`
	Duration     time.Duration `json:"duration_ns"`
	Count        int           `json:"count"`
	Designations []string      `json:"designations,omitempty"`
	Failure      string        `json:"failure,omitempty"`
}

// Report captures a full run.
type Report struct {
	Timestamp time.Time `json:"timestamp"`
	Results   []Result  `json:"results"`
	Passed    int       `json:"passed"`
	Total     int       `json:"total"`
}

// Failed returns the results that did not pass.
func (r *Report) Failed() []Result {
	var failed []Result
	for _, res := range r.Results {
		if !res.Passed {
			failed = append(failed, res)
		}
	}
	return failed
}

// ToolCaller is the part of the MCP server the validator drives.
type ToolCaller interface {
	CallTool(ctx context.Context, name string, args map[string]any) (any, error)
}

// Validator runs suite cases against a tool caller.
type Validator struct {
	server ToolCaller
}

// New creates a validator.
func New(server ToolCaller) *Validator {
	return &Validator{server: server}
}

// RunCase executes one case.
func (v *Validator) RunCase(ctx context.Context, c Case) Result {
	start := time.Now()
	result := Result{Case: c}

	resp, err := v.server.CallTool(ctx, c.Tool, c.Args)
	result.Duration = time.Since(start)

	if err != nil {
		switch {
		case c.ExpectError, c.Negative:
			result.Passed = true
		default:
			result.Failure = err.Error()
		}
		return result
	}
	if c.ExpectError {
		result.Failure = "expected an error, got an answer"
		return result
	}

	result.Count, result.Designations = summarize(resp)
	result.Failure = check(c, result.Count, result.Designations)
	result.Passed = result.Failure == ""
	return result
}

// RunAll executes every case in suite order.
func (v *Validator) RunAll(ctx context.Context, suite *Suite) *Report {
	report := &Report{Timestamp: time.Now()}
	for _, c := range suite.All() {
		if ctx.Err() != nil {
			break
		}
		res := v.RunCase(ctx, c)
		report.Results = append(report.Results, res)
		report.Total++
		if res.Passed {
			report.Passed++
		}
	}
	return report
}

// summarize extracts the result count and the designations, in answer order
// and without repeats, from a tool response.
func summarize(resp any) (int, []string) {
	var designations []string
	add := func(d string) {
		if d != "" && !slices.Contains(designations, d) {
			designations = append(designations, d)
		}
	}

	switch out := resp.(type) {
	case *mcp.QueryOutput:
		for _, view := range out.Results {
			if view.NEO != nil {
				add(view.NEO.Designation)
			}
		}
		return out.Count, designations
	case *mcp.GetNEOOutput:
		if !out.Found || out.NEO == nil {
			return 0, nil
		}
		add(out.NEO.Designation)
		return 1, designations
	}
	return 0, nil
}

// check returns why an answer misses its expectations, or "".
func check(c Case, count int, designations []string) string {
	if c.ExpectCount != nil && count != *c.ExpectCount {
		return fmt.Sprintf("expected %d results, got %d", *c.ExpectCount, count)
	}
	if c.ExpectMin != nil && count < *c.ExpectMin {
		return fmt.Sprintf("expected at least %d results, got %d", *c.ExpectMin, count)
	}
	for _, want := range c.Expect {
		if !slices.Contains(designations, want) {
			return fmt.Sprintf("designation %q not in results", want)
		}
	}
	return ""
}
