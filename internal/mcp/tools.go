package mcp

import (
	"github.com/Aman-CERP/neodb/internal/database"
	"github.com/Aman-CERP/neodb/internal/models"
	"github.com/Aman-CERP/neodb/internal/telemetry"
)

// Tool names.
const (
	ToolGetNEO          = "get_neo"
	ToolQueryApproaches = "query_approaches"
	ToolDatasetStatus   = "dataset_status"
)

// GetNEOInput defines the input schema for the get_neo tool.
// Exactly one of Designation and Name must be set.
type GetNEOInput struct {
	Designation       string `json:"designation,omitempty" jsonschema:"primary designation, e.g. 433"`
	Name              string `json:"name,omitempty" jsonschema:"IAU name, e.g. Eros"`
	IncludeApproaches bool   `json:"include_approaches,omitempty" jsonschema:"also return every close approach of the object"`
}

// GetNEOOutput defines the output schema for the get_neo tool.
type GetNEOOutput struct {
	Found      bool                  `json:"found"`
	Message    string                `json:"message,omitempty"`
	NEO        *models.NEOView       `json:"neo,omitempty"`
	Approaches []models.ApproachView `json:"approaches,omitempty"`
}

// QueryInput defines the input schema for the query_approaches tool.
// Dates are YYYY-MM-DD; unset fields do not constrain the result.
type QueryInput struct {
	Date        string   `json:"date,omitempty" jsonschema:"only approaches on this date (YYYY-MM-DD)"`
	StartDate   string   `json:"start_date,omitempty" jsonschema:"only approaches on or after this date (YYYY-MM-DD)"`
	EndDate     string   `json:"end_date,omitempty" jsonschema:"only approaches on or before this date (YYYY-MM-DD)"`
	MinDistance *float64 `json:"min_distance,omitempty" jsonschema:"minimum approach distance in au"`
	MaxDistance *float64 `json:"max_distance,omitempty" jsonschema:"maximum approach distance in au"`
	MinVelocity *float64 `json:"min_velocity,omitempty" jsonschema:"minimum relative velocity in km/s"`
	MaxVelocity *float64 `json:"max_velocity,omitempty" jsonschema:"maximum relative velocity in km/s"`
	MinDiameter *float64 `json:"min_diameter,omitempty" jsonschema:"minimum NEO diameter in km"`
	MaxDiameter *float64 `json:"max_diameter,omitempty" jsonschema:"maximum NEO diameter in km"`
	Hazardous   *bool    `json:"hazardous,omitempty" jsonschema:"only (non-)potentially hazardous objects"`
	Designation string   `json:"designation,omitempty" jsonschema:"only approaches of this designation"`
	Limit       int      `json:"limit,omitempty" jsonschema:"maximum number of results, defaults to the configured query limit"`
}

// QueryOutput defines the output schema for the query_approaches tool.
type QueryOutput struct {
	Count     int                   `json:"count"`
	Limit     int                   `json:"limit"`
	Truncated bool                  `json:"truncated"`
	Results   []models.ApproachView `json:"results"`
}

// DatasetStatusInput defines the input schema for the dataset_status tool (no parameters).
type DatasetStatusInput struct{}

// DatasetStatusOutput defines the output schema for the dataset_status tool.
type DatasetStatusOutput struct {
	Version    string              `json:"version"`
	Stats      database.Stats      `json:"stats"`
	Sources    []string            `json:"sources,omitempty"`
	MaxResults int                 `json:"max_results"`
	CacheSize  int                 `json:"cache_size"`
	Queries    *telemetry.Snapshot `json:"queries"`
}
