package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/neodb/internal/config"
	"github.com/Aman-CERP/neodb/internal/database"
	"github.com/Aman-CERP/neodb/internal/filter"
	"github.com/Aman-CERP/neodb/internal/models"
	"github.com/Aman-CERP/neodb/internal/telemetry"
	"github.com/Aman-CERP/neodb/pkg/version"
)

// ServerName is the implementation name announced to MCP clients.
const ServerName = "neodb"

// NotFoundMessage is returned by get_neo when no object matches.
const NotFoundMessage = "No matching NEOs exist in the database."

// Server exposes a NEODatabase as MCP tools.
// The database is immutable, so handlers need no locking and query results
// can be cached for the lifetime of the server.
type Server struct {
	mcp     *mcp.Server
	db      *database.NEODatabase
	config  *config.Config
	cache   *lru.Cache[string, *QueryOutput]
	metrics *telemetry.QueryMetrics
	logger  *slog.Logger
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

var toolInfos = []ToolInfo{
	{
		Name:        ToolGetNEO,
		Description: "Look up one near-Earth object by primary designation or by IAU name. Optionally returns every close approach of the object.",
	},
	{
		Name:        ToolQueryApproaches,
		Description: "List close approaches matching date, distance, velocity, diameter, hazard and designation criteria. Results come in dataset order and are capped by limit.",
	},
	{
		Name:        ToolDatasetStatus,
		Description: "Report how many objects and approaches are loaded, how many approaches are linked, and the server limits.",
	},
}

// NewServer creates a new MCP server over db.
func NewServer(db *database.NEODatabase, cfg *config.Config) (*Server, error) {
	if db == nil {
		return nil, errors.New("database is required")
	}
	if cfg == nil {
		cfg = config.NewConfig()
	}

	cache, err := lru.New[string, *QueryOutput](max(cfg.Server.CacheSize, 1))
	if err != nil {
		return nil, fmt.Errorf("failed to create query cache: %w", err)
	}

	s := &Server{
		db:      db,
		config:  cfg,
		cache:   cache,
		metrics: telemetry.NewQueryMetrics(),
		logger:  slog.Default(),
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    ServerName,
			Version: version.Version,
		},
		nil, // capabilities are inferred from registered tools
	)
	s.registerTools()

	return s, nil
}

// SetLogger replaces the server logger.
func (s *Server) SetLogger(l *slog.Logger) {
	if l != nil {
		s.logger = l
	}
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return ServerName, version.Version
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	return slices.Clone(toolInfos)
}

// CallTool invokes a tool by name with JSON-style arguments.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	switch name {
	case ToolGetNEO:
		var input GetNEOInput
		if err := decodeArgs(args, &input); err != nil {
			return nil, err
		}
		return s.getNEO(ctx, input)
	case ToolQueryApproaches:
		var input QueryInput
		if err := decodeArgs(args, &input); err != nil {
			return nil, err
		}
		return s.queryApproaches(ctx, input)
	case ToolDatasetStatus:
		return s.datasetStatus(ctx)
	default:
		return nil, NewMethodNotFoundError(name)
	}
}

// decodeArgs converts loosely typed arguments into a tool input struct.
func decodeArgs(args map[string]any, into any) error {
	if len(args) == 0 {
		return nil
	}
	data, err := json.Marshal(args)
	if err != nil {
		return NewInvalidParamsError(fmt.Sprintf("arguments are not valid JSON: %v", err))
	}
	if err := json.Unmarshal(data, into); err != nil {
		return NewInvalidParamsError(fmt.Sprintf("invalid arguments: %v", err))
	}
	return nil
}

func (s *Server) getNEO(_ context.Context, input GetNEOInput) (*GetNEOOutput, error) {
	requestID := generateRequestID()
	designation := strings.TrimSpace(input.Designation)
	name := strings.TrimSpace(input.Name)

	switch {
	case designation == "" && name == "":
		return nil, NewInvalidParamsError("one of designation or name is required")
	case designation != "" && name != "":
		return nil, NewInvalidParamsError("designation and name are mutually exclusive")
	}

	var (
		neo   *models.NearEarthObject
		found bool
	)
	if designation != "" {
		neo, found = s.db.GetByDesignation(designation)
	} else {
		neo, found = s.db.GetByName(name)
	}

	s.logger.Info("get_neo completed",
		slog.String("request_id", requestID),
		slog.String("designation", designation),
		slog.String("name", name),
		slog.Bool("found", found))

	if !found {
		return &GetNEOOutput{Found: false, Message: NotFoundMessage}, nil
	}

	view := neo.Serialize()
	output := &GetNEOOutput{Found: true, NEO: &view}
	if input.IncludeApproaches {
		output.Approaches = make([]models.ApproachView, 0, len(neo.Approaches))
		for _, ca := range neo.Approaches {
			output.Approaches = append(output.Approaches, ca.Serialize())
		}
	}
	return output, nil
}

func (s *Server) queryApproaches(ctx context.Context, input QueryInput) (*QueryOutput, error) {
	start := time.Now()
	requestID := generateRequestID()

	opts, err := input.options()
	if err != nil {
		return nil, MapError(err)
	}
	if err := opts.Validate(); err != nil {
		return nil, MapError(err)
	}
	input.Limit = s.clampLimit(input.Limit)

	key, err := cacheKey(input)
	if err != nil {
		return nil, MapError(err)
	}
	event := telemetry.QueryEvent{Source: "mcp", Criteria: opts.Criteria()}
	if cached, ok := s.cache.Get(key); ok {
		s.logger.Debug("query_approaches cache hit",
			slog.String("request_id", requestID),
			slog.Int("result_count", cached.Count))
		event.ResultCount, event.Truncated, event.Cached = cached.Count, cached.Truncated, true
		event.Latency = time.Since(start)
		s.metrics.Record(event)
		return cached, nil
	}

	// Pull one extra match to learn whether the limit cut the result.
	output := &QueryOutput{Limit: input.Limit, Results: make([]models.ApproachView, 0)}
	for ca := range filter.Limit(s.db.Query(filter.Create(opts)...), input.Limit+1) {
		if err := ctx.Err(); err != nil {
			return nil, MapError(err)
		}
		if len(output.Results) == input.Limit {
			output.Truncated = true
			break
		}
		output.Results = append(output.Results, ca.Serialize())
	}
	output.Count = len(output.Results)
	s.cache.Add(key, output)

	event.ResultCount, event.Truncated = output.Count, output.Truncated
	event.Latency = time.Since(start)
	s.metrics.Record(event)

	s.logger.Info("query_approaches completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", time.Since(start)),
		slog.Int("result_count", output.Count),
		slog.Bool("truncated", output.Truncated))

	return output, nil
}

func (s *Server) datasetStatus(_ context.Context) (*DatasetStatusOutput, error) {
	return &DatasetStatusOutput{
		Version:    version.Version,
		Stats:      s.db.Stats(),
		Sources:    s.config.Sources,
		MaxResults: s.config.Server.MaxResults,
		CacheSize:  s.config.Server.CacheSize,
		Queries:    s.metrics.Snapshot(),
	}, nil
}

// clampLimit applies the configured default and caps at max_results.
func (s *Server) clampLimit(limit int) int {
	if limit <= 0 {
		limit = s.config.Query.DefaultLimit
	}
	if maxResults := s.config.Server.MaxResults; maxResults > 0 && limit > maxResults {
		limit = maxResults
	}
	return limit
}

// options converts tool input into filter options.
func (in QueryInput) options() (filter.Options, error) {
	opts := filter.Options{
		DistanceMin: in.MinDistance,
		DistanceMax: in.MaxDistance,
		VelocityMin: in.MinVelocity,
		VelocityMax: in.MaxVelocity,
		DiameterMin: in.MinDiameter,
		DiameterMax: in.MaxDiameter,
		Hazardous:   in.Hazardous,
		Designation: in.Designation,
	}
	dates := []struct {
		raw  string
		dest **time.Time
	}{
		{in.Date, &opts.Date},
		{in.StartDate, &opts.StartDate},
		{in.EndDate, &opts.EndDate},
	}
	for _, d := range dates {
		if d.raw == "" {
			continue
		}
		t, err := filter.ParseDate(d.raw)
		if err != nil {
			return filter.Options{}, err
		}
		*d.dest = &t
	}
	return opts, nil
}

// cacheKey is the canonical JSON of the normalized input.
func cacheKey(input QueryInput) (string, error) {
	input.Designation = strings.TrimSpace(input.Designation)
	data, err := json.Marshal(input)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// registerTools registers all tools with the MCP server.
func (s *Server) registerTools() {
	s.logger.Debug("Registering MCP tools")

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        ToolGetNEO,
		Description: toolInfos[0].Description,
	}, s.mcpGetNEOHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        ToolQueryApproaches,
		Description: toolInfos[1].Description,
	}, s.mcpQueryApproachesHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        ToolDatasetStatus,
		Description: toolInfos[2].Description,
	}, s.mcpDatasetStatusHandler)

	s.logger.Debug("MCP tools registered", slog.Int("count", len(toolInfos)))
}

func (s *Server) mcpGetNEOHandler(ctx context.Context, _ *mcp.CallToolRequest, input GetNEOInput) (
	*mcp.CallToolResult,
	*GetNEOOutput,
	error,
) {
	output, err := s.getNEO(ctx, input)
	if err != nil {
		return nil, nil, MapError(err)
	}
	return nil, output, nil
}

func (s *Server) mcpQueryApproachesHandler(ctx context.Context, _ *mcp.CallToolRequest, input QueryInput) (
	*mcp.CallToolResult,
	*QueryOutput,
	error,
) {
	output, err := s.queryApproaches(ctx, input)
	if err != nil {
		return nil, nil, MapError(err)
	}
	return nil, output, nil
}

func (s *Server) mcpDatasetStatusHandler(ctx context.Context, _ *mcp.CallToolRequest, _ DatasetStatusInput) (
	*mcp.CallToolResult,
	*DatasetStatusOutput,
	error,
) {
	output, err := s.datasetStatus(ctx)
	if err != nil {
		return nil, nil, MapError(err)
	}
	return nil, output, nil
}

// Serve runs the server over stdio until ctx is canceled.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("Starting MCP server", slog.String("transport", transport))

	switch transport {
	case "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
			return err
		}
		s.logger.Info("MCP server stopped gracefully")
		return nil
	default:
		return fmt.Errorf("unknown MCP transport: %s (supported: stdio)", transport)
	}
}

// generateRequestID creates a short unique request ID for log correlation.
func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
