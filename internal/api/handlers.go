package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	neoerrors "github.com/Aman-CERP/neodb/internal/errors"
	"github.com/Aman-CERP/neodb/internal/filter"
	"github.com/Aman-CERP/neodb/internal/models"
	"github.com/Aman-CERP/neodb/internal/telemetry"
	"github.com/Aman-CERP/neodb/internal/write"
)

// NotFoundMessage is the body message for lookup misses.
const NotFoundMessage = "No matching NEOs exist in the database."

// ErrorResponse represents the JSON structure for API error responses.
type ErrorResponse struct {
	Error      string `json:"error"`
	Code       string `json:"code"`
	Suggestion string `json:"suggestion,omitempty"`
}

// NEOResponse is the body of a successful NEO lookup.
type NEOResponse struct {
	NEO        models.NEOView        `json:"neo"`
	Approaches []models.ApproachView `json:"approaches,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.db.Stats())
}

// handleGetNEO serves GET /api/neos/{designation}[?approaches=true].
func (s *Server) handleGetNEO(w http.ResponseWriter, r *http.Request) {
	designation := chi.URLParam(r, "designation")
	if unescaped, err := url.PathUnescape(designation); err == nil {
		designation = unescaped
	}

	neo, ok := s.db.GetByDesignation(designation)
	s.respondNEO(w, r, neo, ok)
}

// handleFindNEO serves GET /api/neos?name=N[&approaches=true].
func (s *Server) handleFindNEO(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		s.respondError(w, r, http.StatusBadRequest, neoerrors.New(neoerrors.ErrCodeMissingField,
			"name parameter is required", nil).
			WithSuggestion("Use /api/neos/{designation} to look up by designation"))
		return
	}

	neo, ok := s.db.GetByName(name)
	s.respondNEO(w, r, neo, ok)
}

func (s *Server) respondNEO(w http.ResponseWriter, r *http.Request, neo *models.NearEarthObject, ok bool) {
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", NotFoundMessage)
		return
	}

	includeApproaches, err := parseBool(r.URL.Query(), "approaches")
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, err)
		return
	}

	resp := NEOResponse{NEO: neo.Serialize()}
	if includeApproaches != nil && *includeApproaches {
		resp.Approaches = make([]models.ApproachView, 0, len(neo.Approaches))
		for _, ca := range neo.Approaches {
			resp.Approaches = append(resp.Approaches, ca.Serialize())
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleApproaches serves GET /api/approaches with filter parameters.
// The body is streamed in the same shape as the file writers produce;
// format=csv selects the CSV layout.
func (s *Server) handleApproaches(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()

	opts, err := parseOptions(values)
	if err == nil {
		err = opts.Validate()
	}
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, err)
		return
	}

	limit, err := s.parseLimit(values)
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, err)
		return
	}

	start := time.Now()
	results := filter.Limit(s.db.Query(filter.Create(opts)...), limit)

	var n int
	switch format := strings.ToLower(values.Get("format")); format {
	case "", "json":
		w.Header().Set("Content-Type", "application/json")
		n, err = write.WriteJSON(w, results)
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		n, err = write.WriteCSV(w, results)
	default:
		s.respondError(w, r, http.StatusBadRequest, neoerrors.New(neoerrors.ErrCodeUnsupportedFormat,
			fmt.Sprintf("unsupported format %q", format), nil).
			WithSuggestion("Use format=json or format=csv"))
		return
	}

	// Headers are already sent, so failures can only be logged.
	if err != nil {
		s.logger.Error("approaches_write_failed",
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("error", err.Error()))
		return
	}
	s.metrics.Record(telemetry.QueryEvent{
		Source:      "http",
		Criteria:    opts.Criteria(),
		ResultCount: n,
		Truncated:   limit > 0 && n == limit,
		Latency:     time.Since(start),
	})
	s.logger.Debug("query_complete",
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.Int("result_count", n),
		slog.Int("limit", limit))
}

// handleMetrics reports query metrics gathered since startup.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}

// parseLimit defaults to and caps at server.max_results.
func (s *Server) parseLimit(values url.Values) (int, error) {
	maxResults := s.config.Server.MaxResults
	raw := strings.TrimSpace(values.Get("limit"))
	if raw == "" {
		return maxResults, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, invalidParam("limit", raw, "Use a positive integer")
	}
	if maxResults > 0 && limit > maxResults {
		limit = maxResults
	}
	return limit, nil
}

// parseOptions maps query parameters onto filter options.
func parseOptions(values url.Values) (filter.Options, error) {
	var opts filter.Options
	var err error

	dates := []struct {
		name string
		dest **time.Time
	}{
		{"date", &opts.Date},
		{"start_date", &opts.StartDate},
		{"end_date", &opts.EndDate},
	}
	for _, d := range dates {
		raw := values.Get(d.name)
		if raw == "" {
			continue
		}
		t, err := filter.ParseDate(raw)
		if err != nil {
			return opts, err
		}
		*d.dest = &t
	}

	floats := []struct {
		name string
		dest **float64
	}{
		{"min_distance", &opts.DistanceMin},
		{"max_distance", &opts.DistanceMax},
		{"min_velocity", &opts.VelocityMin},
		{"max_velocity", &opts.VelocityMax},
		{"min_diameter", &opts.DiameterMin},
		{"max_diameter", &opts.DiameterMax},
	}
	for _, f := range floats {
		if *f.dest, err = parseFloat(values, f.name); err != nil {
			return opts, err
		}
	}

	if opts.Hazardous, err = parseBool(values, "hazardous"); err != nil {
		return opts, err
	}
	opts.Designation = strings.TrimSpace(values.Get("designation"))
	return opts, nil
}

func parseFloat(values url.Values, name string) (*float64, error) {
	raw := strings.TrimSpace(values.Get(name))
	if raw == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, invalidParam(name, raw, "Use a decimal number")
	}
	return &f, nil
}

func parseBool(values url.Values, name string) (*bool, error) {
	raw := strings.TrimSpace(values.Get(name))
	if raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, invalidParam(name, raw, "Use true or false")
	}
	return &b, nil
}

func invalidParam(name, raw, suggestion string) error {
	return neoerrors.New(neoerrors.ErrCodeInvalidFilter,
		fmt.Sprintf("invalid %s %q", name, raw), nil).
		WithDetail("param", name).
		WithSuggestion(suggestion)
}

// respondError logs err with the request ID and writes a JSON error body.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, status int, err error) {
	s.logger.Warn("request_error",
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.String("error", err.Error()),
		slog.String("code", neoerrors.GetCode(err)))

	resp := ErrorResponse{Error: err.Error(), Code: neoerrors.GetCode(err)}
	if ne, ok := neoerrors.As(err); ok {
		resp.Error = ne.Message
		resp.Suggestion = ne.Suggestion
	}
	writeJSON(w, status, resp)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// writeJSON encodes v as JSON and writes it to w.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
