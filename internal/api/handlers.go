package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/mmrzaf/mockdata/internal/app"
	"github.com/mmrzaf/mockdata/internal/domain"
	"github.com/mmrzaf/mockdata/internal/infra/repos/runs"
	"github.com/mmrzaf/mockdata/internal/infra/repos/schemas"
	"github.com/mmrzaf/mockdata/internal/infra/sinks"
	"github.com/mmrzaf/mockdata/internal/logging"
)

type Handler struct {
	// ctx outlives requests; background runs are bound to it.
	ctx        context.Context
	schemaRepo schemas.Repository
	runService *app.RunService
}

func NewHandler(ctx context.Context, schemaRepo schemas.Repository, runService *app.RunService) *Handler {
	return &Handler{ctx: ctx, schemaRepo: schemaRepo, runService: runService}
}

// Routes registers every endpoint on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/schemas", h.ListSchemas)
	mux.HandleFunc("GET /api/v1/schemas/{id}", h.GetSchema)
	mux.HandleFunc("POST /api/v1/schemas/{id}/validate", h.ValidateSchema)

	mux.HandleFunc("POST /api/v1/runs", h.CreateRun)
	mux.HandleFunc("GET /api/v1/runs", h.ListRuns)
	mux.HandleFunc("GET /api/v1/runs/{id}", h.GetRun)

	mux.HandleFunc("POST /api/v1/sinks/check", h.CheckSink)
}

type schemaSummary struct {
	ID           string   `json:"id"`
	Domains      []string `json:"domains"`
	RecordCount  int      `json:"record_count"`
	OutputFormat string   `json:"output_format,omitempty"`
}

func (h *Handler) ListSchemas(w http.ResponseWriter, r *http.Request) {
	list, err := h.schemaRepo.List()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	out := make([]schemaSummary, 0, len(list))
	for _, s := range list {
		sum := schemaSummary{ID: s.ID, RecordCount: s.Settings.RecordCount, OutputFormat: s.Settings.OutputFormat}
		for _, d := range s.Domains {
			sum.Domains = append(sum.Domains, d.Name)
		}
		out = append(out, sum)
	}
	writeJSON(w, out)
}

func (h *Handler) GetSchema(w http.ResponseWriter, r *http.Request) {
	sc, err := h.schemaRepo.Get(r.PathValue("id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, sc)
}

func (h *Handler) ValidateSchema(w http.ResponseWriter, r *http.Request) {
	report, err := h.runService.Validate(&app.RunRequest{SchemaID: r.PathValue("id")})
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if report.Err() != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(report)
		return
	}
	writeJSON(w, report)
}

// runRequest is the JSON body of POST /api/v1/runs. Exactly one of
// schema_id and schema is required.
type runRequest struct {
	SchemaID    string         `json:"schema_id,omitempty"`
	Schema      *domain.Schema `json:"schema,omitempty"`
	RecordCount *int           `json:"record_count,omitempty"`
	Format      string         `json:"format,omitempty"`
	Seed        *int64         `json:"seed,omitempty"`
	OutputDir   string         `json:"output_dir,omitempty"`
	DSN         string         `json:"dsn,omitempty"`
	Database    string         `json:"database,omitempty"`
	PGSchema    string         `json:"pg_schema,omitempty"`
	TableMode   string         `json:"table_mode,omitempty"`
	Workers     int            `json:"workers,omitempty"`
	BatchSize   int            `json:"batch_size,omitempty"`
}

func (req *runRequest) toApp() *app.RunRequest {
	return &app.RunRequest{
		SchemaID:    req.SchemaID,
		Schema:      req.Schema,
		RecordCount: req.RecordCount,
		Format:      req.Format,
		Seed:        req.Seed,
		OutputDir:   req.OutputDir,
		DSN:         req.DSN,
		Database:    req.Database,
		PGSchema:    req.PGSchema,
		TableMode:   req.TableMode,
		Workers:     req.Workers,
		BatchSize:   req.BatchSize,
	}
}

func (h *Handler) CreateRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	run, err := h.runService.Start(h.ctx, req.toApp())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(run)
}

func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if q := r.URL.Query().Get("limit"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}
	list, err := h.runService.ListRuns(limit, r.URL.Query().Get("status"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, list)
}

func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.runService.GetRun(r.PathValue("id"))
	if errors.Is(err, runs.ErrNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, run)
}

type checkRequest struct {
	Format   string `json:"format"`
	DSN      string `json:"dsn,omitempty"`
	PGSchema string `json:"pg_schema,omitempty"`
	Probe    bool   `json:"probe,omitempty"`
}

func (h *Handler) CheckSink(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Format == domain.FormatJSON || req.Format == domain.FormatCSV {
		http.Error(w, "file formats have nothing to check", http.StatusBadRequest)
		return
	}
	res, err := app.CheckSink(sinks.Options{Format: req.Format, DSN: req.DSN, Schema: req.PGSchema}, req.Probe)
	if res != nil {
		writeJSON(w, res)
		return
	}
	http.Error(w, err.Error(), http.StatusBadRequest)
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// WithLogging logs one line per request, at warn for 4xx and error for 5xx.
func WithLogging(logger *logging.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		fields := map[string]any{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      sw.status,
			"duration_ms": time.Since(started).Milliseconds(),
			"remote":      r.RemoteAddr,
		}
		switch {
		case sw.status >= 500:
			logger.Errorw("request.completed", fields)
		case sw.status >= 400:
			logger.Warnw("request.completed", fields)
		default:
			logger.Infow("request.completed", fields)
		}
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSONStrict(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}
