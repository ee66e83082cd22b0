// Package api declares HTTP contracts and route registration helpers for
// the operator surface.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/dosewatch/internal/app"
	"github.com/okian/dosewatch/internal/domain/model"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Subject administration.
	CreateSubject(ctx context.Context, s model.Subject) (model.SubjectID, error)
	GetSubject(ctx context.Context, id model.SubjectID) (model.Subject, error)
	ListSubjects(ctx context.Context) ([]model.Subject, error)
	ListEvents(ctx context.Context, id model.SubjectID, day string) ([]model.Event, error)

	// ProcessReading ingests one mass reading outside the TCP path.
	ProcessReading(ctx context.Context, raw float64, pinned *model.SubjectID) (app.Outcome, error)
}

// Server wires HTTP routes for the operator API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	subjectsHandler *SubjectsHandler
	readingsHandler *ReadingsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:   NewHealthHandler(),
		statsHandler:    NewStatsHandler(statsProvider),
		subjectsHandler: NewSubjectsHandler(deps),
		readingsHandler: NewReadingsHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/subjects", MetricsMiddleware(s.subjectsHandler.HandleSubjects, "subjects"))
	mux.HandleFunc("/subjects/", MetricsMiddleware(s.subjectsHandler.HandleSubject, "subject"))
	mux.HandleFunc("/readings", MetricsMiddleware(s.readingsHandler.HandlePostReading, "readings"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
