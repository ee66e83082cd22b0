// Package api declares HTTP contracts and route registration helpers for
// the operator surface.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/okian/dosewatch/internal/adapters/repository"
	"github.com/okian/dosewatch/internal/app"
	"github.com/okian/dosewatch/internal/domain/model"
)

// ReadingDependencies defines the interface for manual reading ingestion.
type ReadingDependencies interface {
	ProcessReading(ctx context.Context, raw float64, pinned *model.SubjectID) (app.Outcome, error)
}

// ReadingsHandler handles manual reading submissions. It runs the same
// pipeline as the TCP receiver, which makes it useful for backfills and
// for exercising the system without a scale.
type ReadingsHandler struct {
	deps ReadingDependencies
}

// NewReadingsHandler creates a new readings handler.
func NewReadingsHandler(deps ReadingDependencies) *ReadingsHandler {
	return &ReadingsHandler{deps: deps}
}

// readingRequest mirrors the JSON schema for POST /readings.
type readingRequest struct {
	Grams     float64          `json:"grams"`
	SubjectID *model.SubjectID `json:"subjectId,omitempty"`
}

type readingResponse struct {
	SubjectID model.SubjectID `json:"subjectId"`
	Baseline  bool            `json:"baseline"`
	Event     *eventResponse  `json:"event,omitempty"`
}

// HandlePostReading handles POST /readings requests.
func (h *ReadingsHandler) HandlePostReading(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_reading"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	var req readingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	out, err := h.deps.ProcessReading(r.Context(), req.Grams, req.SubjectID)
	if err != nil {
		if repository.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "not_found", err)
			return
		}
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", err)
		return
	}

	resp := readingResponse{SubjectID: out.SubjectID, Baseline: out.Baseline}
	if !out.Baseline {
		resp.Event = &eventResponse{
			ID:             out.Event.ID.String(),
			At:             out.Event.At.Format(time.RFC3339),
			Grams:          out.Event.Grams,
			Anomaly:        string(out.Event.Kind),
			AdherenceScore: out.Event.AdherenceScore,
			Pills:          out.Event.Pills,
		}
	}
	writeJSON(w, http.StatusCreated, resp)
}
