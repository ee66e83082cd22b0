// Package api declares HTTP contracts and route registration helpers for
// the operator surface.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/okian/dosewatch/internal/adapters/repository"
	"github.com/okian/dosewatch/internal/domain/model"
)

// SubjectDependencies defines the interface for subject administration.
type SubjectDependencies interface {
	CreateSubject(ctx context.Context, s model.Subject) (model.SubjectID, error)
	GetSubject(ctx context.Context, id model.SubjectID) (model.Subject, error)
	ListSubjects(ctx context.Context) ([]model.Subject, error)
	ListEvents(ctx context.Context, id model.SubjectID, day string) ([]model.Event, error)
}

// SubjectsHandler handles subject administration requests.
type SubjectsHandler struct {
	deps SubjectDependencies
}

// NewSubjectsHandler creates a new subjects handler.
func NewSubjectsHandler(deps SubjectDependencies) *SubjectsHandler {
	return &SubjectsHandler{deps: deps}
}

// subjectRequest mirrors the JSON schema for POST /subjects.
type subjectRequest struct {
	FirstName     string             `json:"firstName"`
	LastName      string             `json:"lastName"`
	PillWeight    float64            `json:"pillWeight"`
	Prescription  model.Prescription `json:"prescription"`
	DosingWindows map[string]string  `json:"dosingWindows"`
}

func (s subjectRequest) validate() error {
	switch {
	case s.Prescription.PillsPerDose < 1:
		return errors.New("pillsPerDose must be at least 1")
	case s.Prescription.PillCount < 0:
		return errors.New("pillCount must not be negative")
	case s.PillWeight < 0:
		return errors.New("pillWeight must not be negative")
	}
	if _, err := model.ScheduleFromMap(s.DosingWindows); err != nil {
		return err
	}
	return nil
}

type subjectResponse struct {
	SubjectID          model.SubjectID    `json:"subjectId"`
	FirstName          string             `json:"firstName"`
	LastName           string             `json:"lastName"`
	PillWeight         float64            `json:"pillWeight"`
	Prescription       model.Prescription `json:"prescription"`
	DosingWindows      map[string]string  `json:"dosingWindows"`
	CurrAdherenceScore int                `json:"currAdherenceScore"`
}

func toSubjectResponse(s model.Subject) subjectResponse {
	return subjectResponse{
		SubjectID:          s.ID,
		FirstName:          s.FirstName,
		LastName:           s.LastName,
		PillWeight:         s.PillWeight,
		Prescription:       s.Prescription,
		DosingWindows:      s.Schedule.ToMap(),
		CurrAdherenceScore: s.CurrAdherenceScore,
	}
}

type eventResponse struct {
	ID             string  `json:"id"`
	At             string  `json:"at"`
	Grams          float64 `json:"grams"`
	Anomaly        string  `json:"anomaly"`
	AdherenceScore int     `json:"adherenceScore"`
	Pills          int     `json:"pills"`
}

// HandleSubjects handles POST /subjects and GET /subjects requests.
func (h *SubjectsHandler) HandleSubjects(w http.ResponseWriter, r *http.Request) {
	const op = "api.subjects"
	switch r.Method {
	case http.MethodPost:
		var req subjectRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
			return
		}
		if err := req.validate(); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
			return
		}

		schedule, _ := model.ScheduleFromMap(req.DosingWindows)
		id, err := h.deps.CreateSubject(r.Context(), model.Subject{
			FirstName:          req.FirstName,
			LastName:           req.LastName,
			PillWeight:         req.PillWeight,
			Prescription:       req.Prescription,
			Schedule:           schedule,
			CurrAdherenceScore: 100,
		})
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, "store_unavailable", err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"subjectId": id})

	case http.MethodGet:
		subjects, err := h.deps.ListSubjects(r.Context())
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, "store_unavailable", err)
			return
		}
		out := make([]subjectResponse, 0, len(subjects))
		for _, s := range subjects {
			out = append(out, toSubjectResponse(s))
		}
		writeJSON(w, http.StatusOK, out)

	default:
		http.NotFound(w, r)
	}
}

// HandleSubject handles GET /subjects/{id} and GET /subjects/{id}/events
// requests. The events listing accepts an optional date query parameter
// (defaulting to today).
func (h *SubjectsHandler) HandleSubject(w http.ResponseWriter, r *http.Request) {
	const op = "api.subject"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/subjects/")
	idPart, rest, _ := strings.Cut(path, "/")
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil || idPart == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	switch rest {
	case "":
		subject, err := h.deps.GetSubject(r.Context(), model.SubjectID(id))
		if err != nil {
			if repository.IsNotFound(err) {
				writeError(w, http.StatusNotFound, "not_found", err)
				return
			}
			writeError(w, http.StatusServiceUnavailable, "store_unavailable", err)
			return
		}
		writeJSON(w, http.StatusOK, toSubjectResponse(subject))

	case "events":
		day := r.URL.Query().Get("date")
		if day == "" {
			day = time.Now().Format(model.DayFormat)
		} else if _, err := time.Parse(model.DayFormat, day); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
			return
		}

		events, err := h.deps.ListEvents(r.Context(), model.SubjectID(id), day)
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, "store_unavailable", err)
			return
		}
		out := make([]eventResponse, 0, len(events))
		for _, e := range events {
			out = append(out, eventResponse{
				ID:             e.ID.String(),
				At:             e.At.Format(time.RFC3339),
				Grams:          e.Grams,
				Anomaly:        string(e.Kind),
				AdherenceScore: e.AdherenceScore,
				Pills:          e.Pills,
			})
		}
		writeJSON(w, http.StatusOK, out)

	default:
		http.NotFound(w, r)
	}
}
