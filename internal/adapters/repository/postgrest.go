package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/okian/dosewatch/internal/domain/model"
)

// postgrestSubject is the row shape the PostgREST backend exposes for
// subjects. The prescription and dosing windows live in JSON columns.
type postgrestSubject struct {
	SubjectID          int64              `json:"subjectId"`
	FirstName          string             `json:"firstName,omitempty"`
	LastName           string             `json:"lastName,omitempty"`
	PillWeight         float64            `json:"pillWeight"`
	Prescription       model.Prescription `json:"prescription"`
	DosingWindows      map[string]string  `json:"dosingWindows"`
	CurrAdherenceScore float64            `json:"currAdherenceScore"`
}

// postgrestEvent is the row shape for events. The anomaly is stored as a
// single-character code.
type postgrestEvent struct {
	ID             string  `json:"id"`
	SubjectID      int64   `json:"subjectId"`
	Date           string  `json:"date"`
	Time           string  `json:"time"`
	Grams          float64 `json:"grams"`
	AnomalyID      string  `json:"anomalyId"`
	AdherenceScore int     `json:"adherenceScore"`
	Pills          int     `json:"pills"`
}

// PostgrestStore implements Store against a PostgREST endpoint.
type PostgrestStore struct {
	client *resty.Client
}

// NewPostgrestStore builds a store talking to the given PostgREST base URL.
// The key is sent both as the apikey header and as a bearer token.
func NewPostgrestStore(baseURL, key string) *PostgrestStore {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetHeader("apikey", key).
		SetHeader("Authorization", "Bearer "+key)

	return &PostgrestStore{client: client}
}

// LatestSubjectID implements Store.
func (p *PostgrestStore) LatestSubjectID(ctx context.Context) (model.SubjectID, error) {
	var rows []postgrestSubject
	err := p.get(ctx, "/subjects", map[string]string{
		"select": "subjectId",
		"order":  "subjectId.desc",
		"limit":  "1",
	}, &rows)
	if err != nil {
		return 0, fmt.Errorf("latest subject id: %w", err)
	}
	if len(rows) == 0 {
		return 0, fmt.Errorf("latest subject id: %w", ErrNotFound)
	}
	return model.SubjectID(rows[0].SubjectID), nil
}

// LoadSubject implements Store.
func (p *PostgrestStore) LoadSubject(ctx context.Context, id model.SubjectID) (model.Subject, error) {
	var rows []postgrestSubject
	err := p.get(ctx, "/subjects", map[string]string{
		"subjectId": "eq." + strconv.FormatInt(int64(id), 10),
		"limit":     "1",
	}, &rows)
	if err != nil {
		return model.Subject{}, fmt.Errorf("load subject %d: %w", id, err)
	}
	if len(rows) == 0 {
		return model.Subject{}, fmt.Errorf("load subject %d: %w", id, ErrNotFound)
	}
	return decodeSubject(rows[0])
}

// UpdateSubject implements Store.
func (p *PostgrestStore) UpdateSubject(ctx context.Context, id model.SubjectID, pillWeight float64, adherenceScore int) error {
	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParam("subjectId", "eq."+strconv.FormatInt(int64(id), 10)).
		SetHeader("Prefer", "return=minimal").
		SetBody(map[string]any{
			"pillWeight":         pillWeight,
			"currAdherenceScore": float64(adherenceScore),
		}).
		Patch("/subjects")
	if err != nil {
		return fmt.Errorf("update subject %d: %v: %w", id, err, ErrUnavailable)
	}
	if resp.IsError() {
		return fmt.Errorf("update subject %d: status %d: %w", id, resp.StatusCode(), ErrUnavailable)
	}
	return nil
}

// CountTodayEvents implements Store.
func (p *PostgrestStore) CountTodayEvents(ctx context.Context, id model.SubjectID, day string) (int, int, error) {
	var rows []postgrestEvent
	err := p.get(ctx, "/events", map[string]string{
		"select":    "anomalyId",
		"subjectId": "eq." + strconv.FormatInt(int64(id), 10),
		"date":      "eq." + day,
	}, &rows)
	if err != nil {
		return 0, 0, fmt.Errorf("count events for subject %d on %s: %w", id, day, err)
	}

	bad := 0
	for _, r := range rows {
		if r.AnomalyID != model.AnomalyOnTime.Code() {
			bad++
		}
	}
	return len(rows), bad, nil
}

// InsertEvent implements Store.
func (p *PostgrestStore) InsertEvent(ctx context.Context, e model.Event) error {
	row := postgrestEvent{
		ID:             e.ID.String(),
		SubjectID:      int64(e.SubjectID),
		Date:           e.Day(),
		Time:           e.At.Format(time.RFC3339),
		Grams:          e.Grams,
		AnomalyID:      e.Kind.Code(),
		AdherenceScore: e.AdherenceScore,
		Pills:          e.Pills,
	}

	resp, err := p.client.R().
		SetContext(ctx).
		SetHeader("Prefer", "return=minimal").
		SetBody(row).
		Post("/events")
	if err != nil {
		return fmt.Errorf("insert event for subject %d: %v: %w", e.SubjectID, err, ErrUnavailable)
	}
	if resp.IsError() {
		return fmt.Errorf("insert event for subject %d: status %d: %w", e.SubjectID, resp.StatusCode(), ErrUnavailable)
	}
	return nil
}

// CreateSubject implements Store.
func (p *PostgrestStore) CreateSubject(ctx context.Context, s model.Subject) (model.SubjectID, error) {
	latest, err := p.LatestSubjectID(ctx)
	if err != nil && !IsNotFound(err) {
		return 0, fmt.Errorf("create subject: %w", err)
	}

	row := postgrestSubject{
		SubjectID:          int64(latest) + 1,
		FirstName:          s.FirstName,
		LastName:           s.LastName,
		PillWeight:         s.PillWeight,
		Prescription:       s.Prescription,
		DosingWindows:      s.Schedule.ToMap(),
		CurrAdherenceScore: float64(s.CurrAdherenceScore),
	}

	resp, err := p.client.R().
		SetContext(ctx).
		SetHeader("Prefer", "return=minimal").
		SetBody(row).
		Post("/subjects")
	if err != nil {
		return 0, fmt.Errorf("create subject: %v: %w", err, ErrUnavailable)
	}
	if resp.IsError() {
		return 0, fmt.Errorf("create subject: status %d: %w", resp.StatusCode(), ErrUnavailable)
	}
	return model.SubjectID(row.SubjectID), nil
}

// ListSubjects implements Store.
func (p *PostgrestStore) ListSubjects(ctx context.Context) ([]model.Subject, error) {
	var rows []postgrestSubject
	err := p.get(ctx, "/subjects", map[string]string{"order": "subjectId.asc"}, &rows)
	if err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}

	out := make([]model.Subject, 0, len(rows))
	for _, r := range rows {
		s, err := decodeSubject(r)
		if err != nil {
			return nil, fmt.Errorf("list subjects: %w", err)
		}
		out = append(out, s)
	}
	return out, nil
}

// ListEventsByDay implements Store.
func (p *PostgrestStore) ListEventsByDay(ctx context.Context, id model.SubjectID, day string) ([]model.Event, error) {
	var rows []postgrestEvent
	err := p.get(ctx, "/events", map[string]string{
		"subjectId": "eq." + strconv.FormatInt(int64(id), 10),
		"date":      "eq." + day,
		"order":     "time.asc",
	}, &rows)
	if err != nil {
		return nil, fmt.Errorf("list events for subject %d: %w", id, err)
	}

	out := make([]model.Event, 0, len(rows))
	for _, r := range rows {
		e, err := decodeEvent(r)
		if err != nil {
			return nil, fmt.Errorf("list events for subject %d: %w", id, err)
		}
		out = append(out, e)
	}
	return out, nil
}

func (p *PostgrestStore) get(ctx context.Context, path string, query map[string]string, out any) error {
	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParams(query).
		SetResult(out).
		Get(path)
	if err != nil {
		return fmt.Errorf("%v: %w", err, ErrUnavailable)
	}
	if resp.IsError() {
		return fmt.Errorf("status %d: %w", resp.StatusCode(), ErrUnavailable)
	}
	return nil
}

func decodeSubject(r postgrestSubject) (model.Subject, error) {
	schedule, err := model.ScheduleFromMap(r.DosingWindows)
	if err != nil {
		return model.Subject{}, fmt.Errorf("subject %d: %w", r.SubjectID, err)
	}
	return model.Subject{
		ID:                 model.SubjectID(r.SubjectID),
		FirstName:          r.FirstName,
		LastName:           r.LastName,
		PillWeight:         r.PillWeight,
		Prescription:       r.Prescription,
		Schedule:           schedule,
		CurrAdherenceScore: int(r.CurrAdherenceScore),
	}, nil
}

func decodeEvent(r postgrestEvent) (model.Event, error) {
	id, err := parseEventID(r.ID)
	if err != nil {
		return model.Event{}, err
	}
	at, err := time.Parse(time.RFC3339, r.Time)
	if err != nil {
		return model.Event{}, fmt.Errorf("bad event time %q: %w", r.Time, err)
	}
	return model.Event{
		ID:             id,
		SubjectID:      model.SubjectID(r.SubjectID),
		At:             at,
		Grams:          r.Grams,
		Kind:           model.KindFromCode(r.AnomalyID),
		AdherenceScore: r.AdherenceScore,
		Pills:          r.Pills,
	}, nil
}
