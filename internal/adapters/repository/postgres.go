package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/okian/dosewatch/internal/domain/model"
)

// Expected schema:
//
//	CREATE TABLE subjects (
//	    id                   BIGSERIAL PRIMARY KEY,
//	    first_name           TEXT NOT NULL DEFAULT '',
//	    last_name            TEXT NOT NULL DEFAULT '',
//	    pill_weight          DOUBLE PRECISION NOT NULL DEFAULT 0,
//	    pills_per_dose       INTEGER NOT NULL DEFAULT 1,
//	    pill_count           INTEGER NOT NULL DEFAULT 0,
//	    dosing_windows       JSONB NOT NULL DEFAULT '{}',
//	    curr_adherence_score INTEGER NOT NULL DEFAULT 100
//	);
//
//	CREATE TABLE events (
//	    id              UUID PRIMARY KEY,
//	    subject_id      BIGINT NOT NULL REFERENCES subjects(id),
//	    day             DATE NOT NULL,
//	    at              TIMESTAMPTZ NOT NULL,
//	    grams           DOUBLE PRECISION NOT NULL,
//	    anomaly         TEXT NOT NULL,
//	    adherence_score INTEGER NOT NULL,
//	    pills           INTEGER NOT NULL
//	);
//	CREATE INDEX events_subject_day_idx ON events (subject_id, day);

const subjectColumns = "id, first_name, last_name, pill_weight, pills_per_dose, pill_count, dosing_windows, curr_adherence_score"

// PostgresStore implements Store against a Postgres database.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an open database handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// LatestSubjectID implements Store.
func (p *PostgresStore) LatestSubjectID(ctx context.Context) (model.SubjectID, error) {
	var id int64
	err := p.db.QueryRowContext(ctx, "SELECT id FROM subjects ORDER BY id DESC LIMIT 1").Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("latest subject id: %w", translate(err))
	}
	return model.SubjectID(id), nil
}

// LoadSubject implements Store.
func (p *PostgresStore) LoadSubject(ctx context.Context, id model.SubjectID) (model.Subject, error) {
	row := p.db.QueryRowContext(ctx,
		"SELECT "+subjectColumns+" FROM subjects WHERE id = $1", int64(id))

	s, err := scanSubject(row)
	if err != nil {
		return model.Subject{}, fmt.Errorf("load subject %d: %w", id, translate(err))
	}
	return s, nil
}

// UpdateSubject implements Store.
func (p *PostgresStore) UpdateSubject(ctx context.Context, id model.SubjectID, pillWeight float64, adherenceScore int) error {
	res, err := p.db.ExecContext(ctx,
		"UPDATE subjects SET pill_weight = $2, curr_adherence_score = $3 WHERE id = $1",
		int64(id), pillWeight, adherenceScore)
	if err != nil {
		return fmt.Errorf("update subject %d: %w", id, translate(err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update subject %d: %w", id, ErrNotFound)
	}
	return nil
}

// CountTodayEvents implements Store.
func (p *PostgresStore) CountTodayEvents(ctx context.Context, id model.SubjectID, day string) (int, int, error) {
	var total, bad int
	err := p.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE anomaly <> $3)
		 FROM events WHERE subject_id = $1 AND day = $2`,
		int64(id), day, string(model.AnomalyOnTime)).Scan(&total, &bad)
	if err != nil {
		return 0, 0, fmt.Errorf("count events for subject %d on %s: %w", id, day, translate(err))
	}
	return total, bad, nil
}

// InsertEvent implements Store.
func (p *PostgresStore) InsertEvent(ctx context.Context, e model.Event) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO events (id, subject_id, day, at, grams, anomaly, adherence_score, pills)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID.String(), int64(e.SubjectID), e.Day(), e.At, e.Grams, string(e.Kind), e.AdherenceScore, e.Pills)
	if err != nil {
		return fmt.Errorf("insert event for subject %d: %w", e.SubjectID, translate(err))
	}
	return nil
}

// CreateSubject implements Store.
func (p *PostgresStore) CreateSubject(ctx context.Context, s model.Subject) (model.SubjectID, error) {
	windows, err := json.Marshal(s.Schedule.ToMap())
	if err != nil {
		return 0, fmt.Errorf("create subject: encode schedule: %w", err)
	}

	var id int64
	err = p.db.QueryRowContext(ctx,
		`INSERT INTO subjects (first_name, last_name, pill_weight, pills_per_dose, pill_count, dosing_windows, curr_adherence_score)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		s.FirstName, s.LastName, s.PillWeight,
		s.Prescription.PillsPerDose, s.Prescription.PillCount,
		windows, s.CurrAdherenceScore).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create subject: %w", translate(err))
	}
	return model.SubjectID(id), nil
}

// ListSubjects implements Store.
func (p *PostgresStore) ListSubjects(ctx context.Context) ([]model.Subject, error) {
	rows, err := p.db.QueryContext(ctx, "SELECT "+subjectColumns+" FROM subjects ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list subjects: %w", translate(err))
	}
	defer func() { _ = rows.Close() }()

	var out []model.Subject
	for rows.Next() {
		s, err := scanSubject(rows)
		if err != nil {
			return nil, fmt.Errorf("list subjects: %w", translate(err))
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list subjects: %w", translate(err))
	}
	return out, nil
}

// ListEventsByDay implements Store.
func (p *PostgresStore) ListEventsByDay(ctx context.Context, id model.SubjectID, day string) ([]model.Event, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, subject_id, at, grams, anomaly, adherence_score, pills
		 FROM events WHERE subject_id = $1 AND day = $2 ORDER BY at`,
		int64(id), day)
	if err != nil {
		return nil, fmt.Errorf("list events for subject %d: %w", id, translate(err))
	}
	defer func() { _ = rows.Close() }()

	var out []model.Event
	for rows.Next() {
		var e model.Event
		var rawID string
		var subjectID int64
		var kind string
		if err := rows.Scan(&rawID, &subjectID, &e.At, &e.Grams, &kind, &e.AdherenceScore, &e.Pills); err != nil {
			return nil, fmt.Errorf("list events for subject %d: %w", id, translate(err))
		}
		if e.ID, err = parseEventID(rawID); err != nil {
			return nil, fmt.Errorf("list events for subject %d: %w", id, err)
		}
		e.SubjectID = model.SubjectID(subjectID)
		e.Kind = model.AnomalyKind(kind)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list events for subject %d: %w", id, translate(err))
	}
	return out, nil
}

// scanner covers *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dst ...any) error
}

func scanSubject(row scanner) (model.Subject, error) {
	var s model.Subject
	var id int64
	var windows []byte
	if err := row.Scan(&id, &s.FirstName, &s.LastName, &s.PillWeight,
		&s.Prescription.PillsPerDose, &s.Prescription.PillCount,
		&windows, &s.CurrAdherenceScore); err != nil {
		return model.Subject{}, err
	}
	s.ID = model.SubjectID(id)

	if len(windows) > 0 {
		var m map[string]string
		if err := json.Unmarshal(windows, &m); err != nil {
			return model.Subject{}, fmt.Errorf("decode dosing windows: %w", err)
		}
		schedule, err := model.ScheduleFromMap(m)
		if err != nil {
			return model.Subject{}, fmt.Errorf("decode dosing windows: %w", err)
		}
		s.Schedule = schedule
	}
	return s, nil
}

func parseEventID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("bad event id %q: %w", raw, err)
	}
	return id, nil
}

// translate maps driver errors onto the package sentinels.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return fmt.Errorf("%w: %s (%s)", ErrUnavailable, pqErr.Message, pqErr.Code)
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}
