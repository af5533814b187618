// Package masterdata manages the subjects imported questions are filed under.
package masterdata

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrDuplicate    = errors.New("subject already exists")
)

type Service struct {
	db *sql.DB
}

type Subject struct {
	ID             int64  `json:"id"`
	EducationLevel string `json:"education_level"`
	SubjectType    string `json:"subject_type"`
	Name           string `json:"name"`
	IsActive       bool   `json:"is_active"`
}

type CreateSubjectInput struct {
	EducationLevel string
	SubjectType    string
	Name           string
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

func (s *Service) ListSubjects(ctx context.Context, activeOnly bool) ([]Subject, error) {
	query := `
		SELECT id, education_level, subject_type, name, is_active
		FROM subjects
	`
	if activeOnly {
		query += " WHERE is_active = TRUE"
	}
	query += " ORDER BY education_level ASC, name ASC"

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	defer rows.Close()

	out := make([]Subject, 0)
	for rows.Next() {
		var it Subject
		if err := rows.Scan(&it.ID, &it.EducationLevel, &it.SubjectType, &it.Name, &it.IsActive); err != nil {
			return nil, fmt.Errorf("scan subject: %w", err)
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subjects: %w", err)
	}
	return out, nil
}

// CreateSubject adds an active subject. Names are unique per education level,
// ignoring case.
func (s *Service) CreateSubject(ctx context.Context, actor string, in CreateSubjectInput) (*Subject, error) {
	in.EducationLevel = strings.TrimSpace(in.EducationLevel)
	in.SubjectType = strings.TrimSpace(in.SubjectType)
	in.Name = strings.TrimSpace(in.Name)
	if in.EducationLevel == "" || in.Name == "" {
		return nil, fmt.Errorf("%w: education_level and name are required", ErrInvalidInput)
	}
	if in.SubjectType == "" {
		in.SubjectType = "Wajib"
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists bool
	if err := tx.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM subjects
			WHERE lower(education_level) = lower($1) AND lower(name) = lower($2)
		)
	`, in.EducationLevel, in.Name).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check subject: %w", err)
	}
	if exists {
		return nil, ErrDuplicate
	}

	var out Subject
	if err := tx.QueryRowContext(ctx, `
		INSERT INTO subjects (education_level, subject_type, name, is_active, created_at)
		VALUES ($1, $2, $3, TRUE, now())
		RETURNING id, education_level, subject_type, name, is_active
	`, in.EducationLevel, in.SubjectType, in.Name).Scan(&out.ID, &out.EducationLevel, &out.SubjectType, &out.Name, &out.IsActive); err != nil {
		return nil, fmt.Errorf("create subject: %w", err)
	}

	if err := writeAudit(ctx, tx, "subject_created", fmt.Sprintf("%d", out.ID), map[string]any{
		"name":            out.Name,
		"education_level": out.EducationLevel,
		"actor":           actor,
	}); err != nil {
		return nil, fmt.Errorf("write audit: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &out, nil
}

// DeactivateSubject hides a subject from imports. Questions already filed
// under it are kept.
func (s *Service) DeactivateSubject(ctx context.Context, actor string, id int64) error {
	if id <= 0 {
		return ErrInvalidInput
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE subjects SET is_active = FALSE WHERE id = $1 AND is_active = TRUE
	`, id)
	if err != nil {
		return fmt.Errorf("deactivate subject: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return sql.ErrNoRows
	}

	_ = writeAudit(ctx, s.db, "subject_deactivated", fmt.Sprintf("%d", id), map[string]any{
		"actor": actor,
	})
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func writeAudit(ctx context.Context, db execer, action, entityID string, payload map[string]any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO audit_logs (user_id, action, entity_type, entity_id, payload, created_at)
		VALUES (NULL, $1, 'subject', $2, $3::jsonb, now())
	`, action, entityID, string(b))
	return err
}
