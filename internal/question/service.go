package question

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cbtimport/internal/wordimport"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
)

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrSubjectNotFound = errors.New("subject not found")
	ErrBatchNotFound   = errors.New("import batch not found")
)

type Service struct {
	db     *sql.DB
	policy *bluemonday.Policy
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db, policy: newStemPolicy()}
}

// ImportInput is one document's worth of records. Actor is the name of the
// authenticated import client and only ever comes from the request context.
type ImportInput struct {
	SubjectID int64
	Actor     string
	Source    string
	Records   []wordimport.QuestionRecord
}

type ImportedQuestion struct {
	Number       string `json:"question_number"`
	QuestionID   int64  `json:"question_id"`
	VersionID    int64  `json:"version_id"`
	QuestionType string `json:"question_type"`
	Options      int    `json:"options"`
	HasAnswerKey bool   `json:"has_answer_key"`
}

type ImportWarning struct {
	Number  string `json:"question_number"`
	Message string `json:"message"`
}

type ImportReport struct {
	BatchID   string             `json:"batch_id"`
	SubjectID int64              `json:"subject_id"`
	Total     int                `json:"total"`
	Imported  int                `json:"imported"`
	Questions []ImportedQuestion `json:"questions"`
	Warnings  []ImportWarning    `json:"warnings"`
}

type BatchQuestion struct {
	ID           int64           `json:"id"`
	SubjectID    int64           `json:"subject_id"`
	QuestionType string          `json:"question_type"`
	StemHTML     string          `json:"stem_html"`
	AnswerKey    json.RawMessage `json:"answer_key"`
	Status       string          `json:"status"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// ImportQuestions stores extracted records as draft questions in a single
// transaction. Either every record is stored or none is.
func (s *Service) ImportQuestions(ctx context.Context, in ImportInput) (*ImportReport, error) {
	in.Source = strings.TrimSpace(in.Source)
	if in.SubjectID <= 0 {
		return nil, fmt.Errorf("%w: subject_id is required", ErrInvalidInput)
	}
	if len(in.Records) == 0 {
		return nil, fmt.Errorf("%w: no questions to import", ErrInvalidInput)
	}

	drafts := make([]questionDraft, 0, len(in.Records))
	for _, rec := range in.Records {
		d, err := buildDraft(rec, s.policy)
		if err != nil {
			return nil, err
		}
		drafts = append(drafts, d)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists bool
	if err := tx.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM subjects WHERE id = $1 AND is_active = TRUE)
	`, in.SubjectID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("load subject: %w", err)
	}
	if !exists {
		return nil, ErrSubjectNotFound
	}

	batchID := uuid.Must(uuid.NewV7()).String()
	report := &ImportReport{
		BatchID:   batchID,
		SubjectID: in.SubjectID,
		Total:     len(drafts),
		Questions: make([]ImportedQuestion, 0, len(drafts)),
		Warnings:  make([]ImportWarning, 0),
	}

	for _, d := range drafts {
		item, err := insertDraft(ctx, tx, in, batchID, d)
		if err != nil {
			return nil, err
		}
		report.Questions = append(report.Questions, item)
		for _, w := range d.Warnings {
			report.Warnings = append(report.Warnings, ImportWarning{Number: d.Number, Message: w})
		}
	}
	report.Imported = len(report.Questions)

	if err := writeAudit(ctx, tx, "question_import", "import_batch", batchID, map[string]any{
		"subject_id": in.SubjectID,
		"actor":      in.Actor,
		"source":     in.Source,
		"imported":   report.Imported,
		"warnings":   len(report.Warnings),
	}); err != nil {
		return nil, fmt.Errorf("write audit: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return report, nil
}

func insertDraft(ctx context.Context, tx *sql.Tx, in ImportInput, batchID string, d questionDraft) (ImportedQuestion, error) {
	out := ImportedQuestion{Number: d.Number, QuestionType: d.QuestionType, Options: len(d.Options)}

	metaRaw, err := json.Marshal(map[string]any{
		"import_batch":    batchID,
		"question_number": d.Number,
		"section":         d.Section,
		"source":          in.Source,
		"created_via":     "word_import",
	})
	if err != nil {
		return out, fmt.Errorf("marshal metadata: %w", err)
	}

	if err := tx.QueryRowContext(ctx, `
		INSERT INTO questions (
			subject_id, question_type, stem_html, stimulus_html, difficulty,
			metadata, is_active, version, created_at, updated_at
		) VALUES (
			$1, $2, $3, NULL, NULL, $4::jsonb, TRUE, 1, now(), now()
		)
		RETURNING id
	`, in.SubjectID, d.QuestionType, d.StemHTML, []byte(metaRaw)).Scan(&out.QuestionID); err != nil {
		return out, fmt.Errorf("insert question: %w", err)
	}

	changeNote := "imported from " + importSourceLabel(in.Source)
	if err := tx.QueryRowContext(ctx, `
		INSERT INTO question_versions (
			question_id, version_no, stimulus_id, stem_html, explanation_html, hint_html,
			answer_key, status, is_public, is_active, duration_seconds, weight, change_note,
			created_by, created_at
		) VALUES (
			$1, 1, NULL, $2, NULL, NULL,
			$3::jsonb, 'draft', FALSE, TRUE, NULL, 1, $4,
			NULL, now()
		)
		RETURNING id
	`, out.QuestionID, d.StemHTML, []byte(d.AnswerKey), changeNote).Scan(&out.VersionID); err != nil {
		return out, fmt.Errorf("insert question version: %w", err)
	}

	_, correctKeys, err := normalizeAndValidateOptions(d.QuestionType, d.Options, d.AnswerKey)
	if err != nil {
		return out, err
	}
	for _, opt := range d.Options {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO question_options (question_id, option_key, option_html, is_correct)
			VALUES ($1, $2, $3, $4)
		`, out.QuestionID, opt.OptionKey, opt.OptionHTML, correctKeys[opt.OptionKey]); err != nil {
			return out, fmt.Errorf("insert question option: %w", err)
		}
	}
	out.HasAnswerKey = string(d.AnswerKey) != "{}"
	return out, nil
}

func importSourceLabel(source string) string {
	if source == "" {
		return "document"
	}
	return source
}

func writeAudit(ctx context.Context, tx *sql.Tx, action, entityType, entityID string, payload map[string]any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO audit_logs (user_id, action, entity_type, entity_id, payload, created_at)
		VALUES (NULL, $1, $2, $3, $4::jsonb, now())
	`, action, entityType, entityID, string(b))
	return err
}

// ListBatch returns the questions created by one import, in import order.
func (s *Service) ListBatch(ctx context.Context, batchID string) ([]BatchQuestion, error) {
	if _, err := uuid.Parse(batchID); err != nil {
		return nil, fmt.Errorf("%w: batch id must be a uuid", ErrInvalidInput)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT q.id, q.subject_id, q.question_type, v.stem_html, v.answer_key, v.status, q.metadata, q.created_at
		FROM questions q
		JOIN question_versions v ON v.question_id = q.id AND v.version_no = q.version
		WHERE q.metadata->>'import_batch' = $1
		ORDER BY q.id
	`, batchID)
	if err != nil {
		return nil, fmt.Errorf("query batch: %w", err)
	}
	defer rows.Close()

	items := make([]BatchQuestion, 0)
	for rows.Next() {
		var it BatchQuestion
		if err := rows.Scan(&it.ID, &it.SubjectID, &it.QuestionType, &it.StemHTML, &it.AnswerKey, &it.Status, &it.Metadata, &it.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan batch question: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate batch: %w", err)
	}
	if len(items) == 0 {
		return nil, ErrBatchNotFound
	}
	return items, nil
}
