package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-gradebook-api/internal/models"
)

// SubmissionRepository handles submission persistence.
type SubmissionRepository struct {
	db *sqlx.DB
}

// NewSubmissionRepository creates a new submission repository.
func NewSubmissionRepository(db *sqlx.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

type submissionRow struct {
	ID            string          `db:"id"`
	AssessmentID  string          `db:"assessment_id"`
	StudentID     string          `db:"student_id"`
	ObtainedMarks sql.NullFloat64 `db:"obtained_marks"`
	RubricScores  []byte          `db:"rubric_scores"`
	Status        string          `db:"status"`
	CreatedAt     time.Time       `db:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at"`
}

func (r submissionRow) toModel() (models.Submission, error) {
	submission := models.Submission{
		ID:           r.ID,
		AssessmentID: r.AssessmentID,
		StudentID:    r.StudentID,
		Status:       models.SubmissionStatus(r.Status),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if r.ObtainedMarks.Valid {
		marks := r.ObtainedMarks.Float64
		submission.ObtainedMarks = &marks
	}
	if len(r.RubricScores) > 0 {
		if err := json.Unmarshal(r.RubricScores, &submission.RubricScores); err != nil {
			return submission, fmt.Errorf("decode rubric scores for submission %s: %w", r.ID, err)
		}
	}
	return submission, nil
}

// ListForStudent returns all submissions of a student for assessments in the
// given subject tagged with the given period.
func (r *SubmissionRepository) ListForStudent(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, error) {
	query := `SELECT s.id, s.assessment_id, s.student_id, s.obtained_marks, s.rubric_scores, s.status, s.created_at, s.updated_at
        FROM submissions s
        JOIN assessments a ON a.id = s.assessment_id
        WHERE s.student_id = $1 AND a.subject_id = $2`
	args := []interface{}{filter.StudentID, filter.SubjectID}
	if filter.PeriodID != "" {
		query += fmt.Sprintf(" AND a.period_id = $%d", len(args)+1)
		args = append(args, filter.PeriodID)
	}
	query += " ORDER BY s.created_at"

	var rows []submissionRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	submissions := make([]models.Submission, 0, len(rows))
	for _, row := range rows {
		submission, err := row.toModel()
		if err != nil {
			return nil, err
		}
		submissions = append(submissions, submission)
	}
	return submissions, nil
}

// FindByAssessmentAndStudent returns the submission for one activity, or
// sql.ErrNoRows when the student has not submitted.
func (r *SubmissionRepository) FindByAssessmentAndStudent(ctx context.Context, assessmentID, studentID string) (*models.Submission, error) {
	const query = `SELECT id, assessment_id, student_id, obtained_marks, rubric_scores, status, created_at, updated_at
        FROM submissions WHERE assessment_id = $1 AND student_id = $2`
	var row submissionRow
	if err := r.db.GetContext(ctx, &row, query, assessmentID, studentID); err != nil {
		return nil, err
	}
	submission, err := row.toModel()
	if err != nil {
		return nil, err
	}
	return &submission, nil
}

// Upsert inserts or updates the submission for (assessment, student).
func (r *SubmissionRepository) Upsert(ctx context.Context, submission *models.Submission) error {
	if submission.ID == "" {
		submission.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if submission.CreatedAt.IsZero() {
		submission.CreatedAt = now
	}
	submission.UpdatedAt = now

	var rubricScores interface{}
	if len(submission.RubricScores) > 0 {
		encoded, err := json.Marshal(submission.RubricScores)
		if err != nil {
			return fmt.Errorf("encode rubric scores: %w", err)
		}
		rubricScores = encoded
	}

	const query = `INSERT INTO submissions (id, assessment_id, student_id, obtained_marks, rubric_scores, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (assessment_id, student_id)
        DO UPDATE SET obtained_marks = EXCLUDED.obtained_marks, rubric_scores = EXCLUDED.rubric_scores, status = EXCLUDED.status, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.ExecContext(ctx, query,
		submission.ID, submission.AssessmentID, submission.StudentID,
		nullableFloat(submission.ObtainedMarks), rubricScores, string(submission.Status),
		submission.CreatedAt, submission.UpdatedAt); err != nil {
		return fmt.Errorf("upsert submission: %w", err)
	}
	return nil
}

// SumObtainedByAssessments totals obtained marks over every submission of
// the given assessments. Used by the unweighted subject grade summary.
func (r *SubmissionRepository) SumObtainedByAssessments(ctx context.Context, assessmentIDs []string) (float64, error) {
	if len(assessmentIDs) == 0 {
		return 0, nil
	}
	query, args, err := sqlx.In(`SELECT COALESCE(SUM(obtained_marks), 0) FROM submissions WHERE assessment_id IN (?)`, assessmentIDs)
	if err != nil {
		return 0, fmt.Errorf("build submission sum query: %w", err)
	}
	query = r.db.Rebind(query)
	var total float64
	if err := r.db.GetContext(ctx, &total, query, args...); err != nil {
		return 0, fmt.Errorf("sum submissions: %w", err)
	}
	return total, nil
}

func nullableFloat(value *float64) interface{} {
	if value == nil {
		return nil
	}
	return *value
}
