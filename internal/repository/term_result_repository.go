package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-gradebook-api/internal/models"
)

// TermResultRepository persists cumulative term outcomes. The upsert is
// keyed on (student_id, term_id) so recalculation never duplicates rows.
type TermResultRepository struct {
	db *sqlx.DB
}

// NewTermResultRepository creates a new term result repository.
func NewTermResultRepository(db *sqlx.DB) *TermResultRepository {
	return &TermResultRepository{db: db}
}

// Upsert writes the term result idempotently.
func (r *TermResultRepository) Upsert(ctx context.Context, result *models.TermResult) error {
	if result.ID == "" {
		result.ID = uuid.NewString()
	}
	result.CalculatedAt = time.Now().UTC()

	const query = `INSERT INTO term_results (id, student_id, term_id, gpa, total_credits, earned_credits, calculated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (student_id, term_id)
        DO UPDATE SET gpa = EXCLUDED.gpa, total_credits = EXCLUDED.total_credits, earned_credits = EXCLUDED.earned_credits, calculated_at = EXCLUDED.calculated_at`
	if _, err := r.db.ExecContext(ctx, query,
		result.ID, result.StudentID, result.TermID,
		result.GPA, result.TotalCredits, result.EarnedCredits, result.CalculatedAt); err != nil {
		return fmt.Errorf("upsert term result: %w", err)
	}
	return nil
}

// ListByStudent returns every persisted term result of a student, oldest
// first. Used for cross-term CGPA rollups.
func (r *TermResultRepository) ListByStudent(ctx context.Context, studentID string) ([]models.TermResult, error) {
	const query = `SELECT id, student_id, term_id, gpa, total_credits, earned_credits, calculated_at
        FROM term_results WHERE student_id = $1 ORDER BY calculated_at ASC`
	var results []models.TermResult
	if err := r.db.SelectContext(ctx, &results, query, studentID); err != nil {
		return nil, fmt.Errorf("list term results: %w", err)
	}
	return results, nil
}

// FindByStudentAndTerm returns the persisted result, sql.ErrNoRows when the
// cumulative grade has not been calculated yet.
func (r *TermResultRepository) FindByStudentAndTerm(ctx context.Context, studentID, termID string) (*models.TermResult, error) {
	const query = `SELECT id, student_id, term_id, gpa, total_credits, earned_credits, calculated_at
        FROM term_results WHERE student_id = $1 AND term_id = $2`
	var result models.TermResult
	if err := r.db.GetContext(ctx, &result, query, studentID, termID); err != nil {
		return nil, err
	}
	return &result, nil
}
