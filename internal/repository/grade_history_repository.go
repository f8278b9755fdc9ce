package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-gradebook-api/internal/models"
)

// GradeHistoryRepository appends and reads the write-once grade audit trail.
// There is deliberately no update or delete.
type GradeHistoryRepository struct {
	db *sqlx.DB
}

// NewGradeHistoryRepository creates a new grade history repository.
func NewGradeHistoryRepository(db *sqlx.DB) *GradeHistoryRepository {
	return &GradeHistoryRepository{db: db}
}

// Append inserts one immutable audit record.
func (r *GradeHistoryRepository) Append(ctx context.Context, entry *models.GradeHistory) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.CreatedAt = time.Now().UTC()

	const query = `INSERT INTO grade_history (id, student_id, subject_id, assessment_id, grade_value, previous_value, modified_by, reason, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	if _, err := r.db.ExecContext(ctx, query,
		entry.ID, entry.StudentID, entry.SubjectID, entry.AssessmentID,
		entry.GradeValue, nullableFloat(entry.PreviousValue), entry.ModifiedBy, entry.Reason, entry.CreatedAt); err != nil {
		return fmt.Errorf("append grade history: %w", err)
	}
	return nil
}

// List returns history entries for the filter, newest first.
func (r *GradeHistoryRepository) List(ctx context.Context, filter models.GradeHistoryFilter) ([]models.GradeHistory, int, error) {
	base := `FROM grade_history WHERE 1=1`
	var args []interface{}
	if filter.StudentID != "" {
		base += fmt.Sprintf(" AND student_id = $%d", len(args)+1)
		args = append(args, filter.StudentID)
	}
	if filter.SubjectID != "" {
		base += fmt.Sprintf(" AND subject_id = $%d", len(args)+1)
		args = append(args, filter.SubjectID)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	query := `SELECT id, student_id, subject_id, assessment_id, grade_value, previous_value, modified_by, reason, created_at ` +
		base + fmt.Sprintf(" ORDER BY created_at DESC LIMIT %d OFFSET %d", pageSize, (page-1)*pageSize)
	var entries []models.GradeHistory
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list grade history: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count grade history: %w", err)
	}
	return entries, total, nil
}
