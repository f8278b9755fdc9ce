package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// AttendanceRepository exposes the attendance rate consumed by grade
// validation.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository creates a new attendance repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// RateFor returns the student's attendance percentage for a subject in
// [0,100]. A student with no attendance records counts as 0%.
func (r *AttendanceRepository) RateFor(ctx context.Context, studentID, subjectID string) (float64, error) {
	const query = `SELECT COALESCE(
            100.0 * COUNT(*) FILTER (WHERE status = 'PRESENT') / NULLIF(COUNT(*), 0), 0)
        FROM subject_attendance WHERE student_id = $1 AND subject_id = $2`
	var rate float64
	if err := r.db.GetContext(ctx, &rate, query, studentID, subjectID); err != nil {
		return 0, fmt.Errorf("fetch attendance rate: %w", err)
	}
	return rate, nil
}
