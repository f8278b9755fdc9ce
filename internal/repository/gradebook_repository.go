package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-gradebook-api/internal/models"
)

// GradeBookRepository handles gradebook and subject grade record persistence.
// The derived grade maps are stored as JSONB columns keyed by term and period
// id.
type GradeBookRepository struct {
	db *sqlx.DB
}

// NewGradeBookRepository creates a new gradebook repository.
func NewGradeBookRepository(db *sqlx.DB) *GradeBookRepository {
	return &GradeBookRepository{db: db}
}

// FindByClass returns the class gradebook, sql.ErrNoRows when the class has
// not been initialized.
func (r *GradeBookRepository) FindByClass(ctx context.Context, classID string) (*models.GradeBook, error) {
	const query = `SELECT id, class_id, assessment_system_id, term_structure_id, created_at, updated_at
        FROM gradebooks WHERE class_id = $1`
	var gradebook models.GradeBook
	if err := r.db.GetContext(ctx, &gradebook, query, classID); err != nil {
		return nil, err
	}
	return &gradebook, nil
}

// Create inserts the gradebook together with one skeleton subject record per
// subject in a single transaction.
func (r *GradeBookRepository) Create(ctx context.Context, gradebook *models.GradeBook, subjectIDs []string) error {
	if gradebook.ID == "" {
		gradebook.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	gradebook.CreatedAt = now
	gradebook.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin gradebook tx: %w", err)
	}
	const gradebookQuery = `INSERT INTO gradebooks (id, class_id, assessment_system_id, term_structure_id, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := tx.ExecContext(ctx, gradebookQuery,
		gradebook.ID, gradebook.ClassID, gradebook.AssessmentSystemID, gradebook.TermStructureID,
		gradebook.CreatedAt, gradebook.UpdatedAt); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("insert gradebook: %w", err)
	}
	const recordQuery = `INSERT INTO subject_grade_records (id, gradebook_id, subject_id, student_id, term_grades, period_grades, created_at, updated_at)
        VALUES ($1, $2, $3, '', '{}', '{}', $4, $5)`
	for _, subjectID := range subjectIDs {
		if _, err := tx.ExecContext(ctx, recordQuery, uuid.NewString(), gradebook.ID, subjectID, now, now); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("insert subject grade record: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit gradebook: %w", err)
	}
	return nil
}

type subjectGradeRecordRow struct {
	ID           string    `db:"id"`
	GradeBookID  string    `db:"gradebook_id"`
	SubjectID    string    `db:"subject_id"`
	StudentID    string    `db:"student_id"`
	TermGrades   []byte    `db:"term_grades"`
	PeriodGrades []byte    `db:"period_grades"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r subjectGradeRecordRow) toModel() (models.SubjectGradeRecord, error) {
	record := models.SubjectGradeRecord{
		ID:          r.ID,
		GradeBookID: r.GradeBookID,
		SubjectID:   r.SubjectID,
		StudentID:   r.StudentID,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if len(r.TermGrades) > 0 {
		if err := json.Unmarshal(r.TermGrades, &record.TermGrades); err != nil {
			return record, fmt.Errorf("decode term grades for record %s: %w", r.ID, err)
		}
	}
	if len(r.PeriodGrades) > 0 {
		if err := json.Unmarshal(r.PeriodGrades, &record.PeriodGrades); err != nil {
			return record, fmt.Errorf("decode period grades for record %s: %w", r.ID, err)
		}
	}
	return record, nil
}

// FindStudentRecord returns the per-student record for a subject,
// sql.ErrNoRows when no recalculation has run yet.
func (r *GradeBookRepository) FindStudentRecord(ctx context.Context, gradebookID, subjectID, studentID string) (*models.SubjectGradeRecord, error) {
	const query = `SELECT id, gradebook_id, subject_id, student_id, term_grades, period_grades, created_at, updated_at
        FROM subject_grade_records WHERE gradebook_id = $1 AND subject_id = $2 AND student_id = $3`
	var row subjectGradeRecordRow
	if err := r.db.GetContext(ctx, &row, query, gradebookID, subjectID, studentID); err != nil {
		return nil, err
	}
	record, err := row.toModel()
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// UpsertStudentRecord writes the derived grade maps for one
// (gradebook, subject, student) cell. Recalculation calls this any number of
// times with the same net result.
func (r *GradeBookRepository) UpsertStudentRecord(ctx context.Context, record *models.SubjectGradeRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	termGrades, err := json.Marshal(record.TermGrades)
	if err != nil {
		return fmt.Errorf("encode term grades: %w", err)
	}
	periodGrades, err := json.Marshal(record.PeriodGrades)
	if err != nil {
		return fmt.Errorf("encode period grades: %w", err)
	}

	const query = `INSERT INTO subject_grade_records (id, gradebook_id, subject_id, student_id, term_grades, period_grades, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (gradebook_id, subject_id, student_id)
        DO UPDATE SET term_grades = EXCLUDED.term_grades, period_grades = EXCLUDED.period_grades, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.ExecContext(ctx, query,
		record.ID, record.GradeBookID, record.SubjectID, record.StudentID,
		termGrades, periodGrades, record.CreatedAt, record.UpdatedAt); err != nil {
		return fmt.Errorf("upsert subject grade record: %w", err)
	}
	return nil
}

// ListStudentRecordsByClass returns every per-student record of the class
// gradebook. Skeleton records (empty student id) are excluded.
func (r *GradeBookRepository) ListStudentRecordsByClass(ctx context.Context, classID string) ([]models.SubjectGradeRecord, error) {
	const query = `SELECT sgr.id, sgr.gradebook_id, sgr.subject_id, sgr.student_id, sgr.term_grades, sgr.period_grades, sgr.created_at, sgr.updated_at
        FROM subject_grade_records sgr
        JOIN gradebooks gb ON gb.id = sgr.gradebook_id
        WHERE gb.class_id = $1 AND sgr.student_id <> ''`
	var rows []subjectGradeRecordRow
	if err := r.db.SelectContext(ctx, &rows, query, classID); err != nil {
		return nil, fmt.Errorf("list subject grade records: %w", err)
	}
	records := make([]models.SubjectGradeRecord, 0, len(rows))
	for _, row := range rows {
		record, err := row.toModel()
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}
