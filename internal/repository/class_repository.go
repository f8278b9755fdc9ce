package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-gradebook-api/internal/models"
)

// ClassRepository manages persistence for classes and their rosters.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository creates a new class repository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// FindByID returns one class, sql.ErrNoRows when absent.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.Class, error) {
	const query = `SELECT id, name, program_id, class_group_id, term_structure_id, created_at, updated_at
        FROM classes WHERE id = $1`
	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		return nil, err
	}
	return &class, nil
}

// StampTermStructure records the term structure a class gradebook was
// initialized against.
func (r *ClassRepository) StampTermStructure(ctx context.Context, classID, termStructureID string) error {
	const query = `UPDATE classes SET term_structure_id = $1, updated_at = $2 WHERE id = $3`
	if _, err := r.db.ExecContext(ctx, query, termStructureID, time.Now().UTC(), classID); err != nil {
		return fmt.Errorf("stamp class term structure: %w", err)
	}
	return nil
}

// ListStudents returns the active roster of a class.
func (r *ClassRepository) ListStudents(ctx context.Context, classID string) ([]models.Student, error) {
	const query = `SELECT s.id, s.full_name, s.active, s.created_at
        FROM students s
        JOIN class_enrollments ce ON ce.student_id = s.id
        WHERE ce.class_id = $1 AND s.active = TRUE
        ORDER BY s.full_name`
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, classID); err != nil {
		return nil, fmt.Errorf("list class students: %w", err)
	}
	return students, nil
}

// ListSubjectsByClassGroup returns the subjects attached to a class group.
func (r *ClassRepository) ListSubjectsByClassGroup(ctx context.Context, classGroupID string) ([]models.Subject, error) {
	const query = `SELECT id, code, name, credits, class_group_id, created_at, updated_at
        FROM subjects WHERE class_group_id = $1 ORDER BY code`
	var subjects []models.Subject
	if err := r.db.SelectContext(ctx, &subjects, query, classGroupID); err != nil {
		return nil, fmt.Errorf("list class group subjects: %w", err)
	}
	return subjects, nil
}

// FindStudent returns one student, sql.ErrNoRows when absent.
func (r *ClassRepository) FindStudent(ctx context.Context, id string) (*models.Student, error) {
	const query = `SELECT id, full_name, active, created_at FROM students WHERE id = $1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// FindSubject returns one subject, sql.ErrNoRows when absent.
func (r *ClassRepository) FindSubject(ctx context.Context, id string) (*models.Subject, error) {
	const query = `SELECT id, code, name, credits, class_group_id, created_at, updated_at
        FROM subjects WHERE id = $1`
	var subject models.Subject
	if err := r.db.GetContext(ctx, &subject, query, id); err != nil {
		return nil, err
	}
	return &subject, nil
}
