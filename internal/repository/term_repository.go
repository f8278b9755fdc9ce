package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-gradebook-api/internal/models"
)

// TermRepository handles persistence for term structures, terms and their
// assessment periods.
type TermRepository struct {
	db *sqlx.DB
}

// NewTermRepository instantiates a term repository.
func NewTermRepository(db *sqlx.DB) *TermRepository {
	return &TermRepository{db: db}
}

// FindTerm returns one term, sql.ErrNoRows when absent.
func (r *TermRepository) FindTerm(ctx context.Context, id string) (*models.Term, error) {
	const query = `SELECT id, term_structure_id, name, type, start_date, end_date, is_active, created_at, updated_at
        FROM terms WHERE id = $1`
	var term models.Term
	if err := r.db.GetContext(ctx, &term, query, id); err != nil {
		return nil, err
	}
	return &term, nil
}

// ListTermsByStructure returns the structure's terms in calendar order.
func (r *TermRepository) ListTermsByStructure(ctx context.Context, structureID string) ([]models.Term, error) {
	const query = `SELECT id, term_structure_id, name, type, start_date, end_date, is_active, created_at, updated_at
        FROM terms WHERE term_structure_id = $1 ORDER BY start_date`
	var terms []models.Term
	if err := r.db.SelectContext(ctx, &terms, query, structureID); err != nil {
		return nil, fmt.Errorf("list terms: %w", err)
	}
	return terms, nil
}

// FindPeriod returns one assessment period, sql.ErrNoRows when absent.
func (r *TermRepository) FindPeriod(ctx context.Context, id string) (*models.TermAssessmentPeriod, error) {
	const query = `SELECT id, term_id, name, weight, start_date, end_date, created_at
        FROM term_assessment_periods WHERE id = $1`
	var period models.TermAssessmentPeriod
	if err := r.db.GetContext(ctx, &period, query, id); err != nil {
		return nil, err
	}
	return &period, nil
}

// ListPeriodsByTerm returns the term's assessment periods in calendar order.
func (r *TermRepository) ListPeriodsByTerm(ctx context.Context, termID string) ([]models.TermAssessmentPeriod, error) {
	const query = `SELECT id, term_id, name, weight, start_date, end_date, created_at
        FROM term_assessment_periods WHERE term_id = $1 ORDER BY start_date`
	var periods []models.TermAssessmentPeriod
	if err := r.db.SelectContext(ctx, &periods, query, termID); err != nil {
		return nil, fmt.Errorf("list assessment periods: %w", err)
	}
	return periods, nil
}

// FindActiveStructureByProgram returns the program's active term structure.
func (r *TermRepository) FindActiveStructureByProgram(ctx context.Context, programID string) (*models.TermStructure, error) {
	const query = `SELECT id, program_id, name, academic_year, is_active, created_at, updated_at
        FROM term_structures WHERE program_id = $1 AND is_active = TRUE`
	var structure models.TermStructure
	if err := r.db.GetContext(ctx, &structure, query, programID); err != nil {
		return nil, err
	}
	return &structure, nil
}
