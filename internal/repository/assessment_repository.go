package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-gradebook-api/internal/models"
)

// AssessmentRepository handles gradable activity persistence.
type AssessmentRepository struct {
	db *sqlx.DB
}

// NewAssessmentRepository creates a new assessment repository.
func NewAssessmentRepository(db *sqlx.DB) *AssessmentRepository {
	return &AssessmentRepository{db: db}
}

const assessmentColumns = `id, class_id, subject_id, period_id, title, type, total_points, marking_scheme_id, rubric_id, created_at, updated_at`

// FindByID returns one assessment, sql.ErrNoRows when absent.
func (r *AssessmentRepository) FindByID(ctx context.Context, id string) (*models.Assessment, error) {
	query := fmt.Sprintf(`SELECT %s FROM assessments WHERE id = $1`, assessmentColumns)
	var assessment models.Assessment
	if err := r.db.GetContext(ctx, &assessment, query, id); err != nil {
		return nil, err
	}
	return &assessment, nil
}

// FindByIDs returns the assessments keyed by id. Missing ids are simply
// absent from the map; callers decide whether that is an error.
func (r *AssessmentRepository) FindByIDs(ctx context.Context, ids []string) (map[string]models.Assessment, error) {
	result := make(map[string]models.Assessment, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	query, args, err := sqlx.In(fmt.Sprintf(`SELECT %s FROM assessments WHERE id IN (?)`, assessmentColumns), ids)
	if err != nil {
		return nil, fmt.Errorf("build assessment query: %w", err)
	}
	query = r.db.Rebind(query)
	var assessments []models.Assessment
	if err := r.db.SelectContext(ctx, &assessments, query, args...); err != nil {
		return nil, fmt.Errorf("fetch assessments: %w", err)
	}
	for _, assessment := range assessments {
		result[assessment.ID] = assessment
	}
	return result, nil
}

// ListBySubjectAndPeriods returns the subject's assessments across the given
// periods.
func (r *AssessmentRepository) ListBySubjectAndPeriods(ctx context.Context, subjectID string, periodIDs []string) ([]models.Assessment, error) {
	if len(periodIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(fmt.Sprintf(`SELECT %s FROM assessments WHERE subject_id = ? AND period_id IN (?)`, assessmentColumns), subjectID, periodIDs)
	if err != nil {
		return nil, fmt.Errorf("build assessment query: %w", err)
	}
	query = r.db.Rebind(query)
	var assessments []models.Assessment
	if err := r.db.SelectContext(ctx, &assessments, query, args...); err != nil {
		return nil, fmt.Errorf("list assessments: %w", err)
	}
	return assessments, nil
}
