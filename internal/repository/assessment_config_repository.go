package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-gradebook-api/internal/models"
)

// AssessmentConfigRepository loads the scoring configuration graph: systems
// with CGPA tables, marking schemes with grading scales, rubrics with their
// criteria and levels, and per-subject grading policy.
type AssessmentConfigRepository struct {
	db *sqlx.DB
}

// NewAssessmentConfigRepository creates a new config repository.
func NewAssessmentConfigRepository(db *sqlx.DB) *AssessmentConfigRepository {
	return &AssessmentConfigRepository{db: db}
}

type assessmentSystemRow struct {
	ID              string    `db:"id"`
	ProgramID       string    `db:"program_id"`
	Name            string    `db:"name"`
	Type            string    `db:"type"`
	CGPAGradePoints []byte    `db:"cgpa_grade_points"`
	IsActive        bool      `db:"is_active"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

func (r assessmentSystemRow) toModel() (models.AssessmentSystem, error) {
	system := models.AssessmentSystem{
		ID:        r.ID,
		ProgramID: r.ProgramID,
		Name:      r.Name,
		Type:      models.AssessmentSystemType(r.Type),
		IsActive:  r.IsActive,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if len(r.CGPAGradePoints) > 0 {
		if err := json.Unmarshal(r.CGPAGradePoints, &system.CGPAGradePoints); err != nil {
			return system, fmt.Errorf("decode cgpa table for system %s: %w", r.ID, err)
		}
	}
	return system, nil
}

// FindAssessmentSystem returns one system with its CGPA table.
func (r *AssessmentConfigRepository) FindAssessmentSystem(ctx context.Context, id string) (*models.AssessmentSystem, error) {
	const query = `SELECT id, program_id, name, type, cgpa_grade_points, is_active, created_at, updated_at
        FROM assessment_systems WHERE id = $1`
	var row assessmentSystemRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, err
	}
	system, err := row.toModel()
	if err != nil {
		return nil, err
	}
	return &system, nil
}

// FindActiveSystemByProgram returns the program's active assessment system.
func (r *AssessmentConfigRepository) FindActiveSystemByProgram(ctx context.Context, programID string) (*models.AssessmentSystem, error) {
	const query = `SELECT id, program_id, name, type, cgpa_grade_points, is_active, created_at, updated_at
        FROM assessment_systems WHERE program_id = $1 AND is_active = TRUE`
	var row assessmentSystemRow
	if err := r.db.GetContext(ctx, &row, query, programID); err != nil {
		return nil, err
	}
	system, err := row.toModel()
	if err != nil {
		return nil, err
	}
	return &system, nil
}

type markingSchemeRow struct {
	ID           string    `db:"id"`
	Name         string    `db:"name"`
	MaxMarks     float64   `db:"max_marks"`
	PassingMarks float64   `db:"passing_marks"`
	GradingScale []byte    `db:"grading_scale"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// FindMarkingScheme returns one marking scheme with its grading scale bands.
func (r *AssessmentConfigRepository) FindMarkingScheme(ctx context.Context, id string) (*models.MarkingScheme, error) {
	const query = `SELECT id, name, max_marks, passing_marks, grading_scale, created_at, updated_at
        FROM marking_schemes WHERE id = $1`
	var row markingSchemeRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, err
	}
	scheme := models.MarkingScheme{
		ID:           row.ID,
		Name:         row.Name,
		MaxMarks:     row.MaxMarks,
		PassingMarks: row.PassingMarks,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
	if len(row.GradingScale) > 0 {
		if err := json.Unmarshal(row.GradingScale, &scheme.GradingScale); err != nil {
			return nil, fmt.Errorf("decode grading scale for scheme %s: %w", id, err)
		}
	}
	return &scheme, nil
}

// FindRubric returns one rubric with ordered criteria and levels.
func (r *AssessmentConfigRepository) FindRubric(ctx context.Context, id string) (*models.Rubric, error) {
	const rubricQuery = `SELECT id, name, created_at, updated_at FROM rubrics WHERE id = $1`
	var rubric models.Rubric
	if err := r.db.GetContext(ctx, &rubric, rubricQuery, id); err != nil {
		return nil, err
	}

	const criteriaQuery = `SELECT id, rubric_id, name, position FROM rubric_criteria WHERE rubric_id = $1 ORDER BY position`
	var criteria []models.RubricCriteria
	if err := r.db.SelectContext(ctx, &criteria, criteriaQuery, id); err != nil {
		return nil, fmt.Errorf("list rubric criteria: %w", err)
	}

	const levelsQuery = `SELECT l.id, l.criteria_id, l.name, l.points, l.position
        FROM rubric_levels l JOIN rubric_criteria c ON c.id = l.criteria_id
        WHERE c.rubric_id = $1 ORDER BY l.criteria_id, l.position`
	var levels []models.RubricLevel
	if err := r.db.SelectContext(ctx, &levels, levelsQuery, id); err != nil {
		return nil, fmt.Errorf("list rubric levels: %w", err)
	}

	levelsByCriteria := make(map[string][]models.RubricLevel, len(criteria))
	for _, level := range levels {
		levelsByCriteria[level.CriteriaID] = append(levelsByCriteria[level.CriteriaID], level)
	}
	for i := range criteria {
		criteria[i].Levels = levelsByCriteria[criteria[i].ID]
	}
	rubric.Criteria = criteria
	return &rubric, nil
}

type subjectConfigRow struct {
	ID                    string    `db:"id"`
	SubjectID             string    `db:"subject_id"`
	WeightageDistribution []byte    `db:"weightage_distribution"`
	PassingCriteria       []byte    `db:"passing_criteria"`
	LetterGradeScale      []byte    `db:"letter_grade_scale"`
	CreatedAt             time.Time `db:"created_at"`
	UpdatedAt             time.Time `db:"updated_at"`
}

// FindSubjectConfig returns the per-subject grading policy.
func (r *AssessmentConfigRepository) FindSubjectConfig(ctx context.Context, subjectID string) (*models.SubjectAssessmentConfig, error) {
	const query = `SELECT id, subject_id, weightage_distribution, passing_criteria, letter_grade_scale, created_at, updated_at
        FROM subject_assessment_configs WHERE subject_id = $1`
	var row subjectConfigRow
	if err := r.db.GetContext(ctx, &row, query, subjectID); err != nil {
		return nil, err
	}
	config := models.SubjectAssessmentConfig{
		ID:        row.ID,
		SubjectID: row.SubjectID,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
	if len(row.WeightageDistribution) > 0 {
		if err := json.Unmarshal(row.WeightageDistribution, &config.WeightageDistribution); err != nil {
			return nil, fmt.Errorf("decode weightage distribution for subject %s: %w", subjectID, err)
		}
	}
	if len(row.PassingCriteria) > 0 {
		if err := json.Unmarshal(row.PassingCriteria, &config.PassingCriteria); err != nil {
			return nil, fmt.Errorf("decode passing criteria for subject %s: %w", subjectID, err)
		}
	}
	if len(row.LetterGradeScale) > 0 {
		if err := json.Unmarshal(row.LetterGradeScale, &config.LetterGradeScale); err != nil {
			return nil, fmt.Errorf("decode letter grade scale for subject %s: %w", subjectID, err)
		}
	}
	return &config, nil
}
