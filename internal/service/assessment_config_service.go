package service

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-gradebook-api/internal/models"
	appErrors "github.com/noah-isme/sma-gradebook-api/pkg/errors"
)

type assessmentConfigRepo interface {
	FindAssessmentSystem(ctx context.Context, id string) (*models.AssessmentSystem, error)
	FindActiveSystemByProgram(ctx context.Context, programID string) (*models.AssessmentSystem, error)
	FindMarkingScheme(ctx context.Context, id string) (*models.MarkingScheme, error)
	FindRubric(ctx context.Context, id string) (*models.Rubric, error)
	FindSubjectConfig(ctx context.Context, subjectID string) (*models.SubjectAssessmentConfig, error)
}

// AssessmentConfigService is the configuration boundary of the engine. Shape
// validation happens here, once per load, so the calculators can trust every
// config object they receive.
//
// Subject configs are intentionally never cached: credits and passing
// verdicts must always reflect the current policy.
type AssessmentConfigService struct {
	repo   assessmentConfigRepo
	logger *zap.Logger
}

// NewAssessmentConfigService constructs AssessmentConfigService.
func NewAssessmentConfigService(repo assessmentConfigRepo, logger *zap.Logger) *AssessmentConfigService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssessmentConfigService{repo: repo, logger: logger}
}

// AssessmentSystem resolves a system and validates its CGPA table.
func (s *AssessmentConfigService) AssessmentSystem(ctx context.Context, id string) (*models.AssessmentSystem, error) {
	system, err := s.repo.FindAssessmentSystem(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrConfiguration, "assessment system not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrDataAccess.Code, appErrors.ErrDataAccess.Status, "failed to load assessment system")
	}
	if err := validateCGPATable(system.CGPAGradePoints); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrConfiguration.Code, appErrors.ErrConfiguration.Status, fmt.Sprintf("invalid cgpa table on system %s", id))
	}
	return system, nil
}

// ActiveSystemByProgram resolves the active system of a program.
func (s *AssessmentConfigService) ActiveSystemByProgram(ctx context.Context, programID string) (*models.AssessmentSystem, error) {
	system, err := s.repo.FindActiveSystemByProgram(ctx, programID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrConfiguration, "program has no active assessment system")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrDataAccess.Code, appErrors.ErrDataAccess.Status, "failed to load assessment system")
	}
	if err := validateCGPATable(system.CGPAGradePoints); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrConfiguration.Code, appErrors.ErrConfiguration.Status, fmt.Sprintf("invalid cgpa table on system %s", system.ID))
	}
	return system, nil
}

// MarkingScheme resolves a marking scheme and validates its scale.
func (s *AssessmentConfigService) MarkingScheme(ctx context.Context, id string) (*models.MarkingScheme, error) {
	scheme, err := s.repo.FindMarkingScheme(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrConfiguration, "marking scheme not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrDataAccess.Code, appErrors.ErrDataAccess.Status, "failed to load marking scheme")
	}
	if scheme.MaxMarks <= 0 {
		return nil, appErrors.Clone(appErrors.ErrConfiguration, fmt.Sprintf("marking scheme %s has non-positive max marks", id))
	}
	if err := validateScaleBands(scheme.GradingScale); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrConfiguration.Code, appErrors.ErrConfiguration.Status, fmt.Sprintf("invalid grading scale on scheme %s", id))
	}
	return scheme, nil
}

// Rubric resolves a rubric and validates its criteria and levels.
func (s *AssessmentConfigService) Rubric(ctx context.Context, id string) (*models.Rubric, error) {
	rubric, err := s.repo.FindRubric(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrConfiguration, "rubric not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrDataAccess.Code, appErrors.ErrDataAccess.Status, "failed to load rubric")
	}
	for _, criteria := range rubric.Criteria {
		for _, level := range criteria.Levels {
			if level.Points < 0 {
				return nil, appErrors.Clone(appErrors.ErrConfiguration, fmt.Sprintf("rubric %s criterion %s has a negative level", id, criteria.ID))
			}
		}
	}
	return rubric, nil
}

// SubjectConfig resolves the subject's grading policy.
func (s *AssessmentConfigService) SubjectConfig(ctx context.Context, subjectID string) (*models.SubjectAssessmentConfig, error) {
	config, err := s.repo.FindSubjectConfig(ctx, subjectID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrConfiguration, fmt.Sprintf("subject %s has no assessment config", subjectID))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrDataAccess.Code, appErrors.ErrDataAccess.Status, "failed to load subject config")
	}
	for category, weight := range config.WeightageDistribution {
		if weight < 0 {
			return nil, appErrors.Clone(appErrors.ErrConfiguration, fmt.Sprintf("subject %s has a negative weight for %s", subjectID, category))
		}
	}
	if err := validateScaleBands(config.LetterGradeScale); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrConfiguration.Code, appErrors.ErrConfiguration.Status, fmt.Sprintf("invalid letter grade scale on subject %s", subjectID))
	}
	return config, nil
}

func validateCGPATable(table []models.CGPAGradePoint) error {
	for i, band := range table {
		if band.MinPercentage > band.MaxPercentage {
			return fmt.Errorf("band %s is inverted", band.Grade)
		}
		if i > 0 && band.MinPercentage <= table[i-1].MaxPercentage {
			return fmt.Errorf("band %s overlaps %s", band.Grade, table[i-1].Grade)
		}
	}
	return nil
}

func validateScaleBands(bands []models.GradingScaleBand) error {
	for i, band := range bands {
		if band.MinPercentage > band.MaxPercentage {
			return fmt.Errorf("band %s is inverted", band.Grade)
		}
		if i > 0 && band.MinPercentage <= bands[i-1].MaxPercentage {
			return fmt.Errorf("band %s overlaps %s", band.Grade, bands[i-1].Grade)
		}
	}
	return nil
}
