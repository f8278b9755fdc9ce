package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-gradebook-api/internal/models"
)

type scoringConfigProvider interface {
	MarkingScheme(ctx context.Context, id string) (*models.MarkingScheme, error)
	Rubric(ctx context.Context, id string) (*models.Rubric, error)
}

// ScoringService converts raw submission scores into normalized percentages
// and grade points according to the assessment's scoring mechanism.
type ScoringService struct {
	configs scoringConfigProvider
	logger  *zap.Logger
}

// NewScoringService constructs ScoringService.
func NewScoringService(configs scoringConfigProvider, logger *zap.Logger) *ScoringService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScoringService{configs: configs, logger: logger}
}

// PercentageFor resolves the submission's normalized percentage in [0,100].
//
// Marking-scheme assessments snap the raw percentage to the midpoint of the
// matching grading-scale band so two scores inside one band compare as
// equal; a percentage falling into a gap of the scale keeps its raw value.
// Rubric assessments score awarded points over the max points of the scored
// criteria only, so partial rubrics are tolerated. Everything else is plain
// obtained/total.
func (s *ScoringService) PercentageFor(ctx context.Context, assessment models.Assessment, submission models.Submission) (float64, error) {
	switch {
	case assessment.MarkingSchemeID != nil:
		scheme, err := s.configs.MarkingScheme(ctx, *assessment.MarkingSchemeID)
		if err != nil {
			return 0, err
		}
		raw := rawPercentage(submission.ObtainedMarks, assessment.TotalPoints)
		for _, band := range scheme.GradingScale {
			if band.Contains(raw) {
				return clampPercentage(band.Midpoint()), nil
			}
		}
		return clampPercentage(raw), nil

	case assessment.RubricID != nil:
		rubric, err := s.configs.Rubric(ctx, *assessment.RubricID)
		if err != nil {
			return 0, err
		}
		return s.rubricPercentage(rubric, submission.RubricScores), nil

	default:
		return clampPercentage(rawPercentage(submission.ObtainedMarks, assessment.TotalPoints)), nil
	}
}

// GradePointsFor looks up the CGPA band containing the percentage. Systems
// without a CGPA table, and percentages falling into a gap, yield 0.
func (s *ScoringService) GradePointsFor(percentage float64, system *models.AssessmentSystem) float64 {
	if system == nil || len(system.CGPAGradePoints) == 0 {
		return 0
	}
	for _, band := range system.CGPAGradePoints {
		if percentage >= band.MinPercentage && percentage <= band.MaxPercentage {
			return band.Points
		}
	}
	return 0
}

// rubricPercentage scores awarded criterion points over the max points of
// the same criteria. Criteria without a matching score entry contribute to
// neither sum.
func (s *ScoringService) rubricPercentage(rubric *models.Rubric, scores []models.RubricScore) float64 {
	scoreByCriteria := make(map[string]string, len(scores))
	for _, score := range scores {
		scoreByCriteria[score.CriteriaID] = score.LevelID
	}

	awarded := 0.0
	possible := 0.0
	for _, criteria := range rubric.Criteria {
		levelID, ok := scoreByCriteria[criteria.ID]
		if !ok {
			continue
		}
		level, found := findLevel(criteria, levelID)
		if !found {
			s.logger.Warn("rubric score references unknown level",
				zap.String("rubric_id", rubric.ID),
				zap.String("criteria_id", criteria.ID),
				zap.String("level_id", levelID))
			continue
		}
		awarded += level.Points
		possible += criteria.MaxPoints()
	}
	if possible <= 0 {
		return 0
	}
	return clampPercentage(awarded / possible * 100)
}

func findLevel(criteria models.RubricCriteria, levelID string) (models.RubricLevel, bool) {
	for _, level := range criteria.Levels {
		if level.ID == levelID {
			return level, true
		}
	}
	return models.RubricLevel{}, false
}

// rawPercentage guards the division so a zero-point assessment or an
// ungraded submission yields 0, never NaN.
func rawPercentage(obtainedMarks *float64, totalPoints float64) float64 {
	if obtainedMarks == nil || totalPoints <= 0 {
		return 0
	}
	return *obtainedMarks / totalPoints * 100
}

func clampPercentage(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 100 {
		return 100
	}
	return value
}
