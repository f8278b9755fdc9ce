package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-gradebook-api/internal/models"
	appErrors "github.com/noah-isme/sma-gradebook-api/pkg/errors"
)

type submissionReader interface {
	ListForStudent(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, error)
}

type assessmentReader interface {
	FindByIDs(ctx context.Context, ids []string) (map[string]models.Assessment, error)
}

type systemProvider interface {
	AssessmentSystem(ctx context.Context, id string) (*models.AssessmentSystem, error)
}

type percentageResolver interface {
	PercentageFor(ctx context.Context, assessment models.Assessment, submission models.Submission) (float64, error)
	GradePointsFor(percentage float64, system *models.AssessmentSystem) float64
}

// PeriodGradeService aggregates a student's submissions for one subject
// within one assessment period into a weighted percentage and pass verdict.
type PeriodGradeService struct {
	submissions submissionReader
	assessments assessmentReader
	systems     systemProvider
	scoring     percentageResolver
	logger      *zap.Logger

	defaultCategoryWeight float64
	defaultPassingPct     float64
}

// NewPeriodGradeService constructs PeriodGradeService.
func NewPeriodGradeService(submissions submissionReader, assessments assessmentReader, systems systemProvider, scoring percentageResolver, defaultCategoryWeight, defaultPassingPct float64, logger *zap.Logger) *PeriodGradeService {
	if defaultCategoryWeight <= 0 {
		defaultCategoryWeight = 1
	}
	if defaultPassingPct <= 0 {
		defaultPassingPct = 50
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PeriodGradeService{
		submissions:           submissions,
		assessments:           assessments,
		systems:               systems,
		scoring:               scoring,
		logger:                logger,
		defaultCategoryWeight: defaultCategoryWeight,
		defaultPassingPct:     defaultPassingPct,
	}
}

// Calculate computes the period grade. Submissions whose parent assessment
// cannot be resolved are skipped. A period with no contributing submissions
// reports 0% and is flagged Ungraded so callers can distinguish "not yet
// assessed" from "scored zero".
func (s *PeriodGradeService) Calculate(ctx context.Context, subjectID, periodID, studentID, assessmentSystemID string, config *models.SubjectAssessmentConfig) (*models.AssessmentPeriodGrade, error) {
	if config == nil {
		return nil, appErrors.Clone(appErrors.ErrConfiguration, "subject config required for period calculation")
	}

	submissions, err := s.submissions.ListForStudent(ctx, models.SubmissionFilter{
		StudentID: studentID,
		SubjectID: subjectID,
		PeriodID:  periodID,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrDataAccess.Code, appErrors.ErrDataAccess.Status, "failed to list submissions")
	}

	assessmentIDs := make([]string, 0, len(submissions))
	for _, submission := range submissions {
		assessmentIDs = append(assessmentIDs, submission.AssessmentID)
	}
	assessments, err := s.assessments.FindByIDs(ctx, assessmentIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrDataAccess.Code, appErrors.ErrDataAccess.Status, "failed to resolve assessments")
	}

	totalWeightedScore := 0.0
	totalWeight := 0.0
	obtainedMarks := 0.0
	totalMarks := 0.0
	scored := 0
	for _, submission := range submissions {
		assessment, ok := assessments[submission.AssessmentID]
		if !ok {
			s.logger.Debug("skipping submission with unresolvable assessment",
				zap.String("submission_id", submission.ID),
				zap.String("assessment_id", submission.AssessmentID))
			continue
		}
		percentage, err := s.scoring.PercentageFor(ctx, assessment, submission)
		if err != nil {
			return nil, err
		}
		weight := config.WeightageDistribution.WeightFor(assessment.Type, s.defaultCategoryWeight)
		totalWeightedScore += percentage * weight
		totalWeight += weight
		obtainedMarks += percentage / 100 * assessment.TotalPoints
		totalMarks += assessment.TotalPoints
		scored++
	}

	percentage := 0.0
	if totalWeight > 0 {
		percentage = clampPercentage(totalWeightedScore / totalWeight)
	}

	system, err := s.systems.AssessmentSystem(ctx, assessmentSystemID)
	if err != nil {
		return nil, err
	}

	grade := &models.AssessmentPeriodGrade{
		PeriodID:      periodID,
		ObtainedMarks: obtainedMarks,
		TotalMarks:    totalMarks,
		Percentage:    percentage,
		IsPassing:     scored > 0 && percentage >= config.PassingThreshold(s.defaultPassingPct),
		GradePoints:   s.scoring.GradePointsFor(percentage, system),
		Ungraded:      scored == 0,
	}
	return grade, nil
}
