package service

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-gradebook-api/internal/models"
	"github.com/noah-isme/sma-gradebook-api/pkg/config"
	appErrors "github.com/noah-isme/sma-gradebook-api/pkg/errors"
)

type attendanceReader interface {
	RateFor(ctx context.Context, studentID, subjectID string) (float64, error)
}

type submissionChecker interface {
	FindByAssessmentAndStudent(ctx context.Context, assessmentID, studentID string) (*models.Submission, error)
}

// GradeValidatorService checks grade entries and batch configurations
// against the subject policy. Validation accumulates every violation
// instead of stopping at the first so callers can report all of them.
type GradeValidatorService struct {
	attendance  attendanceReader
	submissions submissionChecker
	cfg         config.GradingConfig
	logger      *zap.Logger
}

// NewGradeValidatorService constructs GradeValidatorService.
func NewGradeValidatorService(attendance attendanceReader, submissions submissionChecker, cfg config.GradingConfig, logger *zap.Logger) *GradeValidatorService {
	if cfg.WeightageSumTolerance <= 0 {
		cfg.WeightageSumTolerance = 0.01
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradeValidatorService{
		attendance:  attendance,
		submissions: submissions,
		cfg:         cfg,
		logger:      logger,
	}
}

// ValidateGradeEntry checks one pending grade write. A zero grade on a
// required assessment counts as missing; other required assessments must
// already carry a graded submission.
func (s *GradeValidatorService) ValidateGradeEntry(ctx context.Context, studentID, subjectID, assessmentID string, grade float64, cfg *models.SubjectAssessmentConfig) (*models.GradeValidationResult, error) {
	result := &models.GradeValidationResult{IsValid: true}

	if grade < 0 || grade > 100 {
		result.Errors = append(result.Errors, models.GradeValidationIssue{
			Code:    models.ValidationCodeRange,
			Message: fmt.Sprintf("grade %.2f is outside the 0-100 range", grade),
		})
	}

	if cfg != nil {
		for _, requiredID := range cfg.PassingCriteria.RequiredAssessments {
			if requiredID == assessmentID {
				if grade == 0 {
					result.Errors = append(result.Errors, models.GradeValidationIssue{
						Code:    models.ValidationCodeMissingRequired,
						Message: fmt.Sprintf("required assessment %s has no grade", requiredID),
					})
				}
				continue
			}
			submission, err := s.submissions.FindByAssessmentAndStudent(ctx, requiredID, studentID)
			if err == sql.ErrNoRows {
				submission = nil
			} else if err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrDataAccess.Code, appErrors.ErrDataAccess.Status, "failed to check required assessment")
			}
			if submission == nil || submission.Status != models.SubmissionStatusGraded || submission.ObtainedMarks == nil {
				result.Errors = append(result.Errors, models.GradeValidationIssue{
					Code:    models.ValidationCodeMissingRequired,
					Message: fmt.Sprintf("required assessment %s has no grade", requiredID),
				})
			}
		}

		if min := cfg.PassingCriteria.MinAttendance; min != nil {
			rate, err := s.attendance.RateFor(ctx, studentID, subjectID)
			if err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrDataAccess.Code, appErrors.ErrDataAccess.Status, "failed to load attendance rate")
			}
			if rate < *min {
				result.Errors = append(result.Errors, models.GradeValidationIssue{
					Code:    models.ValidationCodeAttendance,
					Message: fmt.Sprintf("attendance %.1f%% is below the required %.1f%%", rate, *min),
				})
			}
		}
	}

	result.IsValid = len(result.Errors) == 0
	if !result.IsValid {
		s.logger.Debug("grade entry failed validation",
			zap.String("student_id", studentID),
			zap.String("assessment_id", assessmentID),
			zap.Int("violations", len(result.Errors)))
	}
	return result, nil
}

// ValidateBatchOperation checks a subject configuration before a batch run:
// category weights must be non-negative and sum to 100 within tolerance.
func (s *GradeValidatorService) ValidateBatchOperation(ctx context.Context, cfg *models.SubjectAssessmentConfig) (*models.GradeValidationResult, error) {
	result := &models.GradeValidationResult{IsValid: true}
	if cfg == nil {
		return nil, appErrors.Clone(appErrors.ErrConfiguration, "subject has no assessment configuration")
	}

	for category, weight := range cfg.WeightageDistribution {
		if weight < 0 {
			result.Errors = append(result.Errors, models.GradeValidationIssue{
				Code:    models.ValidationCodeWeightageNegative,
				Message: fmt.Sprintf("category %s has negative weight %.2f", category, weight),
			})
		}
	}
	if sum := cfg.WeightageDistribution.Sum(); math.Abs(sum-100) > s.cfg.WeightageSumTolerance {
		result.Errors = append(result.Errors, models.GradeValidationIssue{
			Code:    models.ValidationCodeWeightageSum,
			Message: fmt.Sprintf("category weights sum to %.2f, expected 100", sum),
		})
	}

	result.IsValid = len(result.Errors) == 0
	return result, nil
}
