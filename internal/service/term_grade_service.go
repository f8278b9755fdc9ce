package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-gradebook-api/internal/models"
	"github.com/noah-isme/sma-gradebook-api/pkg/cache"
	appErrors "github.com/noah-isme/sma-gradebook-api/pkg/errors"
)

type periodCalculator interface {
	Calculate(ctx context.Context, subjectID, periodID, studentID, assessmentSystemID string, config *models.SubjectAssessmentConfig) (*models.AssessmentPeriodGrade, error)
}

type termPeriodReader interface {
	ListPeriodsByTerm(ctx context.Context, termID string) ([]models.TermAssessmentPeriod, error)
}

type subjectReader interface {
	FindSubject(ctx context.Context, id string) (*models.Subject, error)
}

type gradingConfigProvider interface {
	SubjectConfig(ctx context.Context, subjectID string) (*models.SubjectAssessmentConfig, error)
	AssessmentSystem(ctx context.Context, id string) (*models.AssessmentSystem, error)
}

// TermGradeService combines a subject's period grades across a term into the
// subject-term grade. Results are memoized per (student, subject, term) in a
// bounded TTL cache; any grade write for the triple must invalidate first.
type TermGradeService struct {
	terms    termPeriodReader
	subjects subjectReader
	configs  gradingConfigProvider
	periods  periodCalculator
	scoring  percentageResolver
	memo     *cache.Memory
	logger   *zap.Logger

	defaultPassingPct float64
}

// NewTermGradeService constructs TermGradeService. The memo cache may be nil
// to disable memoization.
func NewTermGradeService(terms termPeriodReader, subjects subjectReader, configs gradingConfigProvider, periods periodCalculator, scoring percentageResolver, memo *cache.Memory, defaultPassingPct float64, logger *zap.Logger) *TermGradeService {
	if defaultPassingPct <= 0 {
		defaultPassingPct = 50
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TermGradeService{
		terms:             terms,
		subjects:          subjects,
		configs:           configs,
		periods:           periods,
		scoring:           scoring,
		memo:              memo,
		logger:            logger,
		defaultPassingPct: defaultPassingPct,
	}
}

// Calculate returns the subject-term grade, serving a live memoized result
// when one exists.
func (s *TermGradeService) Calculate(ctx context.Context, subjectID, termID, studentID, assessmentSystemID string) (*models.SubjectTermGrade, error) {
	if s.memo == nil {
		return s.calculate(ctx, subjectID, termID, studentID, assessmentSystemID)
	}
	value, err := s.memo.GetOrSet(cache.Key(studentID, subjectID, termID), func() (interface{}, error) {
		return s.calculate(ctx, subjectID, termID, studentID, assessmentSystemID)
	})
	if err != nil {
		return nil, err
	}
	grade, ok := value.(*models.SubjectTermGrade)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrInternal, "unexpected cached grade type")
	}
	return grade, nil
}

// Invalidate drops the memoized grade for the triple. Called after every
// submission write so the next calculation sees current data.
func (s *TermGradeService) Invalidate(studentID, subjectID, termID string) {
	if s.memo != nil {
		s.memo.Invalidate(cache.Key(studentID, subjectID, termID))
	}
}

func (s *TermGradeService) calculate(ctx context.Context, subjectID, termID, studentID, assessmentSystemID string) (*models.SubjectTermGrade, error) {
	config, err := s.configs.SubjectConfig(ctx, subjectID)
	if err != nil {
		return nil, err
	}

	periods, err := s.terms.ListPeriodsByTerm(ctx, termID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrDataAccess.Code, appErrors.ErrDataAccess.Status, "failed to list term periods")
	}

	periodGrades := make(map[string]models.AssessmentPeriodGrade, len(periods))
	totalWeightedScore := 0.0
	totalWeight := 0.0
	totalMarks := 0.0
	for _, period := range periods {
		grade, err := s.periods.Calculate(ctx, subjectID, period.ID, studentID, assessmentSystemID, config)
		if err != nil {
			return nil, err
		}
		grade.Weight = period.Weight
		periodGrades[period.ID] = *grade

		// Zero-weight periods stay out of the average but still count
		// toward the diagnostic total.
		totalWeightedScore += grade.Percentage * period.Weight
		totalWeight += period.Weight
		totalMarks += grade.TotalMarks
	}

	percentage := 0.0
	if totalWeight > 0 {
		percentage = clampPercentage(totalWeightedScore / totalWeight)
	}

	subject, err := s.subjects.FindSubject(ctx, subjectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrDataAccess.Code, appErrors.ErrDataAccess.Status, "failed to load subject")
	}
	system, err := s.configs.AssessmentSystem(ctx, assessmentSystemID)
	if err != nil {
		return nil, err
	}

	grade := &models.SubjectTermGrade{
		TermID:       termID,
		PeriodGrades: periodGrades,
		FinalGrade:   config.LetterGradeFor(percentage),
		Percentage:   percentage,
		TotalMarks:   totalMarks,
		IsPassing:    percentage >= config.PassingThreshold(s.defaultPassingPct),
		GradePoints:  s.scoring.GradePointsFor(percentage, system),
		Credits:      subject.Credits,
		CalculatedAt: time.Now().UTC(),
	}
	return grade, nil
}
