package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-gradebook-api/internal/models"
	appErrors "github.com/noah-isme/sma-gradebook-api/pkg/errors"
)

type termCalculator interface {
	Calculate(ctx context.Context, subjectID, termID, studentID, assessmentSystemID string) (*models.SubjectTermGrade, error)
}

type termResultWriter interface {
	Upsert(ctx context.Context, result *models.TermResult) error
}

// CumulativeGradeService rolls a student's subject-term grades across all
// class subjects into a credit-weighted GPA and persists the term result.
type CumulativeGradeService struct {
	termGrades termCalculator
	results    termResultWriter
	logger     *zap.Logger
}

// NewCumulativeGradeService constructs CumulativeGradeService.
func NewCumulativeGradeService(termGrades termCalculator, results termResultWriter, logger *zap.Logger) *CumulativeGradeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CumulativeGradeService{termGrades: termGrades, results: results, logger: logger}
}

// Calculate computes the cumulative grade over the given class subjects and
// persists the term result. The upsert is keyed on (student, term) so the
// calculation is safe to run any number of times.
func (s *CumulativeGradeService) Calculate(ctx context.Context, subjects []models.Subject, termID, studentID, assessmentSystemID string) (*models.CumulativeGrade, error) {
	cumulative := &models.CumulativeGrade{
		StudentID:     studentID,
		TermID:        termID,
		SubjectGrades: make(map[string]models.SubjectTermGrade, len(subjects)),
	}

	totalGradePoints := 0.0
	for _, subject := range subjects {
		grade, err := s.termGrades.Calculate(ctx, subject.ID, termID, studentID, assessmentSystemID)
		if err != nil {
			return nil, err
		}
		cumulative.SubjectGrades[subject.ID] = *grade

		totalGradePoints += grade.GradePoints * grade.Credits
		cumulative.TotalCredits += grade.Credits
		if grade.IsPassing {
			cumulative.EarnedCredits += grade.Credits
		}
	}

	if cumulative.TotalCredits > 0 {
		cumulative.GPA = totalGradePoints / cumulative.TotalCredits
	}

	result := &models.TermResult{
		StudentID:     studentID,
		TermID:        termID,
		GPA:           cumulative.GPA,
		TotalCredits:  cumulative.TotalCredits,
		EarnedCredits: cumulative.EarnedCredits,
	}
	if err := s.results.Upsert(ctx, result); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrDataAccess.Code, appErrors.ErrDataAccess.Status, "failed to persist term result")
	}

	s.logger.Debug("cumulative grade calculated",
		zap.String("student_id", studentID),
		zap.String("term_id", termID),
		zap.Float64("gpa", cumulative.GPA),
		zap.Float64("earned_credits", cumulative.EarnedCredits))
	return cumulative, nil
}
