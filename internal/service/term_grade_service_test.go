package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-gradebook-api/internal/models"
	"github.com/noah-isme/sma-gradebook-api/pkg/cache"
)

type mockTermPeriodReader struct {
	periods []models.TermAssessmentPeriod
}

func (m *mockTermPeriodReader) ListPeriodsByTerm(ctx context.Context, termID string) ([]models.TermAssessmentPeriod, error) {
	return m.periods, nil
}

type mockSubjectReader struct {
	subject *models.Subject
}

func (m *mockSubjectReader) FindSubject(ctx context.Context, id string) (*models.Subject, error) {
	return m.subject, nil
}

type mockGradingConfigs struct {
	config *models.SubjectAssessmentConfig
	system *models.AssessmentSystem
}

func (m *mockGradingConfigs) SubjectConfig(ctx context.Context, subjectID string) (*models.SubjectAssessmentConfig, error) {
	return m.config, nil
}

func (m *mockGradingConfigs) AssessmentSystem(ctx context.Context, id string) (*models.AssessmentSystem, error) {
	return m.system, nil
}

type mockPeriodCalc struct {
	grades map[string]models.AssessmentPeriodGrade
	calls  int
}

func (m *mockPeriodCalc) Calculate(ctx context.Context, subjectID, periodID, studentID, assessmentSystemID string, config *models.SubjectAssessmentConfig) (*models.AssessmentPeriodGrade, error) {
	m.calls++
	grade := m.grades[periodID]
	return &grade, nil
}

func newTermService(periods []models.TermAssessmentPeriod, periodGrades map[string]models.AssessmentPeriodGrade, memo *cache.Memory) (*TermGradeService, *mockPeriodCalc) {
	calc := &mockPeriodCalc{grades: periodGrades}
	svc := NewTermGradeService(
		&mockTermPeriodReader{periods: periods},
		&mockSubjectReader{subject: &models.Subject{ID: "subj-1", Credits: 3}},
		&mockGradingConfigs{
			config: &models.SubjectAssessmentConfig{
				SubjectID: "subj-1",
				LetterGradeScale: []models.GradingScaleBand{
					{Grade: "A", MinPercentage: 80, MaxPercentage: 100},
					{Grade: "B", MinPercentage: 60, MaxPercentage: 79.99},
				},
			},
			system: &models.AssessmentSystem{ID: "sys-1"},
		},
		calc,
		rawScoring{},
		memo,
		50,
		nil,
	)
	return svc, calc
}

func TestTermGradeCombinesWeightedPeriods(t *testing.T) {
	periods := []models.TermAssessmentPeriod{
		{ID: "p1", Weight: 30},
		{ID: "p2", Weight: 70},
	}
	grades := map[string]models.AssessmentPeriodGrade{
		"p1": {PeriodID: "p1", Percentage: 60, TotalMarks: 100},
		"p2": {PeriodID: "p2", Percentage: 90, TotalMarks: 200},
	}
	svc, _ := newTermService(periods, grades, nil)

	grade, err := svc.Calculate(context.Background(), "subj-1", "t1", "stu-1", "sys-1")
	require.NoError(t, err)

	// (60*30 + 90*70) / 100
	assert.InDelta(t, 81, grade.Percentage, 0.0001)
	assert.Equal(t, "A", grade.FinalGrade)
	assert.Equal(t, 3.0, grade.Credits)
	assert.InDelta(t, 300, grade.TotalMarks, 0.0001)
	assert.True(t, grade.IsPassing)
	assert.Len(t, grade.PeriodGrades, 2)
	assert.Equal(t, 30.0, grade.PeriodGrades["p1"].Weight)
}

func TestTermGradeZeroTotalWeightYieldsZero(t *testing.T) {
	periods := []models.TermAssessmentPeriod{
		{ID: "p1", Weight: 0},
	}
	grades := map[string]models.AssessmentPeriodGrade{
		"p1": {PeriodID: "p1", Percentage: 95, TotalMarks: 100},
	}
	svc, _ := newTermService(periods, grades, nil)

	grade, err := svc.Calculate(context.Background(), "subj-1", "t1", "stu-1", "sys-1")
	require.NoError(t, err)

	assert.Zero(t, grade.Percentage)
	assert.False(t, grade.IsPassing)
	// The zero-weight period still reports its marks.
	assert.InDelta(t, 100, grade.TotalMarks, 0.0001)
}

func TestTermGradeMemoizesUntilInvalidated(t *testing.T) {
	periods := []models.TermAssessmentPeriod{{ID: "p1", Weight: 100}}
	grades := map[string]models.AssessmentPeriodGrade{
		"p1": {PeriodID: "p1", Percentage: 70, TotalMarks: 100},
	}
	memo := cache.NewMemory(5*time.Minute, 10)
	svc, calc := newTermService(periods, grades, memo)

	_, err := svc.Calculate(context.Background(), "subj-1", "t1", "stu-1", "sys-1")
	require.NoError(t, err)
	_, err = svc.Calculate(context.Background(), "subj-1", "t1", "stu-1", "sys-1")
	require.NoError(t, err)
	assert.Equal(t, 1, calc.calls, "second calculation must be served from the memo")

	svc.Invalidate("stu-1", "subj-1", "t1")
	_, err = svc.Calculate(context.Background(), "subj-1", "t1", "stu-1", "sys-1")
	require.NoError(t, err)
	assert.Equal(t, 2, calc.calls)
}
