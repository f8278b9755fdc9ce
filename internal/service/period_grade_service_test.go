package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-gradebook-api/internal/models"
)

type mockSubmissionReader struct {
	submissions []models.Submission
}

func (m *mockSubmissionReader) ListForStudent(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, error) {
	return m.submissions, nil
}

type mockAssessmentReader struct {
	assessments map[string]models.Assessment
}

func (m *mockAssessmentReader) FindByIDs(ctx context.Context, ids []string) (map[string]models.Assessment, error) {
	found := make(map[string]models.Assessment, len(ids))
	for _, id := range ids {
		if assessment, ok := m.assessments[id]; ok {
			found[id] = assessment
		}
	}
	return found, nil
}

type mockSystemProvider struct {
	system *models.AssessmentSystem
}

func (m *mockSystemProvider) AssessmentSystem(ctx context.Context, id string) (*models.AssessmentSystem, error) {
	return m.system, nil
}

type rawScoring struct{}

func (rawScoring) PercentageFor(ctx context.Context, assessment models.Assessment, submission models.Submission) (float64, error) {
	return rawPercentage(submission.ObtainedMarks, assessment.TotalPoints), nil
}

func (rawScoring) GradePointsFor(percentage float64, system *models.AssessmentSystem) float64 {
	if system == nil {
		return 0
	}
	if percentage >= 80 {
		return 4
	}
	return 0
}

func periodConfig(weights models.WeightageDistribution) *models.SubjectAssessmentConfig {
	return &models.SubjectAssessmentConfig{
		SubjectID:             "subj-1",
		WeightageDistribution: weights,
	}
}

func newPeriodService(subs []models.Submission, assessments map[string]models.Assessment) *PeriodGradeService {
	return NewPeriodGradeService(
		&mockSubmissionReader{submissions: subs},
		&mockAssessmentReader{assessments: assessments},
		&mockSystemProvider{system: &models.AssessmentSystem{ID: "sys-1"}},
		rawScoring{},
		1, 50, nil,
	)
}

func TestPeriodGradeWeightedAverage(t *testing.T) {
	assessments := map[string]models.Assessment{
		"a1": {ID: "a1", Type: "exam", TotalPoints: 100},
		"a2": {ID: "a2", Type: "quiz", TotalPoints: 100},
		"a3": {ID: "a3", Type: "assignment", TotalPoints: 100},
	}
	subs := []models.Submission{
		{ID: "s1", AssessmentID: "a1", ObtainedMarks: floatPtr(100)},
		{ID: "s2", AssessmentID: "a2", ObtainedMarks: floatPtr(50)},
		{ID: "s3", AssessmentID: "a3", ObtainedMarks: floatPtr(0)},
	}
	svc := newPeriodService(subs, assessments)

	grade, err := svc.Calculate(context.Background(), "subj-1", "p1", "stu-1", "sys-1",
		periodConfig(models.WeightageDistribution{"exam": 2, "quiz": 1, "assignment": 1}))
	require.NoError(t, err)

	// (100*2 + 50*1 + 0*1) / 4
	assert.InDelta(t, 62.5, grade.Percentage, 0.0001)
	assert.InDelta(t, 150, grade.ObtainedMarks, 0.0001)
	assert.InDelta(t, 300, grade.TotalMarks, 0.0001)
	assert.True(t, grade.IsPassing)
	assert.False(t, grade.Ungraded)
}

func TestPeriodGradeUnknownCategoryFallsBackToDefaultWeight(t *testing.T) {
	assessments := map[string]models.Assessment{
		"a1": {ID: "a1", Type: "exam", TotalPoints: 100},
		"a2": {ID: "a2", Type: "fieldtrip", TotalPoints: 100},
	}
	subs := []models.Submission{
		{ID: "s1", AssessmentID: "a1", ObtainedMarks: floatPtr(90)},
		{ID: "s2", AssessmentID: "a2", ObtainedMarks: floatPtr(50)},
	}
	svc := newPeriodService(subs, assessments)

	grade, err := svc.Calculate(context.Background(), "subj-1", "p1", "stu-1", "sys-1",
		periodConfig(models.WeightageDistribution{"exam": 1}))
	require.NoError(t, err)

	// The uncategorized assessment counts once at the default weight.
	assert.InDelta(t, 70, grade.Percentage, 0.0001)
}

func TestPeriodGradeEmptyPeriodIsUngraded(t *testing.T) {
	svc := newPeriodService(nil, nil)

	grade, err := svc.Calculate(context.Background(), "subj-1", "p1", "stu-1", "sys-1",
		periodConfig(models.WeightageDistribution{}))
	require.NoError(t, err)

	assert.Zero(t, grade.Percentage)
	assert.True(t, grade.Ungraded)
	assert.False(t, grade.IsPassing, "ungraded period must never count as passing")
}

func TestPeriodGradeGenuineZeroIsNotUngraded(t *testing.T) {
	assessments := map[string]models.Assessment{
		"a1": {ID: "a1", Type: "exam", TotalPoints: 100},
	}
	subs := []models.Submission{
		{ID: "s1", AssessmentID: "a1", ObtainedMarks: floatPtr(0)},
	}
	svc := newPeriodService(subs, assessments)

	grade, err := svc.Calculate(context.Background(), "subj-1", "p1", "stu-1", "sys-1",
		periodConfig(models.WeightageDistribution{"exam": 1}))
	require.NoError(t, err)

	assert.Zero(t, grade.Percentage)
	assert.False(t, grade.Ungraded)
	assert.False(t, grade.IsPassing)
}

func TestPeriodGradeSkipsUnresolvableAssessments(t *testing.T) {
	assessments := map[string]models.Assessment{
		"a1": {ID: "a1", Type: "exam", TotalPoints: 100},
	}
	subs := []models.Submission{
		{ID: "s1", AssessmentID: "a1", ObtainedMarks: floatPtr(80)},
		{ID: "s2", AssessmentID: "deleted", ObtainedMarks: floatPtr(10)},
	}
	svc := newPeriodService(subs, assessments)

	grade, err := svc.Calculate(context.Background(), "subj-1", "p1", "stu-1", "sys-1",
		periodConfig(models.WeightageDistribution{"exam": 1}))
	require.NoError(t, err)

	assert.InDelta(t, 80, grade.Percentage, 0.0001)
	assert.InDelta(t, 100, grade.TotalMarks, 0.0001)
}

func TestPeriodGradeRequiresConfig(t *testing.T) {
	svc := newPeriodService(nil, nil)
	_, err := svc.Calculate(context.Background(), "subj-1", "p1", "stu-1", "sys-1", nil)
	require.Error(t, err)
}
