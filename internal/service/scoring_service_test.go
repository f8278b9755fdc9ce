package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-gradebook-api/internal/models"
)

type mockScoringConfigs struct {
	schemes map[string]*models.MarkingScheme
	rubrics map[string]*models.Rubric
}

func (m *mockScoringConfigs) MarkingScheme(ctx context.Context, id string) (*models.MarkingScheme, error) {
	return m.schemes[id], nil
}

func (m *mockScoringConfigs) Rubric(ctx context.Context, id string) (*models.Rubric, error) {
	return m.rubrics[id], nil
}

func floatPtr(v float64) *float64 {
	return &v
}

func strPtr(v string) *string {
	return &v
}

func testMarkingScheme() *models.MarkingScheme {
	return &models.MarkingScheme{
		ID:       "ms-1",
		MaxMarks: 100,
		GradingScale: []models.GradingScaleBand{
			{Grade: "A", MinPercentage: 80, MaxPercentage: 100},
			{Grade: "B", MinPercentage: 70, MaxPercentage: 79},
			{Grade: "C", MinPercentage: 50, MaxPercentage: 69},
		},
	}
}

func TestPercentageForSnapsToBandMidpoint(t *testing.T) {
	svc := NewScoringService(&mockScoringConfigs{
		schemes: map[string]*models.MarkingScheme{"ms-1": testMarkingScheme()},
	}, nil)

	assessment := models.Assessment{TotalPoints: 100, MarkingSchemeID: strPtr("ms-1")}
	submission := models.Submission{ObtainedMarks: floatPtr(72)}

	pct, err := svc.PercentageFor(context.Background(), assessment, submission)
	require.NoError(t, err)
	// 72 lands in the 70-79 band, midpoint 74.5.
	assert.InDelta(t, 74.5, pct, 0.0001)

	// Another score in the same band snaps to the same value.
	submission.ObtainedMarks = floatPtr(78)
	pct2, err := svc.PercentageFor(context.Background(), assessment, submission)
	require.NoError(t, err)
	assert.Equal(t, pct, pct2)
}

func TestPercentageForKeepsRawValueInScaleGap(t *testing.T) {
	svc := NewScoringService(&mockScoringConfigs{
		schemes: map[string]*models.MarkingScheme{"ms-1": testMarkingScheme()},
	}, nil)

	assessment := models.Assessment{TotalPoints: 100, MarkingSchemeID: strPtr("ms-1")}
	submission := models.Submission{ObtainedMarks: floatPtr(79.5)}

	pct, err := svc.PercentageFor(context.Background(), assessment, submission)
	require.NoError(t, err)
	assert.InDelta(t, 79.5, pct, 0.0001)
}

func TestPercentageForRubricIgnoresUnscoredCriteria(t *testing.T) {
	rubric := &models.Rubric{
		ID: "rb-1",
		Criteria: []models.RubricCriteria{
			{ID: "c1", Levels: []models.RubricLevel{
				{ID: "c1-low", Points: 2},
				{ID: "c1-high", Points: 10},
				{ID: "c1-mid", Points: 6},
			}},
			{ID: "c2", Levels: []models.RubricLevel{
				{ID: "c2-low", Points: 5},
				{ID: "c2-high", Points: 20},
				{ID: "c2-mid", Points: 15},
			}},
			{ID: "c3", Levels: []models.RubricLevel{
				{ID: "c3-high", Points: 30},
			}},
		},
	}
	svc := NewScoringService(&mockScoringConfigs{
		rubrics: map[string]*models.Rubric{"rb-1": rubric},
	}, nil)

	assessment := models.Assessment{TotalPoints: 60, RubricID: strPtr("rb-1")}
	submission := models.Submission{RubricScores: []models.RubricScore{
		{CriteriaID: "c1", LevelID: "c1-mid"},
		{CriteriaID: "c2", LevelID: "c2-mid"},
	}}

	pct, err := svc.PercentageFor(context.Background(), assessment, submission)
	require.NoError(t, err)
	// (6+15)/(10+20): the unscored c3 contributes to neither sum.
	assert.InDelta(t, 70, pct, 0.0001)
}

func TestPercentageForRawScore(t *testing.T) {
	svc := NewScoringService(&mockScoringConfigs{}, nil)

	assessment := models.Assessment{TotalPoints: 40}
	pct, err := svc.PercentageFor(context.Background(), assessment, models.Submission{ObtainedMarks: floatPtr(30)})
	require.NoError(t, err)
	assert.InDelta(t, 75, pct, 0.0001)

	pct, err = svc.PercentageFor(context.Background(), assessment, models.Submission{})
	require.NoError(t, err)
	assert.Zero(t, pct)

	pct, err = svc.PercentageFor(context.Background(), models.Assessment{TotalPoints: 0}, models.Submission{ObtainedMarks: floatPtr(10)})
	require.NoError(t, err)
	assert.Zero(t, pct)
}

func TestGradePointsFor(t *testing.T) {
	system := &models.AssessmentSystem{
		Type: models.AssessmentSystemCGPA,
		CGPAGradePoints: []models.CGPAGradePoint{
			{Grade: "A", Points: 4, MinPercentage: 80, MaxPercentage: 100},
			{Grade: "B", Points: 3, MinPercentage: 60, MaxPercentage: 79.99},
		},
	}
	svc := NewScoringService(&mockScoringConfigs{}, nil)

	assert.Equal(t, 4.0, svc.GradePointsFor(85, system))
	assert.Equal(t, 3.0, svc.GradePointsFor(60, system))
	assert.Zero(t, svc.GradePointsFor(30, system))
	assert.Zero(t, svc.GradePointsFor(85, nil))
	assert.Zero(t, svc.GradePointsFor(85, &models.AssessmentSystem{}))
}
