package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-gradebook-api/internal/models"
)

type mockTermCalculator struct {
	grades map[string]*models.SubjectTermGrade
}

func (m *mockTermCalculator) Calculate(ctx context.Context, subjectID, termID, studentID, assessmentSystemID string) (*models.SubjectTermGrade, error) {
	return m.grades[subjectID], nil
}

type mockTermResultWriter struct {
	upserts []models.TermResult
}

func (m *mockTermResultWriter) Upsert(ctx context.Context, result *models.TermResult) error {
	m.upserts = append(m.upserts, *result)
	return nil
}

func TestCumulativeGradeCreditWeightedGPA(t *testing.T) {
	calc := &mockTermCalculator{grades: map[string]*models.SubjectTermGrade{
		"math":    {TermID: "t1", GradePoints: 4, Credits: 4, IsPassing: true, Percentage: 92},
		"history": {TermID: "t1", GradePoints: 2, Credits: 2, IsPassing: true, Percentage: 65},
		"art":     {TermID: "t1", GradePoints: 0, Credits: 1, IsPassing: false, Percentage: 30},
	}}
	writer := &mockTermResultWriter{}
	svc := NewCumulativeGradeService(calc, writer, nil)

	subjects := []models.Subject{{ID: "math"}, {ID: "history"}, {ID: "art"}}
	cumulative, err := svc.Calculate(context.Background(), subjects, "t1", "stu-1", "sys-1")
	require.NoError(t, err)

	// (4*4 + 2*2 + 0*1) / 7
	assert.InDelta(t, 20.0/7.0, cumulative.GPA, 0.0001)
	assert.InDelta(t, 7, cumulative.TotalCredits, 0.0001)
	assert.InDelta(t, 6, cumulative.EarnedCredits, 0.0001)
	assert.Len(t, cumulative.SubjectGrades, 3)

	require.Len(t, writer.upserts, 1)
	assert.Equal(t, "stu-1", writer.upserts[0].StudentID)
	assert.Equal(t, "t1", writer.upserts[0].TermID)
	assert.InDelta(t, cumulative.GPA, writer.upserts[0].GPA, 0.0001)
}

func TestCumulativeGradeNoSubjects(t *testing.T) {
	svc := NewCumulativeGradeService(&mockTermCalculator{}, &mockTermResultWriter{}, nil)

	cumulative, err := svc.Calculate(context.Background(), nil, "t1", "stu-1", "sys-1")
	require.NoError(t, err)

	assert.Zero(t, cumulative.GPA)
	assert.Zero(t, cumulative.TotalCredits)
}

func TestCumulativeGradeRecalculationIsIdempotent(t *testing.T) {
	calc := &mockTermCalculator{grades: map[string]*models.SubjectTermGrade{
		"math": {TermID: "t1", GradePoints: 3, Credits: 3, IsPassing: true},
	}}
	writer := &mockTermResultWriter{}
	svc := NewCumulativeGradeService(calc, writer, nil)

	subjects := []models.Subject{{ID: "math"}}
	first, err := svc.Calculate(context.Background(), subjects, "t1", "stu-1", "sys-1")
	require.NoError(t, err)
	second, err := svc.Calculate(context.Background(), subjects, "t1", "stu-1", "sys-1")
	require.NoError(t, err)

	assert.Equal(t, first.GPA, second.GPA)
	// Both runs target the same (student, term) key.
	require.Len(t, writer.upserts, 2)
	assert.Equal(t, writer.upserts[0].StudentID, writer.upserts[1].StudentID)
	assert.Equal(t, writer.upserts[0].TermID, writer.upserts[1].TermID)
}
