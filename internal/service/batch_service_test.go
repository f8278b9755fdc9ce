package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-gradebook-api/internal/models"
	"github.com/noah-isme/sma-gradebook-api/pkg/config"
	appErrors "github.com/noah-isme/sma-gradebook-api/pkg/errors"
)

type mockBatchClassReader struct {
	class    *models.Class
	students []models.Student
	subjects []models.Subject
}

func (m *mockBatchClassReader) FindByID(ctx context.Context, id string) (*models.Class, error) {
	return m.class, nil
}

func (m *mockBatchClassReader) ListStudents(ctx context.Context, classID string) ([]models.Student, error) {
	return m.students, nil
}

func (m *mockBatchClassReader) ListSubjectsByClassGroup(ctx context.Context, classGroupID string) ([]models.Subject, error) {
	return m.subjects, nil
}

type mockRecordLister struct {
	records []models.SubjectGradeRecord
}

func (m *mockRecordLister) ListStudentRecordsByClass(ctx context.Context, classID string) ([]models.SubjectGradeRecord, error) {
	return m.records, nil
}

type mockCellRecalculator struct {
	mu       sync.Mutex
	failures map[string]int
	calls    map[string]int
}

func (m *mockCellRecalculator) RecalculateCell(ctx context.Context, classID, subjectID, studentID, termID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	key := studentID + "/" + subjectID
	m.calls[key]++
	if remaining, ok := m.failures[key]; ok && remaining > 0 {
		m.failures[key] = remaining - 1
		return appErrors.Clone(appErrors.ErrDataAccess, "transient failure")
	}
	return nil
}

func batchRoster(students, subjects int) (*mockBatchClassReader, int) {
	reader := &mockBatchClassReader{class: &models.Class{ID: "c1", ClassGroupID: "cg1"}}
	for i := 0; i < students; i++ {
		reader.students = append(reader.students, models.Student{ID: fmt.Sprintf("stu-%d", i)})
	}
	for i := 0; i < subjects; i++ {
		reader.subjects = append(reader.subjects, models.Subject{ID: fmt.Sprintf("subj-%d", i)})
	}
	return reader, students * subjects
}

func TestBatchRecalculationProcessesEveryCell(t *testing.T) {
	reader, total := batchRoster(10, 4)
	cells := &mockCellRecalculator{}
	svc := NewBatchRecalculationService(reader, &mockRecordLister{}, cells, nil,
		config.RecalcConfig{BatchSize: 7, MaxRetries: 3}, nil, nil)

	result, err := svc.ProcessBatchGradeCalculation(context.Background(), "c1", "t1")
	require.NoError(t, err)

	assert.Equal(t, total, result.Processed)
	assert.Equal(t, total, result.Succeeded)
	assert.Empty(t, result.Failed)
	assert.Len(t, cells.calls, total)
}

// fanoutBarrierCells only succeeds once `expect` cells are in flight at the
// same time, so a run that never widens to a full student batch fails.
type fanoutBarrierCells struct {
	mu      sync.Mutex
	arrived int
	expect  int
	release chan struct{}
}

func (f *fanoutBarrierCells) RecalculateCell(ctx context.Context, classID, subjectID, studentID, termID string) error {
	f.mu.Lock()
	f.arrived++
	if f.arrived == f.expect {
		close(f.release)
	}
	f.mu.Unlock()
	select {
	case <-f.release:
		return nil
	case <-time.After(2 * time.Second):
		return appErrors.Clone(appErrors.ErrValidation, "cell never joined a full student batch")
	}
}

func TestBatchRecalculationFansOutPerStudentBatch(t *testing.T) {
	reader, total := batchRoster(5, 3)
	// Two students per batch, each with three subjects: six concurrent cells.
	cells := &fanoutBarrierCells{expect: 2 * 3, release: make(chan struct{})}
	svc := NewBatchRecalculationService(reader, &mockRecordLister{}, cells, nil,
		config.RecalcConfig{BatchSize: 2, MaxRetries: 1}, nil, nil)

	result, err := svc.ProcessBatchGradeCalculation(context.Background(), "c1", "t1")
	require.NoError(t, err)

	assert.Equal(t, total, result.Succeeded)
	assert.Empty(t, result.Failed)
}

func TestBatchRecalculationIsolatesFailures(t *testing.T) {
	reader, total := batchRoster(20, 5)
	cells := &mockCellRecalculator{failures: map[string]int{
		// stu-3/subj-2 fails through every retry.
		"stu-3/subj-2": 100,
	}}
	svc := NewBatchRecalculationService(reader, &mockRecordLister{}, cells, nil,
		config.RecalcConfig{BatchSize: 100, MaxRetries: 3, RetryDelay: time.Millisecond}, nil, nil)

	result, err := svc.ProcessBatchGradeCalculation(context.Background(), "c1", "t1")
	require.NoError(t, err)

	assert.Equal(t, total, result.Processed)
	assert.Equal(t, total-1, result.Succeeded)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, "stu-3", result.Failed[0].StudentID)
	assert.Equal(t, "subj-2", result.Failed[0].SubjectID)
	assert.Equal(t, 3, result.Failed[0].Attempts)
}

func TestBatchRecalculationRetriesTransientErrors(t *testing.T) {
	reader, _ := batchRoster(1, 1)
	cells := &mockCellRecalculator{failures: map[string]int{
		// Fails twice, succeeds on the third attempt.
		"stu-0/subj-0": 2,
	}}
	svc := NewBatchRecalculationService(reader, &mockRecordLister{}, cells, nil,
		config.RecalcConfig{BatchSize: 10, MaxRetries: 3, RetryDelay: time.Millisecond}, nil, nil)

	result, err := svc.ProcessBatchGradeCalculation(context.Background(), "c1", "t1")
	require.NoError(t, err)

	assert.Equal(t, 1, result.Succeeded)
	assert.Empty(t, result.Failed)
	assert.Equal(t, 3, cells.calls["stu-0/subj-0"])
}

func TestBatchRecalculationDoesNotRetryValidationErrors(t *testing.T) {
	reader, _ := batchRoster(1, 1)
	cells := &permanentFailureCells{}
	svc := NewBatchRecalculationService(reader, &mockRecordLister{}, cells, nil,
		config.RecalcConfig{BatchSize: 10, MaxRetries: 3, RetryDelay: time.Millisecond}, nil, nil)

	result, err := svc.ProcessBatchGradeCalculation(context.Background(), "c1", "t1")
	require.NoError(t, err)

	require.Len(t, result.Failed, 1)
	assert.Equal(t, 1, result.Failed[0].Attempts)
	assert.Equal(t, 1, cells.calls)
}

type permanentFailureCells struct {
	mu    sync.Mutex
	calls int
}

func (p *permanentFailureCells) RecalculateCell(ctx context.Context, classID, subjectID, studentID, termID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return appErrors.Clone(appErrors.ErrConfiguration, "subject config missing")
}

func TestCalculateClassStatistics(t *testing.T) {
	records := []models.SubjectGradeRecord{
		{StudentID: "stu-1", SubjectID: "math", TermGrades: map[string]models.SubjectTermGrade{
			"t1": {Percentage: 80, IsPassing: true},
		}},
		{StudentID: "stu-1", SubjectID: "art", TermGrades: map[string]models.SubjectTermGrade{
			"t1": {Percentage: 40, IsPassing: false},
		}},
		{StudentID: "stu-2", SubjectID: "math", TermGrades: map[string]models.SubjectTermGrade{
			"t1": {Percentage: 60, IsPassing: true},
		}},
		// Different term, must not contribute.
		{StudentID: "stu-3", SubjectID: "math", TermGrades: map[string]models.SubjectTermGrade{
			"t2": {Percentage: 100, IsPassing: true},
		}},
	}
	svc := NewBatchRecalculationService(&mockBatchClassReader{}, &mockRecordLister{records: records}, &mockCellRecalculator{}, nil,
		config.RecalcConfig{}, nil, nil)

	stats, err := svc.CalculateClassStatistics(context.Background(), "c1", "t1")
	require.NoError(t, err)

	assert.InDelta(t, 60, stats.AverageGrade, 0.0001)
	assert.InDelta(t, 100.0*2/3, stats.PassRate, 0.0001)
	assert.Equal(t, 2, stats.TotalStudents)
}

func TestCalculateClassStatisticsEmpty(t *testing.T) {
	svc := NewBatchRecalculationService(&mockBatchClassReader{}, &mockRecordLister{}, &mockCellRecalculator{}, nil,
		config.RecalcConfig{}, nil, nil)

	stats, err := svc.CalculateClassStatistics(context.Background(), "c1", "t1")
	require.NoError(t, err)

	assert.Zero(t, stats.AverageGrade)
	assert.Zero(t, stats.PassRate)
	assert.Zero(t, stats.TotalStudents)
}
