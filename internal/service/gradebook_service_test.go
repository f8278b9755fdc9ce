package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-gradebook-api/internal/models"
	appErrors "github.com/noah-isme/sma-gradebook-api/pkg/errors"
)

type mockClassReader struct {
	class     *models.Class
	subjects  []models.Subject
	stampedID string
}

func (m *mockClassReader) FindByID(ctx context.Context, id string) (*models.Class, error) {
	if m.class == nil {
		return nil, sql.ErrNoRows
	}
	return m.class, nil
}

func (m *mockClassReader) ListSubjectsByClassGroup(ctx context.Context, classGroupID string) ([]models.Subject, error) {
	return m.subjects, nil
}

func (m *mockClassReader) StampTermStructure(ctx context.Context, classID, termStructureID string) error {
	m.stampedID = termStructureID
	return nil
}

type mockGradebookStore struct {
	gradebook      *models.GradeBook
	created        *models.GradeBook
	createdSubject []string
	records        map[string]*models.SubjectGradeRecord
	upserted       []models.SubjectGradeRecord
}

func (m *mockGradebookStore) FindByClass(ctx context.Context, classID string) (*models.GradeBook, error) {
	if m.gradebook == nil {
		return nil, sql.ErrNoRows
	}
	return m.gradebook, nil
}

func (m *mockGradebookStore) Create(ctx context.Context, gradebook *models.GradeBook, subjectIDs []string) error {
	gradebook.ID = "gb-new"
	m.created = gradebook
	m.createdSubject = subjectIDs
	return nil
}

func (m *mockGradebookStore) FindStudentRecord(ctx context.Context, gradebookID, subjectID, studentID string) (*models.SubjectGradeRecord, error) {
	record, ok := m.records[subjectID+"/"+studentID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return record, nil
}

func (m *mockGradebookStore) UpsertStudentRecord(ctx context.Context, record *models.SubjectGradeRecord) error {
	m.upserted = append(m.upserted, *record)
	return nil
}

type mockTermStructureReader struct {
	structure *models.TermStructure
	period    *models.TermAssessmentPeriod
	periods   []models.TermAssessmentPeriod
}

func (m *mockTermStructureReader) FindActiveStructureByProgram(ctx context.Context, programID string) (*models.TermStructure, error) {
	if m.structure == nil {
		return nil, sql.ErrNoRows
	}
	return m.structure, nil
}

func (m *mockTermStructureReader) FindPeriod(ctx context.Context, id string) (*models.TermAssessmentPeriod, error) {
	if m.period == nil {
		return nil, sql.ErrNoRows
	}
	return m.period, nil
}

func (m *mockTermStructureReader) ListPeriodsByTerm(ctx context.Context, termID string) ([]models.TermAssessmentPeriod, error) {
	return m.periods, nil
}

type mockActivityReader struct {
	activity   *models.Assessment
	activities []models.Assessment
}

func (m *mockActivityReader) FindByID(ctx context.Context, id string) (*models.Assessment, error) {
	if m.activity == nil {
		return nil, sql.ErrNoRows
	}
	return m.activity, nil
}

func (m *mockActivityReader) ListBySubjectAndPeriods(ctx context.Context, subjectID string, periodIDs []string) ([]models.Assessment, error) {
	return m.activities, nil
}

type mockSubmissionStore struct {
	existing *models.Submission
	upserted []models.Submission
	sum      float64
}

func (m *mockSubmissionStore) FindByAssessmentAndStudent(ctx context.Context, assessmentID, studentID string) (*models.Submission, error) {
	if m.existing == nil {
		return nil, sql.ErrNoRows
	}
	return m.existing, nil
}

func (m *mockSubmissionStore) Upsert(ctx context.Context, submission *models.Submission) error {
	m.upserted = append(m.upserted, *submission)
	return nil
}

func (m *mockSubmissionStore) SumObtainedByAssessments(ctx context.Context, assessmentIDs []string) (float64, error) {
	return m.sum, nil
}

type mockHistoryAppender struct {
	entries []models.GradeHistory
}

func (m *mockHistoryAppender) Append(ctx context.Context, entry *models.GradeHistory) error {
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *mockHistoryAppender) List(ctx context.Context, filter models.GradeHistoryFilter) ([]models.GradeHistory, int, error) {
	return m.entries, len(m.entries), nil
}

type mockSubjectTermCalculator struct {
	grade       *models.SubjectTermGrade
	invalidated []string
	calls       int
}

func (m *mockSubjectTermCalculator) Calculate(ctx context.Context, subjectID, termID, studentID, assessmentSystemID string) (*models.SubjectTermGrade, error) {
	m.calls++
	return m.grade, nil
}

func (m *mockSubjectTermCalculator) Invalidate(studentID, subjectID, termID string) {
	m.invalidated = append(m.invalidated, studentID+"/"+subjectID+"/"+termID)
}

type passAllGuard struct{}

func (passAllGuard) ValidateGradeEntry(ctx context.Context, studentID, subjectID, assessmentID string, grade float64, config *models.SubjectAssessmentConfig) (*models.GradeValidationResult, error) {
	return &models.GradeValidationResult{IsValid: true}, nil
}

type rejectAllGuard struct{}

func (rejectAllGuard) ValidateGradeEntry(ctx context.Context, studentID, subjectID, assessmentID string, grade float64, config *models.SubjectAssessmentConfig) (*models.GradeValidationResult, error) {
	return &models.GradeValidationResult{
		IsValid: false,
		Errors:  []models.GradeValidationIssue{{Code: models.ValidationCodeRange, Message: "out of range"}},
	}, nil
}

type mockOrchestratorConfigs struct {
	config *models.SubjectAssessmentConfig
	system *models.AssessmentSystem
}

func (m *mockOrchestratorConfigs) SubjectConfig(ctx context.Context, subjectID string) (*models.SubjectAssessmentConfig, error) {
	return m.config, nil
}

func (m *mockOrchestratorConfigs) ActiveSystemByProgram(ctx context.Context, programID string) (*models.AssessmentSystem, error) {
	if m.system == nil {
		return nil, appErrors.Clone(appErrors.ErrConfiguration, "program has no active assessment system")
	}
	return m.system, nil
}

type orchestratorFixture struct {
	classes     *mockClassReader
	gradebooks  *mockGradebookStore
	terms       *mockTermStructureReader
	activities  *mockActivityReader
	submissions *mockSubmissionStore
	history     *mockHistoryAppender
	termGrades  *mockSubjectTermCalculator
	configs     *mockOrchestratorConfigs
}

func newOrchestratorFixture() *orchestratorFixture {
	return &orchestratorFixture{
		classes: &mockClassReader{
			class:    &models.Class{ID: "c1", ProgramID: "prog-1", ClassGroupID: "cg1"},
			subjects: []models.Subject{{ID: "math"}, {ID: "history"}},
		},
		gradebooks: &mockGradebookStore{},
		terms: &mockTermStructureReader{
			structure: &models.TermStructure{ID: "ts-1"},
			period:    &models.TermAssessmentPeriod{ID: "p1", TermID: "t1", Weight: 100},
		},
		activities: &mockActivityReader{
			activity: &models.Assessment{ID: "act-1", ClassID: "c1", SubjectID: "math", Type: "exam", TotalPoints: 100},
		},
		submissions: &mockSubmissionStore{},
		history:     &mockHistoryAppender{},
		termGrades: &mockSubjectTermCalculator{
			grade: &models.SubjectTermGrade{TermID: "t1", Percentage: 80, IsPassing: true,
				PeriodGrades: map[string]models.AssessmentPeriodGrade{"p1": {PeriodID: "p1", Percentage: 80}}},
		},
		configs: &mockOrchestratorConfigs{
			config: &models.SubjectAssessmentConfig{SubjectID: "math"},
			system: &models.AssessmentSystem{ID: "sys-1"},
		},
	}
}

func (f *orchestratorFixture) service(guard gradeEntryGuard) *GradeBookService {
	return NewGradeBookService(f.classes, f.gradebooks, f.terms, f.activities, f.submissions,
		f.history, f.termGrades, guard, f.configs, nil, nil, nil)
}

func TestInitializeGradeBookCreatesSkeleton(t *testing.T) {
	f := newOrchestratorFixture()
	svc := f.service(passAllGuard{})

	gradebook, err := svc.InitializeGradeBook(context.Background(), "c1")
	require.NoError(t, err)

	assert.Equal(t, "gb-new", gradebook.ID)
	assert.Equal(t, "sys-1", gradebook.AssessmentSystemID)
	assert.Equal(t, "ts-1", gradebook.TermStructureID)
	assert.Equal(t, []string{"math", "history"}, f.gradebooks.createdSubject)
	assert.Equal(t, "ts-1", f.classes.stampedID)
}

func TestInitializeGradeBookIsIdempotent(t *testing.T) {
	f := newOrchestratorFixture()
	f.gradebooks.gradebook = &models.GradeBook{ID: "gb-existing", ClassID: "c1"}
	svc := f.service(passAllGuard{})

	gradebook, err := svc.InitializeGradeBook(context.Background(), "c1")
	require.NoError(t, err)

	assert.Equal(t, "gb-existing", gradebook.ID)
	assert.Nil(t, f.gradebooks.created, "existing gradebook must not be recreated")
	assert.Empty(t, f.classes.stampedID)
}

func TestInitializeGradeBookMissingSystemIsConfigurationError(t *testing.T) {
	f := newOrchestratorFixture()
	f.configs.system = nil
	svc := f.service(passAllGuard{})

	_, err := svc.InitializeGradeBook(context.Background(), "c1")
	require.Error(t, err)
	typed := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConfiguration.Code, typed.Code)
}

func TestInitializeGradeBookMissingTermStructure(t *testing.T) {
	f := newOrchestratorFixture()
	f.terms.structure = nil
	svc := f.service(passAllGuard{})

	_, err := svc.InitializeGradeBook(context.Background(), "c1")
	require.Error(t, err)
	typed := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConfiguration.Code, typed.Code)
}

func TestUpdateActivityGradeWritesAndRecalculates(t *testing.T) {
	f := newOrchestratorFixture()
	f.gradebooks.gradebook = &models.GradeBook{ID: "gb-1", ClassID: "c1", AssessmentSystemID: "sys-1"}
	svc := f.service(passAllGuard{})

	err := svc.UpdateActivityGrade(context.Background(), UpdateActivityGradeRequest{
		ActivityID:         "act-1",
		StudentID:          "stu-1",
		Grade:              85,
		AssessmentPeriodID: "p1",
		ModifiedBy:         "teacher-1",
		Reason:             "regrade after review",
	})
	require.NoError(t, err)

	require.Len(t, f.submissions.upserted, 1)
	assert.Equal(t, models.SubmissionStatusGraded, f.submissions.upserted[0].Status)
	assert.Equal(t, 85.0, *f.submissions.upserted[0].ObtainedMarks)

	require.Len(t, f.history.entries, 1)
	assert.Equal(t, "act-1", f.history.entries[0].AssessmentID)
	assert.Equal(t, 85.0, f.history.entries[0].GradeValue)
	assert.Nil(t, f.history.entries[0].PreviousValue)
	assert.Equal(t, "teacher-1", f.history.entries[0].ModifiedBy)

	assert.Equal(t, []string{"stu-1/math/t1"}, f.termGrades.invalidated)
	require.Len(t, f.gradebooks.upserted, 1)
	assert.Equal(t, "gb-1", f.gradebooks.upserted[0].GradeBookID)
	assert.Contains(t, f.gradebooks.upserted[0].TermGrades, "t1")
}

func TestUpdateActivityGradeRecordsPreviousValue(t *testing.T) {
	f := newOrchestratorFixture()
	f.gradebooks.gradebook = &models.GradeBook{ID: "gb-1", ClassID: "c1", AssessmentSystemID: "sys-1"}
	prior := 60.0
	f.submissions.existing = &models.Submission{
		AssessmentID:  "act-1",
		StudentID:     "stu-1",
		ObtainedMarks: &prior,
		Status:        models.SubmissionStatusGraded,
	}
	svc := f.service(passAllGuard{})

	err := svc.UpdateActivityGrade(context.Background(), UpdateActivityGradeRequest{
		ActivityID:         "act-1",
		StudentID:          "stu-1",
		Grade:              85,
		AssessmentPeriodID: "p1",
	})
	require.NoError(t, err)

	require.Len(t, f.history.entries, 1)
	require.NotNil(t, f.history.entries[0].PreviousValue)
	assert.Equal(t, 60.0, *f.history.entries[0].PreviousValue)
}

func TestUpdateActivityGradeRejectedByValidator(t *testing.T) {
	f := newOrchestratorFixture()
	f.gradebooks.gradebook = &models.GradeBook{ID: "gb-1", ClassID: "c1"}
	svc := f.service(rejectAllGuard{})

	err := svc.UpdateActivityGrade(context.Background(), UpdateActivityGradeRequest{
		ActivityID:         "act-1",
		StudentID:          "stu-1",
		Grade:              85,
		AssessmentPeriodID: "p1",
	})
	require.Error(t, err)

	assert.Empty(t, f.submissions.upserted, "rejected grades must not be written")
	assert.Empty(t, f.history.entries)
}

func TestUpdateActivityGradeUnknownActivity(t *testing.T) {
	f := newOrchestratorFixture()
	f.activities.activity = nil
	svc := f.service(passAllGuard{})

	err := svc.UpdateActivityGrade(context.Background(), UpdateActivityGradeRequest{
		ActivityID:         "missing",
		StudentID:          "stu-1",
		Grade:              85,
		AssessmentPeriodID: "p1",
	})
	require.Error(t, err)
	typed := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, typed.Code)
}

func TestUpdateActivityGradeInvalidPayload(t *testing.T) {
	f := newOrchestratorFixture()
	svc := f.service(passAllGuard{})

	err := svc.UpdateActivityGrade(context.Background(), UpdateActivityGradeRequest{
		StudentID: "stu-1",
		Grade:     -5,
	})
	require.Error(t, err)
}

func TestCalculateSubjectGradeUnweightedSummary(t *testing.T) {
	f := newOrchestratorFixture()
	f.terms.periods = []models.TermAssessmentPeriod{{ID: "p1", TermID: "t1"}}
	f.activities.activities = []models.Assessment{
		{ID: "a1", ClassID: "c1", SubjectID: "math", TotalPoints: 100},
		{ID: "a2", ClassID: "c1", SubjectID: "math", TotalPoints: 50},
		// Other class, excluded from the summary.
		{ID: "a3", ClassID: "c2", SubjectID: "math", TotalPoints: 500},
	}
	f.submissions.sum = 120
	svc := f.service(passAllGuard{})

	summary, err := svc.CalculateSubjectGrade(context.Background(), "c1", "math", "t1")
	require.NoError(t, err)

	assert.InDelta(t, 150, summary.TotalMarks, 0.0001)
	assert.InDelta(t, 120, summary.ObtainedMarks, 0.0001)
	assert.InDelta(t, 80, summary.Percentage, 0.0001)
}

func TestRecalculateCellPersistsRecord(t *testing.T) {
	f := newOrchestratorFixture()
	f.gradebooks.gradebook = &models.GradeBook{ID: "gb-1", ClassID: "c1", AssessmentSystemID: "sys-1"}
	svc := f.service(passAllGuard{})

	err := svc.RecalculateCell(context.Background(), "c1", "math", "stu-1", "t1")
	require.NoError(t, err)

	assert.Equal(t, []string{"stu-1/math/t1"}, f.termGrades.invalidated)
	require.Len(t, f.gradebooks.upserted, 1)
	record := f.gradebooks.upserted[0]
	assert.Equal(t, "math", record.SubjectID)
	assert.Equal(t, "stu-1", record.StudentID)
	assert.InDelta(t, 80, record.TermGrades["t1"].Percentage, 0.0001)
	assert.Contains(t, record.PeriodGrades, "p1")
}
