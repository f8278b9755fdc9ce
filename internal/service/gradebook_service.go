package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-gradebook-api/internal/models"
	appErrors "github.com/noah-isme/sma-gradebook-api/pkg/errors"
)

type classReader interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
	ListSubjectsByClassGroup(ctx context.Context, classGroupID string) ([]models.Subject, error)
	StampTermStructure(ctx context.Context, classID, termStructureID string) error
}

type gradebookStore interface {
	FindByClass(ctx context.Context, classID string) (*models.GradeBook, error)
	Create(ctx context.Context, gradebook *models.GradeBook, subjectIDs []string) error
	FindStudentRecord(ctx context.Context, gradebookID, subjectID, studentID string) (*models.SubjectGradeRecord, error)
	UpsertStudentRecord(ctx context.Context, record *models.SubjectGradeRecord) error
}

type termStructureReader interface {
	FindActiveStructureByProgram(ctx context.Context, programID string) (*models.TermStructure, error)
	FindPeriod(ctx context.Context, id string) (*models.TermAssessmentPeriod, error)
	ListPeriodsByTerm(ctx context.Context, termID string) ([]models.TermAssessmentPeriod, error)
}

type activityReader interface {
	FindByID(ctx context.Context, id string) (*models.Assessment, error)
	ListBySubjectAndPeriods(ctx context.Context, subjectID string, periodIDs []string) ([]models.Assessment, error)
}

type submissionStore interface {
	FindByAssessmentAndStudent(ctx context.Context, assessmentID, studentID string) (*models.Submission, error)
	Upsert(ctx context.Context, submission *models.Submission) error
	SumObtainedByAssessments(ctx context.Context, assessmentIDs []string) (float64, error)
}

type historyStore interface {
	Append(ctx context.Context, entry *models.GradeHistory) error
	List(ctx context.Context, filter models.GradeHistoryFilter) ([]models.GradeHistory, int, error)
}

type subjectTermCalculator interface {
	Calculate(ctx context.Context, subjectID, termID, studentID, assessmentSystemID string) (*models.SubjectTermGrade, error)
	Invalidate(studentID, subjectID, termID string)
}

type gradeEntryGuard interface {
	ValidateGradeEntry(ctx context.Context, studentID, subjectID, assessmentID string, grade float64, config *models.SubjectAssessmentConfig) (*models.GradeValidationResult, error)
}

type orchestratorConfigProvider interface {
	SubjectConfig(ctx context.Context, subjectID string) (*models.SubjectAssessmentConfig, error)
	ActiveSystemByProgram(ctx context.Context, programID string) (*models.AssessmentSystem, error)
}

// UpdateActivityGradeRequest records or overwrites one activity grade.
type UpdateActivityGradeRequest struct {
	ActivityID         string  `json:"activity_id" validate:"required"`
	StudentID          string  `json:"student_id" validate:"required"`
	Grade              float64 `json:"grade" validate:"min=0,max=100"`
	AssessmentPeriodID string  `json:"assessment_period_id" validate:"required"`
	ModifiedBy         string  `json:"modified_by"`
	Reason             string  `json:"reason"`
}

// GradeBookService owns gradebook lifecycle: initialization, activity grade
// writes with their recalculation chain, and the unweighted subject summary.
type GradeBookService struct {
	classes     classReader
	gradebooks  gradebookStore
	terms       termStructureReader
	activities  activityReader
	submissions submissionStore
	history     historyStore
	termGrades  subjectTermCalculator
	guard       gradeEntryGuard
	configs     orchestratorConfigProvider
	derived     *DerivedCacheService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewGradeBookService constructs GradeBookService. A nil derived cache
// disables report card invalidation on grade writes.
func NewGradeBookService(classes classReader, gradebooks gradebookStore, terms termStructureReader, activities activityReader, submissions submissionStore, history historyStore, termGrades subjectTermCalculator, guard gradeEntryGuard, configs orchestratorConfigProvider, derived *DerivedCacheService, validate *validator.Validate, logger *zap.Logger) *GradeBookService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradeBookService{
		classes:     classes,
		gradebooks:  gradebooks,
		terms:       terms,
		activities:  activities,
		submissions: submissions,
		history:     history,
		termGrades:  termGrades,
		guard:       guard,
		configs:     configs,
		derived:     derived,
		validator:   validate,
		logger:      logger,
	}
}

// InitializeGradeBook creates the class gradebook with one skeleton record
// per class-group subject and stamps the class with the resolved term
// structure. Calling it again for an initialized class is an idempotent
// no-op returning the existing gradebook.
func (s *GradeBookService) InitializeGradeBook(ctx context.Context, classID string) (*models.GradeBook, error) {
	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrDataAccess.Code, appErrors.ErrDataAccess.Status, "failed to load class")
	}

	existing, err := s.gradebooks.FindByClass(ctx, classID)
	if err == nil {
		s.logger.Info("gradebook already initialized", zap.String("class_id", classID), zap.String("gradebook_id", existing.ID))
		return existing, nil
	}
	if err != sql.ErrNoRows {
		return nil, appErrors.Wrap(err, appErrors.ErrDataAccess.Code, appErrors.ErrDataAccess.Status, "failed to inspect gradebook")
	}

	system, err := s.configs.ActiveSystemByProgram(ctx, class.ProgramID)
	if err != nil {
		return nil, err
	}
	structure, err := s.terms.FindActiveStructureByProgram(ctx, class.ProgramID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrConfiguration, "program has no active term structure")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrDataAccess.Code, appErrors.ErrDataAccess.Status, "failed to load term structure")
	}

	subjects, err := s.classes.ListSubjectsByClassGroup(ctx, class.ClassGroupID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrDataAccess.Code, appErrors.ErrDataAccess.Status, "failed to list class subjects")
	}
	subjectIDs := make([]string, 0, len(subjects))
	for _, subject := range subjects {
		subjectIDs = append(subjectIDs, subject.ID)
	}

	gradebook := &models.GradeBook{
		ClassID:            classID,
		AssessmentSystemID: system.ID,
		TermStructureID:    structure.ID,
	}
	if err := s.gradebooks.Create(ctx, gradebook, subjectIDs); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrDataAccess.Code, appErrors.ErrDataAccess.Status, "failed to create gradebook")
	}
	if err := s.classes.StampTermStructure(ctx, classID, structure.ID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrDataAccess.Code, appErrors.ErrDataAccess.Status, "failed to stamp term structure")
	}

	s.logger.Info("gradebook initialized",
		zap.String("class_id", classID),
		zap.String("gradebook_id", gradebook.ID),
		zap.Int("subjects", len(subjectIDs)))
	return gradebook, nil
}

// UpdateActivityGrade upserts the submission, appends the audit entry and
// triggers recalculation of the subject/period/term chain. The submission is
// the source of truth: a recalculation failure leaves the write in place and
// the derived aggregates transiently stale until the next recompute.
func (s *GradeBookService) UpdateActivityGrade(ctx context.Context, req UpdateActivityGradeRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}

	activity, err := s.activities.FindByID(ctx, req.ActivityID)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "activity not found")
		}
		return appErrors.Wrap(err, appErrors.ErrDataAccess.Code, appErrors.ErrDataAccess.Status, "failed to load activity")
	}
	gradebook, err := s.gradebooks.FindByClass(ctx, activity.ClassID)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "gradebook not initialized for class")
		}
		return appErrors.Wrap(err, appErrors.ErrDataAccess.Code, appErrors.ErrDataAccess.Status, "failed to load gradebook")
	}

	config, err := s.configs.SubjectConfig(ctx, activity.SubjectID)
	if err != nil {
		return err
	}
	verdict, err := s.guard.ValidateGradeEntry(ctx, req.StudentID, activity.SubjectID, activity.ID, req.Grade, config)
	if err != nil {
		return err
	}
	if !verdict.IsValid {
		codes := make([]string, 0, len(verdict.Errors))
		for _, issue := range verdict.Errors {
			codes = append(codes, issue.Code)
		}
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("grade entry rejected: %s", strings.Join(codes, ", ")))
	}

	var previous *float64
	if existing, err := s.submissions.FindByAssessmentAndStudent(ctx, activity.ID, req.StudentID); err == nil {
		previous = existing.ObtainedMarks
	} else if err != sql.ErrNoRows {
		return appErrors.Wrap(err, appErrors.ErrDataAccess.Code, appErrors.ErrDataAccess.Status, "failed to load submission")
	}

	grade := req.Grade
	submission := &models.Submission{
		AssessmentID:  activity.ID,
		StudentID:     req.StudentID,
		ObtainedMarks: &grade,
		Status:        models.SubmissionStatusGraded,
	}
	if err := s.submissions.Upsert(ctx, submission); err != nil {
		return appErrors.Wrap(err, appErrors.ErrDataAccess.Code, appErrors.ErrDataAccess.Status, "failed to upsert submission")
	}

	entry := &models.GradeHistory{
		StudentID:     req.StudentID,
		SubjectID:     activity.SubjectID,
		AssessmentID:  activity.ID,
		GradeValue:    req.Grade,
		PreviousValue: previous,
		ModifiedBy:    req.ModifiedBy,
		Reason:        req.Reason,
	}
	if err := s.history.Append(ctx, entry); err != nil {
		return appErrors.Wrap(err, appErrors.ErrDataAccess.Code, appErrors.ErrDataAccess.Status, "failed to append grade history")
	}

	period, err := s.terms.FindPeriod(ctx, req.AssessmentPeriodID)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "assessment period not found")
		}
		return appErrors.Wrap(err, appErrors.ErrDataAccess.Code, appErrors.ErrDataAccess.Status, "failed to load assessment period")
	}

	s.termGrades.Invalidate(req.StudentID, activity.SubjectID, period.TermID)
	if err := s.recalculateCell(ctx, gradebook, activity.SubjectID, req.StudentID, period.TermID); err != nil {
		// Derived aggregates are corrected on the next recompute.
		s.logger.Warn("recalculation after grade write failed",
			zap.String("student_id", req.StudentID),
			zap.String("subject_id", activity.SubjectID),
			zap.String("term_id", period.TermID),
			zap.Error(err))
	}
	s.derived.InvalidateStudent(ctx, req.StudentID)
	s.derived.InvalidateClass(ctx, gradebook.ClassID)
	return nil
}

// RecalculateCell recomputes and persists one (student, subject, term) cell
// of a class gradebook. Used by the batch runner.
func (s *GradeBookService) RecalculateCell(ctx context.Context, classID, subjectID, studentID, termID string) error {
	gradebook, err := s.gradebooks.FindByClass(ctx, classID)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "gradebook not initialized for class")
		}
		return appErrors.Wrap(err, appErrors.ErrDataAccess.Code, appErrors.ErrDataAccess.Status, "failed to load gradebook")
	}
	s.termGrades.Invalidate(studentID, subjectID, termID)
	return s.recalculateCell(ctx, gradebook, subjectID, studentID, termID)
}

func (s *GradeBookService) recalculateCell(ctx context.Context, gradebook *models.GradeBook, subjectID, studentID, termID string) error {
	grade, err := s.termGrades.Calculate(ctx, subjectID, termID, studentID, gradebook.AssessmentSystemID)
	if err != nil {
		return err
	}

	record, err := s.gradebooks.FindStudentRecord(ctx, gradebook.ID, subjectID, studentID)
	if err != nil {
		if err != sql.ErrNoRows {
			return appErrors.Wrap(err, appErrors.ErrDataAccess.Code, appErrors.ErrDataAccess.Status, "failed to load grade record")
		}
		record = &models.SubjectGradeRecord{
			GradeBookID: gradebook.ID,
			SubjectID:   subjectID,
			StudentID:   studentID,
		}
	}
	if record.TermGrades == nil {
		record.TermGrades = make(map[string]models.SubjectTermGrade)
	}
	if record.PeriodGrades == nil {
		record.PeriodGrades = make(map[string]models.AssessmentPeriodGrade)
	}
	record.TermGrades[termID] = *grade
	for periodID, periodGrade := range grade.PeriodGrades {
		record.PeriodGrades[periodID] = periodGrade
	}
	if err := s.gradebooks.UpsertStudentRecord(ctx, record); err != nil {
		return appErrors.Wrap(err, appErrors.ErrDataAccess.Code, appErrors.ErrDataAccess.Status, "failed to persist grade record")
	}
	return nil
}

// ListGradeHistory pages through the append-only change log.
func (s *GradeBookService) ListGradeHistory(ctx context.Context, filter models.GradeHistoryFilter) ([]models.GradeHistory, *models.Pagination, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 200 {
		filter.PageSize = 50
	}
	entries, total, err := s.history.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrDataAccess.Code, appErrors.ErrDataAccess.Status, "failed to list grade history")
	}
	return entries, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// CalculateTermGrade resolves the weighted subject-term grade of one student
// under the assessment system the class gradebook was initialized with.
func (s *GradeBookService) CalculateTermGrade(ctx context.Context, classID, subjectID, studentID, termID string) (*models.SubjectTermGrade, error) {
	gradebook, err := s.gradebooks.FindByClass(ctx, classID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "gradebook not initialized for class")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrDataAccess.Code, appErrors.ErrDataAccess.Status, "failed to load gradebook")
	}
	return s.termGrades.Calculate(ctx, subjectID, termID, studentID, gradebook.AssessmentSystemID)
}

// CalculateSubjectGrade sums obtained over total points across every term
// assessment of the subject. This is the unweighted diagnostic view and is
// deliberately distinct from the weighted subject-term grade.
func (s *GradeBookService) CalculateSubjectGrade(ctx context.Context, classID, subjectID, termID string) (*models.SubjectGradeSummary, error) {
	periods, err := s.terms.ListPeriodsByTerm(ctx, termID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrDataAccess.Code, appErrors.ErrDataAccess.Status, "failed to list term periods")
	}
	periodIDs := make([]string, 0, len(periods))
	for _, period := range periods {
		periodIDs = append(periodIDs, period.ID)
	}

	assessments, err := s.activities.ListBySubjectAndPeriods(ctx, subjectID, periodIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrDataAccess.Code, appErrors.ErrDataAccess.Status, "failed to list assessments")
	}

	summary := &models.SubjectGradeSummary{ClassID: classID, SubjectID: subjectID, TermID: termID}
	assessmentIDs := make([]string, 0, len(assessments))
	for _, assessment := range assessments {
		if assessment.ClassID != classID {
			continue
		}
		assessmentIDs = append(assessmentIDs, assessment.ID)
		summary.TotalMarks += assessment.TotalPoints
	}
	obtained, err := s.submissions.SumObtainedByAssessments(ctx, assessmentIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrDataAccess.Code, appErrors.ErrDataAccess.Status, "failed to sum submissions")
	}
	summary.ObtainedMarks = obtained
	if summary.TotalMarks > 0 {
		summary.Percentage = clampPercentage(obtained / summary.TotalMarks * 100)
	}
	return summary, nil
}
