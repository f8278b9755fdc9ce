package service

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-gradebook-api/internal/models"
	"github.com/noah-isme/sma-gradebook-api/pkg/config"
	appErrors "github.com/noah-isme/sma-gradebook-api/pkg/errors"
)

type cellRecalculator interface {
	RecalculateCell(ctx context.Context, classID, subjectID, studentID, termID string) error
}

type batchClassReader interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
	ListStudents(ctx context.Context, classID string) ([]models.Student, error)
	ListSubjectsByClassGroup(ctx context.Context, classGroupID string) ([]models.Subject, error)
}

type recordLister interface {
	ListStudentRecordsByClass(ctx context.Context, classID string) ([]models.SubjectGradeRecord, error)
}

type recalcObserver interface {
	RecordCellResult(success bool)
	ObserveBatchDuration(seconds float64)
}

// BatchRecalculationService recomputes every (student, subject) cell of a
// class gradebook. Students are processed in bounded batches with the full
// subject fan-out running concurrently inside each batch. One failing cell
// never aborts its batch: failures are retried, then collected into the run
// result.
type BatchRecalculationService struct {
	classes  batchClassReader
	records  recordLister
	cells    cellRecalculator
	derived  *DerivedCacheService
	cfg      config.RecalcConfig
	observer recalcObserver
	logger   *zap.Logger
}

// NewBatchRecalculationService constructs BatchRecalculationService. A nil
// observer disables instrumentation, a nil derived cache disables statistics
// caching.
func NewBatchRecalculationService(classes batchClassReader, records recordLister, cells cellRecalculator, derived *DerivedCacheService, cfg config.RecalcConfig, observer recalcObserver, logger *zap.Logger) *BatchRecalculationService {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchRecalculationService{
		classes:  classes,
		records:  records,
		cells:    cells,
		derived:  derived,
		cfg:      cfg,
		observer: observer,
		logger:   logger,
	}
}

// ProcessBatchGradeCalculation recalculates the full student x subject grid
// of a class for one term. BatchSize bounds the number of students in flight
// at once; every subject of a batched student recalculates concurrently.
func (s *BatchRecalculationService) ProcessBatchGradeCalculation(ctx context.Context, classID, termID string) (*models.BatchRecalculationResult, error) {
	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrDataAccess.Code, appErrors.ErrDataAccess.Status, "failed to load class")
	}
	students, err := s.classes.ListStudents(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrDataAccess.Code, appErrors.ErrDataAccess.Status, "failed to list students")
	}
	subjects, err := s.classes.ListSubjectsByClassGroup(ctx, class.ClassGroupID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrDataAccess.Code, appErrors.ErrDataAccess.Status, "failed to list subjects")
	}

	result := &models.BatchRecalculationResult{ClassID: classID, TermID: termID}
	started := time.Now()
	for offset := 0; offset < len(students); offset += s.cfg.BatchSize {
		if offset > 0 && s.cfg.BatchPause > 0 {
			if err := sleepContext(ctx, s.cfg.BatchPause); err != nil {
				return result, err
			}
		}
		end := offset + s.cfg.BatchSize
		if end > len(students) {
			end = len(students)
		}
		s.runBatch(ctx, classID, termID, students[offset:end], subjects, result)
	}
	if s.observer != nil {
		s.observer.ObserveBatchDuration(time.Since(started).Seconds())
	}

	// Recalculation changes every derived payload of the class.
	s.derived.InvalidateClass(ctx, classID)
	for _, student := range students {
		s.derived.InvalidateStudent(ctx, student.ID)
	}

	s.logger.Info("batch recalculation finished",
		zap.String("class_id", classID),
		zap.String("term_id", termID),
		zap.Int("processed", result.Processed),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", len(result.Failed)))
	return result, nil
}

func (s *BatchRecalculationService) runBatch(ctx context.Context, classID, termID string, batch []models.Student, subjects []models.Subject, result *models.BatchRecalculationResult) {
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, student := range batch {
		for _, subject := range subjects {
			wg.Add(1)
			go func(studentID, subjectID string) {
				defer wg.Done()
				attempts, err := s.processWithRetry(ctx, classID, subjectID, studentID, termID)
				mu.Lock()
				defer mu.Unlock()
				result.Processed++
				if err == nil {
					result.Succeeded++
				} else {
					result.Failed = append(result.Failed, models.BatchItemError{
						StudentID: studentID,
						SubjectID: subjectID,
						TermID:    termID,
						Attempts:  attempts,
						Message:   err.Error(),
					})
				}
				if s.observer != nil {
					s.observer.RecordCellResult(err == nil)
				}
			}(student.ID, subject.ID)
		}
	}
	wg.Wait()
}

func (s *BatchRecalculationService) processWithRetry(ctx context.Context, classID, subjectID, studentID, termID string) (int, error) {
	var err error
	for attempt := 1; attempt <= s.cfg.MaxRetries; attempt++ {
		err = s.cells.RecalculateCell(ctx, classID, subjectID, studentID, termID)
		if err == nil {
			return attempt, nil
		}
		if !appErrors.IsRetryable(err) || attempt == s.cfg.MaxRetries {
			return attempt, err
		}
		s.logger.Debug("retrying grade cell",
			zap.String("student_id", studentID),
			zap.String("subject_id", subjectID),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if serr := sleepContext(ctx, s.cfg.RetryDelay*time.Duration(attempt)); serr != nil {
			return attempt, err
		}
	}
	return s.cfg.MaxRetries, err
}

// CalculateClassStatistics aggregates the recorded term grades of a class.
// Students without a recorded grade for the term do not drag the average
// down; they are simply not counted.
func (s *BatchRecalculationService) CalculateClassStatistics(ctx context.Context, classID, termID string) (*models.ClassStatistics, error) {
	cacheKey := ClassStatisticsKey(classID, termID)
	var cached models.ClassStatistics
	if s.derived.Get(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	records, err := s.records.ListStudentRecordsByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrDataAccess.Code, appErrors.ErrDataAccess.Status, "failed to list grade records")
	}

	stats := &models.ClassStatistics{ClassID: classID, TermID: termID}
	students := make(map[string]struct{})
	var sum float64
	var graded, passing int
	for _, record := range records {
		grade, ok := record.TermGrades[termID]
		if !ok {
			continue
		}
		students[record.StudentID] = struct{}{}
		graded++
		sum += grade.Percentage
		if grade.IsPassing {
			passing++
		}
	}
	stats.TotalStudents = len(students)
	if graded > 0 {
		stats.AverageGrade = sum / float64(graded)
		stats.PassRate = 100 * float64(passing) / float64(graded)
	}
	s.derived.Set(ctx, cacheKey, stats)
	return stats, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
