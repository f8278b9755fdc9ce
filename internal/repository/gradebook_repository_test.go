package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-gradebook-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestGradeBookRepositoryFindByClass(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewGradeBookRepository(db)

	rows := sqlmock.NewRows([]string{"id", "class_id", "assessment_system_id", "term_structure_id", "created_at", "updated_at"}).
		AddRow("gb-1", "c1", "sys-1", "ts-1", time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, class_id, assessment_system_id, term_structure_id, created_at, updated_at")).
		WithArgs("c1").
		WillReturnRows(rows)

	gradebook, err := repo.FindByClass(context.Background(), "c1")
	require.NoError(t, err)
	require.Equal(t, "gb-1", gradebook.ID)
	require.Equal(t, "sys-1", gradebook.AssessmentSystemID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeBookRepositoryCreateInsertsSkeletonRecords(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewGradeBookRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO gradebooks")).
		WithArgs(sqlmock.AnyArg(), "c1", "sys-1", "ts-1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO subject_grade_records")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "math", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO subject_grade_records")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "history", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	gradebook := &models.GradeBook{ClassID: "c1", AssessmentSystemID: "sys-1", TermStructureID: "ts-1"}
	require.NoError(t, repo.Create(context.Background(), gradebook, []string{"math", "history"}))
	require.NotEmpty(t, gradebook.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeBookRepositoryCreateRollsBackOnRecordFailure(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewGradeBookRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO gradebooks")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO subject_grade_records")).
		WillReturnError(errors.New("duplicate key"))
	mock.ExpectRollback()

	gradebook := &models.GradeBook{ClassID: "c1", AssessmentSystemID: "sys-1", TermStructureID: "ts-1"}
	err := repo.Create(context.Background(), gradebook, []string{"math"})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeBookRepositoryUpsertStudentRecord(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewGradeBookRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO subject_grade_records")).
		WithArgs(sqlmock.AnyArg(), "gb-1", "math", "stu-1",
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	record := &models.SubjectGradeRecord{
		GradeBookID: "gb-1",
		SubjectID:   "math",
		StudentID:   "stu-1",
		TermGrades: map[string]models.SubjectTermGrade{
			"t1": {TermID: "t1", Percentage: 88, FinalGrade: "A"},
		},
	}
	require.NoError(t, repo.UpsertStudentRecord(context.Background(), record))
	require.NotEmpty(t, record.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeBookRepositoryListStudentRecordsByClass(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewGradeBookRepository(db)

	termGrades := `{"t1":{"term_id":"t1","period_grades":{},"percentage":72.5,"total_marks":0,"is_passing":true,"grade_points":3,"credits":2,"calculated_at":"2026-01-10T00:00:00Z"}}`
	rows := sqlmock.NewRows([]string{"id", "gradebook_id", "subject_id", "student_id", "term_grades", "period_grades", "created_at", "updated_at"}).
		AddRow("rec-1", "gb-1", "math", "stu-1", []byte(termGrades), []byte(`{}`), time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM subject_grade_records sgr")).
		WithArgs("c1").
		WillReturnRows(rows)

	records, err := repo.ListStudentRecordsByClass(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "stu-1", records[0].StudentID)
	require.InDelta(t, 72.5, records[0].TermGrades["t1"].Percentage, 1e-9)
	require.NoError(t, mock.ExpectationsWereMet())
}
