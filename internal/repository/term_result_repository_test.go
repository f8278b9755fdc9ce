package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-gradebook-api/internal/models"
)

func TestTermResultRepositoryUpsert(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTermResultRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO term_results")).
		WithArgs(sqlmock.AnyArg(), "stu-1", "t1", 3.4, 22.0, 20.0, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	result := &models.TermResult{
		StudentID:     "stu-1",
		TermID:        "t1",
		GPA:           3.4,
		TotalCredits:  22,
		EarnedCredits: 20,
	}
	require.NoError(t, repo.Upsert(context.Background(), result))
	require.NotEmpty(t, result.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTermResultRepositoryListByStudent(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTermResultRepository(db)

	rows := sqlmock.NewRows([]string{"id", "student_id", "term_id", "gpa", "total_credits", "earned_credits", "calculated_at"}).
		AddRow("tr-1", "stu-1", "t0", 3.0, 22.0, 20.0, time.Now().Add(-time.Hour)).
		AddRow("tr-2", "stu-1", "t1", 3.4, 22.0, 22.0, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM term_results WHERE student_id = $1 ORDER BY calculated_at ASC")).
		WithArgs("stu-1").
		WillReturnRows(rows)

	results, err := repo.ListByStudent(context.Background(), "stu-1")
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "t0", results[0].TermID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTermResultRepositoryFindByStudentAndTermMiss(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTermResultRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM term_results WHERE student_id = $1 AND term_id = $2")).
		WithArgs("stu-1", "t9").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByStudentAndTerm(context.Background(), "stu-1", "t9")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
