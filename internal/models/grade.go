package models

import "time"

// AssessmentPeriodGrade is the derived grade of one student for one subject
// within one assessment period. It only exists as a cache entry under the
// subject-term record, never as a standalone row.
type AssessmentPeriodGrade struct {
	PeriodID      string  `json:"period_id"`
	ObtainedMarks float64 `json:"obtained_marks"`
	TotalMarks    float64 `json:"total_marks"`
	Percentage    float64 `json:"percentage"`
	Weight        float64 `json:"weight"`
	IsPassing     bool    `json:"is_passing"`
	GradePoints   float64 `json:"grade_points"`
	// Ungraded distinguishes "no submissions yet" from a genuine zero score.
	Ungraded bool `json:"ungraded,omitempty"`
}

// SubjectTermGrade aggregates a subject's period grades across one term.
// Credits are copied from the subject's static credit value at calculation
// time, never from a cached config.
type SubjectTermGrade struct {
	TermID       string                           `json:"term_id"`
	PeriodGrades map[string]AssessmentPeriodGrade `json:"period_grades"`
	FinalGrade   string                           `json:"final_grade,omitempty"`
	Percentage   float64                          `json:"percentage"`
	TotalMarks   float64                          `json:"total_marks"`
	IsPassing    bool                             `json:"is_passing"`
	GradePoints  float64                          `json:"grade_points"`
	Credits      float64                          `json:"credits"`
	CalculatedAt time.Time                        `json:"calculated_at"`
}

// CumulativeGrade is the credit-weighted GPA of a student across all class
// subjects for a term.
type CumulativeGrade struct {
	StudentID     string                      `json:"student_id"`
	TermID        string                      `json:"term_id"`
	GPA           float64                     `json:"gpa"`
	TotalCredits  float64                     `json:"total_credits"`
	EarnedCredits float64                     `json:"earned_credits"`
	SubjectGrades map[string]SubjectTermGrade `json:"subject_grades"`
}

// TermResult is the persisted cumulative outcome, upserted idempotently on
// (student_id, term_id).
type TermResult struct {
	ID            string    `db:"id" json:"id"`
	StudentID     string    `db:"student_id" json:"student_id"`
	TermID        string    `db:"term_id" json:"term_id"`
	GPA           float64   `db:"gpa" json:"gpa"`
	TotalCredits  float64   `db:"total_credits" json:"total_credits"`
	EarnedCredits float64   `db:"earned_credits" json:"earned_credits"`
	CalculatedAt  time.Time `db:"calculated_at" json:"calculated_at"`
}

// GradeHistory is an append-only audit record of a grade-affecting mutation.
// AssessmentID carries the activity id, or the term id when a rollup result
// is recorded.
type GradeHistory struct {
	ID            string    `db:"id" json:"id"`
	StudentID     string    `db:"student_id" json:"student_id"`
	SubjectID     string    `db:"subject_id" json:"subject_id"`
	AssessmentID  string    `db:"assessment_id" json:"assessment_id"`
	GradeValue    float64   `db:"grade_value" json:"grade_value"`
	PreviousValue *float64  `db:"previous_value" json:"previous_value,omitempty"`
	ModifiedBy    string    `db:"modified_by" json:"modified_by"`
	Reason        string    `db:"reason" json:"reason"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// GradeHistoryFilter scopes history queries.
type GradeHistoryFilter struct {
	StudentID string
	SubjectID string
	Page      int
	PageSize  int
}

// GradeValidationResult accumulates every policy violation of a grade entry
// instead of stopping at the first one.
type GradeValidationResult struct {
	IsValid bool                   `json:"is_valid"`
	Errors  []GradeValidationIssue `json:"errors,omitempty"`
}

// GradeValidationIssue is a single violation with a stable code.
type GradeValidationIssue struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Validation issue codes.
const (
	ValidationCodeRange             = "GRADE_OUT_OF_RANGE"
	ValidationCodeMissingRequired   = "MISSING_REQUIRED_ASSESSMENT"
	ValidationCodeAttendance        = "ATTENDANCE_BELOW_MINIMUM"
	ValidationCodeWeightageSum      = "WEIGHTAGE_SUM_INVALID"
	ValidationCodeWeightageNegative = "WEIGHTAGE_NEGATIVE"
)

// ClassStatistics summarises recorded term grades across a class.
type ClassStatistics struct {
	ClassID       string  `json:"class_id"`
	TermID        string  `json:"term_id"`
	AverageGrade  float64 `json:"average_grade"`
	PassRate      float64 `json:"pass_rate"`
	TotalStudents int     `json:"total_students"`
}

// BatchItemError identifies a failed (student, subject) cell of a batch run
// with enough context to re-run just that cell.
type BatchItemError struct {
	StudentID string `json:"student_id"`
	SubjectID string `json:"subject_id"`
	TermID    string `json:"term_id"`
	Attempts  int    `json:"attempts"`
	Message   string `json:"message"`
}

// BatchRecalculationResult summarises a class-wide recalculation run.
type BatchRecalculationResult struct {
	ClassID   string           `json:"class_id"`
	TermID    string           `json:"term_id"`
	Processed int              `json:"processed"`
	Succeeded int              `json:"succeeded"`
	Failed    []BatchItemError `json:"failed,omitempty"`
}

// SubjectGradeSummary is the unweighted obtained/total view over all term
// assessments of a subject. It is intentionally distinct from the weighted
// SubjectTermGrade.
type SubjectGradeSummary struct {
	ClassID       string  `json:"class_id"`
	SubjectID     string  `json:"subject_id"`
	TermID        string  `json:"term_id"`
	ObtainedMarks float64 `json:"obtained_marks"`
	TotalMarks    float64 `json:"total_marks"`
	Percentage    float64 `json:"percentage"`
}
