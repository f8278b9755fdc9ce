package models

import "time"

// GradeBook is the per-class container of subject grade records. It binds a
// class to the assessment system and term structure resolved at
// initialization time.
type GradeBook struct {
	ID                 string    `db:"id" json:"id"`
	ClassID            string    `db:"class_id" json:"class_id"`
	AssessmentSystemID string    `db:"assessment_system_id" json:"assessment_system_id"`
	TermStructureID    string    `db:"term_structure_id" json:"term_structure_id"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

// SubjectGradeRecord stores the derived grade maps of one subject. Records
// created at gradebook initialization carry an empty student id and act as
// the subject skeleton; recalculation upserts one record per
// (gradebook, subject, student). Both maps must round-trip through JSON
// without losing the numeric invariants.
type SubjectGradeRecord struct {
	ID           string                           `db:"id" json:"id"`
	GradeBookID  string                           `db:"gradebook_id" json:"gradebook_id"`
	SubjectID    string                           `db:"subject_id" json:"subject_id"`
	StudentID    string                           `db:"student_id" json:"student_id"`
	TermGrades   map[string]SubjectTermGrade      `json:"term_grades"`
	PeriodGrades map[string]AssessmentPeriodGrade `json:"period_grades"`
	CreatedAt    time.Time                        `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time                        `db:"updated_at" json:"updated_at"`
}
