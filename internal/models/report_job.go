package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ReportType enumerates supported asynchronous report categories.
type ReportType string

const (
	// ReportTypeReportCards renders one report-card row per student of a class.
	ReportTypeReportCards ReportType = "report_cards"
	// ReportTypeClassSummary renders aggregate class statistics for a term.
	ReportTypeClassSummary ReportType = "class_summary"
)

// ReportFormat enumerates supported export formats.
type ReportFormat string

const (
	ReportFormatCSV ReportFormat = "csv"
	ReportFormatPDF ReportFormat = "pdf"
)

// ContentType returns the MIME type served for the format.
func (f ReportFormat) ContentType() string {
	if f == ReportFormatPDF {
		return "application/pdf"
	}
	return "text/csv"
}

// ReportStatus captures background job lifecycle states.
type ReportStatus string

const (
	ReportStatusQueued     ReportStatus = "QUEUED"
	ReportStatusProcessing ReportStatus = "PROCESSING"
	ReportStatusFinished   ReportStatus = "FINISHED"
	ReportStatusFailed     ReportStatus = "FAILED"
)

// ReportJob persisted background job metadata.
type ReportJob struct {
	ID           string          `db:"id" json:"id"`
	Type         ReportType      `db:"type" json:"type"`
	Params       ReportJobParams `db:"params" json:"params"`
	Status       ReportStatus    `db:"status" json:"status"`
	Progress     int             `db:"progress" json:"progress"`
	ResultURL    *string         `db:"result_url" json:"result_url,omitempty"`
	CreatedBy    string          `db:"created_by" json:"created_by"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	FinishedAt   *time.Time      `db:"finished_at" json:"finished_at,omitempty"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
}

// ReportJobParams stores request-scoped options persisted as JSONB.
type ReportJobParams struct {
	ClassID   string       `json:"classId"`
	TermID    string       `json:"termId"`
	StudentID *string      `json:"studentId,omitempty"`
	Format    ReportFormat `json:"format"`
}

// Value marshals params to JSON for persistence.
func (p ReportJobParams) Value() (driver.Value, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal report job params: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the params struct.
func (p *ReportJobParams) Scan(value interface{}) error {
	if value == nil {
		*p = ReportJobParams{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for ReportJobParams", value)
	}
	if len(data) == 0 {
		*p = ReportJobParams{}
		return nil
	}
	if err := json.Unmarshal(data, p); err != nil {
		return fmt.Errorf("unmarshal report job params: %w", err)
	}
	return nil
}

// ReportCard is a student's assembled term report: one line per subject
// plus the term-level cumulative result.
type ReportCard struct {
	StudentID     string              `json:"student_id"`
	StudentName   string              `json:"student_name,omitempty"`
	ClassID       string              `json:"class_id"`
	TermID        string              `json:"term_id"`
	Subjects      []ReportCardSubject `json:"subjects"`
	GPA           float64             `json:"gpa"`
	CGPA          float64             `json:"cgpa"`
	TotalCredits  float64             `json:"total_credits"`
	EarnedCredits float64             `json:"earned_credits"`
	GeneratedAt   time.Time           `json:"generated_at"`
}

// ReportCardSubject is one subject line of a report card.
type ReportCardSubject struct {
	SubjectID   string  `json:"subject_id"`
	SubjectName string  `json:"subject_name,omitempty"`
	Percentage  float64 `json:"percentage"`
	FinalGrade  string  `json:"final_grade,omitempty"`
	GradePoints float64 `json:"grade_points"`
	Credits     float64 `json:"credits"`
	IsPassing   bool    `json:"is_passing"`
	Ungraded    bool    `json:"ungraded"`
}
