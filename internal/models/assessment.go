package models

import "time"

// AssessmentSystemType identifies the scoring mechanism of a program.
type AssessmentSystemType string

const (
	// AssessmentSystemMarkingScheme scores against a points table with letter-grade bands.
	AssessmentSystemMarkingScheme AssessmentSystemType = "MARKING_SCHEME"
	// AssessmentSystemRubric scores against criteria/level rubrics.
	AssessmentSystemRubric AssessmentSystemType = "RUBRIC"
	// AssessmentSystemCGPA converts percentages into grade points.
	AssessmentSystemCGPA AssessmentSystemType = "CGPA"
)

// AssessmentSystem is the program-level scoring mechanism. The CGPA grade
// point table is stored as an ordered, non-overlapping list covering [0,100].
type AssessmentSystem struct {
	ID              string               `db:"id" json:"id"`
	ProgramID       string               `db:"program_id" json:"program_id"`
	Name            string               `db:"name" json:"name"`
	Type            AssessmentSystemType `db:"type" json:"type"`
	CGPAGradePoints []CGPAGradePoint     `json:"cgpa_grade_points,omitempty"`
	IsActive        bool                 `db:"is_active" json:"is_active"`
	CreatedAt       time.Time            `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time            `db:"updated_at" json:"updated_at"`
}

// CGPAGradePoint maps a percentage band to a grade point value.
type CGPAGradePoint struct {
	Grade         string  `json:"grade"`
	Points        float64 `json:"points"`
	MinPercentage float64 `json:"min_percentage"`
	MaxPercentage float64 `json:"max_percentage"`
}

// MarkingScheme is a points-based scoring method with letter-grade bands.
type MarkingScheme struct {
	ID           string             `db:"id" json:"id"`
	Name         string             `db:"name" json:"name"`
	MaxMarks     float64            `db:"max_marks" json:"max_marks"`
	PassingMarks float64            `db:"passing_marks" json:"passing_marks"`
	GradingScale []GradingScaleBand `json:"grading_scale"`
	CreatedAt    time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time          `db:"updated_at" json:"updated_at"`
}

// GradingScaleBand maps a percentage range to a letter grade.
type GradingScaleBand struct {
	Grade         string  `json:"grade"`
	MinPercentage float64 `json:"min_percentage"`
	MaxPercentage float64 `json:"max_percentage"`
}

// Contains reports whether the percentage falls inside the band.
func (b GradingScaleBand) Contains(percentage float64) bool {
	return percentage >= b.MinPercentage && percentage <= b.MaxPercentage
}

// Midpoint returns the representative value of the band. Marking-scheme
// grading snaps a score to this value so two scores in the same band compare
// as equal.
func (b GradingScaleBand) Midpoint() float64 {
	return (b.MinPercentage + b.MaxPercentage) / 2
}

// Rubric is a criteria/levels based qualitative scoring method.
type Rubric struct {
	ID        string           `db:"id" json:"id"`
	Name      string           `db:"name" json:"name"`
	Criteria  []RubricCriteria `json:"criteria"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt time.Time        `db:"updated_at" json:"updated_at"`
}

// RubricCriteria is one scored dimension of a rubric.
type RubricCriteria struct {
	ID       string        `db:"id" json:"id"`
	RubricID string        `db:"rubric_id" json:"rubric_id"`
	Name     string        `db:"name" json:"name"`
	Position int           `db:"position" json:"position"`
	Levels   []RubricLevel `json:"levels"`
}

// MaxPoints returns the highest level points of the criterion.
func (c RubricCriteria) MaxPoints() float64 {
	max := 0.0
	for _, level := range c.Levels {
		if level.Points > max {
			max = level.Points
		}
	}
	return max
}

// RubricLevel is an achievable level within a criterion.
type RubricLevel struct {
	ID         string  `db:"id" json:"id"`
	CriteriaID string  `db:"criteria_id" json:"criteria_id"`
	Name       string  `db:"name" json:"name"`
	Points     float64 `db:"points" json:"points"`
	Position   int     `db:"position" json:"position"`
}

// Assessment is a gradable activity instance within a subject and period.
// At most one of MarkingSchemeID / RubricID is set; neither means the
// submission is scored as a raw percentage of TotalPoints.
type Assessment struct {
	ID              string    `db:"id" json:"id"`
	ClassID         string    `db:"class_id" json:"class_id"`
	SubjectID       string    `db:"subject_id" json:"subject_id"`
	PeriodID        string    `db:"period_id" json:"period_id"`
	Title           string    `db:"title" json:"title"`
	Type            string    `db:"type" json:"type"`
	TotalPoints     float64   `db:"total_points" json:"total_points"`
	MarkingSchemeID *string   `db:"marking_scheme_id" json:"marking_scheme_id,omitempty"`
	RubricID        *string   `db:"rubric_id" json:"rubric_id,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// SubmissionStatus represents the lifecycle of a submission.
type SubmissionStatus string

const (
	SubmissionStatusSubmitted SubmissionStatus = "SUBMITTED"
	SubmissionStatusGraded    SubmissionStatus = "GRADED"
	SubmissionStatusLate      SubmissionStatus = "LATE"
	SubmissionStatusMissing   SubmissionStatus = "MISSING"
)

// Submission holds a student's raw score for one assessment. ObtainedMarks
// and RubricScores are mutually exclusive.
type Submission struct {
	ID            string           `db:"id" json:"id"`
	AssessmentID  string           `db:"assessment_id" json:"assessment_id"`
	StudentID     string           `db:"student_id" json:"student_id"`
	ObtainedMarks *float64         `db:"obtained_marks" json:"obtained_marks,omitempty"`
	RubricScores  []RubricScore    `json:"rubric_scores,omitempty"`
	Status        SubmissionStatus `db:"status" json:"status"`
	CreatedAt     time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time        `db:"updated_at" json:"updated_at"`
}

// RubricScore records the level awarded for one criterion.
type RubricScore struct {
	CriteriaID string `json:"criteria_id"`
	LevelID    string `json:"level_id"`
}

// SubmissionFilter scopes submission queries.
type SubmissionFilter struct {
	StudentID string
	SubjectID string
	PeriodID  string
}
