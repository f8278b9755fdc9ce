package models

import (
	"strings"
	"time"
)

// WeightageDistribution maps lowercase assessment categories (assignment,
// quiz, exam, project, ...) to relative weights. The values are used as
// relative weights and are only required to sum to 100 for batch operations.
type WeightageDistribution map[string]float64

// WeightFor resolves the weight of an assessment type. Unknown categories
// fall back to the provided default so they count once instead of silently
// dropping out of the average.
func (d WeightageDistribution) WeightFor(assessmentType string, fallback float64) float64 {
	if weight, ok := d[strings.ToLower(assessmentType)]; ok {
		return weight
	}
	return fallback
}

// Sum returns the total of all category weights.
func (d WeightageDistribution) Sum() float64 {
	total := 0.0
	for _, weight := range d {
		total += weight
	}
	return total
}

// PassingCriteria defines when a subject counts as passed.
type PassingCriteria struct {
	MinPercentage       *float64 `json:"min_percentage,omitempty"`
	RequiredAssessments []string `json:"required_assessments,omitempty"`
	MinAttendance       *float64 `json:"min_attendance,omitempty"`
}

// RequiresAssessment reports whether the assessment must carry a grade.
func (p PassingCriteria) RequiresAssessment(assessmentID string) bool {
	for _, id := range p.RequiredAssessments {
		if id == assessmentID {
			return true
		}
	}
	return false
}

// SubjectAssessmentConfig is the per-subject grading policy: relative
// category weights, passing criteria, and an optional letter-grade scale.
type SubjectAssessmentConfig struct {
	ID                    string                `db:"id" json:"id"`
	SubjectID             string                `db:"subject_id" json:"subject_id"`
	WeightageDistribution WeightageDistribution `json:"weightage_distribution"`
	PassingCriteria       PassingCriteria       `json:"passing_criteria"`
	LetterGradeScale      []GradingScaleBand    `json:"letter_grade_scale,omitempty"`
	CreatedAt             time.Time             `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time             `db:"updated_at" json:"updated_at"`
}

// PassingThreshold returns the configured minimum percentage or the fallback.
func (c *SubjectAssessmentConfig) PassingThreshold(fallback float64) float64 {
	if c != nil && c.PassingCriteria.MinPercentage != nil {
		return *c.PassingCriteria.MinPercentage
	}
	return fallback
}

// LetterGradeFor resolves the letter grade for a percentage, empty when no
// scale is configured or no band matches.
func (c *SubjectAssessmentConfig) LetterGradeFor(percentage float64) string {
	if c == nil {
		return ""
	}
	for _, band := range c.LetterGradeScale {
		if band.Contains(percentage) {
			return band.Grade
		}
	}
	return ""
}
