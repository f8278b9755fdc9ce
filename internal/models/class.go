package models

import "time"

// Class represents an academic class or section. ProgramID ties the class
// to the grading configuration of its program, ClassGroupID to the subject
// catalogue it follows. TermStructureID is stamped when the gradebook is
// initialized and pins the structure later recalculations resolve against.
type Class struct {
	ID              string    `db:"id" json:"id"`
	Name            string    `db:"name" json:"name"`
	ProgramID       string    `db:"program_id" json:"program_id"`
	ClassGroupID    string    `db:"class_group_id" json:"class_group_id"`
	TermStructureID *string   `db:"term_structure_id" json:"term_structure_id,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}
