package models

import "time"

// Subject represents an academic subject. Credits feed the credit-weighted
// GPA and are read from this static profile at calculation time.
type Subject struct {
	ID           string    `db:"id" json:"id"`
	Code         string    `db:"code" json:"code"`
	Name         string    `db:"name" json:"name"`
	Credits      float64   `db:"credits" json:"credits"`
	ClassGroupID string    `db:"class_group_id" json:"class_group_id"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}
