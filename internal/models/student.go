package models

import "time"

// Student is the roster view the gradebook works with. Master data lives in
// the student information service; only the fields grade aggregation and
// report rendering need are mirrored here.
type Student struct {
	ID        string    `db:"id" json:"id"`
	FullName  string    `db:"full_name" json:"full_name"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
