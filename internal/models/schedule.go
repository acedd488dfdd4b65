package models

import "time"

// WorkLocation is where a user works on a given day.
type WorkLocation string

const (
	LocationOffice WorkLocation = "office"
	LocationRemote WorkLocation = "remote"
	LocationOff    WorkLocation = "off"
)

// Valid reports whether the location is a known value.
func (l WorkLocation) Valid() bool {
	switch l {
	case LocationOffice, LocationRemote, LocationOff:
		return true
	}
	return false
}

// ScheduleEntry is one user's work location for one calendar day.
type ScheduleEntry struct {
	ID        string       `db:"id" json:"id"`
	UserID    string       `db:"user_id" json:"user_id"`
	Day       time.Time    `db:"day" json:"day"`
	Location  WorkLocation `db:"location" json:"location"`
	Note      string       `db:"note" json:"note,omitempty"`
	CreatedAt time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt time.Time    `db:"updated_at" json:"updated_at"`
}

// ScheduleFilter bounds schedule queries to a user and/or date range.
type ScheduleFilter struct {
	UserID string
	From   *time.Time
	To     *time.Time
}
