package models

import "time"

// MissionStatus tracks the commercial state of a mission.
type MissionStatus string

const (
	MissionActive    MissionStatus = "active"
	MissionPaused    MissionStatus = "paused"
	MissionCompleted MissionStatus = "completed"
)

// Mission is a client engagement grouping related requests under one SDR.
type Mission struct {
	ID        string        `db:"id" json:"id"`
	Name      string        `db:"name" json:"name"`
	SDRID     string        `db:"sdr_id" json:"sdr_id"`
	Status    MissionStatus `db:"status" json:"status"`
	StartDate *time.Time    `db:"start_date" json:"start_date,omitempty"`
	EndDate   *time.Time    `db:"end_date" json:"end_date,omitempty"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt time.Time     `db:"updated_at" json:"updated_at"`
}

// MissionFilter narrows down missions.
type MissionFilter struct {
	SDRID    string
	Status   *MissionStatus
	Search   string
	Page     int
	PageSize int
}
