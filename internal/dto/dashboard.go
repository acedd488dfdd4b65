package dto

// DashboardQuery captures the query parameters of the dashboard endpoint.
type DashboardQuery struct {
	View           string `form:"view"`
	Types          string `form:"types"`
	MissionID      string `form:"mission_id"`
	CreatedBy      string `form:"created_by"`
	AssignedTo     string `form:"assigned_to"`
	UnassignedOnly bool   `form:"unassigned_only"`
	Refresh        bool   `form:"refresh"`
	Since          string `form:"since"`
}
