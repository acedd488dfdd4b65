package service

import (
	"github.com/seventic/ops-api/internal/models"
)

// View identifies one dashboard tab over the request population.
type View string

const (
	ViewAll           View = "all"
	ViewToAssign      View = "to_assign"
	ViewMyAssignments View = "my_assignments"
	ViewPending       View = "pending"
	ViewInProgress    View = "inprogress"
	ViewCompleted     View = "completed"
	ViewLate          View = "late"
)

// AllViews lists every view in counter order.
var AllViews = []View{ViewAll, ViewToAssign, ViewMyAssignments, ViewPending, ViewInProgress, ViewCompleted, ViewLate}

// ParseView resolves a raw selector. Unknown values degrade to ViewAll so a
// stale or future tab name shows everything active instead of failing.
func ParseView(raw string) View {
	switch View(raw) {
	case ViewAll, ViewToAssign, ViewMyAssignments, ViewPending, ViewInProgress, ViewCompleted, ViewLate:
		return View(raw)
	}
	switch raw {
	case "toassign", "to-assign":
		return ViewToAssign
	case "in_progress":
		return ViewInProgress
	}
	return ViewAll
}

// Viewer is the slice of the acting user's identity the engine scopes by.
type Viewer struct {
	ID   string
	Role models.UserRole
}

// SpecialFilters are admin drill-down overrides that inspect a specific
// creator's or assignee's requests outside the normal role lens.
type SpecialFilters struct {
	CreatedBy      string
	AssignedTo     string
	UnassignedOnly bool
}

// Empty reports whether no special filter is set.
func (f SpecialFilters) Empty() bool {
	return f.CreatedBy == "" && f.AssignedTo == "" && !f.UnassignedOnly
}

// RequestCounters carries the seven dashboard counters. All fields are always
// present; an empty category is zero, never omitted.
type RequestCounters struct {
	All           int `json:"all"`
	ToAssign      int `json:"to_assign"`
	MyAssignments int `json:"my_assignments"`
	Pending       int `json:"pending"`
	InProgress    int `json:"inprogress"`
	Completed     int `json:"completed"`
	Late          int `json:"late"`
}

// ByView returns the counter matching a view name.
func (c RequestCounters) ByView(v View) int {
	switch v {
	case ViewToAssign:
		return c.ToAssign
	case ViewMyAssignments:
		return c.MyAssignments
	case ViewPending:
		return c.Pending
	case ViewInProgress:
		return c.InProgress
	case ViewCompleted:
		return c.Completed
	case ViewLate:
		return c.Late
	default:
		return c.All
	}
}

// FilterEngine is the single source of truth for which requests a viewer sees
// and what the summary counters say. It is a pure computation over normalized
// in-memory requests: no I/O, safe to re-run on every call.
type FilterEngine struct{}

// NewFilterEngine constructs the engine.
func NewFilterEngine() *FilterEngine {
	return &FilterEngine{}
}

// Filter applies special filters, role scoping and the selected view in that
// order, returning the visible requests plus counters computed against the
// same scoped base so list and badges can never drift apart.
func (e *FilterEngine) Filter(requests []models.Request, viewer Viewer, special SpecialFilters, view View) ([]models.Request, RequestCounters) {
	scoped := e.Scope(requests, viewer, special)
	return e.Select(scoped, viewer, view), e.Counters(scoped, viewer)
}

// Scope runs the special-filter pass and the role pass. Special filters are
// AND-combined; when any is set and the viewer is an admin, role scoping is
// skipped entirely (the override replaces the role lens for admins only).
func (e *FilterEngine) Scope(requests []models.Request, viewer Viewer, special SpecialFilters) []models.Request {
	scoped := requests
	hasSpecial := !special.Empty()
	if hasSpecial {
		scoped = filterRequests(scoped, func(r *models.Request) bool {
			if special.CreatedBy != "" && r.CreatedBy != special.CreatedBy {
				return false
			}
			if special.AssignedTo != "" && r.AssignedTo != special.AssignedTo {
				return false
			}
			if special.UnassignedOnly && !r.Unassigned() {
				return false
			}
			return true
		})
	}

	if hasSpecial && viewer.Role == models.RoleAdmin {
		return scoped
	}

	switch viewer.Role {
	case models.RoleSDR:
		return filterRequests(scoped, func(r *models.Request) bool {
			return r.CreatedBy == viewer.ID
		})
	case models.RoleGrowth:
		return filterRequests(scoped, func(r *models.Request) bool {
			return r.TargetRole != models.RoleSDR
		})
	default:
		return scoped
	}
}

// Select picks the view's slice of an already-scoped set. Every view except
// "completed" operates on the active subset; "completed" must look at the
// full scoped set, since completed requests are inactive by definition.
func (e *FilterEngine) Select(scoped []models.Request, viewer Viewer, view View) []models.Request {
	if view == ViewCompleted {
		return filterRequests(scoped, func(r *models.Request) bool {
			return effectiveWorkflow(r) == models.WorkflowCompleted
		})
	}

	active := filterRequests(scoped, func(r *models.Request) bool {
		return effectiveWorkflow(r).IsActive()
	})

	switch view {
	case ViewToAssign:
		return filterRequests(active, func(r *models.Request) bool {
			return r.Unassigned()
		})
	case ViewMyAssignments:
		return filterRequests(active, func(r *models.Request) bool {
			return r.AssignedTo == viewer.ID
		})
	case ViewPending:
		if viewer.Role == models.RoleSDR {
			return filterRequests(active, func(r *models.Request) bool {
				return r.CreatedBy == viewer.ID && (r.Unassigned() || effectiveWorkflow(r) == models.WorkflowPendingAssignment)
			})
		}
		return filterRequests(active, func(r *models.Request) bool {
			return r.Status == models.StatusPending || effectiveWorkflow(r) == models.WorkflowPendingAssignment
		})
	case ViewInProgress:
		return filterRequests(active, func(r *models.Request) bool {
			return effectiveWorkflow(r) == models.WorkflowInProgress
		})
	case ViewLate:
		return filterRequests(active, func(r *models.Request) bool {
			return r.IsLate
		})
	default:
		return active
	}
}

// Counters re-runs view selection for every view against the same scoped set.
func (e *FilterEngine) Counters(scoped []models.Request, viewer Viewer) RequestCounters {
	return RequestCounters{
		All:           len(e.Select(scoped, viewer, ViewAll)),
		ToAssign:      len(e.Select(scoped, viewer, ViewToAssign)),
		MyAssignments: len(e.Select(scoped, viewer, ViewMyAssignments)),
		Pending:       len(e.Select(scoped, viewer, ViewPending)),
		InProgress:    len(e.Select(scoped, viewer, ViewInProgress)),
		Completed:     len(e.Select(scoped, viewer, ViewCompleted)),
		Late:          len(e.Select(scoped, viewer, ViewLate)),
	}
}

// effectiveWorkflow fails toward visibility: a record with no workflow status
// is treated as awaiting assignment rather than silently hidden.
func effectiveWorkflow(r *models.Request) models.WorkflowStatus {
	if r.WorkflowStatus == "" {
		return models.WorkflowPendingAssignment
	}
	return r.WorkflowStatus
}

func filterRequests(in []models.Request, keep func(*models.Request) bool) []models.Request {
	out := make([]models.Request, 0, len(in))
	for i := range in {
		if keep(&in[i]) {
			out = append(out, in[i])
		}
	}
	return out
}
