package model

// StatusPolicy describes which statuses an API version accepts on update and
// which transitions between them it permits.
type StatusPolicy struct {
	name    string
	allowed []TaskStatus
	forward bool
}

var (
	// V1Statuses accepts new and completed, and never moves a task backwards.
	V1Statuses = StatusPolicy{
		name:    "v1",
		allowed: []TaskStatus{TaskStatusNew, TaskStatusCompleted},
		forward: true,
	}
	// V2Statuses accepts every status in any order.
	V2Statuses = StatusPolicy{
		name:    "v2",
		allowed: []TaskStatus{TaskStatusNew, TaskStatusInProgress, TaskStatusCompleted},
	}
)

// Name identifies the policy in logs and error messages.
func (p StatusPolicy) Name() string {
	return p.name
}

// Allows reports whether s may be written under this policy.
func (p StatusPolicy) Allows(s TaskStatus) bool {
	for _, a := range p.allowed {
		if a == s {
			return true
		}
	}
	return false
}

// Allowed returns the accepted statuses in display order.
func (p StatusPolicy) Allowed() []TaskStatus {
	out := make([]TaskStatus, len(p.allowed))
	copy(out, p.allowed)
	return out
}

// CanTransition reports whether a stored status may change from -> to.
func (p StatusPolicy) CanTransition(from, to TaskStatus) bool {
	if !p.Allows(to) {
		return false
	}
	if !p.forward {
		return true
	}
	return rank(to) >= rank(from)
}

func rank(s TaskStatus) int {
	switch s {
	case TaskStatusNew:
		return 0
	case TaskStatusInProgress:
		return 1
	case TaskStatusCompleted:
		return 2
	default:
		return -1
	}
}
