package appointment

// transitions lists the states reachable from each state. Completed and
// Cancelled are terminal.
var transitions = map[Status][]Status{
	StatusPending:   {StatusBooked, StatusApproved, StatusCancelled},
	StatusBooked:    {StatusApproved, StatusCancelled},
	StatusApproved:  {StatusCompleted, StatusCancelled},
	StatusCompleted: {},
	StatusCancelled: {},
}

// ParseStatus returns the Status named by s, or false for anything outside
// the enumeration.
func ParseStatus(s string) (Status, bool) {
	st := Status(s)
	_, ok := transitions[st]
	return st, ok
}

// IsTerminal reports whether no transition leaves s.
func IsTerminal(s Status) bool {
	next, ok := transitions[s]
	return ok && len(next) == 0
}

// CanTransition reports whether an appointment in from may move to to.
// Re-writing the current status is always allowed.
func CanTransition(from, to Status) bool {
	if _, ok := transitions[to]; !ok {
		return false
	}
	if from == to {
		return true
	}
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
