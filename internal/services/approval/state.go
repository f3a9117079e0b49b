package approval

import "voucly/internal/models"

// transitions is the operation status graph. Anything absent is illegal;
// terminal statuses have no outgoing edges.
var transitions = map[string][]string{
	models.OperationStatusPending: {
		models.OperationStatusApproved,
		models.OperationStatusRejected,
		models.OperationStatusExpired,
	},
	models.OperationStatusApproved: {
		models.OperationStatusExecuted,
		models.OperationStatusFailed,
		models.OperationStatusExpired,
	},
}

// CanTransition reports whether status may move from one value to another.
func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status accepts no further transitions.
func IsTerminal(status string) bool {
	return models.TerminalOperationStatuses[status]
}
