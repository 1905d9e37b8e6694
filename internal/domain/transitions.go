package domain

// bookingTransitions is the adjacency table of the booking state machine.
// completed and cancelled are terminal.
var bookingTransitions = map[BookingStatus][]BookingStatus{
	StatusPending:            {StatusConfirmed, StatusCancelled},
	StatusConfirmed:          {StatusTechnicianAssigned, StatusCancelled},
	StatusTechnicianAssigned: {StatusEnRoute, StatusCancelled},
	StatusEnRoute:            {StatusInProgress, StatusCancelled},
	StatusInProgress:         {StatusQuotationPending, StatusCompleted, StatusCancelled},
	StatusQuotationPending:   {StatusInProgress, StatusCompleted, StatusCancelled},
	StatusCompleted:          {},
	StatusCancelled:          {},
}

// technicianAssignableStatuses statuses from which a technician may be (re)assigned
var technicianAssignableStatuses = map[BookingStatus]bool{
	StatusPending:            true,
	StatusConfirmed:          true,
	StatusTechnicianAssigned: true,
	StatusEnRoute:            true,
}

// AllBookingStatuses lists every booking status in lifecycle order
var AllBookingStatuses = []BookingStatus{
	StatusPending,
	StatusConfirmed,
	StatusTechnicianAssigned,
	StatusEnRoute,
	StatusInProgress,
	StatusQuotationPending,
	StatusCompleted,
	StatusCancelled,
}

// CanTransition reports whether from -> to is an edge of the adjacency table
func CanTransition(from, to BookingStatus) bool {
	for _, allowed := range bookingTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// AllowedTransitions returns the statuses reachable from the given one
func AllowedTransitions(from BookingStatus) []BookingStatus {
	targets := bookingTransitions[from]
	out := make([]BookingStatus, len(targets))
	copy(out, targets)
	return out
}

// CanAssignTechnician reports whether a technician may be assigned in the given status
func CanAssignTechnician(status BookingStatus) bool {
	return technicianAssignableStatuses[status]
}

// IsValidBookingStatus checks a wire string against the known statuses
func IsValidBookingStatus(status string) bool {
	_, ok := bookingTransitions[BookingStatus(status)]
	return ok
}
