package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition_AdjacencyTable(t *testing.T) {
	allowed := map[BookingStatus]map[BookingStatus]bool{
		StatusPending:            {StatusConfirmed: true, StatusCancelled: true},
		StatusConfirmed:          {StatusTechnicianAssigned: true, StatusCancelled: true},
		StatusTechnicianAssigned: {StatusEnRoute: true, StatusCancelled: true},
		StatusEnRoute:            {StatusInProgress: true, StatusCancelled: true},
		StatusInProgress:         {StatusQuotationPending: true, StatusCompleted: true, StatusCancelled: true},
		StatusQuotationPending:   {StatusInProgress: true, StatusCompleted: true, StatusCancelled: true},
		StatusCompleted:          {},
		StatusCancelled:          {},
	}

	for _, from := range AllBookingStatuses {
		for _, to := range AllBookingStatuses {
			expected := allowed[from][to]
			assert.Equalf(t, expected, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestCanTransition_TerminalStates(t *testing.T) {
	for _, terminal := range []BookingStatus{StatusCompleted, StatusCancelled} {
		assert.Empty(t, AllowedTransitions(terminal))
		for _, to := range AllBookingStatuses {
			assert.False(t, CanTransition(terminal, to))
		}
	}
}

func TestCanTransition_UnknownStatus(t *testing.T) {
	assert.False(t, CanTransition("archived", StatusCancelled))
	assert.False(t, CanTransition(StatusPending, "archived"))
	assert.False(t, IsValidBookingStatus("archived"))
	assert.True(t, IsValidBookingStatus("en_route"))
}

func TestCanAssignTechnician(t *testing.T) {
	tests := []struct {
		status   BookingStatus
		expected bool
	}{
		{StatusPending, true},
		{StatusConfirmed, true},
		{StatusTechnicianAssigned, true},
		{StatusEnRoute, true},
		{StatusInProgress, false},
		{StatusQuotationPending, false},
		{StatusCompleted, false},
		{StatusCancelled, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.expected, CanAssignTechnician(tt.status))
		})
	}
}

func TestAllowedTransitions_ReturnsCopy(t *testing.T) {
	targets := AllowedTransitions(StatusPending)
	targets[0] = StatusCompleted

	assert.False(t, CanTransition(StatusPending, StatusCompleted))
}
