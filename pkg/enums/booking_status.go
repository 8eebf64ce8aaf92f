package enums

import "fmt"

// BookingStatus maps to the bookings.status column.
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusDeclined  BookingStatus = "declined"
	BookingStatusCancelled BookingStatus = "cancelled"
)

var validBookingStatuses = []BookingStatus{
	BookingStatusPending,
	BookingStatusConfirmed,
	BookingStatusCompleted,
	BookingStatusDeclined,
	BookingStatusCancelled,
}

// IsValid reports whether the value matches a known booking status.
func (s BookingStatus) IsValid() bool {
	for _, candidate := range validBookingStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// HoldsSlot reports whether a booking in this status occupies one unit of skill capacity.
func (s BookingStatus) HoldsSlot() bool {
	return s == BookingStatusConfirmed
}

// ParseBookingStatus converts raw input into BookingStatus.
func ParseBookingStatus(value string) (BookingStatus, error) {
	for _, candidate := range validBookingStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid booking status %q", value)
}

// BookingRole selects which side of a booking a listing is for.
type BookingRole string

const (
	BookingRoleRequester BookingRole = "requester"
	BookingRoleProvider  BookingRole = "provider"
	BookingRoleAny       BookingRole = "any"
)

// ParseBookingRole converts raw input into BookingRole; empty input means any.
func ParseBookingRole(value string) (BookingRole, error) {
	switch BookingRole(value) {
	case "", BookingRoleAny:
		return BookingRoleAny, nil
	case BookingRoleRequester, BookingRoleProvider:
		return BookingRole(value), nil
	}
	return "", fmt.Errorf("invalid booking role %q", value)
}
