package bookings

import (
	"github.com/angelmondragon/timecredit-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/timecredit-backend/pkg/errors"
)

type effect int

const (
	effectNone effect = iota
	effectReserveSlot
	effectReleaseSlot
	effectTransfer
	effectReverse
)

type edge struct {
	from enums.BookingStatus
	to   enums.BookingStatus
}

// edges lists every allowed transition and the side effect it runs inside the unit.
var edges = map[edge]effect{
	{enums.BookingStatusPending, enums.BookingStatusConfirmed}:   effectReserveSlot,
	{enums.BookingStatusPending, enums.BookingStatusDeclined}:    effectNone,
	{enums.BookingStatusPending, enums.BookingStatusCancelled}:   effectNone,
	{enums.BookingStatusConfirmed, enums.BookingStatusCompleted}: effectTransfer,
	{enums.BookingStatusConfirmed, enums.BookingStatusDeclined}:  effectReleaseSlot,
	{enums.BookingStatusConfirmed, enums.BookingStatusCancelled}: effectReleaseSlot,
	{enums.BookingStatusCompleted, enums.BookingStatusCancelled}: effectReverse,
}

func lookupEdge(from, to enums.BookingStatus) (effect, error) {
	if eff, ok := edges[edge{from, to}]; ok {
		return eff, nil
	}
	if from == enums.BookingStatusCancelled && to == enums.BookingStatusCancelled {
		return effectNone, pkgerrors.New(pkgerrors.CodeAlreadyCancelled, "booking already cancelled")
	}
	return effectNone, pkgerrors.New(pkgerrors.CodeStateConflict, "booking transition not allowed").
		WithDetails(map[string]any{"from": from, "to": to})
}

// CanTransition reports whether from -> to is an allowed edge.
func CanTransition(from, to enums.BookingStatus) bool {
	_, ok := edges[edge{from, to}]
	return ok
}
