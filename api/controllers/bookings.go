package controllers

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/timecredit-backend/api/middleware"
	"github.com/angelmondragon/timecredit-backend/api/responses"
	"github.com/angelmondragon/timecredit-backend/api/validators"
	"github.com/angelmondragon/timecredit-backend/internal/bookings"
	"github.com/angelmondragon/timecredit-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/timecredit-backend/pkg/errors"
	"github.com/angelmondragon/timecredit-backend/pkg/logger"
)

const maxReasonLen = 280

type createBookingRequest struct {
	SkillID       string  `json:"skill_id" validate:"required,uuid"`
	ScheduledDate string  `json:"scheduled_date" validate:"required,datetime=2006-01-02"`
	ScheduledTime string  `json:"scheduled_time" validate:"required,datetime=15:04"`
	Credits       int     `json:"credits" validate:"min=0"`
	MeetingRef    *string `json:"meeting_ref" validate:"omitempty,max=512"`
	Confirmed     bool    `json:"confirmed"`
}

type transitionRequest struct {
	Status      string `json:"status" validate:"required"`
	Reason      string `json:"reason" validate:"max=280"`
	Description string `json:"description" validate:"max=280"`
}

// BookingCreate requests a session on a skill for the acting user.
func BookingCreate(svc bookings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing acting user"))
			return
		}

		var req createBookingRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		skillID, err := parseUUID(req.SkillID, "skill_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		booking, err := svc.Create(r.Context(), bookings.CreateBookingInput{
			SkillID:       skillID,
			RequesterID:   actor,
			ScheduledDate: req.ScheduledDate,
			ScheduledTime: req.ScheduledTime,
			Credits:       req.Credits,
			MeetingRef:    req.MeetingRef,
			Confirmed:     req.Confirmed,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, booking)
	}
}

func BookingGet(svc bookings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "bookingId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		booking, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, booking)
	}
}

// BookingList returns the acting user's bookings. role is requester, provider
// or any; status narrows to one booking status.
func BookingList(svc bookings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing acting user"))
			return
		}

		role, err := enums.ParseBookingRole(strings.TrimSpace(r.URL.Query().Get("role")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid role"))
			return
		}
		filter := bookings.ListFilter{Role: role}
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParseBookingStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
				return
			}
			filter.Status = &status
		}

		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ListForUser(r.Context(), actor, filter, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// BookingTransition drives the booking state machine.
func BookingTransition(svc bookings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing acting user"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "bookingId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req transitionRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		target, err := enums.ParseBookingStatus(strings.TrimSpace(req.Status))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
			return
		}

		booking, err := svc.RequestTransition(r.Context(), id, target, bookings.TransitionContext{
			ActorID:     actor,
			Reason:      validators.SanitizeString(req.Reason, maxReasonLen),
			Description: validators.SanitizeString(req.Description, maxReasonLen),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, booking)
	}
}
