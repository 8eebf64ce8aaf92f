package controllers

import (
	"net/http"

	"github.com/angelmondragon/timecredit-backend/api/middleware"
	"github.com/angelmondragon/timecredit-backend/api/responses"
	"github.com/angelmondragon/timecredit-backend/api/validators"
	"github.com/angelmondragon/timecredit-backend/internal/bookings"
	"github.com/angelmondragon/timecredit-backend/internal/ledger"
	pkgerrors "github.com/angelmondragon/timecredit-backend/pkg/errors"
	"github.com/angelmondragon/timecredit-backend/pkg/logger"
)

type reverseRequest struct {
	Reason string `json:"reason" validate:"max=280"`
}

// TransactionHistory lists the acting user's ledger entries: what they spent
// as a requester and what they earned as a provider.
func TransactionHistory(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing acting user"))
			return
		}
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.ListForUser(r.Context(), actor, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// AdminReverseEntry reverses a completed ledger pair and cancels its booking.
// The body is optional.
func AdminReverseEntry(svc bookings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := middleware.ActorFromContext(r.Context())
		entryID, err := validators.ParseUUIDParam(r, "entryId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req reverseRequest
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		booking, err := svc.ReverseLedgerEntry(r.Context(), entryID, bookings.TransitionContext{
			ActorID: actor,
			Reason:  validators.SanitizeString(req.Reason, maxReasonLen),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, booking)
	}
}
