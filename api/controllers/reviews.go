package controllers

import (
	"net/http"

	"github.com/angelmondragon/timecredit-backend/api/middleware"
	"github.com/angelmondragon/timecredit-backend/api/responses"
	"github.com/angelmondragon/timecredit-backend/api/validators"
	"github.com/angelmondragon/timecredit-backend/internal/reviews"
	pkgerrors "github.com/angelmondragon/timecredit-backend/pkg/errors"
	"github.com/angelmondragon/timecredit-backend/pkg/logger"
)

const maxCommentLen = 2000

type submitReviewRequest struct {
	SkillID string  `json:"skill_id" validate:"required,uuid"`
	Rating  int     `json:"rating" validate:"required,min=1,max=5"`
	Comment *string `json:"comment"`
}

// ReviewSubmit records the acting user's review of a completed booking.
func ReviewSubmit(svc reviews.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing acting user"))
			return
		}
		bookingID, err := validators.ParseUUIDParam(r, "bookingId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req submitReviewRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		skillID, err := parseUUID(req.SkillID, "skill_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if req.Comment != nil {
			comment := validators.SanitizeString(*req.Comment, maxCommentLen)
			req.Comment = &comment
		}

		review, err := svc.ApplyReview(r.Context(), reviews.ApplyReviewInput{
			SkillID:    skillID,
			BookingID:  bookingID,
			ReviewerID: actor,
			Rating:     req.Rating,
			Comment:    req.Comment,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, review)
	}
}
