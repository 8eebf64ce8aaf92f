package controllers

import (
	"net/http"

	"github.com/angelmondragon/timecredit-backend/api/middleware"
	"github.com/angelmondragon/timecredit-backend/api/responses"
	"github.com/angelmondragon/timecredit-backend/api/validators"
	"github.com/angelmondragon/timecredit-backend/internal/reviews"
	"github.com/angelmondragon/timecredit-backend/internal/skills"
	pkgerrors "github.com/angelmondragon/timecredit-backend/pkg/errors"
	"github.com/angelmondragon/timecredit-backend/pkg/logger"
)

const maxSkillTitle = 120

type createSkillRequest struct {
	Title          string `json:"title" validate:"required,max=120"`
	CreditsPerHour int    `json:"credits_per_hour" validate:"required,min=1"`
	AvailableSlots int    `json:"available_slots" validate:"min=0"`
}

// SkillCreate publishes a skill owned by the acting user.
func SkillCreate(svc skills.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing acting user"))
			return
		}

		var req createSkillRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		skill, err := svc.Create(r.Context(), skills.CreateSkillInput{
			ProviderID:     actor,
			Title:          validators.SanitizeString(req.Title, maxSkillTitle),
			CreditsPerHour: req.CreditsPerHour,
			AvailableSlots: req.AvailableSlots,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, skill)
	}
}

func SkillGet(svc skills.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "skillId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		skill, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, skill)
	}
}

func SkillDeactivate(svc skills.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "skillId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		skill, err := svc.Deactivate(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, skill)
	}
}

// SkillReviews pages through a skill's reviews, newest first.
func SkillReviews(svc reviews.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "skillId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.ListForSkill(r.Context(), id, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}
