package controllers

import (
	"net/http"

	"github.com/angelmondragon/timecredit-backend/api/middleware"
	"github.com/angelmondragon/timecredit-backend/api/responses"
	"github.com/angelmondragon/timecredit-backend/internal/balances"
	pkgerrors "github.com/angelmondragon/timecredit-backend/pkg/errors"
	"github.com/angelmondragon/timecredit-backend/pkg/logger"
)

// AccountOpen creates the acting user's balance with the starting grant.
// Opening twice returns the existing balance with 200 instead of 201.
func AccountOpen(svc balances.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing acting user"))
			return
		}

		balance, created, err := svc.OpenAccount(r.Context(), actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		responses.WriteSuccessStatus(w, status, balance)
	}
}

// BalanceMe returns the acting user's balance.
func BalanceMe(svc balances.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing acting user"))
			return
		}
		balance, err := svc.GetBalance(r.Context(), actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, balance)
	}
}
