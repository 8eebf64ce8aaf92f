package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/timecredit-backend/api/responses"
	"github.com/angelmondragon/timecredit-backend/pkg/config"
	"github.com/angelmondragon/timecredit-backend/pkg/db"
	pkgerrors "github.com/angelmondragon/timecredit-backend/pkg/errors"
	"github.com/angelmondragon/timecredit-backend/pkg/logger"
	"github.com/angelmondragon/timecredit-backend/pkg/redis"
)

const (
	envHeader    = "X-TimeCredit-Env"
	readyTimeout = 2 * time.Second
)

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings the database and Redis. A nil pinger is skipped.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP db.Pinger, redisP redis.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()

		checks := map[string]string{}
		failed := false
		if dbP != nil {
			checks["database"] = "ok"
			if err := dbP.Ping(ctx); err != nil {
				checks["database"] = "unavailable"
				failed = true
			}
		}
		if redisP != nil {
			checks["redis"] = "ok"
			if err := redisP.Ping(ctx); err != nil {
				checks["redis"] = "unavailable"
				failed = true
			}
		}
		if failed {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, "dependencies unavailable").WithDetails(checks))
			return
		}
		checks["status"] = "ready"
		responses.WriteSuccess(w, checks)
	}
}
