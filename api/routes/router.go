package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/timecredit-backend/api/controllers"
	"github.com/angelmondragon/timecredit-backend/api/middleware"
	"github.com/angelmondragon/timecredit-backend/internal/balances"
	"github.com/angelmondragon/timecredit-backend/internal/bookings"
	"github.com/angelmondragon/timecredit-backend/internal/ledger"
	"github.com/angelmondragon/timecredit-backend/internal/reviews"
	"github.com/angelmondragon/timecredit-backend/internal/skills"
	"github.com/angelmondragon/timecredit-backend/pkg/config"
	"github.com/angelmondragon/timecredit-backend/pkg/db"
	"github.com/angelmondragon/timecredit-backend/pkg/logger"
	"github.com/angelmondragon/timecredit-backend/pkg/metrics"
	"github.com/angelmondragon/timecredit-backend/pkg/redis"
)

// Services groups the domain services exposed over HTTP.
type Services struct {
	Balances balances.Service
	Skills   skills.Service
	Bookings bookings.Service
	Reviews  reviews.Service
	Ledger   ledger.Service
}

// Observability carries the scrape handler and request metrics. Either may be nil.
type Observability struct {
	Handler http.Handler
	HTTP    *metrics.HTTPMetrics
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisP redis.Pinger,
	idempotency redis.IdempotencyStore,
	obs Observability,
	svc Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(obs.HTTP),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})
	if obs.Handler != nil {
		r.Handle("/metrics", obs.Handler)
	}

	once := middleware.Idempotency(idempotency, middleware.DefaultIdempotencyTTL, logg)
	critical := middleware.Idempotency(idempotency, middleware.CriticalIdempotencyTTL, logg)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Actor(logg))

		r.With(once).Post("/accounts", controllers.AccountOpen(svc.Balances, logg))
		r.Get("/balances/me", controllers.BalanceMe(svc.Balances, logg))
		r.Get("/transactions", controllers.TransactionHistory(svc.Ledger, logg))

		r.Route("/skills", func(r chi.Router) {
			r.With(once).Post("/", controllers.SkillCreate(svc.Skills, logg))
			r.Get("/{skillId}", controllers.SkillGet(svc.Skills, logg))
			r.With(once).Post("/{skillId}/deactivate", controllers.SkillDeactivate(svc.Skills, logg))
			r.Get("/{skillId}/reviews", controllers.SkillReviews(svc.Reviews, logg))
		})

		r.Route("/bookings", func(r chi.Router) {
			r.Get("/", controllers.BookingList(svc.Bookings, logg))
			r.With(once).Post("/", controllers.BookingCreate(svc.Bookings, logg))
			r.Get("/{bookingId}", controllers.BookingGet(svc.Bookings, logg))
			r.With(critical).Post("/{bookingId}/transitions", controllers.BookingTransition(svc.Bookings, logg))
			r.With(critical).Post("/{bookingId}/reviews", controllers.ReviewSubmit(svc.Reviews, logg))
		})

		r.Route("/admin", func(r chi.Router) {
			r.With(critical).Post("/ledger/{entryId}/reverse", controllers.AdminReverseEntry(svc.Bookings, logg))
		})
	})

	return r
}
