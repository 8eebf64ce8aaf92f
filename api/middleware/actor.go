package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/timecredit-backend/api/responses"
	pkgerrors "github.com/angelmondragon/timecredit-backend/pkg/errors"
	"github.com/angelmondragon/timecredit-backend/pkg/logger"
)

// ActorHeader carries the user id resolved by the upstream identity layer.
const ActorHeader = "X-User-Id"

// Actor records the acting user from ActorHeader. The id is trusted as given;
// no permission checks happen here.
func Actor(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get(ActorHeader))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing acting user"))
				return
			}
			id, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid acting user"))
				return
			}

			ctx := WithUserID(r.Context(), id.String())
			if logg != nil {
				ctx = logg.WithUserID(ctx, id.String())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
