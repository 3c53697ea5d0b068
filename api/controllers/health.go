package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/delgo-app/delgo-backend/api/responses"
	"github.com/delgo-app/delgo-backend/pkg/config"
	pkgerrors "github.com/delgo-app/delgo-backend/pkg/errors"
	"github.com/delgo-app/delgo-backend/pkg/logger"
)

const readinessTimeout = 3 * time.Second

// Pinger is the health probe each backing client exposes.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Delgo-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every wired backing service. Nil dependencies are
// skipped so partial deployments can still report ready.
func HealthReady(cfg *config.Config, logg *logger.Logger, db, redis, broker Pinger) http.HandlerFunc {
	deps := map[string]Pinger{
		"postgres": db,
		"redis":    redis,
		"pubsub":   broker,
	}
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Delgo-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		for name, dep := range deps {
			if dep == nil {
				continue
			}
			if err := dep.Ping(ctx); err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.Wrap(pkgerrors.CodeDependency, err, name+" unavailable").
						WithDetails(map[string]string{"dependency": name}))
				return
			}
		}
		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
