package controllers

import (
	"context"
	"net/http"

	"github.com/dariovega/shopstream-backend/api/responses"
	"github.com/dariovega/shopstream-backend/pkg/config"
	"github.com/dariovega/shopstream-backend/pkg/db"
	pkgerrors "github.com/dariovega/shopstream-backend/pkg/errors"
	"github.com/dariovega/shopstream-backend/pkg/logger"
	"github.com/dariovega/shopstream-backend/pkg/redis"
)

const envHeader = "X-ShopStream-Env"

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports ready only when the datastore and redis answer pings.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP db.Pinger, redisP redis.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)

		checks := map[string]func(context.Context) error{}
		if dbP != nil {
			checks["db"] = dbP.Ping
		}
		if redisP != nil {
			checks["redis"] = redisP.Ping
		}

		for name, ping := range checks {
			if err := ping(r.Context()); err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.Wrap(pkgerrors.CodeDependency, err, name+" unavailable"))
				return
			}
		}

		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
