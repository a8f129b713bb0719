package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/s8nclone/receipt-pipeline/api/responses"
	"github.com/s8nclone/receipt-pipeline/pkg/config"
	"github.com/s8nclone/receipt-pipeline/pkg/db"
	"github.com/s8nclone/receipt-pipeline/pkg/logger"
	"github.com/s8nclone/receipt-pipeline/pkg/redis"
	"github.com/s8nclone/receipt-pipeline/pkg/storage/gcs"
)

const readyCheckTimeout = 3 * time.Second

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Receipt-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every dependency the pipeline needs to actually do work: the database, Redis
// (idempotency guard and cron lock), and the artifact store. Any failure reports not-ready as HTTP
// 503 inside the normal success envelope rather than an error envelope — this is an orchestration
// signal, not a request failure.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbClient db.Pinger, redisClient redis.Pinger, gcsClient gcs.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Receipt-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readyCheckTimeout)
		defer cancel()

		checks := map[string]string{}
		ready := true

		if err := dbClient.Ping(ctx); err != nil {
			ready = false
			checks["database"] = "down"
			if logg != nil {
				logg.Error(ctx, "readiness check: database unreachable", err)
			}
		} else {
			checks["database"] = "up"
		}

		if err := redisClient.Ping(ctx); err != nil {
			ready = false
			checks["redis"] = "down"
			if logg != nil {
				logg.Error(ctx, "readiness check: redis unreachable", err)
			}
		} else {
			checks["redis"] = "up"
		}

		if err := gcsClient.Ping(ctx); err != nil {
			ready = false
			checks["cloud_storage"] = "down"
			if logg != nil {
				logg.Error(ctx, "readiness check: cloud storage unreachable", err)
			}
		} else {
			checks["cloud_storage"] = "up"
		}

		status := "ready"
		httpStatus := http.StatusOK
		if !ready {
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
		}

		responses.WriteSuccessStatus(w, httpStatus, map[string]any{
			"status": status,
			"checks": checks,
		})
	}
}
