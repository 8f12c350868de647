package monitoring

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Pinger любой внешний сервис, который умеет отвечать на ping
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthChecker struct {
	db    *sql.DB
	redis Pinger
}

type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services"`
}

func NewHealthChecker(db *sql.DB, redis Pinger) *HealthChecker {
	return &HealthChecker{db: db, redis: redis}
}

func (h *HealthChecker) CheckHealth(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now(),
		Services:  make(map[string]string),
	}

	// Без базы бот не работает
	if err := h.checkDatabase(ctx); err != nil {
		status.Status = "unhealthy"
		status.Services["database"] = fmt.Sprintf("error: %v", err)
	} else {
		status.Services["database"] = "ok"
	}

	// Без Redis теряются только незавершенные диалоги
	if h.redis != nil {
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := h.redis.Ping(pingCtx); err != nil {
			if status.Status == "healthy" {
				status.Status = "degraded"
			}
			status.Services["redis"] = fmt.Sprintf("warning: %v", err)
		} else {
			status.Services["redis"] = "ok"
		}
	}

	return status
}

func (h *HealthChecker) checkDatabase(ctx context.Context) error {
	if h.db == nil {
		return fmt.Errorf("database is not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return h.db.PingContext(ctx)
}

func (h *HealthChecker) HealthHandler(w http.ResponseWriter, r *http.Request) {
	status := h.CheckHealth(r.Context())

	w.Header().Set("Content-Type", "application/json")

	if status.Status == "unhealthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK) // degraded тоже 200
	}

	json.NewEncoder(w).Encode(status)
}
