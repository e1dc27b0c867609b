// Package webhook serves the push-driven trigger: POST /trigger/:name
// resolves a webhook name to a script, runs it under the per-script
// lock, and reports the outcome synchronously in the response.
package webhook

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	sloggin "github.com/samber/slog-gin"

	"github.com/mjarkko/scripter/internal/domain"
	"github.com/mjarkko/scripter/internal/webhook/middleware"
)

type store interface {
	GetWebhookByName(ctx context.Context, name string) (*domain.Webhook, error)
	GetScript(ctx context.Context, id int64) (*domain.Script, error)
}

type runner interface {
	// ExecuteSync runs scriptID's command synchronously under the
	// per-script lock and returns the finished run, or
	// domain.ErrLockHeld if another execution holds the lock.
	ExecuteSync(ctx context.Context, scriptID int64, triggerID string) (*domain.Run, error)
}

// Handler implements the webhook HTTP surface.
type Handler struct {
	store  store
	runner runner
	log    *slog.Logger
}

func NewHandler(s store, r runner, log *slog.Logger) *Handler {
	return &Handler{store: s, runner: r, log: log}
}

type triggerResponse struct {
	OK     bool   `json:"ok"`
	RunID  int64  `json:"run_id,omitempty"`
	Status string `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Trigger implements POST /trigger/:name. 404 on unknown name or
// missing script, 409 if the per-script lock is held, 200 with the
// resulting run id/status on success, 500 on executor error.
func (h *Handler) Trigger(c *gin.Context) {
	name := c.Param("name")
	ctx := c.Request.Context()

	wh, err := h.store.GetWebhookByName(ctx, name)
	if err != nil {
		c.JSON(http.StatusNotFound, triggerResponse{OK: false, Error: "unknown webhook"})
		return
	}

	if _, err := h.store.GetScript(ctx, wh.ScriptID); err != nil {
		c.JSON(http.StatusNotFound, triggerResponse{OK: false, Error: "script not found"})
		return
	}

	run, err := h.runner.ExecuteSync(ctx, wh.ScriptID, "webhook:"+name)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			c.JSON(http.StatusConflict, triggerResponse{OK: false, Error: "lock held"})
			return
		}
		c.JSON(http.StatusInternalServerError, triggerResponse{OK: false, Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, triggerResponse{OK: true, RunID: run.ID, Status: string(run.Status)})
}

// NewRouter wires the middleware chain the rest of the teacher's HTTP
// stack always carries (Recovery, RequestID, Security headers, request
// logging, Metrics) around the single webhook route.
func NewRouter(h *Handler, logger *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Security())
	r.Use(sloggin.New(logger))
	r.Use(middleware.Metrics())

	r.POST("/trigger/:name", h.Trigger)

	return r
}
