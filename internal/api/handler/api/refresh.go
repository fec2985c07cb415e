// internal/api/handler/api/refresh.go
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/newthinker/marketbias/internal/api/job"
	"github.com/newthinker/marketbias/internal/api/response"
	"github.com/newthinker/marketbias/internal/core"
	"github.com/newthinker/marketbias/internal/store"
	"go.uber.org/zap"
)

const jobTypeRefresh = "refresh"

// Refresher recomputes every tracked index.
type Refresher interface {
	Refresh(ctx context.Context) (store.Run, error)
}

// RefreshHandler triggers refreshes and reports their progress.
type RefreshHandler struct {
	refresher Refresher
	jobs      *job.Store
	timeout   time.Duration
	logger    *zap.Logger
}

// NewRefreshHandler creates a new refresh handler.
func NewRefreshHandler(r Refresher, jobs *job.Store, timeout time.Duration, logger *zap.Logger) *RefreshHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RefreshHandler{refresher: r, jobs: jobs, timeout: timeout, logger: logger}
}

// Trigger starts a refresh. With ?wait=true it runs inline and returns the
// run; otherwise it returns 202 and a job to poll.
func (h *RefreshHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("wait") == "true" {
		ctx, cancel := h.withTimeout(r.Context())
		defer cancel()

		run, err := h.refresher.Refresh(ctx)
		if err != nil {
			response.Fail(w, core.WrapError(core.ErrSourceTimeout, err))
			return
		}
		response.JSON(w, http.StatusOK, run)
		return
	}

	j := h.jobs.Create(jobTypeRefresh)

	// Run in background; the request context ends with the response.
	go h.run(j.ID)

	response.JSON(w, http.StatusAccepted, j)
}

// Status returns a refresh job.
func (h *RefreshHandler) Status(w http.ResponseWriter, r *http.Request) {
	j, err := h.jobs.Get(r.PathValue("id"))
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, j)
}

func (h *RefreshHandler) run(id string) {
	h.jobs.Update(id, func(j *job.Job) { j.Status = job.StatusRunning })

	ctx, cancel := h.withTimeout(context.Background())
	defer cancel()

	run, err := h.refresher.Refresh(ctx)
	if err != nil {
		h.logger.Error("refresh job failed", zap.String("job_id", id), zap.Error(err))
		var coreErr *core.Error
		if !errors.As(err, &coreErr) {
			coreErr = core.WrapError(core.ErrSourceFailed, err)
		}
		h.jobs.Update(id, func(j *job.Job) {
			j.Status = job.StatusFailed
			j.Error = coreErr
		})
		return
	}

	h.jobs.Update(id, func(j *job.Job) {
		j.Status = job.StatusComplete
		j.Result = run
	})
}

func (h *RefreshHandler) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if h.timeout > 0 {
		return context.WithTimeout(ctx, h.timeout)
	}
	return context.WithCancel(ctx)
}
