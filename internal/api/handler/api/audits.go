// Package api holds the JSON API handlers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/tranmd/whaleaudit/internal/api/job"
	"github.com/tranmd/whaleaudit/internal/api/response"
	"github.com/tranmd/whaleaudit/internal/audit"
	"github.com/tranmd/whaleaudit/internal/core"
)

const auditTimeout = 2 * time.Minute

// AuditRequest is the request body for starting an audit.
type AuditRequest struct {
	SnapshotID string `json:"snapshot_id"`
}

// AuditHandler runs audits as async jobs.
type AuditHandler struct {
	jobs    *job.Store
	auditor *audit.Auditor
}

// NewAuditHandler creates an audit handler.
func NewAuditHandler(jobs *job.Store, auditor *audit.Auditor) *AuditHandler {
	return &AuditHandler{jobs: jobs, auditor: auditor}
}

// Create starts an audit job for one snapshot.
func (h *AuditHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req AuditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, core.WrapError(core.ErrBadRequest, err))
		return
	}
	if req.SnapshotID == "" {
		response.Error(w, http.StatusBadRequest,
			core.ErrBadRequest.WithMessage("snapshot_id is required"))
		return
	}

	// Reject before spawning a job: unknown ids and double audits are
	// caller mistakes, not job failures.
	if _, err := h.auditor.Store().Get(req.SnapshotID); err != nil {
		response.Error(w, http.StatusNotFound, err)
		return
	}

	j := h.jobs.Create("audit")
	jobID := j.ID

	go h.runAudit(jobID, req.SnapshotID)

	response.JSON(w, http.StatusAccepted, map[string]any{
		"job_id": jobID,
		"status": j.Status,
	})
}

func (h *AuditHandler) runAudit(jobID, snapshotID string) {
	h.jobs.Update(jobID, func(j *job.Job) {
		j.Status = job.StatusRunning
	})

	ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
	defer cancel()

	outcome, err := h.auditor.Run(ctx, snapshotID)
	if err != nil {
		h.jobs.Update(jobID, func(j *job.Job) {
			j.Status = job.StatusFailed
			var coreErr *core.Error
			if errors.As(err, &coreErr) {
				j.Error = coreErr
			} else {
				j.Error = core.WrapError(core.ErrMarketDataUnavailable, err)
			}
		})
		return
	}

	h.jobs.Update(jobID, func(j *job.Job) {
		j.Status = job.StatusComplete
		j.Result = outcome
	})
}

// GetStatus returns the state of an audit job.
func (h *AuditHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	j, err := h.jobs.Get(r.PathValue("id"))
	if err != nil {
		response.Error(w, http.StatusNotFound, err)
		return
	}

	resp := map[string]any{
		"job_id": j.ID,
		"status": j.Status,
	}
	if j.Status == job.StatusComplete {
		resp["result"] = j.Result
	}
	if j.Status == job.StatusFailed && j.Error != nil {
		resp["error"] = map[string]string{
			"code":    j.Error.Code,
			"message": j.Error.Message,
		}
	}

	response.JSON(w, http.StatusOK, resp)
}
