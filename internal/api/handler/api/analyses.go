package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"time"

	"go.uber.org/zap"

	"github.com/tranmd/whaleaudit/internal/analysis"
	"github.com/tranmd/whaleaudit/internal/api/job"
	"github.com/tranmd/whaleaudit/internal/api/response"
	"github.com/tranmd/whaleaudit/internal/audit"
	"github.com/tranmd/whaleaudit/internal/core"
	"github.com/tranmd/whaleaudit/internal/history"
	"github.com/tranmd/whaleaudit/internal/metrics"
)

const (
	analysisTimeout = 5 * time.Minute
	// lookbackBars is how many closed hourly bars the oracle reads.
	lookbackBars = 100
)

var symbolPattern = regexp.MustCompile(`^[A-Z0-9]{2,20}$`)

// AnalysisRequest is the request body for starting an analysis.
type AnalysisRequest struct {
	Symbol string `json:"symbol"`
}

// AnalysisHandler produces analysis snapshots as async jobs.
type AnalysisHandler struct {
	jobs    *job.Store
	oracle  *analysis.Oracle
	candles audit.CandleProvider
	store   *history.Store
	metrics *metrics.Registry
	log     *zap.Logger
}

// NewAnalysisHandler creates an analysis handler. Metrics may be nil.
func NewAnalysisHandler(jobs *job.Store, oracle *analysis.Oracle, candles audit.CandleProvider, store *history.Store, reg *metrics.Registry, log *zap.Logger) *AnalysisHandler {
	return &AnalysisHandler{
		jobs:    jobs,
		oracle:  oracle,
		candles: candles,
		store:   store,
		metrics: reg,
		log:     log,
	}
}

// Create starts an analysis job for one symbol.
func (h *AnalysisHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h.oracle == nil {
		response.Error(w, http.StatusServiceUnavailable,
			core.ErrConfigMissing.WithMessage("no LLM provider configured"))
		return
	}

	var req AnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, core.WrapError(core.ErrBadRequest, err))
		return
	}
	if !symbolPattern.MatchString(req.Symbol) {
		response.Error(w, http.StatusBadRequest,
			core.ErrBadRequest.WithMessage("symbol must be an uppercase exchange pair like BTCUSDT"))
		return
	}

	j := h.jobs.Create("analysis")
	jobID := j.ID

	go h.runAnalysis(jobID, req.Symbol)

	response.JSON(w, http.StatusAccepted, map[string]any{
		"job_id": jobID,
		"status": j.Status,
	})
}

func (h *AnalysisHandler) runAnalysis(jobID, symbol string) {
	h.jobs.Update(jobID, func(j *job.Job) {
		j.Status = job.StatusRunning
	})

	ctx, cancel := context.WithTimeout(context.Background(), analysisTimeout)
	defer cancel()

	snap, err := h.analyze(ctx, symbol)
	if err != nil {
		h.jobs.Update(jobID, func(j *job.Job) {
			j.Status = job.StatusFailed
			var coreErr *core.Error
			if errors.As(err, &coreErr) {
				j.Error = coreErr
			} else {
				j.Error = core.WrapError(core.ErrLLMFailed, err)
			}
		})
		return
	}

	h.jobs.Update(jobID, func(j *job.Job) {
		j.Status = job.StatusComplete
		j.Result = snap
	})
}

func (h *AnalysisHandler) analyze(ctx context.Context, symbol string) (*history.Snapshot, error) {
	now := time.Now()
	series, err := h.candles.FetchKlines(ctx, symbol, "1h",
		now.Add(-time.Duration(lookbackBars)*time.Hour), now, lookbackBars)
	if err != nil {
		return nil, err
	}

	snap, err := h.oracle.Analyze(ctx, symbol, series)
	if err != nil {
		return nil, err
	}

	stored := h.store.Add(*snap)
	if err := h.store.Save(ctx); err != nil {
		h.log.Warn("persisting history after analysis failed", zap.Error(err))
	}
	if h.metrics != nil {
		h.metrics.RecordAnalysis(symbol)
		h.metrics.SetHistorySize(h.store.Len())
	}
	return &stored, nil
}

// GetStatus returns the state of an analysis job.
func (h *AnalysisHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
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
