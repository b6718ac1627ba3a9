package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/timmy/stash/internal/api/middleware"
	"github.com/timmy/stash/internal/domain"
	"github.com/timmy/stash/internal/repository"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// RunStore is the read side of the run ledger. *repository.RunRepository implements it.
type RunStore interface {
	ListRuns(ctx context.Context, status domain.RunStatus, limit, offset int) ([]domain.HarvestRun, int64, error)
	GetRun(ctx context.Context, id string) (*domain.HarvestRun, error)
}

// RunHandler serves harvest run history.
type RunHandler struct {
	runs RunStore
}

// NewRunHandler creates a new run handler.
func NewRunHandler(runs RunStore) *RunHandler {
	return &RunHandler{runs: runs}
}

// ListRunsResponse is the body of GET /api/v1/runs.
type ListRunsResponse struct {
	Runs   []domain.HarvestRun `json:"runs"`
	Total  int64               `json:"total"`
	Limit  int                 `json:"limit"`
	Offset int                 `json:"offset"`
}

// ListRuns handles GET /api/v1/runs.
// Query parameters: status, limit (1-100, default 20), offset.
func (h *RunHandler) ListRuns(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageSize)))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "offset must be a non-negative integer"})
		return
	}
	status := domain.RunStatus(c.Query("status"))

	runs, total, err := h.runs.ListRuns(c.Request.Context(), status, limit, offset)
	if err != nil {
		middleware.GetLogger(c).WithError(err).Error("Failed to list runs")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list runs"})
		return
	}
	if runs == nil {
		runs = []domain.HarvestRun{}
	}

	c.JSON(http.StatusOK, ListRunsResponse{
		Runs:   runs,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

// GetRun handles GET /api/v1/runs/:id and includes the run's jobs.
func (h *RunHandler) GetRun(c *gin.Context) {
	id := c.Param("id")

	run, err := h.runs.GetRun(c.Request.Context(), id)
	if errors.Is(err, repository.ErrRunNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Run not found"})
		return
	}
	if err != nil {
		middleware.GetLogger(c).WithError(err).Errorf("Failed to load run %s", id)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load run"})
		return
	}

	c.JSON(http.StatusOK, run)
}
