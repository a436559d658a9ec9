package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"catalog-sync-service/internal/models"
	"catalog-sync-service/internal/repository"
	"catalog-sync-service/internal/services"
)

// SyncHandler handles sync run endpoints
type SyncHandler struct {
	service *services.SyncService
	runs    repository.SyncRunRepositoryInterface
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(service *services.SyncService, runs repository.SyncRunRepositoryInterface) *SyncHandler {
	return &SyncHandler{
		service: service,
		runs:    runs,
	}
}

// TriggerRequest is the body for starting a sync run
type TriggerRequest struct {
	Source   models.SourceType `json:"source" binding:"required"`
	SyncType models.SyncType   `json:"syncType"`
	Wait     bool              `json:"wait"`
}

// TriggerRun starts a reconciliation run. By default the run executes
// in the background and the run ID is returned immediately; wait=true
// blocks until the run finishes and returns the full result.
func (h *SyncHandler) TriggerRun(c *gin.Context) {
	var req TriggerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.SyncType == "" {
		req.SyncType = models.SyncTypeFull
	}

	if req.Wait {
		result, err := h.service.RunSync(c.Request.Context(), req.Source, req.SyncType, models.TriggerManual)
		if err != nil {
			c.JSON(syncErrorStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": result})
		return
	}

	runID, err := h.service.StartRun(req.Source, req.SyncType, models.TriggerManual)
	if err != nil {
		c.JSON(syncErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"data": gin.H{"runId": runID}})
}

func syncErrorStatus(err error) int {
	switch {
	case errors.Is(err, services.ErrSyncInProgress):
		return http.StatusConflict
	case errors.Is(err, services.ErrUnknownSource):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// ListRuns returns sync runs newest first
func (h *SyncHandler) ListRuns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	runs, total, err := h.runs.List(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data":  runs,
		"total": total,
	})
}

// GetRun returns a single sync run
func (h *SyncHandler) GetRun(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	run, err := h.runs.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": run})
}

// CancelRun cancels an in-flight run
func (h *SyncHandler) CancelRun(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	if err := h.service.CancelRun(id); err != nil {
		if errors.Is(err, services.ErrRunNotActive) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"cancelled": id}})
}

// LatestRun returns the most recent run for a source
func (h *SyncHandler) LatestRun(c *gin.Context) {
	source := models.SourceType(c.Query("source"))
	if source == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "source is required"})
		return
	}

	run, err := h.runs.MostRecent(c.Request.Context(), source)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no runs for source"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": run})
}

// ListFailedRuns returns runs that recorded errors
func (h *SyncHandler) ListFailedRuns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	runs, err := h.runs.ListWithErrors(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": runs})
}

// Stats returns aggregated run outcomes over a rolling window
func (h *SyncHandler) Stats(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", "7"))
	if days <= 0 {
		days = 7
	}

	stats, err := h.runs.Stats(c.Request.Context(), time.Now().UTC().AddDate(0, 0, -days))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": stats})
}

// CleanupRuns deletes finished runs older than the retention window
func (h *SyncHandler) CleanupRuns(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("olderThanDays", "30"))
	if days <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "olderThanDays must be positive"})
		return
	}

	deleted, err := h.runs.DeleteOlderThan(c.Request.Context(), time.Now().UTC().AddDate(0, 0, -days))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"deleted": deleted}})
}
