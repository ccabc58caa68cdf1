package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"

	"taskify/backend/internal/worker"

	"github.com/gin-gonic/gin"
)

type ImportQueue interface {
	Enqueue(ctx context.Context, jobType worker.JobType, userID uint) (worker.Job, error)
	Status(ctx context.Context, id string) (worker.JobStatus, error)
}

// ImportJobHandler queues imports for the background worker and reports
// their progress. Clients poll the status URL returned with the 202.
type ImportJobHandler struct {
	queue ImportQueue
}

func NewImportJobHandler(queue ImportQueue) *ImportJobHandler {
	return &ImportJobHandler{queue: queue}
}

func (h *ImportJobHandler) EnqueueTasks(c *gin.Context) {
	h.enqueue(c, worker.JobImportTasks)
}

func (h *ImportJobHandler) EnqueueContacts(c *gin.Context) {
	h.enqueue(c, worker.JobImportContacts)
}

func (h *ImportJobHandler) enqueue(c *gin.Context, jobType worker.JobType) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	job, err := h.queue.Enqueue(c.Request.Context(), jobType, userID)
	if err != nil {
		log.Printf("❌ failed to queue %s: %v", jobType, err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "failed to queue import"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"job_id": job.ID,
		"type":   job.Type,
		"state":  worker.StateQueued,
		"status": "/api/v1/imports/" + job.ID,
	})
}

func (h *ImportJobHandler) Status(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	status, err := h.queue.Status(c.Request.Context(), c.Param("id"))
	if errors.Is(err, worker.ErrJobNotFound) || (err == nil && status.UserID != userID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "import job not found"})
		return
	}
	if err != nil {
		handleSyncError(c, "load import job", err)
		return
	}
	c.JSON(http.StatusOK, status)
}
