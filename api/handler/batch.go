package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/acquire/models"
	"github.com/use-agent/acquire/orchestrator"
	"github.com/use-agent/acquire/webhook"
)

// batchStore holds all in-flight and completed batch jobs.
var batchStore sync.Map

func init() {
	// Background goroutine to expire batch jobs older than 1 hour.
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			cutoff := time.Now().Add(-1 * time.Hour).Unix()
			batchStore.Range(func(key, value any) bool {
				job := value.(*models.BatchJob)
				if job.CreatedAt < cutoff {
					batchStore.Delete(key)
				}
				return true
			})
		}
	}()
}

// PostBatch returns a handler for POST /api/v1/batch.
// It validates the request, registers a job, and runs the batch in the
// background. Progress and the settled result are exposed via GET
// /api/v1/batch/:id and, when requested, a signed webhook event.
func PostBatch(o *orchestrator.Orchestrator, webhookSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.BatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": models.ErrorDetail{
					Kind:    models.ErrKindInvalidInput,
					Message: err.Error(),
				},
			})
			return
		}

		jobID := "batch-" + randomID()
		job := &models.BatchJob{
			ID:        jobID,
			Status:    "processing",
			Total:     len(req.URLs),
			CreatedAt: time.Now().Unix(),
		}
		batchStore.Store(jobID, job)

		go runBatch(o, job, &req, webhookSecret)

		c.JSON(http.StatusAccepted, gin.H{
			"id":     jobID,
			"status": job.Status,
			"total":  job.Total,
		})
	}
}

// GetBatch returns a handler for GET /api/v1/batch/:id.
func GetBatch() gin.HandlerFunc {
	return func(c *gin.Context) {
		jobID := c.Param("id")
		val, ok := batchStore.Load(jobID)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{
				"error": models.ErrorDetail{
					Kind:    models.ErrKindInvalidInput,
					Message: "batch job not found",
				},
			})
			return
		}

		job := val.(*models.BatchJob)
		body := gin.H{
			"id":        job.ID,
			"status":    job.Status,
			"total":     job.Total,
			"completed": job.Completed,
		}
		if job.Result != nil {
			body["result"] = job.Result.ToResponse()
		}
		c.JSON(http.StatusOK, body)
	}
}

// runBatch executes the batch and settles the job record.
func runBatch(o *orchestrator.Orchestrator, job *models.BatchJob, req *models.BatchRequest, webhookSecret string) {
	result := o.AcquireMany(context.Background(), req)

	job.Result = result
	job.Completed = len(result.Results) + len(result.Failures)
	switch {
	case len(result.Results) == 0 && len(result.Failures) > 0:
		job.Status = "failed"
	case len(result.Failures) > 0:
		job.Status = "partial"
	default:
		job.Status = "completed"
	}

	slog.Info("batch job finished",
		"id", job.ID,
		"status", job.Status,
		"succeeded", len(result.Results),
		"failed", len(result.Failures),
		"total", job.Total,
	)

	if req.WebhookURL != "" {
		eventType := webhook.EventBatchCompleted
		if job.Status == "failed" {
			eventType = webhook.EventBatchFailed
		}
		webhook.DeliverAsync(req.WebhookURL, webhookSecret,
			webhook.NewEvent(eventType, job.ID, result.ToResponse()))
	}
}

// randomID generates a short random hex string for job IDs.
func randomID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
