package models

import "time"

// BatchRequest is the payload for POST /api/v1/batch.
type BatchRequest struct {
	// URLs is the list of target pages. Required.
	URLs []string `json:"urls" binding:"required,min=1,max=100"`

	// Options contains shared acquisition options applied to all URLs.
	Options AcquireRequest `json:"options"`

	// Concurrency is the window size: how many targets are in flight at
	// once. Default: 3.
	Concurrency int `json:"concurrency,omitempty" binding:"omitempty,min=1,max=20"`

	// Retries is the number of additional attempts per failed target.
	// Default: 1.
	Retries *int `json:"retries,omitempty" binding:"omitempty,min=0,max=5"`

	// RetryDelayMs is the base backoff between attempts; the effective
	// delay is RetryDelayMs * attempt plus jitter. Default: 1000.
	RetryDelayMs int `json:"retry_delay_ms,omitempty"`

	// WebhookURL, when set, receives a signed batch.completed event once
	// every target has settled.
	WebhookURL string `json:"webhook_url,omitempty" binding:"omitempty,url"`
}

// Defaults applies default values to unset fields.
func (r *BatchRequest) Defaults() {
	r.Options.Defaults()
	if r.Concurrency == 0 {
		r.Concurrency = 3
	}
	if r.Retries == nil {
		one := 1
		r.Retries = &one
	}
	if r.RetryDelayMs == 0 {
		r.RetryDelayMs = 1000
	}
}

// RetryCount returns the configured retry count, defaulting to 1.
func (r *BatchRequest) RetryCount() int {
	if r.Retries == nil {
		return 1
	}
	return *r.Retries
}

// BatchResult is the settled outcome of a batch acquisition. Every target
// appears in exactly one of Results or Failures unless the batch was
// cancelled before the target was scheduled.
type BatchResult struct {
	Results       map[string]*AcquireResult
	Failures      map[string]error
	TotalDuration time.Duration
}

// NewBatchResult returns an empty BatchResult with initialized maps.
func NewBatchResult() *BatchResult {
	return &BatchResult{
		Results:  make(map[string]*AcquireResult),
		Failures: make(map[string]error),
	}
}

// BatchResponse is the JSON shape returned for a settled batch.
type BatchResponse struct {
	Results  map[string]*AcquireResult `json:"results"`
	Failures map[string]*ErrorDetail   `json:"failures"`
	TotalMs  int64                     `json:"total_ms"`
}

// ToResponse converts a BatchResult into its API shape.
func (b *BatchResult) ToResponse() *BatchResponse {
	resp := &BatchResponse{
		Results:  b.Results,
		Failures: make(map[string]*ErrorDetail, len(b.Failures)),
		TotalMs:  b.TotalDuration.Milliseconds(),
	}
	for target, err := range b.Failures {
		resp.Failures[target] = Detail(err)
	}
	return resp
}

// BatchJob tracks an asynchronous batch acquisition.
type BatchJob struct {
	ID        string
	Status    string // "processing", "completed", "partial", "failed"
	Total     int
	Completed int
	Result    *BatchResult
	CreatedAt int64 // unix timestamp
}
