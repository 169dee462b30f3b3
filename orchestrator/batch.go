package orchestrator

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/use-agent/acquire/models"
)

// AcquireMany runs a batch acquisition in fixed-size windows. Cancellation
// is observed at window starts and retry tops only; work already in flight
// runs to completion. Per-target failures land in the Failures map and never
// fail the batch.
func (o *Orchestrator) AcquireMany(ctx context.Context, req *models.BatchRequest) *models.BatchResult {
	req.Defaults()
	start := time.Now()

	result := models.NewBatchResult()
	var mu sync.Mutex

	concurrency := req.Concurrency
	if concurrency < 1 {
		concurrency = o.batchCfg.Concurrency
	}
	retries := req.RetryCount()
	retryDelay := time.Duration(req.RetryDelayMs) * time.Millisecond

	targets := req.URLs
	for windowStart := 0; windowStart < len(targets); windowStart += concurrency {
		if ctx.Err() != nil {
			break
		}

		end := windowStart + concurrency
		if end > len(targets) {
			end = len(targets)
		}

		var wg sync.WaitGroup
		for _, target := range targets[windowStart:end] {
			wg.Add(1)
			go func(url string) {
				defer wg.Done()
				res, err := o.acquireWithRetries(ctx, url, req, retries, retryDelay)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					result.Failures[url] = err
					return
				}
				result.Results[url] = res
			}(target)
		}
		wg.Wait()

		// A randomized pause between windows keeps the request pattern from
		// looking mechanical to the origin.
		if end < len(targets) && o.batchCfg.InterBatchDelayMax > 0 {
			sleepCtx(ctx, time.Duration(rand.Int63n(int64(o.batchCfg.InterBatchDelayMax))))
		}
	}

	result.TotalDuration = time.Since(start)
	return result
}

// acquireWithRetries attempts one target up to retries+1 times with a
// linearly growing, jittered backoff.
func (o *Orchestrator) acquireWithRetries(ctx context.Context, url string, req *models.BatchRequest, retries int, retryDelay time.Duration) (*models.AcquireResult, error) {
	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr == nil {
				lastErr = models.Categorize(err, "batch canceled before target was attempted")
			}
			return nil, lastErr
		}
		if attempt > 0 {
			sleepCtx(ctx, backoff(retryDelay, attempt))
		}

		perTarget := req.Options
		perTarget.URL = url
		res, err := o.Acquire(ctx, &perTarget)
		if err == nil {
			return res, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// backoff is retryDelay*attempt plus up to 500ms of jitter.
func backoff(retryDelay time.Duration, attempt int) time.Duration {
	return retryDelay*time.Duration(attempt) + time.Duration(rand.Int63n(int64(500*time.Millisecond)))
}

// sleepCtx sleeps for d or until the context is done, whichever is first.
func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
