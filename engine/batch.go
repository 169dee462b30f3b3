package engine

import (
	"context"
	"sync"
	"time"
)

// fetchMany is the shared FetchMany implementation: targets are processed in
// fixed-size concurrency windows, each window settling completely before the
// next one starts. Cancellation is checked at the top of each window and
// stops scheduling; members already in flight run to completion.
func fetchMany(ctx context.Context, e Engine, targets []string, opts *BatchOptions) (*BatchResult, error) {
	if opts == nil {
		opts = &BatchOptions{}
	}
	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = 3
	}

	start := time.Now()
	batch := &BatchResult{
		Results:  make(map[string]*Result),
		Failures: make(map[string]error),
	}
	var mu sync.Mutex

	for offset := 0; offset < len(targets); offset += concurrency {
		if ctx.Err() != nil {
			break
		}
		end := offset + concurrency
		if end > len(targets) {
			end = len(targets)
		}

		var wg sync.WaitGroup
		for _, target := range targets[offset:end] {
			wg.Add(1)
			go func(target string) {
				defer wg.Done()
				req := opts.Request
				req.URL = target
				result, err := e.Fetch(ctx, &req)

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					batch.Failures[target] = err
				} else {
					batch.Results[target] = result
				}
			}(target)
		}
		wg.Wait()
	}

	batch.TotalDuration = time.Since(start)
	return batch, nil
}
