package engine

import (
	"context"
	"sync"
)

// BulkResult pairs one request with its outcome; order matches the input
type BulkResult struct {
	Request  Request
	Response *Response
	Err      error
}

// EvaluateBulk evaluates many instruments concurrently over a bounded worker
// pool. Results are returned in input order. A canceled context stops the
// remaining work; already-finished entries keep their results and the rest
// carry the context error.
func (e *Engine) EvaluateBulk(ctx context.Context, reqs []Request, workers int) []BulkResult {
	out := make([]BulkResult, len(reqs))
	if len(reqs) == 0 {
		return out
	}
	if workers <= 0 {
		workers = 4
	}
	if workers > len(reqs) {
		workers = len(reqs)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range jobs {
				out[i].Request = reqs[i]
				out[i].Response, out[i].Err = e.Evaluate(ctx, reqs[i])
			}
		}()
	}

feed:
	for i := range reqs {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	// Mark any entries the cancellation skipped
	if err := ctx.Err(); err != nil {
		for i := range out {
			if out[i].Response == nil && out[i].Err == nil {
				out[i].Request = reqs[i]
				out[i].Err = err
			}
		}
	}
	return out
}
