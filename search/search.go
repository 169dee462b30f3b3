// Package search turns web-search queries into SERP acquisitions. It builds
// the engine-specific query URL, fetches the page through the acquisition
// orchestrator, and hands the raw HTML to a ResultParser. The parser is a
// contract so callers can swap in their own SERP dissection.
package search

import (
	"context"
	"time"

	"github.com/use-agent/acquire/models"
)

// Acquirer is the slice of the orchestrator the search flow needs.
type Acquirer interface {
	Acquire(ctx context.Context, req *models.AcquireRequest) (*models.AcquireResult, error)
}

// ResultParser extracts structured results from raw SERP HTML.
type ResultParser interface {
	Parse(engine, rawHTML string) ([]models.SearchResult, error)
}

// Orchestrator runs search queries end to end.
type Orchestrator struct {
	acquirer Acquirer
	parser   ResultParser
}

// NewOrchestrator creates a search Orchestrator. A nil parser gets the
// default goquery-based SERP parser.
func NewOrchestrator(acquirer Acquirer, parser ResultParser) *Orchestrator {
	if parser == nil {
		parser = NewSERPParser()
	}
	return &Orchestrator{acquirer: acquirer, parser: parser}
}

// Search executes one query: build the URL, acquire the SERP, parse it.
// SERP caching rides on the acquisition cache; the request's Cache flag is
// passed straight through.
func (o *Orchestrator) Search(ctx context.Context, req *models.SearchRequest) (*models.SearchResponse, error) {
	start := time.Now()
	if req.Engine == "" {
		req.Engine = EngineGoogle
	}

	queryURL, err := BuildQueryURL(req.Engine, req.Query, req.Page, req.Limit)
	if err != nil {
		return nil, err
	}

	// Search pages are aggressively bot-gated; go straight to a stealthy
	// acquisition and let the engine chain sort out rendering.
	acquireReq := &models.AcquireRequest{
		URL:     queryURL,
		Engine:  models.EngineAuto,
		Wait:    models.WaitDOM,
		Stealth: true,
		Cache:   req.Cache,
	}
	result, err := o.acquirer.Acquire(ctx, acquireReq)
	if err != nil {
		return nil, err
	}

	results, err := o.parser.Parse(req.Engine, result.HTML)
	if err != nil {
		return nil, models.NewAcquireError(models.ErrKindEvaluation, "failed to parse search results", err)
	}
	if req.Limit > 0 && len(results) > req.Limit {
		results = results[:req.Limit]
	}

	return &models.SearchResponse{
		Query:       req.Query,
		Engine:      req.Engine,
		Results:     results,
		ElapsedMs:   time.Since(start).Milliseconds(),
		CacheStatus: result.CacheStatus,
	}, nil
}
