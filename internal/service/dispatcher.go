package service

import (
	"context"
	"time"

	"github.com/timmy/stash/internal/domain"
	"github.com/timmy/stash/internal/logger"
	"github.com/timmy/stash/internal/openai"
)

// ResponsesAPI sends a single Responses API request. *openai.Client implements it.
type ResponsesAPI interface {
	CreateResponse(ctx context.Context, req *openai.ResponseRequest) (*openai.Response, error)
}

// Dispatcher runs open (web) and scoped (file search) queries and normalizes
// the responses into result records. It never retries.
type Dispatcher struct {
	api ResponsesAPI
	now func() time.Time
}

// NewDispatcher creates a new Dispatcher. A nil now uses time.Now.
func NewDispatcher(api ResponsesAPI, now func() time.Time) *Dispatcher {
	if now == nil {
		now = time.Now
	}
	return &Dispatcher{api: api, now: now}
}

// WebSearch answers query with open web retrieval enabled.
func (d *Dispatcher) WebSearch(ctx context.Context, query, model string) (*domain.Result, error) {
	logger.CtxInfo(ctx, "Running web search")
	resp, err := d.api.CreateResponse(ctx, &openai.ResponseRequest{
		Model: model,
		Input: query,
		Tools: []openai.Tool{{Type: openai.ToolWebSearchPreview}},
	})
	if err != nil {
		return nil, err
	}
	return d.normalize(ctx, query, model, "", resp), nil
}

// FileSearch answers query with retrieval restricted to one vector store.
func (d *Dispatcher) FileSearch(ctx context.Context, query, vectorStoreID, model string) (*domain.Result, error) {
	logger.CtxInfo(ctx, "Running file search in vector store %s", vectorStoreID)
	resp, err := d.api.CreateResponse(ctx, &openai.ResponseRequest{
		Model: model,
		Input: query,
		Tools: []openai.Tool{{
			Type:           openai.ToolFileSearch,
			VectorStoreIDs: []string{vectorStoreID},
		}},
	})
	if err != nil {
		return nil, err
	}
	return d.normalize(ctx, query, model, vectorStoreID, resp), nil
}

func (d *Dispatcher) normalize(ctx context.Context, query, model, vectorStoreID string, resp *openai.Response) *domain.Result {
	if unknown := resp.Output.Unknown(); len(unknown) > 0 {
		logger.FromContext(ctx).WithField("types", unknown).Warn("Response contains unrecognized output items, keeping them raw")
	}
	output := resp.Output
	if output == nil {
		output = domain.OutputItems{}
	}
	return &domain.Result{
		Query:            query,
		Created:          Timestamp(d.now()),
		Model:            model,
		VectorStoreID:    vectorStoreID,
		OutputText:       resp.OutputText(),
		OutputStructured: output,
	}
}
