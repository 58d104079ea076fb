package routing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"helioshq/meridian/pkg/backends"
	"helioshq/meridian/pkg/breaker"
	"helioshq/meridian/pkg/usage"
)

// UsageRecorder receives one record per successfully served request,
// whatever path it arrived through. Satisfied by *usage.Ledger.
type UsageRecorder interface {
	Record(rec usage.Record)
}

// Router walks the fallback chain for every request. It owns the
// registered routes, the active selection strategy, and the latency
// history that feeds latency-aware ordering.
type Router struct {
	mu       sync.RWMutex
	routes   []Route
	byName   map[string]Route
	strategy Strategy
	recorder UsageRecorder

	latency *latencyTracker
	stats   *Stats
}

// New creates a router using the given strategy.
func New(strategy Strategy) *Router {
	return &Router{
		byName:   make(map[string]Route),
		strategy: strategy,
		latency:  newLatencyTracker(),
		stats:    newStats(),
	}
}

// Register adds a route. Registration order is the sequential fallback
// order. Registering a duplicate name is an error.
func (r *Router) Register(backend backends.Backend, brk *breaker.Breaker) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := backend.Name()
	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("backend %q already registered", name)
	}

	route := Route{Backend: backend, Breaker: brk}
	r.routes = append(r.routes, route)
	r.byName[name] = route

	slog.Info("backend registered",
		"backend", name,
		"kind", backend.Kind(),
		"position", len(r.routes),
	)
	return nil
}

// SetStrategy swaps the active strategy. Used by configuration reloads.
func (r *Router) SetStrategy(strategy Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()

	old := r.strategy.Name()
	r.strategy = strategy

	if old != strategy.Name() {
		slog.Info("routing strategy changed", "from", old, "to", strategy.Name())
	}
}

// SetRecorder attaches the usage sink. Successful completions, streams,
// and embeddings are booked against it regardless of which surface
// submitted them.
func (r *Router) SetRecorder(rec UsageRecorder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recorder = rec
}

func (r *Router) recordUsage(rec usage.Record) {
	r.mu.RLock()
	recorder := r.recorder
	r.mu.RUnlock()
	if recorder != nil {
		recorder.Record(rec)
	}
}

// Routes returns the registered routes in registration order.
func (r *Router) Routes() []Route {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Route(nil), r.routes...)
}

// Complete routes a completion request through the fallback chain and
// returns the first success. The response carries the backend that
// served it, the model actually used, and the computed cost.
func (r *Router) Complete(ctx context.Context, req *backends.CompletionRequest) (*backends.CompletionResponse, error) {
	r.stats.recordRequest()

	candidates, err := r.candidates(req)
	if err != nil {
		r.stats.recordError()
		return nil, err
	}

	ordered := r.currentStrategy().Order(req, candidates)

	var attempts []Attempt
	for i, cand := range ordered {
		name := cand.Backend.Name()

		if err := cand.Breaker.Allow(); err != nil {
			r.stats.recordSkip(name)
			attempts = append(attempts, Attempt{Backend: name, Model: cand.Model, Err: err})
			continue
		}

		attemptReq := remapRequest(req, cand.Model)

		start := time.Now()
		resp, err := cand.Backend.Complete(ctx, attemptReq)
		elapsed := time.Since(start)

		if err != nil {
			cand.Breaker.RecordFailure(err)
			r.stats.recordFailure(name)
			attempts = append(attempts, Attempt{Backend: name, Model: cand.Model, Err: err})

			if ctx.Err() != nil {
				// The caller is gone; trying more backends helps no one.
				r.stats.recordError()
				return nil, &ExhaustedError{Model: req.Model, Attempts: attempts}
			}

			slog.Warn("backend failed, falling back",
				"backend", name,
				"model", cand.Model,
				"attempt", i+1,
				"error", err,
			)
			continue
		}

		cand.Breaker.RecordSuccess()
		r.latency.Record(name, elapsed)
		r.stats.recordSuccess(name, i > 0)
		r.finishResponse(resp, cand)
		r.recordUsage(usage.Record{
			User:             req.User,
			Model:            resp.Model,
			Backend:          resp.Backend,
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			Cost:             resp.Cost,
		})

		if i > 0 || cand.Remapped {
			slog.Info("request served by fallback",
				"backend", name,
				"model", cand.Model,
				"requested_model", req.Model,
				"attempt", i+1,
			)
		}
		return resp, nil
	}

	r.stats.recordError()
	return nil, &ExhaustedError{Model: req.Model, Attempts: attempts}
}

// StreamCompletion routes a streaming request. Fallback covers stream
// establishment only; once chunks flow, a mid-stream failure is
// delivered on the channel and recorded against the serving backend,
// not retried elsewhere.
func (r *Router) StreamCompletion(ctx context.Context, req *backends.CompletionRequest) (<-chan *backends.StreamChunk, error) {
	r.stats.recordRequest()

	candidates, err := r.candidates(req)
	if err != nil {
		r.stats.recordError()
		return nil, err
	}

	ordered := r.currentStrategy().Order(req, candidates)

	var attempts []Attempt
	for i, cand := range ordered {
		name := cand.Backend.Name()

		if err := cand.Breaker.Allow(); err != nil {
			r.stats.recordSkip(name)
			attempts = append(attempts, Attempt{Backend: name, Model: cand.Model, Err: err})
			continue
		}

		attemptReq := remapRequest(req, cand.Model)

		start := time.Now()
		upstream, err := cand.Backend.StreamCompletion(ctx, attemptReq)
		if err != nil {
			cand.Breaker.RecordFailure(err)
			r.stats.recordFailure(name)
			attempts = append(attempts, Attempt{Backend: name, Model: cand.Model, Err: err})
			continue
		}

		r.stats.recordSuccess(name, i > 0)
		return r.watchStream(upstream, cand, req.User, start), nil
	}

	r.stats.recordError()
	return nil, &ExhaustedError{Model: req.Model, Attempts: attempts}
}

// watchStream relays chunks, settles the breaker verdict when the
// stream ends, and books the accumulated usage of a clean stream as if
// it had been a single response.
func (r *Router) watchStream(upstream <-chan *backends.StreamChunk, cand Candidate, user string, start time.Time) <-chan *backends.StreamChunk {
	out := make(chan *backends.StreamChunk)

	go func() {
		defer close(out)

		failed := false
		model := cand.Model
		var finalUsage backends.TokenUsage
		for chunk := range upstream {
			if chunk.Error != nil {
				failed = true
				cand.Breaker.RecordFailure(chunk.Error)
				r.stats.recordFailure(cand.Backend.Name())
			}
			if chunk.Model != "" {
				model = chunk.Model
			}
			if chunk.Usage != nil {
				finalUsage = *chunk.Usage
			}
			out <- chunk
		}

		if !failed {
			cand.Breaker.RecordSuccess()
			r.latency.Record(cand.Backend.Name(), time.Since(start))

			var cost float64
			if info, ok := cand.Backend.ModelInfo(model); ok {
				cost = info.Cost(finalUsage)
			}
			r.recordUsage(usage.Record{
				User:             user,
				Model:            model,
				Backend:          cand.Backend.Kind(),
				PromptTokens:     finalUsage.PromptTokens,
				CompletionTokens: finalUsage.CompletionTokens,
				Cost:             cost,
			})
		}
	}()

	return out
}

// Embed routes an embedding request. No strategy applies: traffic goes
// to the primary embedding-capable backend, with local backends as the
// only fallback.
func (r *Router) Embed(ctx context.Context, req *backends.EmbeddingRequest) (*backends.EmbeddingResponse, error) {
	r.stats.recordRequest()

	routes := r.embeddingRoutes()
	if len(routes) == 0 {
		r.stats.recordError()
		return nil, ErrNoEmbeddingBackend
	}

	var attempts []Attempt
	for i, route := range routes {
		name := route.Backend.Name()

		if err := route.Breaker.Allow(); err != nil {
			r.stats.recordSkip(name)
			attempts = append(attempts, Attempt{Backend: name, Model: req.Model, Err: err})
			continue
		}

		attemptReq := *req
		if req.Model != "" && !route.Backend.SupportsModel(req.Model) {
			// Embedding models have no equivalence table; let the
			// backend use its own default.
			attemptReq.Model = ""
		}

		start := time.Now()
		resp, err := route.Backend.Embed(ctx, &attemptReq)
		if err != nil {
			route.Breaker.RecordFailure(err)
			r.stats.recordFailure(name)
			attempts = append(attempts, Attempt{Backend: name, Model: attemptReq.Model, Err: err})
			continue
		}

		route.Breaker.RecordSuccess()
		r.latency.Record(name, time.Since(start))
		r.stats.recordSuccess(name, i > 0)
		r.finishEmbedding(resp, route)
		r.recordUsage(usage.Record{
			User:         req.User,
			Model:        resp.Model,
			Backend:      resp.Backend,
			PromptTokens: resp.Usage.PromptTokens,
			Cost:         resp.Cost,
		})
		return resp, nil
	}

	r.stats.recordError()
	return nil, &ExhaustedError{Model: req.Model, Attempts: attempts}
}

// candidates builds the eligible candidate set for a completion
// request: every route that can serve the requested model natively or
// through equivalence remapping, restricted to the caller's preferred
// kinds when given.
func (r *Router) candidates(req *backends.CompletionRequest) ([]Candidate, error) {
	r.mu.RLock()
	routes := r.routes
	r.mu.RUnlock()

	if len(routes) == 0 {
		return nil, ErrNoBackends
	}

	var out []Candidate
	for _, route := range routes {
		if len(req.Preferred) > 0 && !kindAllowed(route.Backend.Kind(), req.Preferred) {
			continue
		}

		model, remapped, ok := resolveModel(route.Backend, req.Model)
		if !ok {
			continue
		}

		cand := Candidate{
			Route:    route,
			Model:    model,
			Remapped: remapped,
		}
		if info, ok := route.Backend.ModelInfo(model); ok {
			cand.AvgCostPer1K = info.AverageCostPer1K()
		}
		if avg, ok := r.latency.Average(route.Backend.Name()); ok {
			cand.AvgLatency = avg
			cand.HasLatency = true
		}
		out = append(out, cand)
	}

	if len(out) == 0 {
		return nil, &ModelUnsupportedError{Model: req.Model}
	}
	return out, nil
}

// embeddingRoutes returns embedding-capable routes: remote backends in
// registration order, then local ones.
func (r *Router) embeddingRoutes() []Route {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var remote, local []Route
	for _, route := range r.routes {
		if !route.Backend.SupportsEmbeddings() {
			continue
		}
		if route.Backend.Kind() == backends.KindLocal {
			local = append(local, route)
		} else {
			remote = append(remote, route)
		}
	}
	return append(remote, local...)
}

// resolveModel maps the requested model onto a backend: native first,
// then the fixed equivalence table. Empty model means backend default.
func resolveModel(b backends.Backend, model string) (resolved string, remapped, ok bool) {
	if model == "" {
		return b.DefaultModel(), false, true
	}
	if b.SupportsModel(model) {
		return model, false, true
	}
	if mapped, found := backends.EquivalentModel(model, b.Kind()); found && b.SupportsModel(mapped) {
		return mapped, true, true
	}
	return "", false, false
}

// remapRequest returns a shallow copy of req targeting the candidate's
// model. Requests are immutable once submitted.
func remapRequest(req *backends.CompletionRequest, model string) *backends.CompletionRequest {
	out := *req
	out.Model = model
	return &out
}

func kindAllowed(kind backends.Kind, allowed []backends.Kind) bool {
	for _, k := range allowed {
		if k == kind {
			return true
		}
	}
	return false
}

// finishEmbedding stamps cost and backend attribution on a successful
// embedding response. Embedding cost is input-side only.
func (r *Router) finishEmbedding(resp *backends.EmbeddingResponse, route Route) {
	if resp.Backend == "" {
		resp.Backend = route.Backend.Kind()
	}
	if info, ok := route.Backend.ModelInfo(resp.Model); ok {
		resp.Cost = info.Cost(resp.Usage)
	}
}

// finishResponse stamps cost and backend attribution on a successful
// response.
func (r *Router) finishResponse(resp *backends.CompletionResponse, cand Candidate) {
	if info, ok := cand.Backend.ModelInfo(resp.Model); ok {
		resp.Cost = info.Cost(resp.Usage)
	} else if info, ok := cand.Backend.ModelInfo(cand.Model); ok {
		resp.Cost = info.Cost(resp.Usage)
	}
	if resp.Backend == "" {
		resp.Backend = cand.Backend.Kind()
	}
	if resp.Created == 0 {
		resp.Created = time.Now().Unix()
	}
}

func (r *Router) currentStrategy() Strategy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.strategy
}

// Stats returns a point-in-time snapshot of routing counters, breaker
// states, and latency averages.
func (r *Router) Stats() Snapshot {
	r.mu.RLock()
	routes := append([]Route(nil), r.routes...)
	strategyName := r.strategy.Name()
	r.mu.RUnlock()

	r.stats.mu.Lock()
	snap := Snapshot{
		Strategy:      strategyName,
		TotalRequests: r.stats.total,
		Fallbacks:     r.stats.fallbacks,
		Errors:        r.stats.errors,
		Since:         r.stats.lastReset,
	}
	counters := make(map[string]backendCounters, len(r.stats.perBackend))
	for name, c := range r.stats.perBackend {
		counters[name] = *c
	}
	r.stats.mu.Unlock()

	for _, route := range routes {
		name := route.Backend.Name()
		bs := BackendStats{
			Backend: name,
			Healthy: route.Backend.Health().Healthy,
			Breaker: route.Breaker.Snapshot(),
		}
		if c, ok := counters[name]; ok {
			bs.Requests = c.requests
			bs.Successes = c.successes
			bs.Failures = c.failures
			bs.Skipped = c.skipped
		}
		if avg, ok := r.latency.Average(name); ok {
			bs.AvgLatencyMS = float64(avg.Microseconds()) / 1000
		}
		snap.Backends = append(snap.Backends, bs)
	}
	return snap
}

// ResetStats zeroes routing counters and latency history.
func (r *Router) ResetStats() {
	r.stats.Reset()
	r.latency.Reset()
}

// Close closes every registered backend.
func (r *Router) Close() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var errs []error
	for _, route := range r.routes {
		if err := route.Backend.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
