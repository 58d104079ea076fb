package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"helioshq/meridian/pkg/backends"
	"helioshq/meridian/pkg/batch"
	"helioshq/meridian/pkg/routing"
	"helioshq/meridian/pkg/usage"
)

const maxBodyBytes = 10 << 20 // 10 MiB

// decodeJSON parses the request body into dst, rejecting unknown sizes
// beyond maxBodyBytes.
func decodeJSON(r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return &backends.ValidationError{Field: "body", Message: fmt.Sprintf("invalid JSON: %v", err)}
	}
	return nil
}

func requirePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		_ = writeError(w, newErrorResponse(
			fmt.Sprintf("method %s not allowed, use POST", r.Method),
			errorTypeInvalidRequest, "method", "method_not_allowed"))
		return false
	}
	return true
}

func validateCompletion(req *backends.CompletionRequest) error {
	if len(req.Messages) == 0 {
		return &backends.ValidationError{Field: "messages", Message: "at least one message is required"}
	}
	for i, msg := range req.Messages {
		if msg.Role == "" {
			return &backends.ValidationError{
				Field:   fmt.Sprintf("messages[%d].role", i),
				Message: "role is required",
			}
		}
	}
	return nil
}

// handleCompletions serves POST /v1/completions.
func (s *Server) handleCompletions(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	ctx := r.Context()

	var req backends.CompletionRequest
	if err := decodeJSON(r, &req); err != nil {
		_ = writeError(w, classifyError(err))
		return
	}
	if err := validateCompletion(&req); err != nil {
		_ = writeError(w, classifyError(err))
		return
	}

	start := time.Now()
	resp, err := s.router.Complete(ctx, &req)
	elapsed := time.Since(start)

	if err != nil {
		s.logger.ErrorContext(ctx, "completion failed",
			"request_id", RequestID(ctx),
			"model", req.Model,
			"error", err,
		)
		s.collector.RecordError("router", errorType(err))
		_ = writeError(w, classifyError(err))
		return
	}

	s.recordServed(resp, elapsed)
	s.logger.InfoContext(ctx, "completion served",
		"request_id", RequestID(ctx),
		"backend", resp.Backend,
		"model", resp.Model,
		"total_tokens", resp.Usage.TotalTokens,
		"cost_usd", resp.Cost,
		"latency_ms", elapsed.Milliseconds(),
	)
	_ = writeJSON(w, http.StatusOK, resp)
}

// handleCompletionStream serves POST /v1/completions/stream. Tokens are
// written as SSE "data:" events; the stream always terminates with a
// [DONE] sentinel, preceded by an error-shaped event on failure.
func (s *Server) handleCompletionStream(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	ctx := r.Context()

	var req backends.CompletionRequest
	if err := decodeJSON(r, &req); err != nil {
		_ = writeError(w, classifyError(err))
		return
	}
	if err := validateCompletion(&req); err != nil {
		_ = writeError(w, classifyError(err))
		return
	}

	start := time.Now()
	chunks, err := s.router.StreamCompletion(ctx, &req)
	if err != nil {
		s.collector.RecordError("router", errorType(err))
		_ = writeError(w, classifyError(err))
		return
	}

	setSSEHeaders(w)
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}

	var (
		sent  int
		model string
	)
	for chunk := range chunks {
		if chunk.Error != nil {
			s.logger.ErrorContext(ctx, "stream failed",
				"request_id", RequestID(ctx),
				"chunks_sent", sent,
				"error", chunk.Error,
			)
			s.collector.RecordError("router", errorType(chunk.Error))
			_ = writeSSEEvent(w, classifyError(chunk.Error))
			break
		}
		if err := writeSSEEvent(w, chunk); err != nil {
			s.logger.WarnContext(ctx, "client went away mid-stream",
				"request_id", RequestID(ctx),
				"chunks_sent", sent,
			)
			return
		}
		sent++
		model = chunk.Model
	}
	_ = writeSSEDone(w)

	// Usage accounting for a clean stream happens in the router, which
	// sees the final chunk's token counts.
	s.logger.InfoContext(ctx, "stream served",
		"request_id", RequestID(ctx),
		"model", model,
		"chunks_sent", sent,
		"latency_ms", time.Since(start).Milliseconds(),
	)
}

// handleEmbeddings serves POST /v1/embeddings.
func (s *Server) handleEmbeddings(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	ctx := r.Context()

	var req backends.EmbeddingRequest
	if err := decodeJSON(r, &req); err != nil {
		_ = writeError(w, classifyError(err))
		return
	}
	if len(req.Texts) == 0 {
		_ = writeError(w, classifyError(&backends.ValidationError{
			Field: "texts", Message: "at least one text is required"}))
		return
	}

	start := time.Now()
	resp, err := s.router.Embed(ctx, &req)
	elapsed := time.Since(start)

	if err != nil {
		s.collector.RecordError("router", errorType(err))
		_ = writeError(w, classifyError(err))
		return
	}

	s.collector.RecordCall(string(resp.Backend), resp.Model, "ok", elapsed, resp.Cost)
	_ = writeJSON(w, http.StatusOK, resp)
}

// batchItemRequest is one entry in a batch submission. Exactly one of
// the payload fields must be set, matching Kind.
type batchItemRequest struct {
	Kind     string `json:"kind"`
	Priority string `json:"priority,omitempty"`

	Completion *backends.CompletionRequest `json:"completion,omitempty"`
	Embedding  *backends.EmbeddingRequest  `json:"embedding,omitempty"`
	Generation *batch.GenerationPayload    `json:"generation,omitempty"`
	Deadline   time.Time                   `json:"deadline,omitempty"`
}

type batchRequest struct {
	Items []batchItemRequest `json:"items"`

	// Wait blocks until every item completes; otherwise item IDs are
	// returned immediately for fire-and-forget submission.
	Wait bool `json:"wait"`
}

// batchItemResult is the wire form of one item's outcome.
type batchItemResult struct {
	ItemID  string `json:"item_id"`
	BatchID string `json:"batch_id,omitempty"`
	Error   string `json:"error,omitempty"`

	Completion *backends.CompletionResponse `json:"completion,omitempty"`
	Embedding  *backends.EmbeddingResponse  `json:"embedding,omitempty"`
	Generation *backends.CompletionResponse `json:"generation,omitempty"`
}

type batchResponse struct {
	Results []batchItemResult `json:"results,omitempty"`
	ItemIDs []string          `json:"item_ids,omitempty"`
}

func parsePriority(s string) (batch.Priority, error) {
	switch s {
	case "", "normal":
		return batch.PriorityNormal, nil
	case "low":
		return batch.PriorityLow, nil
	case "high":
		return batch.PriorityHigh, nil
	case "urgent":
		return batch.PriorityUrgent, nil
	default:
		return 0, &backends.ValidationError{Field: "priority", Message: fmt.Sprintf("unknown priority %q", s)}
	}
}

func buildItem(entry batchItemRequest) (*batch.Item, error) {
	priority, err := parsePriority(entry.Priority)
	if err != nil {
		return nil, err
	}

	var payload batch.Payload
	switch entry.Kind {
	case string(batch.KindCompletion):
		if entry.Completion == nil {
			return nil, &backends.ValidationError{Field: "completion", Message: "completion payload is required"}
		}
		if err := validateCompletion(entry.Completion); err != nil {
			return nil, err
		}
		payload = batch.CompletionPayload{Request: entry.Completion}
	case string(batch.KindEmbedding):
		if entry.Embedding == nil || len(entry.Embedding.Texts) == 0 {
			return nil, &backends.ValidationError{Field: "embedding", Message: "embedding payload with texts is required"}
		}
		payload = batch.EmbeddingPayload{Request: entry.Embedding}
	case string(batch.KindGeneration):
		if entry.Generation == nil || entry.Generation.Prompt == "" {
			return nil, &backends.ValidationError{Field: "generation", Message: "generation payload with prompt is required"}
		}
		payload = *entry.Generation
	default:
		return nil, &backends.ValidationError{Field: "kind", Message: fmt.Sprintf("unknown kind %q", entry.Kind)}
	}

	item := batch.NewItem(payload, priority)
	item.Deadline = entry.Deadline
	return item, nil
}

// handleBatch serves POST /v1/batch. Items are validated up front so a
// malformed entry rejects the whole submission before anything enqueues.
func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	ctx := r.Context()

	var req batchRequest
	if err := decodeJSON(r, &req); err != nil {
		_ = writeError(w, classifyError(err))
		return
	}
	if len(req.Items) == 0 {
		_ = writeError(w, classifyError(&backends.ValidationError{
			Field: "items", Message: "at least one item is required"}))
		return
	}

	items := make([]*batch.Item, 0, len(req.Items))
	for _, entry := range req.Items {
		item, err := buildItem(entry)
		if err != nil {
			_ = writeError(w, classifyError(err))
			return
		}
		items = append(items, item)
	}

	if !req.Wait {
		resp := batchResponse{ItemIDs: make([]string, 0, len(items))}
		for _, item := range items {
			if _, err := s.scheduler.Submit(ctx, item, false); err != nil {
				_ = writeError(w, classifyError(err))
				return
			}
			resp.ItemIDs = append(resp.ItemIDs, item.ID)
		}
		_ = writeJSON(w, http.StatusAccepted, resp)
		return
	}

	// Enqueue everything first so items can share a batch, then collect.
	for _, item := range items {
		if _, err := s.scheduler.Submit(ctx, item, false); err != nil {
			_ = writeError(w, classifyError(err))
			return
		}
	}

	resp := batchResponse{Results: make([]batchItemResult, 0, len(items))}
	for _, item := range items {
		select {
		case res := <-item.Result():
			resp.Results = append(resp.Results, toItemResult(res))
		case <-ctx.Done():
			_ = writeError(w, classifyError(ctx.Err()))
			return
		}
	}

	s.logger.InfoContext(ctx, "batch submission served",
		"request_id", RequestID(ctx),
		"items", len(items),
	)
	_ = writeJSON(w, http.StatusOK, resp)
}

func toItemResult(res *batch.Result) batchItemResult {
	out := batchItemResult{
		ItemID:     res.ItemID,
		BatchID:    res.BatchID,
		Completion: res.Completion,
		Embedding:  res.Embedding,
		Generation: res.Generation,
	}
	if res.Err != nil {
		out.Error = res.Err.Error()
	}
	return out
}

// statsResponse aggregates the operational views of every subsystem.
type statsResponse struct {
	Routing routing.Snapshot `json:"routing"`
	Batch   batch.Snapshot   `json:"batch"`
	Usage   usage.Snapshot   `json:"usage"`
}

// handleStats serves GET /v1/stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		_ = writeError(w, newErrorResponse(
			fmt.Sprintf("method %s not allowed, use GET", r.Method),
			errorTypeInvalidRequest, "method", "method_not_allowed"))
		return
	}
	_ = writeJSON(w, http.StatusOK, statsResponse{
		Routing: s.router.Stats(),
		Batch:   s.scheduler.Stats(),
		Usage:   s.ledger.Snapshot(),
	})
}

// recordServed books a successful completion into the metrics
// collector. Ledger accounting lives in the router, which also sees
// batch-served traffic.
func (s *Server) recordServed(resp *backends.CompletionResponse, elapsed time.Duration) {
	s.collector.RecordCall(string(resp.Backend), resp.Model, "ok", elapsed, resp.Cost)
}
