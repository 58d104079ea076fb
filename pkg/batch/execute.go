package batch

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"helioshq/meridian/pkg/backends"
)

// embeddingCallOverhead is the flat per-request cost avoided when several
// embedding requests are merged into one upstream call. Feeds the
// cost-savings counter only.
const embeddingCallOverhead = 0.0001

// runIndividual executes each item through the router with bounded
// concurrency. Completion items are grouped by model first so the log
// line reflects the batch's composition.
func (s *Scheduler) runIndividual(ctx context.Context, batchID string, items []*Item, cfg Config) []*Result {
	if groups := groupByModel(items); len(groups) > 1 {
		sizes := make(map[string]int, len(groups))
		for model, group := range groups {
			sizes[model] = len(group)
		}
		s.logger.Debug("mixed-model batch", "batch_id", batchID, "models", sizes)
	}

	results := make([]*Result, len(items))
	var g errgroup.Group
	g.SetLimit(cfg.FanOutLimit)
	for i, item := range items {
		g.Go(func() error {
			results[i] = s.executeItem(ctx, item)
			return nil
		})
	}
	g.Wait()
	return results
}

func (s *Scheduler) executeItem(ctx context.Context, item *Item) *Result {
	start := time.Now()
	res := &Result{ItemID: item.ID}

	switch p := item.Payload.(type) {
	case CompletionPayload:
		res.Completion, res.Err = s.exec.Complete(ctx, p.Request)
	case EmbeddingPayload:
		res.Embedding, res.Err = s.exec.Embed(ctx, p.Request)
	case GenerationPayload:
		res.Generation, res.Err = s.exec.Complete(ctx, generationRequest(p))
	default:
		res.Err = ErrNilPayload
	}

	res.Elapsed = time.Since(start)
	return res
}

// generationRequest turns a generation job into a routable completion
// request. The persona, when present, becomes the system message.
func generationRequest(p GenerationPayload) *backends.CompletionRequest {
	req := &backends.CompletionRequest{
		Model: p.Model,
		User:  p.User,
	}
	if p.Persona != "" {
		req.Messages = append(req.Messages, backends.Message{
			Role:    backends.RoleSystem,
			Content: p.Persona,
		})
	}
	req.Messages = append(req.Messages, backends.Message{
		Role:    backends.RoleUser,
		Content: p.Prompt,
	})
	return req
}

// runEmbeddingBatch merges embedding items into one upstream call per
// model, then slices the returned vectors back per item by offset. A
// failed merged call fails every item in that model group.
func (s *Scheduler) runEmbeddingBatch(ctx context.Context, batchID string, items []*Item, cfg Config) []*Result {
	type span struct {
		index      int // position in items
		start, end int // text offsets within the merged request
	}

	merged := make(map[string][]span)
	texts := make(map[string][]string)
	results := make([]*Result, len(items))

	for i, item := range items {
		p, ok := item.Payload.(EmbeddingPayload)
		if !ok || p.Request == nil || len(p.Request.Texts) == 0 {
			results[i] = &Result{ItemID: item.ID, Err: ErrNilPayload}
			continue
		}
		model := p.Request.Model
		start := len(texts[model])
		texts[model] = append(texts[model], p.Request.Texts...)
		merged[model] = append(merged[model], span{index: i, start: start, end: len(texts[model])})
	}

	var g errgroup.Group
	g.SetLimit(cfg.FanOutLimit)
	for model, spans := range merged {
		g.Go(func() error {
			start := time.Now()
			resp, err := s.exec.Embed(ctx, &backends.EmbeddingRequest{
				Texts: texts[model],
				Model: model,
			})
			elapsed := time.Since(start)

			if err == nil && len(resp.Embeddings) != len(texts[model]) {
				err = &ExecutionError{BatchID: batchID, Kind: KindEmbedding,
					Err: fmt.Errorf("backend %s returned %d vectors for %d texts",
						resp.Backend, len(resp.Embeddings), len(texts[model]))}
			}
			if err != nil {
				for _, sp := range spans {
					results[sp.index] = &Result{ItemID: items[sp.index].ID, Err: err, Elapsed: elapsed}
				}
				return nil
			}

			total := len(texts[model])
			for _, sp := range spans {
				count := sp.end - sp.start
				results[sp.index] = &Result{
					ItemID:  items[sp.index].ID,
					Elapsed: elapsed,
					Embedding: &backends.EmbeddingResponse{
						Embeddings: resp.Embeddings[sp.start:sp.end],
						Model:      resp.Model,
						Backend:    resp.Backend,
						Usage: backends.TokenUsage{
							PromptTokens: resp.Usage.PromptTokens * count / total,
							TotalTokens:  resp.Usage.TotalTokens * count / total,
						},
					},
				}
			}
			if saved := len(spans) - 1; saved > 0 {
				s.stats.recordSavings(float64(saved) * embeddingCallOverhead)
			}
			return nil
		})
	}
	g.Wait()
	return results
}

func groupByModel(items []*Item) map[string][]*Item {
	groups := make(map[string][]*Item)
	for _, item := range items {
		model := ""
		switch p := item.Payload.(type) {
		case CompletionPayload:
			if p.Request != nil {
				model = p.Request.Model
			}
		case GenerationPayload:
			model = p.Model
		}
		groups[model] = append(groups[model], item)
	}
	return groups
}
