package batch

import (
	"strings"
	"time"
)

// Hybrid score weights. A queue is admitted when the weighted sum of its
// priority, fill, wait, and deadline-urgency terms reaches 1.0.
const (
	hybridPriorityWeight = 0.3
	hybridSizeWeight     = 0.3
	hybridWaitWeight     = 0.3
	hybridUrgencyWeight  = 0.1

	// urgencyWindow is how far ahead of an item's deadline the urgency
	// term starts ramping from 0 toward 1.
	urgencyWindow = time.Minute
)

// Rough cost-estimation constants for the cost-optimized strategy. Word
// counts stand in for tokenization.
const (
	tokensPerWord          = 1.3
	completionCostPerToken = 0.00002
	embeddingCostPerToken  = 0.0000001
)

// shouldAdmit decides whether a non-empty queue becomes a batch right now.
func shouldAdmit(cfg Config, priority Priority, queue []*Item, now time.Time) bool {
	if len(queue) == 0 {
		return false
	}
	wait := now.Sub(queue[0].enqueued)

	switch cfg.Strategy {
	case StrategyImmediate:
		return true
	case StrategySizeBased:
		return len(queue) >= cfg.MaxBatchSize
	case StrategyTimeBased:
		return wait >= cfg.MaxWait
	case StrategyCostOptimized:
		return estimateQueueCost(queue) >= cfg.CostThreshold
	case StrategyHybrid:
		return hybridScore(cfg, priority, queue, wait, now) >= 1.0
	default:
		return false
	}
}

func hybridScore(cfg Config, priority Priority, queue []*Item, wait time.Duration, now time.Time) float64 {
	priorityFactor := float64(priority) * cfg.PriorityBoost
	sizeFactor := min(float64(len(queue))/float64(cfg.MaxBatchSize), 1.0)
	waitFactor := min(float64(wait)/float64(cfg.MaxWait), 1.0)

	urgencyFactor := 0.0
	if deadline := queue[0].Deadline; !deadline.IsZero() {
		if remaining := deadline.Sub(now); remaining > 0 {
			urgencyFactor = max(0, 1.0-float64(remaining)/float64(urgencyWindow))
		}
	}

	return priorityFactor*hybridPriorityWeight +
		sizeFactor*hybridSizeWeight +
		waitFactor*hybridWaitWeight +
		urgencyFactor*hybridUrgencyWeight
}

// estimateQueueCost sums a rough per-item cost for the queue. Only
// completion and embedding payloads contribute; generation prompts are
// costed like completions.
func estimateQueueCost(queue []*Item) float64 {
	total := 0.0
	for _, item := range queue {
		switch p := item.Payload.(type) {
		case CompletionPayload:
			if p.Request == nil {
				continue
			}
			words := 0
			for _, msg := range p.Request.Messages {
				words += len(strings.Fields(msg.Content))
			}
			total += float64(words) * tokensPerWord * completionCostPerToken
		case EmbeddingPayload:
			if p.Request == nil {
				continue
			}
			words := 0
			for _, text := range p.Request.Texts {
				words += len(strings.Fields(text))
			}
			total += float64(words) * tokensPerWord * embeddingCostPerToken
		case GenerationPayload:
			words := len(strings.Fields(p.Prompt))
			total += float64(words) * tokensPerWord * completionCostPerToken
		}
	}
	return total
}
