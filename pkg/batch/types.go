package batch

import (
	"time"

	"github.com/google/uuid"

	"helioshq/meridian/pkg/backends"
)

// Kind identifies the type of work an item carries. Items of different
// kinds are never mixed in the same batch.
type Kind string

const (
	KindCompletion Kind = "completion"
	KindEmbedding  Kind = "embedding"
	KindGeneration Kind = "generation"
)

// Priority orders items within a kind. Higher priorities are evaluated
// for admission first and score higher under the hybrid strategy.
type Priority int

const (
	PriorityLow    Priority = 1
	PriorityNormal Priority = 2
	PriorityHigh   Priority = 3
	PriorityUrgent Priority = 4
)

// String returns the lowercase priority name.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityUrgent:
		return "urgent"
	default:
		return "unknown"
	}
}

// priorities in admission order, most urgent first.
var priorities = []Priority{PriorityUrgent, PriorityHigh, PriorityNormal, PriorityLow}

// Payload is the work an item carries. Exactly one concrete payload type
// exists per Kind.
type Payload interface {
	Kind() Kind
}

// CompletionPayload wraps a chat completion request.
type CompletionPayload struct {
	Request *backends.CompletionRequest
}

func (CompletionPayload) Kind() Kind { return KindCompletion }

// EmbeddingPayload wraps an embedding request. Requests for the same
// model within a batch are merged into a single upstream call.
type EmbeddingPayload struct {
	Request *backends.EmbeddingRequest
}

func (EmbeddingPayload) Kind() Kind { return KindEmbedding }

// GenerationPayload describes a content generation job. The scheduler
// builds a completion request from it and routes it; prompt templating
// beyond the persona preamble is the caller's concern.
type GenerationPayload struct {
	ContentType string
	Persona     string
	Prompt      string
	Model       string
	User        string
}

func (GenerationPayload) Kind() Kind { return KindGeneration }

// Item is a unit of submitted work. Construct items with NewItem.
type Item struct {
	// ID uniquely identifies the item across its lifetime
	ID string

	// Priority orders the item within its kind
	Priority Priority

	// Payload is the work to perform. Must be non-nil.
	Payload Payload

	// Deadline, when non-zero, feeds the hybrid strategy's urgency term
	Deadline time.Time

	enqueued time.Time
	result   chan *Result
}

// NewItem creates an item with a fresh ID and a buffered one-shot result
// channel.
func NewItem(payload Payload, priority Priority) *Item {
	return &Item{
		ID:       uuid.NewString(),
		Priority: priority,
		Payload:  payload,
		result:   make(chan *Result, 1),
	}
}

// Result returns the channel the item's single result is delivered on.
func (i *Item) Result() <-chan *Result {
	return i.result
}

// deliver sends the result without blocking. The channel is buffered with
// capacity one and each item receives exactly one result, so a full
// channel means a duplicate delivery, which is dropped.
func (i *Item) deliver(res *Result) {
	select {
	case i.result <- res:
	default:
	}
}

// Result is the outcome of a single item. Exactly one of Completion,
// Embedding, or Generation is set on success, matching the payload kind;
// Err is set on failure.
type Result struct {
	ItemID  string        `json:"item_id"`
	BatchID string        `json:"batch_id,omitempty"`
	Elapsed time.Duration `json:"elapsed"`
	Err     error         `json:"-"`

	Completion *backends.CompletionResponse `json:"completion,omitempty"`
	Embedding  *backends.EmbeddingResponse  `json:"embedding,omitempty"`
	Generation *backends.CompletionResponse `json:"generation,omitempty"`
}
