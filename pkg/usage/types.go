package usage

import (
	"time"

	"helioshq/meridian/pkg/backends"
)

// Record is a single usage event, typically one served request.
type Record struct {
	// Time is when the request completed
	Time time.Time `json:"time"`

	// User is the caller identifier. Empty for unattributed traffic.
	User string `json:"user,omitempty"`

	// Model is the model that served the request
	Model string `json:"model"`

	// Backend is the backend family that served the request
	Backend backends.Kind `json:"backend"`

	// PromptTokens and CompletionTokens are the token counts reported
	// by the backend
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`

	// Cost is the estimated cost in USD
	Cost float64 `json:"cost"`
}

// Totals is an aggregate over a set of records.
type Totals struct {
	Requests         int64   `json:"requests"`
	PromptTokens     int64   `json:"prompt_tokens"`
	CompletionTokens int64   `json:"completion_tokens"`
	TotalTokens      int64   `json:"total_tokens"`
	Cost             float64 `json:"cost"`
}

func (t *Totals) add(rec Record) {
	t.Requests++
	t.PromptTokens += int64(rec.PromptTokens)
	t.CompletionTokens += int64(rec.CompletionTokens)
	t.TotalTokens += int64(rec.PromptTokens + rec.CompletionTokens)
	t.Cost += rec.Cost
}

// Snapshot is a point-in-time view of the ledger.
type Snapshot struct {
	Total      Totals            `json:"total"`
	ByUser     map[string]Totals `json:"by_user"`
	ByModel    map[string]Totals `json:"by_model"`
	ByBackend  map[string]Totals `json:"by_backend"`
	HourlyCost float64           `json:"hourly_cost"`
	DailyCost  float64           `json:"daily_cost"`
	Since      time.Time         `json:"since"`
}

// Aggregation dimensions accepted by Store.Aggregate.
const (
	DimensionUser    = "user"
	DimensionModel   = "model"
	DimensionBackend = "backend"
)
