package backends

import (
	"math"
	"testing"
)

func TestModelInfoCost(t *testing.T) {
	info := ModelInfo{
		InputCostPer1K:  0.005,
		OutputCostPer1K: 0.015,
	}

	usage := TokenUsage{
		PromptTokens:     2000,
		CompletionTokens: 1000,
		TotalTokens:      3000,
	}

	got := info.Cost(usage)
	want := 0.005*2 + 0.015*1

	if math.Abs(got-want) > 1e-9 {
		t.Errorf("Cost() = %f, want %f", got, want)
	}
}

func TestModelInfoCostZeroForLocal(t *testing.T) {
	var info ModelInfo
	if got := info.Cost(TokenUsage{PromptTokens: 5000, CompletionTokens: 5000}); got != 0 {
		t.Errorf("expected zero cost for local model, got %f", got)
	}
}

func TestEquivalentModel(t *testing.T) {
	tests := []struct {
		model string
		kind  Kind
		want  string
		ok    bool
	}{
		{ModelGPT4o, KindAnthropic, ModelClaudeOpus, true},
		{ModelGPT4Turbo, KindAnthropic, ModelClaudeOpus, true},
		{ModelGPT35Turbo, KindAnthropic, ModelClaudeHaiku, true},
		{ModelClaudeOpus, KindOpenAI, ModelGPT4o, true},
		{ModelClaudeSonnet, KindOpenAI, ModelGPT4Turbo, true},
		{ModelClaudeHaiku, KindOpenAI, ModelGPT35Turbo, true},
		{ModelGPT4o, KindLocal, ModelLlama3_70B, true},
		{ModelClaudeHaiku, KindLocal, ModelLlama3_8B, true},
		{ModelLlama3_70B, KindAnthropic, "", false},
		{"unknown-model", KindOpenAI, "", false},
		{ModelGPT4o, Kind("bedrock"), "", false},
	}

	for _, tt := range tests {
		got, ok := EquivalentModel(tt.model, tt.kind)
		if got != tt.want || ok != tt.ok {
			t.Errorf("EquivalentModel(%q, %q) = (%q, %v), want (%q, %v)",
				tt.model, tt.kind, got, ok, tt.want, tt.ok)
		}
	}
}

func TestModelCatalog(t *testing.T) {
	cat := NewModelCatalog(map[string]ModelInfo{
		"model-a": {InputCostPer1K: 0.001},
		"model-b": {InputCostPer1K: 0.002},
	}, "model-a")

	if !cat.SupportsModel("model-a") {
		t.Error("expected model-a to be supported")
	}
	if cat.SupportsModel("model-c") {
		t.Error("expected model-c to be unsupported")
	}
	if cat.DefaultModel() != "model-a" {
		t.Errorf("expected default model-a, got %s", cat.DefaultModel())
	}
	if got := cat.Models(); len(got) != 2 {
		t.Errorf("expected 2 models, got %d", len(got))
	}

	info, ok := cat.ModelInfo("model-b")
	if !ok || info.InputCostPer1K != 0.002 {
		t.Errorf("unexpected model info: %+v, ok=%v", info, ok)
	}
}
