package main

import (
	"testing"
	"time"

	"helioshq/meridian/pkg/config"
)

func TestVersionCommandExists(t *testing.T) {
	if versionCmd == nil {
		t.Fatal("versionCmd is nil")
	}
	if versionCmd.Use != "version" {
		t.Errorf("versionCmd.Use = %q, want %q", versionCmd.Use, "version")
	}
	if versionCmd.Run == nil {
		t.Error("versionCmd.Run should not be nil")
	}
}

func TestRunCommandExists(t *testing.T) {
	if runCmd == nil {
		t.Fatal("runCmd is nil")
	}
	if runCmd.Use != "run" {
		t.Errorf("runCmd.Use = %q, want %q", runCmd.Use, "run")
	}
	if runCmd.RunE == nil {
		t.Error("runCmd.RunE should not be nil")
	}
}

func TestBackendOrderPrefersRoutingOrder(t *testing.T) {
	cfg := &config.Config{
		Backends: map[string]config.BackendConfig{
			"anthropic": {Kind: "anthropic"},
			"llama":     {Kind: "local"},
			"openai":    {Kind: "openai"},
		},
		Routing: config.RoutingConfig{
			Order: []string{"openai", "anthropic"},
		},
	}

	got := backendOrder(cfg)
	want := []string{"openai", "anthropic", "llama"}
	if len(got) != len(want) {
		t.Fatalf("expected %d names, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestBackendOrderIgnoresUnknownNames(t *testing.T) {
	cfg := &config.Config{
		Backends: map[string]config.BackendConfig{
			"openai": {Kind: "openai"},
		},
		Routing: config.RoutingConfig{
			Order: []string{"ghost", "openai"},
		},
	}

	got := backendOrder(cfg)
	if len(got) != 1 || got[0] != "openai" {
		t.Fatalf("expected [openai], got %v", got)
	}
}

func TestBuildBackendRejectsUnknownKind(t *testing.T) {
	_, err := buildBackend("weird", config.BackendConfig{Kind: "carrier-pigeon"})
	if err == nil {
		t.Fatal("expected error for unknown backend kind")
	}
}

func TestBatchConfigMapping(t *testing.T) {
	cfg := batchConfig(config.BatchConfig{
		Strategy:             "hybrid",
		MaxBatchSize:         20,
		MaxWait:              2 * time.Second,
		PriorityBoost:        3.0,
		CostThreshold:        0.05,
		MaxConcurrentBatches: 8,
		FanOutLimit:          6,
	})

	if cfg.Strategy != "hybrid" || cfg.MaxBatchSize != 20 || cfg.FanOutLimit != 6 {
		t.Errorf("unexpected mapping: %+v", cfg)
	}
	if cfg.MaxWait != 2*time.Second {
		t.Errorf("expected 2s max wait, got %s", cfg.MaxWait)
	}
}
