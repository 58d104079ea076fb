package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"helioshq/meridian/pkg/config"
)

func TestSetupJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, err := SetupWithWriter(config.LoggingConfig{Level: "info", Format: "json"}, &buf)
	if err != nil {
		t.Fatalf("SetupWithWriter() error = %v", err)
	}

	logger.Info("gateway ready", "port", 8090)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if entry["msg"] != "gateway ready" {
		t.Errorf("msg = %v, want gateway ready", entry["msg"])
	}
	if entry["port"] != float64(8090) {
		t.Errorf("port = %v, want 8090", entry["port"])
	}
}

func TestSetupLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger, err := SetupWithWriter(config.LoggingConfig{Level: "warn", Format: "text"}, &buf)
	if err != nil {
		t.Fatalf("SetupWithWriter() error = %v", err)
	}

	logger.Info("suppressed")
	logger.Warn("emitted")

	out := buf.String()
	if strings.Contains(out, "suppressed") {
		t.Error("info entry emitted below the configured level")
	}
	if !strings.Contains(out, "emitted") {
		t.Error("warn entry missing")
	}
}

func TestSetupRejectsUnknownLevel(t *testing.T) {
	if _, err := Setup(config.LoggingConfig{Level: "verbose"}); err == nil {
		t.Error("expected an error for an unknown level")
	}
}

func TestSetupRejectsUnknownFormat(t *testing.T) {
	if _, err := Setup(config.LoggingConfig{Level: "info", Format: "xml"}); err == nil {
		t.Error("expected an error for an unknown format")
	}
}
