package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestSetupWithWriter_JSON(t *testing.T) {
	buf := &bytes.Buffer{}
	l := SetupWithWriter(Options{Level: "debug", Format: "json", Service: "chreosis-api"}, buf)
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	l.Debug().Str("k", "v").Msg("hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%s)", err, buf.String())
	}
	if entry["message"] != "hello" || entry["k"] != "v" {
		t.Errorf("unexpected entry: %v", entry)
	}
	if entry["service"] != "chreosis-api" {
		t.Errorf("service = %v, want chreosis-api", entry["service"])
	}
	if zerolog.GlobalLevel() != zerolog.DebugLevel {
		t.Errorf("global level = %v, want debug", zerolog.GlobalLevel())
	}
}

func TestSetupWithWriter_UnknownLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	SetupWithWriter(Options{Level: "loud"}, buf)

	if zerolog.GlobalLevel() != zerolog.InfoLevel {
		t.Errorf("global level = %v, want info", zerolog.GlobalLevel())
	}
}

func TestSetupWithWriter_InstallsGlobal(t *testing.T) {
	buf := &bytes.Buffer{}
	SetupWithWriter(Options{Level: "info"}, buf)

	log.Info().Msg("via global")
	if !strings.Contains(buf.String(), "via global") {
		t.Errorf("global logger did not write to the configured writer: %q", buf.String())
	}
}

func TestSetupWithWriter_Console(t *testing.T) {
	buf := &bytes.Buffer{}
	l := SetupWithWriter(Options{Level: "info", Format: "console"}, buf)

	l.Info().Msg("readable")
	if json.Valid(bytes.TrimSpace(buf.Bytes())) {
		t.Errorf("console output should not be JSON: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "readable") {
		t.Errorf("console output missing message: %q", buf.String())
	}
}

func TestFromContext(t *testing.T) {
	buf := &bytes.Buffer{}
	scoped := zerolog.New(buf).With().Str("request_id", "abc").Logger()
	ctx := WithContext(context.Background(), scoped)

	l := FromContext(ctx)
	l.Info().Msg("scoped")

	if !strings.Contains(buf.String(), `"request_id":"abc"`) {
		t.Errorf("expected request-scoped field, got %q", buf.String())
	}
}

func TestFromContext_Default(t *testing.T) {
	buf := &bytes.Buffer{}
	SetupWithWriter(Options{Level: "info"}, buf)

	l := FromContext(context.Background())
	l.Info().Msg("fallback")
	if !strings.Contains(buf.String(), "fallback") {
		t.Errorf("expected global logger fallback, got %q", buf.String())
	}
}
