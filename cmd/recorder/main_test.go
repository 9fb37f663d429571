package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/lexiqai/meeting-recorder/internal/observability"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCommandSubcommands(t *testing.T) {
	root := newRootCommand()

	expected := []string{"record", "transcribe", "analyze", "health"}
	found := make(map[string]bool)
	for _, sub := range root.Commands() {
		found[sub.Name()] = true
		if sub.Short == "" {
			t.Errorf("Command %q has no short description", sub.Name())
		}
	}
	for _, name := range expected {
		if !found[name] {
			t.Errorf("Missing subcommand %q", name)
		}
	}
}

func TestInvalidOutputFormat(t *testing.T) {
	_, err := execute(t, "", "analyze", "-o", "xml", "texto")
	if err == nil || !strings.Contains(err.Error(), "invalid output format") {
		t.Fatalf("Expected output format error, got %v", err)
	}
}

func TestAnalyze_JSON(t *testing.T) {
	out, err := execute(t, "", "analyze", "--at", "2026-03-02", "-o", "json",
		"Meu nome é Ana Souza. Vamos criar uma tarefa: revisar o contrato.")
	if err != nil {
		t.Fatalf("analyze failed: %v", err)
	}

	var a Analysis
	if err := json.Unmarshal([]byte(out), &a); err != nil {
		t.Fatalf("Output is not JSON: %v\n%s", err, out)
	}
	if a.Speaker != "Ana Souza" {
		t.Errorf("Speaker = %q, want %q", a.Speaker, "Ana Souza")
	}
	if len(a.Minutes.ActionItems) != 1 || a.Minutes.ActionItems[0].Task != "revisar o contrato" {
		t.Errorf("Unexpected action items: %+v", a.Minutes.ActionItems)
	}
	if a.Minutes.Date != "2026-03-02" {
		t.Errorf("Minutes date = %q", a.Minutes.Date)
	}
}

func TestAnalyze_StdinYAML(t *testing.T) {
	out, err := execute(t, "A reunião para 10/03/2026 às 15:00 será na sala 4.", "analyze", "--at", "2026-03-02", "-o", "yaml")
	if err != nil {
		t.Fatalf("analyze failed: %v", err)
	}

	var a Analysis
	if err := yaml.Unmarshal([]byte(out), &a); err != nil {
		t.Fatalf("Output is not YAML: %v\n%s", err, out)
	}
	if len(a.CalendarIntents) != 1 {
		t.Fatalf("Expected 1 calendar intent, got %d", len(a.CalendarIntents))
	}
	ci := a.CalendarIntents[0]
	if ci.Location != "Sala 4" {
		t.Errorf("Location = %q", ci.Location)
	}
	if ci.StartTime == nil || ci.StartTime.Day() != 10 || ci.StartTime.Hour() != 15 {
		t.Errorf("Unexpected start time %v", ci.StartTime)
	}
}

func TestAnalyze_Text(t *testing.T) {
	out, err := execute(t, "", "analyze", "Ficou decidido que o prazo será prorrogado.")
	if err != nil {
		t.Fatalf("analyze failed: %v", err)
	}
	if !strings.Contains(out, "Decisão") || !strings.Contains(out, "o prazo será prorrogado") {
		t.Errorf("Unexpected text output:\n%s", out)
	}
}

func TestAnalyze_Empty(t *testing.T) {
	if _, err := execute(t, "   ", "analyze"); err == nil {
		t.Fatal("Expected error for empty input")
	}
}

func TestParseReferenceTime(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	got, err := parseReferenceTime("", now)
	if err != nil || !got.Equal(now) {
		t.Errorf("Empty value: got %v, %v", got, err)
	}

	got, err = parseReferenceTime("2026-03-10T15:00:00Z", now)
	if err != nil || got.Day() != 10 || got.Hour() != 15 {
		t.Errorf("RFC3339: got %v, %v", got, err)
	}

	got, err = parseReferenceTime("2026-03-10", now)
	if err != nil || got.Day() != 10 {
		t.Errorf("Date: got %v, %v", got, err)
	}

	if _, err := parseReferenceTime("amanhã", now); err == nil {
		t.Error("Expected error for unparseable time")
	}
}

func TestHealth_Serving(t *testing.T) {
	h := observability.NewHealthServer(map[string]observability.HealthCheckFunc{
		"storage": func(ctx context.Context) (bool, error) { return true, nil },
	}, zerolog.Nop())
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	go h.ServeListener(lis)
	defer h.Stop()
	h.Refresh(context.Background())

	out, err := execute(t, "", "health", lis.Addr().String())
	if err != nil {
		t.Fatalf("health failed: %v", err)
	}
	if !strings.Contains(out, "SERVING") {
		t.Errorf("Unexpected output: %s", out)
	}
}
