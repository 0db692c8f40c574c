package output

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseFormat(t *testing.T) {
	tests := map[string]Format{
		"json":  FormatJSON,
		"YAML":  FormatYAML,
		"yml":   FormatYAML,
		"table": FormatTable,
		"":      FormatTable,
		"xml":   FormatTable,
	}
	for in, want := range tests {
		if got := ParseFormat(in); got != want {
			t.Errorf("ParseFormat(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPrintStatsTable(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(FormatTable)
	p.SetWriter(&buf)

	if err := p.PrintStats(StatsRow{Hits: 3, Misses: 1, HitRate: 0.75, Availability: "connected"}); err != nil {
		t.Fatalf("PrintStats: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "HIT RATE") || !strings.Contains(out, "75.0%") || !strings.Contains(out, "connected") {
		t.Fatalf("unexpected table output:\n%s", out)
	}
	if strings.Contains(out, "\033[") {
		t.Fatalf("color codes written to non-terminal writer: %q", out)
	}
}

func TestPrintStatsYAML(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(FormatYAML)
	p.SetWriter(&buf)

	if err := p.PrintStats(StatsRow{Hits: 1, Availability: "unavailable"}); err != nil {
		t.Fatalf("PrintStats: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "hits: 1") || !strings.Contains(out, "backendAvailability: unavailable") {
		t.Fatalf("unexpected yaml output:\n%s", out)
	}
}

func TestPrintResultTable(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(FormatTable)
	p.SetWriter(&buf)

	err := p.PrintResult(map[string]any{
		"invalidated": float64(9),
		"ok":          true,
		"skipped":     []any{"hero", "footer"},
	})
	if err != nil {
		t.Fatalf("PrintResult: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %q", lines)
	}
	if !strings.HasPrefix(lines[0], "invalidated:") || !strings.HasSuffix(lines[0], "9") {
		t.Fatalf("line 0 = %q", lines[0])
	}
	if !strings.HasSuffix(lines[1], "yes") {
		t.Fatalf("line 1 = %q", lines[1])
	}
	if !strings.HasSuffix(lines[2], "hero, footer") {
		t.Fatalf("line 2 = %q", lines[2])
	}
}

func TestPrintResultJSON(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(FormatJSON)
	p.SetWriter(&buf)

	if err := p.PrintResult(map[string]any{"ok": true}); err != nil {
		t.Fatalf("PrintResult: %v", err)
	}
	if !strings.Contains(buf.String(), `"ok": true`) {
		t.Fatalf("unexpected json output: %s", buf.String())
	}
}
