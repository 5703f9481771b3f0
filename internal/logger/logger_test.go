package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestNew_JSONCarriesComponent(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, Config{Level: "DEBUG", Format: "json"})
	log.With("collection", "movies").Debug("query executed", "rows", 3)

	out := buf.String()
	for _, want := range []string{`"component":"filedb"`, `"collection":"movies"`, `"rows":3`, `"msg":"query executed"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %s", out, want)
		}
	}
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, Config{Level: "WARN", Format: "text"})
	log.Info("dropped")
	log.Warn("kept")

	if strings.Contains(buf.String(), "dropped") {
		t.Error("info should be filtered at WARN")
	}
	if !strings.Contains(buf.String(), "kept") {
		t.Error("warn should be written at WARN")
	}
	if log.Enabled(slog.LevelInfo) {
		t.Error("info must not be enabled at WARN")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"Warn":  slog.LevelWarn,
		"ERROR": slog.LevelError,
		"":      slog.LevelInfo,
		"loud":  slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
