package obslog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestOptionsFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "JSON")
	t.Setenv("LOG_TO_FILE", "true")
	t.Setenv("LOG_FILE", "/tmp/x.log")
	opts := OptionsFromEnv()
	if opts.Level != "debug" || !opts.ToFile || opts.FilePath != "/tmp/x.log" || !opts.ToConsole {
		t.Fatalf("unexpected options %+v", opts)
	}
	if normalizeFormat(opts.Format) != "json" {
		t.Fatalf("format not normalised: %q", opts.Format)
	}
	if normalizeFormat("xml") != "legacy" {
		t.Fatalf("unknown format should fall back to legacy")
	}
}

func TestNewWritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "relay.log")
	logger, err := New(Options{Level: "info", Format: "json", ToFile: true, FilePath: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Debug("hidden_event")
	logger.Info("relay_join", zap.String("room", "Main"))
	_ = logger.Sync()

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	s := string(raw)
	if !strings.Contains(s, `"msg":"relay_join"`) || !strings.Contains(s, `"room":"Main"`) {
		t.Fatalf("log line missing fields: %s", s)
	}
	if strings.Contains(s, "hidden_event") {
		t.Fatalf("debug line written at info level: %s", s)
	}
}

func TestReplaceRestores(t *testing.T) {
	prev := L()
	restore := Replace(zap.NewExample())
	if L() == prev {
		t.Fatalf("logger not replaced")
	}
	restore()
	if L() != prev {
		t.Fatalf("logger not restored")
	}
}

func TestParseLevel(t *testing.T) {
	if parseLevel("WARNING") != zapcore.WarnLevel || parseLevel("") != zapcore.InfoLevel {
		t.Fatalf("parseLevel mismatch")
	}
}
