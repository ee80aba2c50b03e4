package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestSlogBridgeFields(t *testing.T) {
	var buf bytes.Buffer
	zl := Build(Config{Level: "debug"}, &buf)
	sl := NewSlog(&zl)

	sl.With("component", "test").WithGroup("req").Warn("slow request", "ms", int64(42))

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("log line is not json: %v (%q)", err, buf.String())
	}
	if rec["level"] != "warn" {
		t.Errorf("level = %v", rec["level"])
	}
	if rec["msg"] != "slow request" {
		t.Errorf("msg = %v", rec["msg"])
	}
	if rec["component"] != "test" {
		t.Errorf("component = %v", rec["component"])
	}
	if rec["req.ms"] != float64(42) {
		t.Errorf("req.ms = %v", rec["req.ms"])
	}
}

func TestSlogBridgeGroupScopesRecordAttrsOnly(t *testing.T) {
	var buf bytes.Buffer
	zl := Build(Config{Level: "debug"}, &buf)
	sl := NewSlog(&zl).With("outer", "a").WithGroup("g")

	sl.Info("hello", "inner", "b")

	line := buf.String()
	if !strings.Contains(line, `"outer":"a"`) {
		t.Errorf("pre-group attr was prefixed: %s", line)
	}
	if !strings.Contains(line, `"g.inner":"b"`) {
		t.Errorf("record attr missing group prefix: %s", line)
	}
}
