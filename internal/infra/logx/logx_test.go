package logx

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"loud", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, c := range cases {
		if got := ParseLevel(c.in); got != c.want {
			t.Fatalf("ParseLevel(%q)=%v，期望 %v", c.in, got, c.want)
		}
	}
}

func TestNew_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "info", false)

	log.Debug("不应出现")
	log.Info("应当出现", "key", "value")

	out := buf.String()
	if strings.Contains(out, "不应出现") {
		t.Fatalf("debug 日志不应通过 info 级别：%s", out)
	}
	if !strings.Contains(out, "应当出现") || !strings.Contains(out, "value") {
		t.Fatalf("info 日志缺失：%s", out)
	}
}

func TestNop(t *testing.T) {
	log := Nop()
	if log.Enabled(context.Background(), slog.LevelError) {
		t.Fatalf("Nop 记录器不应启用任何级别")
	}
	log.Error("写进黑洞也不该崩")
}

func TestNewRunID(t *testing.T) {
	a, b := NewRunID(), NewRunID()
	if a == "" || b == "" {
		t.Fatalf("运行标识不能为空")
	}
	if a == b {
		t.Fatalf("两次生成不应相同：%q", a)
	}
}
