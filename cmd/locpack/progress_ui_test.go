package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/John-Robertt/LocPack/internal/domain"
)

func TestProgressUI_PhaseLines(t *testing.T) {
	var buf bytes.Buffer
	p := newProgressUI(&buf)

	p.OnPhaseDone(domain.HookPreBuild, "analyze", map[string]any{"default": 3, "non_default": 2, "to_move": 2}, 12*time.Millisecond)
	p.OnPhaseDone(domain.HookPreBuild, "evict", map[string]any{"evicted": 2, "failed": 0}, time.Millisecond)
	p.OnPhaseDone(domain.HookPostBuild, "file_restore", map[string]any{"restored": true}, time.Millisecond)

	out := buf.String()
	if !strings.Contains(out, "default=3") || !strings.Contains(out, "to_move=2") {
		t.Fatalf("分析行不完整：%q", out)
	}
	if !strings.Contains(out, "evicted=2") {
		t.Fatalf("搬离行不完整：%q", out)
	}
	if !strings.Contains(out, "restored=true") {
		t.Fatalf("主文件行不完整：%q", out)
	}
}

func TestProgressUI_ResourceLine(t *testing.T) {
	var buf bytes.Buffer
	p := newProgressUI(&buf)

	p.OnResourceDone(domain.HookPostBuild, 1, 2, domain.ResourceResult{
		ResourceID: "flag_fr",
		Status:     domain.ResourceStatusFailed,
		ErrorCode:  domain.ErrCodeIOFailed,
		ErrorMsg:   "复制回原位失败",
	}, time.Millisecond)

	if !strings.Contains(buf.String(), "[1/2] flag_fr FAIL io_failed") {
		t.Fatalf("失败行不完整：%q", buf.String())
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("  hello  ", 10); got != "hello" {
		t.Fatalf("truncate 不正确：%q", got)
	}
	if got := truncate("abcdefghij", 8); got != "abcde..." {
		t.Fatalf("truncate 不正确：%q", got)
	}
}
