// Package logx 统一构建进程内的 slog 记录器：tint 输出到终端，
// 级别与着色来自配置。
package logx

import (
	"io"
	"log/slog"
	"time"

	"github.com/lmittmann/tint"
	"github.com/rs/xid"
)

// New 返回面向终端的记录器。w 一般是 os.Stderr。
func New(w io.Writer, level string, color bool) *slog.Logger {
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      ParseLevel(level),
		TimeFormat: time.TimeOnly,
		NoColor:    !color,
	}))
}

// ParseLevel 把配置字符串换成 slog 级别；未知输入退回 info。
func ParseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Nop 返回丢弃所有输出的记录器（测试与静默场景用）。
func Nop() *slog.Logger { return slog.New(slog.DiscardHandler) }

// NewRunID 生成一次流水线运行的短标识（日志与报告靠它关联）。
func NewRunID() string { return xid.New().String() }
