package domain

import (
	"errors"
	"fmt"
)

// Error 是带 error_code 的结构化错误（跨阶段传递，最终落到报告与日志）。
// Ref 用于定位：资源 id、路径或 URL，视产生位置而定。
type Error struct {
	Code string
	Ref  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Ref != "" && e.Err != nil:
		return fmt.Sprintf("%s：%q：%v", e.Code, e.Ref, e.Err)
	case e.Ref != "":
		return fmt.Sprintf("%s：%q", e.Code, e.Ref)
	case e.Err != nil:
		return fmt.Sprintf("%s：%v", e.Code, e.Err)
	default:
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 链中提取 error_code；链上没有 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
