package sentry

import "errors"

var (
	// ErrClientClosed 客户端已关闭
	ErrClientClosed = errors.New("sentry: client closed")
)
