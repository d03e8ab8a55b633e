package rpc

import (
	"errors"
	"strings"
	"time"
)

// RetryConfig defines retry behavior for one RPC call.
type RetryConfig struct {
	MaxAttempts  uint64
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultRetryConfig provides sensible defaults.
var DefaultRetryConfig = RetryConfig{
	MaxAttempts:  3,
	InitialDelay: 500 * time.Millisecond,
	MaxDelay:     10 * time.Second,
}

// ErrorAction determines how to handle an error.
type ErrorAction int

const (
	// ActionRetry covers network failures, timeouts and 5xx responses.
	ActionRetry ErrorAction = iota
	// ActionFatal covers malformed-request JSON-RPC codes; retrying the
	// same payload can never succeed.
	ActionFatal
)

// fatal JSON-RPC codes: parse error, invalid request, method not found,
// invalid params.
var fatalCodes = map[int]bool{
	-32700: true,
	-32600: true,
	-32601: true,
	-32602: true,
}

// ClassifyError determines the action for a given call error.
func ClassifyError(err error) ErrorAction {
	if err == nil {
		return ActionRetry
	}

	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		if fatalCodes[rpcErr.Code] {
			return ActionFatal
		}
		return ActionRetry
	}

	s := strings.ToLower(err.Error())
	if strings.Contains(s, "unauthorized") || strings.Contains(s, "forbidden") {
		return ActionFatal
	}
	return ActionRetry
}
