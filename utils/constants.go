package utils

import (
	"time"
)

// ContextKey is the type for request-scoped context values
type ContextKey string

// Request-scoped context keys set by the HTTP handlers
const (
	RequestIDKey  ContextKey = "request_id"
	UserAgentKey  ContextKey = "user_agent"
	IPAddressKey  ContextKey = "ip_address"
	EndpointKey   ContextKey = "endpoint"
	TimeoutKey    ContextKey = "timeout"
	CancelFuncKey ContextKey = "cancel_func"
)

// Engine defaults
const (
	// DefaultRequestTimeout bounds synchronous handler work
	DefaultRequestTimeout = 30 * time.Second

	// BatchRequestTimeout bounds a full trigger batch kicked off over HTTP
	BatchRequestTimeout = 10 * time.Minute
)
