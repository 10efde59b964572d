package utils

import (
	"time"
)

// ContextKey is the type used for request-scoped context values
type ContextKey string

// Context keys populated by handlers for every request
const (
	RequestIDKey  ContextKey = "request_id"
	UserAgentKey  ContextKey = "user_agent"
	IPAddressKey  ContextKey = "ip_address"
	EndpointKey   ContextKey = "endpoint"
	TimeoutKey    ContextKey = "timeout"
	CancelFuncKey ContextKey = "cancel_func"
)

// RMA token constants
const (
	// TokenCounterName is the sequence counter row owning RMA token numbers
	TokenCounterName = "rma_token"

	// DefaultTokenPrefix is prepended to every issued token number
	DefaultTokenPrefix = "MES-RMA"

	// DefaultTokenSeed is the baseline the counter is seeded with on first startup
	DefaultTokenSeed = 440
)

// Device status values
const (
	DeviceStatusOpen   = "Open"
	DeviceStatusClosed = "Closed"
)

// Request handling constants
const (
	// DefaultRequestTimeout bounds how long a handler waits on storage
	DefaultRequestTimeout = 30 * time.Second
)

// Cache key suffixes
const (
	RMATokenCacheKeyPrefix = "rma:token:"
)
