package db

import "time"

// Default source weight when a domain has no configured entry.
const DefaultSourceWeight = 50

// Database connection constants
const (
	// ConnectionRetrySleep is the sleep duration between connection retries
	ConnectionRetrySleep = 2 * time.Second
	// maxConnectionRetries is the number of retries for initial connection
	maxConnectionRetries = 10
)

// Database pool default constants
const (
	defaultMaxConns          int32         = 25
	defaultMinConns          int32         = 5
	defaultMaxConnIdleTime   time.Duration = 30 * time.Minute
	defaultMaxConnLifetime   time.Duration = time.Hour
	defaultHealthCheckPeriod time.Duration = time.Minute
)

// StaleProcessingAge is how long a job may sit in processing before it is
// considered abandoned and returned to pending.
const StaleProcessingAge = 15 * time.Minute
