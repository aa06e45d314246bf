package config

import "time"

// Database connection pool settings
const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 5 * time.Minute
)

// HTTP server timeouts
const (
	ServerRequestTimeout  = 10 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Backend ping timeout for startup and health checks
const BackendPingTimeout = 5 * time.Second

// Background sweep runs each pass under this deadline
const SweepJobTimeout = 5 * time.Second

// Recommended client heartbeat cadence. The server never enforces it; it
// bounds how aggressive the presence timeout may be.
const ClientHeartbeatInterval = 5 * time.Second

// Signaling request body cap
const MaxSignalBodySize = 4 << 10
