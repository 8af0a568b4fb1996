package constants

import "time"

const (
	JWTSecretMinLength = 32

	DefaultMaxRequestSize = 1 << 20

	DBPoolMaxOpenConns    = 50
	DBPoolMinOpenConns    = 10
	DBPoolConnMaxLifetime = 5 * time.Minute
	DBPoolConnMaxIdleTime = 10 * time.Minute
	DBPoolHealthCheck     = 1 * time.Minute
	DBPoolConnectTimeout  = 15 * time.Second
	DBPoolMaxAttempts     = 10
	DBPoolRetryDelay      = 1 * time.Second
	DBPoolMetricsInterval = 30 * time.Second

	ServerReadHeaderTimeout = 10 * time.Second
	ServerReadTimeout       = 30 * time.Second
	ServerWriteTimeout      = 30 * time.Second
	ServerIdleTimeout       = 120 * time.Second

	ShutdownTimeout = 30 * time.Second

	WebSocketShutdownNotificationTimeout = 5 * time.Second
	WebSocketReadBufferSize              = 1024
	WebSocketWriteBufferSize             = 1024
	WebSocketUpgradesPerSecond           = 5
	WebSocketUpgradeBurst                = 20

	RevokedTokenCleanupInterval = time.Hour

	PresenceKeyPrefix = "presence:"
	PresenceChannel   = "presence.status"
)
