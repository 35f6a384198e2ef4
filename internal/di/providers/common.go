package providers

import "time"

const (
	// shutdownTimeout is the maximum time to wait for graceful shutdown of services.
	shutdownTimeout = 30 * time.Second

	// Login attempts allowed per client IP.
	loginAttemptsPerMinute = 10
	loginBurst             = 5
)
