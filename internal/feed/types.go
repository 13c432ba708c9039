package feed

import (
	"errors"
	"time"
)

// Errors
var (
	ErrHubClosed     = errors.New("feed closed")
	ErrNotConnected  = errors.New("not connected")
	ErrAlreadyClosed = errors.New("already closed")
)

// Config controls subscriber connections.
type Config struct {
	// SendBuffer is the number of encoded events queued per subscriber.
	SendBuffer int

	// PingInterval is how often the server pings; a subscriber that has not
	// answered within two intervals is dropped.
	PingInterval time.Duration

	// WriteTimeout bounds each frame write.
	WriteTimeout time.Duration
}

// DefaultConfig returns the daemon defaults.
func DefaultConfig() Config {
	return Config{
		SendBuffer:   256,
		PingInterval: 30 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}
