package influxdb

import "errors"

// Errors from the telemetry writer. Write failures are asynchronous and
// reach the SetOnError callback wrapped in ErrWriteFailed.
var (
	// ErrNotConnected is returned by HealthCheck after Close.
	ErrNotConnected = errors.New("influxdb: not connected")

	// ErrConnectionFailed wraps a failed health check on Connect.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	ErrWriteFailed = errors.New("influxdb: write failed")

	// ErrDisabled means telemetry is switched off in the config.
	ErrDisabled = errors.New("influxdb: disabled in configuration")
)
