// Package influxdb provides InfluxDB connectivity for railcontrol.
//
// It wraps the official influxdb-client-go v2 library for connection
// management, telemetry writing and health monitoring.
//
// # Purpose
//
// This package stores the operating history of the layout:
//   - Locomotive speed, automode state and position (measurement "loco")
//   - Occupancy transitions of feedbacks (measurement "feedback")
//   - Completed journeys (measurement "destination")
//   - Booster changes (measurement "booster")
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteFeedback(21, true, time.Now())
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are reported via the
// SetOnError callback. Connection and health check errors are returned
// directly. Writes on a closed or nil client are dropped.
package influxdb
