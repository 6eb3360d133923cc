// Package storage persists layout objects as key=value settings records.
//
// Every track, street, device, feedback and locomotive serializes itself to a
// Record. The SQLite repository stores one row per object plus an ordered
// list of relation records (a street's device settings). Scheduler runs
// periodic snapshots on a cron schedule.
package storage
