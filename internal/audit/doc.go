// Package audit journals operator commands issued through the API: who
// switched the booster, started automode, blocked a track or overrode a
// device. Entries live in the audit_log table and are queried newest first.
package audit
