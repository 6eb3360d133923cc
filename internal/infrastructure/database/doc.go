// Package database provides SQLite connectivity for railcontrol.
//
// This package manages:
//   - Database connection with WAL mode for concurrent access
//   - Versioned schema migrations (embedded .up.sql/.down.sql pairs)
//   - Connection lifecycle and health checks
//
// Usage:
//
//	db, err := database.Open(ctx, database.ConfigFrom(cfg.Database))
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
