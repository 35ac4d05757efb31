// Package shared provides common utilities used across the codebase.
//
//nolint:revive // "shared" is an intentional package name for cross-cutting helpers.
package shared

import "strings"

// IsSQLiteBusyError reports whether err carries SQLITE_BUSY, which SQLite
// returns when another connection holds the write lock.
func IsSQLiteBusyError(err error) bool {
	return errorContains(err, "SQLITE_BUSY")
}

// IsSQLiteLockedError reports whether err is the "database is locked" form
// of the same contention.
func IsSQLiteLockedError(err error) bool {
	return errorContains(err, "database is locked")
}

// IsSQLiteConflictError reports lock contention of either form.
// Callers retry writes that fail this way.
func IsSQLiteConflictError(err error) bool {
	return IsSQLiteBusyError(err) || IsSQLiteLockedError(err)
}

func errorContains(err error, fragment string) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), fragment)
}
