// Package wizard hosts import wizard sessions.
//
// A session moves through upload, object selection, column mapping,
// configuration save and chunked upload. All mapping state changes go
// through the mapping reducer; field selection goes through the per-column
// cells, which emit the changes the reducer applies.
//
// Every operation runs under the session lock. Calls to the platform are
// made with the lock released, and their results are re-validated against
// the session when the lock is taken again, so a slow response for a
// selection the user has since replaced is dropped.
package wizard
