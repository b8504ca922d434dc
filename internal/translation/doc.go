// Package translation persists translation jobs, their chunks, the error
// log, sessions, and per-job metrics in SQLite. It owns the status state
// machines for jobs and chunks; all transitions go through conditional
// updates so concurrent writers cannot skip states.
package translation
