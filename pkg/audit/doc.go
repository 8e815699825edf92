// Package audit maintains the append-only trail of role lifecycle events.
// Reassignment records are written inside the same transaction as the
// user mutation they describe and are never updated or deleted by the
// engine; only the retention sweeper removes rows past their retention
// window.
package audit
