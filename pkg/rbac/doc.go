// Package rbac implements the role reassignment and permission lifecycle
// engine. It validates a requested role transition through an ordered
// pipeline, classifies roles into semantic categories, computes permission
// deltas, and commits the user mutation together with its audit record in
// a single transaction.
package rbac
