// Package auth implements opaque bearer tokens for administrative API
// access. Tokens are random, prefixed for identification, and stored only
// as SHA-256 hashes in the admin_tokens table.
package auth
