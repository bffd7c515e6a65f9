// Package server implements the zipdrop HTTP server: the access gate,
// the upload handler with archive extraction, the directory service
// (list and delete), static file serving from the Storage Root, and the
// operational endpoints (health, metrics, audit trail).
//
// The Storage Root and archive decoder are injected through Config, so
// tests run the full handler stack against an in-memory or temp-dir root.
package server
