// Package server is the ops HTTP server started by the serve command.
//
// Routes:
//
//	GET  /healthz                   liveness and scanner status
//	GET  /readyz                    runs the configured readiness checks
//	GET  /metrics                   Prometheus metrics (when enabled)
//	GET  /api/version               build information
//	GET  /api/scans?limit=N         recent scan sessions, newest first
//	POST /api/scan                  scan {"root": ...} or every configured root
//	GET  /api/groups                face groups by size
//	POST /api/media/{id}/reprocess  re-extract and re-detect one file
//
// Scans started through the API run in the background unless the request
// sets "wait"; they are cancelled when the server shuts down.
package server
