// Package http serves the coordinator's popup API.
//
// Every body mirrors the Channel A response shape: {"success": true,
// "data": ...} or {"success": false, "error": "..."}. Sentinel errors map to
// status codes: not found 404, invalid 400, fetch failures 422.
package http
