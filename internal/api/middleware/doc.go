// Package middleware provides the HTTP middleware for the coordinator API.
//
// Middleware stack:
//   - RequestID: ULID request ids, echoed in X-Request-ID, plus one access
//     log line per request
//   - CORS: cross-origin access for the popup and extension pages
//   - RateLimit: per-IP token buckets with idle client eviction
//
// Example Usage:
//
//	router.Use(middleware.RequestID(logger))
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
