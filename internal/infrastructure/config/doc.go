// Package config provides 12-factor configuration management for modbridge.
//
// Configuration is loaded from environment variables with sensible defaults.
// CLI flags can override environment variables for development flexibility.
//
// Configuration Sections:
//   - Server: HTTP server settings (port, host)
//   - Logging: Log level and output format
//   - RateLimit: Per-IP rate limiting configuration
//   - Store: Durable store directory and compression
//   - Scripts: Remote script fetch endpoint and limits
//   - Relay: Page request timeout and registry ack timeout
//   - Mods, Locale: Bundled mods and translation bundles
//   - Realm, Page: Page host execution limits and coordinator address
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("Coordinator listening on %s\n", cfg.Addr())
package config
