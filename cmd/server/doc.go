// Package main is the entry point for the modbridge coordinator.
//
// The coordinator owns the script cache, the mod registry and the durable
// store. Page hosts attach over a websocket at /bridge; the popup and modctl
// talk to the REST API.
//
//	modctl / popup → REST API ─┐
//	                           ├→ Coordinator → Store
//	pagehost (bridge) → /bridge┘
//
// Configuration comes from the environment (see internal/infrastructure/config),
// with a few CLI flags layered on top.
//
// Usage:
//
//	./server -port 8000 -store ./data -mods ./mods
//
//	# Development mode (colored logs, debug level)
//	LOG_LEVEL=debug ./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
