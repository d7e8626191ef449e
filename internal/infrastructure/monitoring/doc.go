/*
Package monitoring provides metrics collection for modbridge.

# Overview

Prometheus collectors for the coordinator and page host: HTTP requests,
remote script fetches and cache tiers, relay traffic and drops, pending page
requests, mod executions, and attached tabs.

Each Metrics value owns its registry, so tests and multiple page hosts in one
process never collide on registration. All recording methods accept a nil
receiver.

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	timer := monitoring.NewTimer(metrics)
	// ... fetch ...
	timer.StopFetch("ok")
*/
package monitoring
