// Package bridge relays between the page window and the coordinator.
//
// Page envelopes tagged CLIENT or SANDBOX_UTILS become coordinator requests
// (when they carry a correlation id) or pushes (when they do not). Answers are
// posted back tagged EXTENSION with the same id. Coordinator pushes are
// re-posted to the page, resolving local mod sources and configs on the way.
package bridge
