// Package ws serves Channel A over websockets: each connection is one page
// attached to the coordinator for its lifetime.
package ws
