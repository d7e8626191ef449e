// Package client is a typed REST client for the coordinator API, used by
// modctl.
package client
