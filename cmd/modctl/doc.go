// Package main is modctl, the command line counterpart of the popup.
//
// It drives a running coordinator over its REST API and generates the
// bundled mod manifest.
//
// Usage:
//
//	modctl scripts add abc123 --name Demo
//	modctl scripts toggle abc123 off
//	modctl mods list
//	modctl mods exec Foo.js --force
//	modctl locale set pt-BR
//	modctl manifest generate ./mods > ./mods/manifest.yaml
//
// Use the global --address flag (or MODCTL_ADDRESS) to point at the API.
package main
