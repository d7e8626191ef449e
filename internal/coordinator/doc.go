// Package coordinator is the privileged side of the mod loader.
//
// It owns the registry and the script cache, answers every request arriving
// from attached pages, and pushes work to them: the enabled scripts when a
// page announces itself, and the local registry followed by one
// executeLocalMod per enabled bundled mod once the page acknowledges the
// registry.
package coordinator
