// Package main runs a headless game page attached to a coordinator.
//
// The page host plays the browser tab: it parses an HTML document into a
// page realm, installs the mod loader globals, and runs the bridge that
// relays between the page's postMessage window and the coordinator's
// websocket.
//
// Usage:
//
//	./pagehost -coordinator ws://localhost:8000/bridge -mods http://localhost:8000/modfiles
//	./pagehost -page ./game.html -dev
package main
