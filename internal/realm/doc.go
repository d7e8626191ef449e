// Package realm hosts mods inside a page.
//
// A Realm is a goja runtime driven by a goja_nodejs event loop. Everything
// the page owns (the document, the capability object, executed mods, the
// installed local registry, buttons, locale) is touched only from the loop
// goroutine; other goroutines schedule work onto it.
//
// Mods are compiled as module factories of the form
//
//	(function(context) { ... })
//
// and invoked with a context carrying the mod id, its config, the capability
// object and an exports object. Talking to the coordinator goes through the
// page window as correlated requests that settle as Promises.
package realm
