/*
Package scripts resolves remote mod source text.

A Client downloads a script body by its opaque hash from a paste-style raw
endpoint, enforcing a size ceiling and a text-only payload. A Cache layers an
in-memory map and the durable store in front of the Client so that each hash
reaches the network at most once at a time.

Lookup order:

	memory -> store (script_<hash>, local scope) -> network

Usage:

	client := scripts.NewClient(scripts.ClientConfig{BaseURL: cfg.Scripts.BaseURL})
	cache := scripts.NewCache(client, st, log, metrics)
	src, ok := cache.GetScript(ctx, "abc123")
*/
package scripts
