// Package localmods handles the mods bundled with a build.
//
// The set of bundled mods is enumerated once, at build time, into a YAML
// manifest (GenerateManifest). At runtime a Resolver answers whether a
// manifest entry is actually present and serves its source, either over
// HTTP from the coordinator's /modfiles route or straight from a
// filesystem.
package localmods
