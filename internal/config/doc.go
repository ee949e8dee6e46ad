// Package config loads, normalizes, and validates comicdl configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// COMICDL_ACCESS_TOKEN. The Config type centralizes every knob the daemon and
// CLI need: where episodes land, how many download at once, how failed images
// are retried, and what happens to an episode after its last image arrives.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical archive formats, and clear validation errors.
package config
