// Package config loads, normalizes, and validates Parlo configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// DEEPGRAM_API_KEY. The Config type centralizes every knob the daemon and CLI
// need, from the sqlite data directory to external service credentials.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
