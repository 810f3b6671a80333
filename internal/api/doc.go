// Package api defines wire-format types and converters for the localhost
// HTTP API. It translates engine and store models into transport-friendly
// DTOs so the daemon handlers and CLI render the same payloads without
// coupling to internal types.
package api
