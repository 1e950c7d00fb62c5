//go:build !embed

// Package frontend optionally serves the static preview viewer.
package frontend

import "net/http"

// Handler returns nil when the binary was built without the embed tag;
// the server then falls back to filesystem serving or no frontend.
func Handler() http.Handler {
	return nil
}
