//go:build !noadvanced

// Package features reports build-time feature selection.
package features

// Advanced enables the hold flight mode and autotune. Build with
// -tags noadvanced for the reduced variant.
const Advanced = true
