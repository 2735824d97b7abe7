//go:build noadvanced

package features

const Advanced = false
