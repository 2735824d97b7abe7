//go:build !linux

package rt

import "fmt"

func lockMemory() error {
	return fmt.Errorf("memory locking not supported on this platform")
}

func pinThread(cpu int) error {
	return fmt.Errorf("cpu pinning not supported on this platform")
}
