package rt

import (
	"errors"
	"testing"
)

func TestApplyProcess_DisabledSkipsSyscall(t *testing.T) {
	orig := lockMemoryFn
	t.Cleanup(func() { lockMemoryFn = orig })
	called := false
	lockMemoryFn = func() error { called = true; return nil }

	if err := ApplyProcess(Config{}); err != nil {
		t.Fatalf("ApplyProcess() error: %v", err)
	}
	if called {
		t.Fatalf("expected no lock when disabled")
	}
}

func TestApplyProcess_WrapsError(t *testing.T) {
	orig := lockMemoryFn
	t.Cleanup(func() { lockMemoryFn = orig })
	sentinel := errors.New("EPERM")
	lockMemoryFn = func() error { return sentinel }

	err := ApplyProcess(Config{LockMemory: true})
	if !errors.Is(err, sentinel) {
		t.Fatalf("err=%v want wrapped %v", err, sentinel)
	}
}

func TestPinThread(t *testing.T) {
	orig := pinThreadFn
	t.Cleanup(func() { pinThreadFn = orig })
	got := -1
	pinThreadFn = func(cpu int) error { got = cpu; return nil }

	if err := PinThread(Config{CPU: 3}); err != nil || got != -1 {
		t.Fatalf("unpinned config: err=%v cpu=%d", err, got)
	}
	if err := PinThread(Config{PinCPU: true, CPU: 3}); err != nil {
		t.Fatalf("PinThread() error: %v", err)
	}
	if got != 3 {
		t.Fatalf("cpu=%d want 3", got)
	}
	if err := PinThread(Config{PinCPU: true, CPU: -1}); err == nil {
		t.Fatalf("expected error for negative cpu")
	}
}
