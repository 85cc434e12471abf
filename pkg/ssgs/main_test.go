package ssgs

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain verifies that no test in this package leaks a goroutine, in
// particular the Serve/tick goroutines spawned by Run and the per-test
// helper servers.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
