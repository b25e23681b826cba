package town

import (
	"testing"

	"go.uber.org/goleak"
)

// The controller performs all work synchronously inside its lock; no
// operation may leave a goroutine behind.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
