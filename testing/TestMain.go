// Package testing switches the process into test mode when imported. Test
// packages import it for its side effect.
package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("ACADEMY_TEST_MODE", "1")
		if os.Getenv("MAIL_PROVIDER") == "" {
			_ = os.Setenv("MAIL_PROVIDER", "log")
		}
	})
}

func init() {
	ensureTestMode()
}

func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
