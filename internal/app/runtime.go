package app

import (
	"os"
	"sync/atomic"
)

const testModeEnv = "ACADEMY_TEST_MODE"

var testMode atomic.Bool

func init() {
	RefreshTestMode()
}

// InTestMode reports whether binaries should return before binding ports,
// connecting to Postgres or starting the scheduler.
func InTestMode() bool {
	return testMode.Load()
}

// RefreshTestMode re-reads ACADEMY_TEST_MODE after environment changes.
func RefreshTestMode() {
	testMode.Store(os.Getenv(testModeEnv) == "1")
}
