package testutil

import (
	"log"
	"os"
	"testing"
)

// TestLogger returns a logger for exercising the server and API in
// tests. The output is redirected after the test ends so goroutines
// that outlive the test cannot write through a closed testing.T.
func TestLogger(t *testing.T) *log.Logger {
	logger := log.New(os.Stdout, "[boardroom-test] ", log.LstdFlags)
	t.Cleanup(func() {
		logger.SetOutput(os.Stderr)
	})
	return logger
}
