package safego

import (
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/streamhouse/tap-shopify/utils/logger"
)

var startTime = time.Now()

// Run runs a new goroutine with a panic handler
func Run(f func()) {
	go func() {
		defer Recovery(false)
		f()
	}()
}

// Recovery logs a recovered panic with its stack trace; exit controls
// whether the process terminates afterwards
func Recovery(exit bool) {
	if err := recover(); err != nil {
		logger.Error(err)
		for _, line := range strings.Split(string(debug.Stack()), "\n") {
			logger.Error(strings.ReplaceAll(line, "\t", ""))
		}

		if exit {
			logger.Infof("Time of execution %s", time.Since(startTime).String())
			os.Exit(1)
		}
	}
}

// Insert pushes into a channel that may already be closed; reports
// whether the insert succeeded
func Insert[T any](ch chan<- T, value T) bool {
	safeInsert := false
	func() {
		defer Recovery(false)
		ch <- value
		safeInsert = true
	}()

	return safeInsert
}

// Close closes a channel ignoring double-close panics
func Close[T any](ch chan T) {
	func() {
		defer Recovery(false)
		close(ch)
	}()
}
