package crash

import (
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"time"

	"chat-purge/internal/logger"
)

// RecoverWithStack logs a recovered panic together with its stack trace.
// It must be called directly by a deferred statement.
func RecoverWithStack(moduleName string) {
	if r := recover(); r != nil {
		reportPanic(moduleName, r, false)
	}
}

// RecoverWithStackAndExit is the main-goroutine variant: it logs and exits non-zero
func RecoverWithStackAndExit(moduleName string) {
	if r := recover(); r != nil {
		reportPanic(moduleName, r, true)

		// give the rotating writer a moment to flush
		time.Sleep(1 * time.Second)
		os.Exit(1)
	}
}

// SafeGoroutine starts fn in a goroutine that survives panics
func SafeGoroutine(name string, fn func()) {
	SafeGoroutineWithHandler(name, fn, nil)
}

// SafeGoroutineWithHandler is SafeGoroutine with a callback invoked after a
// panic has been logged, so long-running jobs can tell their requester they died.
func SafeGoroutineWithHandler(name string, fn func(), onPanic func(recovered interface{})) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				reportPanic(fmt.Sprintf("goroutine-%s", name), r, false)
				if onPanic != nil {
					onPanic(r)
				}
			}
		}()
		fn()
	}()
}

func reportPanic(moduleName string, r interface{}, fatal bool) {
	stack := debug.Stack()
	prefix := "PANIC"
	if fatal {
		prefix = "FATAL PANIC"
	}

	logger.Errorf("%s in %s: %v", prefix, moduleName, r)
	logger.Errorf("Stack trace:\n%s", string(stack))

	// stderr too, so container logs have it even if the file writer is broken
	fmt.Fprintf(os.Stderr, "[%s] %s - %s: %v\n", prefix, time.Now().Format("2006-01-02 15:04:05"), moduleName, r)
	fmt.Fprintf(os.Stderr, "Stack trace:\n%s\n", string(stack))

	logRuntimeInfo()
}

func logRuntimeInfo() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	info := fmt.Sprintf("runtime: go=%s cpus=%d goroutines=%d heap_alloc=%dKB heap_inuse=%dKB num_gc=%d",
		runtime.Version(),
		runtime.NumCPU(),
		runtime.NumGoroutine(),
		m.HeapAlloc/1024,
		m.HeapInuse/1024,
		m.NumGC,
	)

	logger.Error(info)
	fmt.Fprintln(os.Stderr, info)
}

// SetupCrashHandler turns memory faults into recoverable panics
func SetupCrashHandler() {
	debug.SetPanicOnFault(true)
}
