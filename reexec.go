package legion

import (
	"encoding/json"
	"os"
	"strconv"
	"sync/atomic"

	"github.com/tuxdude/zzzlogi"
)

// currentWorker is set once this process has constructed its worker, so
// parentWatchdog can tell "still starting up" from "running normally"
// apart -- cotyledon's ServiceManager._current_process, but process-global
// here since a re-exec'd worker is its own process, not a field shared with
// a master struct.
var currentWorker atomic.Pointer[worker]

// Main must be called at the very top of a program's own main, before any
// flag parsing, configuration loading, or other setup. If this process was
// launched by Supervisor as a worker, Main takes over as that worker and
// never returns. Otherwise it returns immediately and the caller proceeds
// to build and run a Supervisor.
//
// An optional Logger may be passed for worker-side logging; workers run in
// a separate process from the Supervisor that spawned them; so there is no
// way to share the supervisor's own logger instance across the exec
// boundary, and log is nil by default (discarding worker logs) unless
// supplied here.
func Main(log ...zzzlogi.Logger) {
	if os.Getenv(envWorkerFlag) != "1" {
		return
	}

	var l zzzlogi.Logger
	if len(log) > 0 {
		l = log[0]
	}
	l = orNop(l)

	pipeR := os.NewFile(parentPipeFD, "legion-parent-pipe")
	watchdog := newParentWatchdog(pipeR, l)
	go watchdog.watch(func() *worker { return currentWorker.Load() }, os.Exit)

	name := os.Getenv(envServiceName)
	workerID, _ := strconv.Atoi(os.Getenv(envWorkerID))
	params := json.RawMessage(os.Getenv(envParams))

	var w *worker
	faultBarrier(l, os.Exit, func() error {
		var err error
		w, err = newWorker(name, workerID, params, l)
		if err != nil {
			return err
		}
		currentWorker.Store(w)
		return nil
	})

	w.runForever()
}
