package legion

import (
	"errors"
	"runtime/debug"

	"github.com/tuxdude/zzzlogi"
)

// exitFunc terminates the process with a status code. It is always
// os.Exit in production and a recording stub in tests, so that test code
// that drives the fault barrier never actually kills the test binary.
type exitFunc func(code int)

// faultBarrier runs f and converts its outcome into a process exit,
// matching cotyledon's _exit_on_exception context manager: an ExitRequest
// (SystemExit's analogue) exits with its carried code; a panic or any other
// error is logged and exits with status 2. If f returns nil, faultBarrier
// returns normally without calling exit.
func faultBarrier(log zzzlogi.Logger, exit exitFunc, f func() error) {
	log = orNop(log)
	defer func() {
		if r := recover(); r != nil {
			if er, ok := r.(ExitRequest); ok {
				exit(er.Code)
				return
			}
			log.Errorf("unhandled panic: %v\n%s", r, debug.Stack())
			exit(2)
		}
	}()

	err := f()
	if err == nil {
		return
	}
	var er ExitRequest
	if errors.As(err, &er) {
		exit(er.Code)
		return
	}
	log.Errorf("unhandled error: %v", err)
	exit(2)
}
