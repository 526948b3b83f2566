package legion

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/tuxdude/zzzlogi"
	"golang.org/x/sys/unix"
)

// worker is the per-child-process harness: it owns exactly one Service
// instance, sets the process title, runs the service body on a background
// goroutine, and serves signal-driven transitions on its main goroutine.
// It is cotyledon's _ChildProcess.
type worker struct {
	service         Service
	name            string
	workerID        int
	pid             int
	title           string
	gracefulTimeout time.Duration

	signalMu sync.Mutex // serializes Terminate and Reload, like cotyledon's _signal_lock
	intake   *signalIntake
	log      zzzlogi.Logger
	exit     exitFunc

	// selfTerminate sends SIGTERM to this process; a field rather than a
	// direct call so tests can swap in a recording stub instead of
	// signalling the test binary itself.
	selfTerminate func()

	runCancel context.CancelFunc
}

func newWorker(factoryName string, workerID int, params json.RawMessage, log zzzlogi.Logger) (*worker, error) {
	factory, ok := lookupFactory(factoryName)
	if !ok {
		return nil, newConfigurationError("no service registered with name %q", factoryName)
	}
	svc, err := factory(workerID, params)
	if err != nil {
		return nil, fmt.Errorf("legion: constructing service %q worker %d: %w", factoryName, workerID, err)
	}

	name := serviceName(factoryName, svc)
	pid := os.Getpid()
	w := &worker{
		service:         svc,
		name:            name,
		workerID:        workerID,
		pid:             pid,
		title:           fmt.Sprintf("%s(%d) [%d]", name, workerID, pid),
		gracefulTimeout: gracefulTimeout(svc),
		log:             orNop(log),
		exit:            os.Exit,
	}
	w.selfTerminate = w.requestSelfTerminate

	setProcessTitle(fmt.Sprintf("%s: %s worker(%d)", processName(), name, workerID))

	intake, err := newSignalIntake()
	if err != nil {
		return nil, fmt.Errorf("legion: creating worker signal intake: %w", err)
	}
	intake.install(unix.SIGHUP, unix.SIGTERM, unix.SIGALRM)
	w.intake = intake

	return w, nil
}

// runForever spawns the service body and then serves signals until the
// process exits -- it never returns.
func (w *worker) runForever() {
	ctx, cancel := context.WithCancel(context.Background())
	w.runCancel = cancel

	go w.runServiceBody(ctx)

	for {
		w.intake.wait(0)
		w.intake.drain()
		for _, sig := range w.intake.popAll() {
			w.handleSignal(sig)
		}
	}
}

func (w *worker) handleSignal(sig unix.Signal) {
	switch sig {
	case unix.SIGALRM:
		w.log.Infof("graceful shutdown timeout (%s) exceeded, exiting %s now", w.gracefulTimeout, w.title)
		w.exit(1)
	case unix.SIGTERM:
		w.log.Infof("caught terminate signal, graceful exiting of service %s", w.title)
		if w.gracefulTimeout > 0 {
			_, _ = unix.Alarm(uint(w.gracefulTimeout / time.Second))
		}
		go w.handleTerminate()
	case unix.SIGHUP:
		go w.handleReload()
	}
}

func (w *worker) runServiceBody(ctx context.Context) {
	faultBarrier(w.log, w.exit, func() error {
		if r, ok := w.service.(Runner); ok {
			return r.Run(ctx)
		}
		return nil
	})
}

func (w *worker) handleTerminate() {
	faultBarrier(w.log, w.exit, func() error {
		w.signalMu.Lock()
		defer w.signalMu.Unlock()

		if w.runCancel != nil {
			w.runCancel()
		}
		if t, ok := w.service.(Terminator); ok {
			if err := t.Terminate(context.Background()); err != nil {
				return err
			}
		}
		return ExitRequest{Code: 0}
	})
}

func (w *worker) handleReload() {
	if !w.signalMu.TryLock() {
		w.log.Debugf("reload dropped, a terminate is already in progress for %s", w.title)
		return
	}
	defer w.signalMu.Unlock()

	faultBarrier(w.log, w.exit, func() error {
		if r, ok := w.service.(Reloader); ok {
			return r.Reload()
		}
		return defaultReload(w.selfTerminate)
	})
}

func (w *worker) requestSelfTerminate() {
	_ = unix.Kill(os.Getpid(), unix.SIGTERM)
}
