package legion

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// signalIntake adapts OS signal delivery into a queue a main loop can poll
// on its own schedule, usable identically by the master and by a worker.
//
// cotyledon builds this with a raw os.pipe() plus fcntl O_NONBLOCK and a
// hand-rolled select.select() loop, because in CPython a signal handler can
// otherwise run on (and be lost by) the wrong thread. Go already solves
// that problem at the runtime level: signal.Notify delivers signals to a
// channel from a dedicated runtime-managed goroutine, which is inherently
// safe to do from any thread. legion keeps the self-pipe anyway, because it
// is still the right tool for the second half of the job the spec asks
// for: a single primitive ("wait") that blocks the main goroutine for up to
// a bounded timeout and wakes early the moment *anything* queues a signal
// -- including events that aren't OS signals at all, like a reaped child.
// os.Pipe's read end supports SetReadDeadline, which gives us exactly that
// multiplexed, timeout-bounded wait without a raw unix.Select call.
type signalIntake struct {
	queue       *signalQueue
	pipeR       *os.File
	pipeW       *os.File
	sigCh       chan os.Signal
	stop        chan struct{}
	stoppedOnce bool
}

func newSignalIntake() (*signalIntake, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	return &signalIntake{
		queue: newSignalQueue(),
		pipeR: r,
		pipeW: w,
		sigCh: make(chan os.Signal, 16),
		stop:  make(chan struct{}),
	}, nil
}

// install registers the handler goroutine for every signal in sigs and
// starts the single dispatch goroutine. Per spec, the handler itself only
// ever enqueues and writes a wakeup byte; all logging happens later, in the
// dispatcher that calls popAll. Call install once per intake; use reenable
// for any later re-registration (e.g. after a temporary signal.Ignore), since
// calling install twice would start a second, redundant dispatch goroutine.
func (si *signalIntake) install(sigs ...os.Signal) {
	signal.Notify(si.sigCh, sigs...)
	go si.dispatch()
}

// reenable re-registers sigs for delivery to this intake without starting
// another dispatch goroutine, used to resume delivery after a temporary
// signal.Ignore (see Supervisor's reload protocol).
func (si *signalIntake) reenable(sigs ...os.Signal) {
	signal.Notify(si.sigCh, sigs...)
}

func (si *signalIntake) dispatch() {
	for {
		select {
		case s := <-si.sigCh:
			if sig, ok := s.(syscall.Signal); ok {
				si.queue.push(unix.Signal(sig))
				si.wakeup()
			}
		case <-si.stop:
			return
		}
	}
}

// wakeup writes a single byte to the self-pipe, like the spec's signal
// handler does, but is also called directly by non-signal events (a reaped
// child) that need to interrupt a blocked wait the same way.
func (si *signalIntake) wakeup() {
	_, _ = si.pipeW.Write([]byte{0})
}

// wait blocks until the self-pipe becomes readable or timeout elapses,
// whichever comes first. A zero or negative timeout waits with no deadline.
// Any outcome -- data, a timeout, or an interrupted syscall retried by the
// Go runtime itself -- is treated as a normal wakeup, never an error.
func (si *signalIntake) wait(timeout time.Duration) {
	if timeout > 0 {
		_ = si.pipeR.SetReadDeadline(time.Now().Add(timeout))
	} else {
		_ = si.pipeR.SetReadDeadline(time.Time{})
	}
	buf := make([]byte, 512)
	_, _ = si.pipeR.Read(buf)
}

// drain performs a non-blocking read of the self-pipe until it is empty.
// An expired read deadline makes os.File.Read fail before reading anything,
// so the reads go through the raw descriptor (non-blocking, as os.Pipe
// sets it up) after clearing any deadline left behind by wait.
func (si *signalIntake) drain() {
	rc, err := si.pipeR.SyscallConn()
	if err != nil {
		return
	}
	_ = si.pipeR.SetReadDeadline(time.Time{})
	buf := make([]byte, 4096)
	_ = rc.Read(func(fd uintptr) bool {
		for {
			n, err := unix.Read(int(fd), buf)
			if n <= 0 || err != nil {
				return true
			}
		}
	})
}

// popAll dequeues every pending signal in the queue's documented order:
// terminate-class signals first (most recently received first, since each
// is prepended), then reload-class signals in arrival order.
func (si *signalIntake) popAll() []unix.Signal {
	return si.queue.popAll()
}

func (si *signalIntake) close() {
	if si.stoppedOnce {
		return
	}
	si.stoppedOnce = true
	signal.Stop(si.sigCh)
	close(si.stop)
	_ = si.pipeR.Close()
	_ = si.pipeW.Close()
}
