package legion

import (
	"container/list"
	"sync"

	"golang.org/x/sys/unix"
)

// signalQueue is a concurrent deque of received signals, matching
// cotyledon's collections.deque + appendleft/append split in
// _SignalManager._signal_catcher: terminate-class signals (TERM, the
// graceful-deadline ALRM) are prepended so they are always handled before
// any reload-class (HUP) signal already queued.
type signalQueue struct {
	mu sync.Mutex
	l  *list.List
}

func newSignalQueue() *signalQueue {
	return &signalQueue{l: list.New()}
}

func isTerminateClass(sig unix.Signal) bool {
	return sig == unix.SIGTERM || sig == unix.SIGALRM
}

// push enqueues sig per the ordering rule. Called only from the goroutine
// that reads the os/signal channel, which is this process's analogue of an
// async-signal-safe handler: it must never block or log, only enqueue.
func (q *signalQueue) push(sig unix.Signal) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if isTerminateClass(sig) {
		q.l.PushFront(sig)
	} else {
		q.l.PushBack(sig)
	}
}

// popAll dequeues every pending signal front to back, leaving the queue
// empty: terminate-class signals newest first, then reload-class signals
// oldest first.
func (q *signalQueue) popAll() []unix.Signal {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]unix.Signal, 0, q.l.Len())
	for e := q.l.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(unix.Signal))
	}
	q.l.Init()
	return out
}
