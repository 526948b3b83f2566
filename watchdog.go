package legion

import (
	"os"

	"github.com/tuxdude/zzzlogi"
	"golang.org/x/sys/unix"
)

// parentWatchdog is a child-side background goroutine that blocks reading
// one byte from the read end of the parent-death pipe -- a pipe whose write
// end only the master process holds open. Any return from that read (data,
// EOF, or an I/O error) means the master is gone, matching cotyledon's
// _watch_parent_process.
type parentWatchdog struct {
	pipeR *os.File
	log   zzzlogi.Logger
}

func newParentWatchdog(pipeR *os.File, log zzzlogi.Logger) *parentWatchdog {
	return &parentWatchdog{pipeR: pipeR, log: orNop(log)}
}

// watch blocks until the parent dies, then either triggers graceful
// self-termination (if current returns a constructed worker) or exits
// immediately with status 0 -- it is too early in startup to run
// service.Terminate. exit is injected so tests never actually call
// os.Exit.
func (w *parentWatchdog) watch(current func() *worker, exit exitFunc) {
	buf := make([]byte, 1)
	_, _ = w.pipeR.Read(buf)

	cur := current()
	if cur != nil {
		w.log.Infof("parent process has died unexpectedly, %s exiting", cur.title)
		_ = unix.Kill(os.Getpid(), unix.SIGTERM)
		return
	}
	exit(0)
}
