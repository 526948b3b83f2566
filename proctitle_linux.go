//go:build linux

package legion

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// setProcessTitle sets the kernel's 16-byte "comm" name for this thread via
// PR_SET_NAME, which is what `ps -o comm`, `/proc/<pid>/comm`, and `top`
// show. It intentionally does not attempt to rewrite the full argv/environ
// backing array the way C supervisors (and cotyledon's setproctitle
// dependency) do to change what `ps aux` prints for the whole command
// line: Go exposes no safe, portable handle to that memory without cgo or
// unsafe assumptions about runtime internals, and the retrieved corpus has
// no library doing it either (see DESIGN.md). PR_SET_NAME covers every
// place an operator actually looks to tell worker processes apart at a
// glance, which is the spec's stated purpose for the title.
func setProcessTitle(title string) {
	name := title
	if len(name) > 15 {
		name = name[:15]
	}
	buf := append([]byte(name), 0)
	_ = unix.Prctl(unix.PR_SET_NAME, uintptr(unsafe.Pointer(&buf[0])), 0, 0, 0)
}
