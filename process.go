package legion

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strconv"
)

// workerProcess is the supervisor-side handle for one live child: cotyledon
// tracks a bare pid, legion also keeps the *exec.Cmd since os/exec has no
// non-blocking wait and the cmd is what a background goroutine needs to
// call Wait on.
type workerProcess struct {
	cmd      *exec.Cmd
	pid      int
	workerID int
}

// reapResult is delivered on the supervisor's reap channel when a
// workerProcess's Wait() goroutine observes it exit -- the Go substitute
// for a blocking-but-bounded waitpid(WNOHANG) poll.
type reapResult struct {
	pid      int
	exitCode int
}

// spawnWorker launches a worker process by re-executing the calling binary
// with environment variables identifying the service and worker id it
// should run, and the read end of the parent-death pipe attached as an
// extra file descriptor. It is legion's Go-idiomatic substitute for
// cotyledon's os.fork() + in-process _ChildProcess construction -- see
// DESIGN.md.
func spawnWorker(desc *serviceDescriptor, workerID int, parentPipeR *os.File, onExit func(reapResult)) (*workerProcess, error) {
	cmd := exec.Command(os.Args[0], os.Args[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.ExtraFiles = []*os.File{parentPipeR}
	cmd.Env = append(os.Environ(),
		envWorkerFlag+"=1",
		envServiceName+"="+desc.factoryName,
		envWorkerID+"="+strconv.Itoa(workerID),
		envParams+"="+string(paramsOrEmpty(desc.params)),
	)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("legion: starting worker %s(%d): %w", desc.factoryName, workerID, err)
	}

	wp := &workerProcess{cmd: cmd, pid: cmd.Process.Pid, workerID: workerID}

	go func() {
		err := cmd.Wait()
		onExit(reapResult{pid: wp.pid, exitCode: exitCodeOf(err)})
	}()

	return wp, nil
}

func paramsOrEmpty(p json.RawMessage) json.RawMessage {
	if len(p) == 0 {
		return json.RawMessage("null")
	}
	return p
}

func exitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode()
	}
	return -1
}
