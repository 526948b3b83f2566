package legion

// Environment variables used to carry a worker's identity across the
// re-exec process boundary (see DESIGN.md "Go process-model adaptation").
const (
	envWorkerFlag  = "LEGION_WORKER"
	envServiceName = "LEGION_SERVICE_NAME"
	envWorkerID    = "LEGION_WORKER_ID"
	envParams      = "LEGION_PARAMS"

	// readinessSocketEnv is the host-init readiness variable (spec §4.5):
	// it is also the standard systemd notify-socket variable name, which is
	// exactly the protocol legion implements it with (see readiness.go).
	readinessSocketEnv = "NOTIFY_SOCKET"

	// parentPipeFD is the position in exec.Cmd.ExtraFiles (and therefore
	// the resulting fd number, 3 = stdin/stdout/stderr + index 0) the
	// parent-death pipe's read end is attached at in every worker child.
	parentPipeFD = 3
)
