package legion

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/tuxdude/zzzlogi"
	"golang.org/x/sys/unix"
)

// supervisorExists enforces the process-wide singleton invariant: signal
// dispositions and the process group are process-global, so a second
// Supervisor in the same process can never be made to behave independently
// of the first.
var supervisorExists atomic.Bool

// Supervisor is the master process: it owns the service registry, the
// live-worker table, the fork-rate governor, and master-side signal
// handling. It is cotyledon's ServiceManager.
type Supervisor struct {
	log zzzlogi.Logger

	mu       sync.Mutex
	registry *serviceRegistry
	running  map[uuid.UUID]map[int]int // pid -> worker_id, keyed by service id

	forkTimes *forkRateLedger

	parentPipeR, parentPipeW *os.File

	intake *signalIntake
	intCh  chan os.Signal
	reapCh chan reapResult

	waitInterval time.Duration

	now   func() time.Time
	sleep func(time.Duration)
}

// NewSupervisor constructs the single Supervisor this process is allowed to
// have. log may be nil, in which case every component logs to a no-op
// sink.
func NewSupervisor(log zzzlogi.Logger) (*Supervisor, error) {
	if !supervisorExists.CompareAndSwap(false, true) {
		return nil, newConfigurationError("only one Supervisor instance is allowed per process")
	}

	r, w, err := os.Pipe()
	if err != nil {
		supervisorExists.Store(false)
		return nil, fmt.Errorf("legion: creating parent-death pipe: %w", err)
	}

	intake, err := newSignalIntake()
	if err != nil {
		supervisorExists.Store(false)
		_ = r.Close()
		_ = w.Close()
		return nil, fmt.Errorf("legion: creating supervisor signal intake: %w", err)
	}

	return &Supervisor{
		log:          orNop(log),
		registry:     newServiceRegistry(),
		running:      make(map[uuid.UUID]map[int]int),
		forkTimes:    newForkRateLedger(),
		parentPipeR:  r,
		parentPipeW:  w,
		intake:       intake,
		intCh:        make(chan os.Signal, 4),
		reapCh:       make(chan reapResult, 64),
		waitInterval: 250 * time.Millisecond,
		now:          time.Now,
		sleep:        time.Sleep,
	}, nil
}

// Add registers a new service family and returns its id. Legal before and
// after Run; if called after Run it takes effect on the next tick.
func (s *Supervisor) Add(factoryName string, workers int, params json.RawMessage) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.registry.add(factoryName, workers, params)
	s.running[id] = make(map[int]int)
	return id
}

// Reconfigure updates a service's desired worker count and resets the
// fork-rate ledger so a scale-up is not artificially slowed by unrelated
// prior spawn history.
func (s *Supervisor) Reconfigure(id uuid.UUID, workers int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.registry.get(id)
	if !ok {
		return newConfigurationError("unknown service id %s", id)
	}
	d.workerCount = workers
	s.forkTimes.reset()
	return nil
}

// Run sets the master process title, attempts to become a session leader,
// installs the master signal set, sends the one-shot readiness
// notification, and enters the supervisor loop. It does not return under
// normal operation: graceful shutdown and fast exit both end the process
// directly.
func (s *Supervisor) Run() {
	setProcessTitle(fmt.Sprintf("%s: master process [%s]", processName(), strings.Join(os.Args, " ")))

	if err := unix.Setsid(); err != nil {
		s.log.Debugf("setsid failed, continuing without a new session: %v", err)
	}

	signal.Notify(s.intCh, unix.SIGINT)
	go s.watchInterrupt()

	s.intake.install(unix.SIGTERM, unix.SIGALRM, unix.SIGHUP)

	notifyReadyOnce(s.log)

	s.loop()
}

func (s *Supervisor) watchInterrupt() {
	<-s.intCh
	s.fastExit("caught interrupt signal, instantaneous exiting")
}

// loop is one iteration of spec §4.4's four numbered steps, repeated
// forever: dispatch queued signals, reap exited children, reconcile worker
// counts, then block until the next signal or wait_interval elapses.
func (s *Supervisor) loop() {
	for {
		s.intake.drain()
		for _, sig := range s.intake.popAll() {
			s.handleSignal(sig)
		}

		s.reapChildren()
		s.adjustWorkers()

		s.intake.wait(s.waitInterval)
	}
}

func (s *Supervisor) handleSignal(sig unix.Signal) {
	switch sig {
	case unix.SIGALRM:
		s.fastExit("graceful shutdown timeout exceeded, instantaneous exiting of master process")
	case unix.SIGTERM:
		s.shutdown()
	case unix.SIGHUP:
		s.reload()
	}
}

// reload resets the fork-rate ledger, temporarily ignores its own reload
// signal so broadcasting it doesn't re-queue itself, broadcasts reload to
// the process group, then resumes normal reload delivery.
func (s *Supervisor) reload() {
	s.forkTimes.reset()
	signal.Ignore(unix.SIGHUP)
	s.broadcast(unix.SIGHUP)
	s.intake.reenable(unix.SIGHUP)
}

// shutdown masks further terminate, broadcasts terminate to the process
// group, waits synchronously for every tracked child to exit, then exits 0.
func (s *Supervisor) shutdown() {
	s.log.Infof("caught terminate signal, graceful exiting of master process")
	signal.Ignore(unix.SIGTERM)
	s.broadcast(unix.SIGTERM)

	s.log.Debugf("waiting for services to terminate")
	s.mu.Lock()
	pending := make(map[int]bool)
	for _, workers := range s.running {
		for pid := range workers {
			pending[pid] = true
		}
	}
	s.mu.Unlock()

	for len(pending) > 0 {
		select {
		case res := <-s.reapCh:
			if pending[res.pid] {
				delete(pending, res.pid)
				s.forgetPID(res.pid)
			}
		case <-time.After(s.waitInterval):
		}
		for _, sig := range s.intake.popAll() {
			if sig == unix.SIGALRM {
				s.fastExit("graceful shutdown timeout exceeded, instantaneous exiting of master process")
			}
		}
	}

	s.log.Debugf("shutdown finished")
	os.Exit(0)
}

// fastExit masks further interrupt and deadline-alarm, broadcasts interrupt
// to the process group, and exits immediately with status 1 -- used both
// for an operator interrupt and for a graceful-shutdown deadline exceeded.
func (s *Supervisor) fastExit(reason string) {
	signal.Ignore(unix.SIGINT, unix.SIGALRM)
	s.log.Infof(reason)
	s.broadcast(unix.SIGINT)
	os.Exit(1)
}

func (s *Supervisor) broadcast(sig unix.Signal) {
	if err := unix.Kill(0, sig); err != nil {
		s.log.Warnf("broadcasting signal %d to process group failed: %v", sig, err)
	}
}

// reapChildren drains every pending reap notification without blocking,
// restarting a fresh worker at the same worker id for each one -- the Go
// substitute for "repeat a non-blocking wait for any child" over os/exec,
// which has no waitpid(WNOHANG) equivalent.
func (s *Supervisor) reapChildren() {
	for {
		select {
		case res := <-s.reapCh:
			s.handleReap(res)
		default:
			return
		}
	}
}

func (s *Supervisor) handleReap(res reapResult) {
	serviceID, workerID, found := s.popPID(res.pid)
	if !found {
		s.log.Errorf("pid %d not in service known pids list", res.pid)
		return
	}
	s.log.Infof("child %d exited with status %d", res.pid, res.exitCode)

	d, ok := s.registry.get(serviceID)
	if !ok {
		return
	}
	s.mu.Lock()
	excess := workerID >= d.workerCount
	s.mu.Unlock()
	if excess {
		// Scaled down since this worker started: let adjustWorkers' stop stick.
		return
	}
	s.startWorker(d, workerID)
}

func (s *Supervisor) popPID(pid int) (uuid.UUID, int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, workers := range s.running {
		if wid, ok := workers[pid]; ok {
			delete(workers, pid)
			return id, wid, true
		}
	}
	return uuid.UUID{}, 0, false
}

func (s *Supervisor) forgetPID(pid int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, workers := range s.running {
		if _, ok := workers[pid]; ok {
			delete(workers, pid)
			return
		}
	}
}

// reconcileWorkers is the pure decision core of adjustWorkers: given which
// worker ids are currently running for one service and how many are
// desired, it returns the worker ids to start and the pids to stop. Kept
// free of Supervisor state so it can be tested without spawning real
// processes.
//
// Excess workers are identified as worker_id >= desired, the corrected
// intent per spec §9's REDESIGN FLAG: the source's
// range(running_workers, conf.workers) is empty whenever running exceeds
// desired, so upstream cotyledon never actually stops anything on
// scale-down.
func reconcileWorkers(running map[int]int, desired int) (toStart, toStop []int) {
	runningCount := len(running)
	switch {
	case runningCount < desired:
		for wid := runningCount; wid < desired; wid++ {
			toStart = append(toStart, wid)
		}
	case runningCount > desired:
		for pid, wid := range running {
			if wid >= desired {
				toStop = append(toStop, pid)
			}
		}
	}
	return toStart, toStop
}

// adjustWorkers walks every registered service in registration order and
// applies reconcileWorkers's decision.
func (s *Supervisor) adjustWorkers() {
	s.mu.Lock()
	descs := s.registry.inOrder()
	s.mu.Unlock()

	for _, d := range descs {
		s.mu.Lock()
		running := make(map[int]int, len(s.running[d.id]))
		for pid, wid := range s.running[d.id] {
			running[pid] = wid
		}
		desired := d.workerCount
		s.mu.Unlock()

		toStart, toStop := reconcileWorkers(running, desired)

		for _, wid := range toStart {
			s.startWorker(d, wid)
		}
		for _, pid := range toStop {
			_ = unix.Kill(pid, unix.SIGTERM)
		}
	}
}

func (s *Supervisor) expectedChildren() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, d := range s.registry.inOrder() {
		total += d.workerCount
	}
	return total
}

// startWorker applies the fork-rate governor, then launches a worker
// process at workerID via re-exec (see process.go).
func (s *Supervisor) startWorker(d *serviceDescriptor, workerID int) {
	s.forkTimes.throttle(s.expectedChildren(), s.now, s.sleep)

	wp, err := spawnWorker(d, workerID, s.parentPipeR, func(res reapResult) {
		s.reapCh <- res
		s.intake.wakeup()
	})
	if err != nil {
		s.log.Errorf("failed to start worker %s(%d): %v", d.factoryName, workerID, err)
		return
	}

	s.mu.Lock()
	if s.running[d.id] == nil {
		s.running[d.id] = make(map[int]int)
	}
	s.running[d.id][wp.pid] = workerID
	s.mu.Unlock()
}
