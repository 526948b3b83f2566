package legion

import (
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func TestSignalIntakeWaitReturnsOnWakeup(t *testing.T) {
	si, err := newSignalIntake()
	if err != nil {
		t.Fatalf("newSignalIntake() error = %v", err)
	}
	defer si.close()

	done := make(chan struct{})
	go func() {
		si.wait(5 * time.Second)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	si.wakeup()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("wait did not return after wakeup")
	}
}

func TestSignalIntakeWaitReturnsOnTimeout(t *testing.T) {
	si, err := newSignalIntake()
	if err != nil {
		t.Fatalf("newSignalIntake() error = %v", err)
	}
	defer si.close()

	start := time.Now()
	si.wait(30 * time.Millisecond)
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("wait blocked for %v, want a bounded timeout", elapsed)
	}
}

func TestSignalIntakeDrainEmptiesPipe(t *testing.T) {
	si, err := newSignalIntake()
	if err != nil {
		t.Fatalf("newSignalIntake() error = %v", err)
	}
	defer si.close()

	si.wakeup()
	si.wakeup()
	si.wakeup()

	done := make(chan struct{})
	go func() {
		si.drain()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("drain did not return promptly")
	}

	// With the pipe empty, a bounded wait has nothing to read and runs to
	// its timeout instead of returning at once.
	start := time.Now()
	si.wait(50 * time.Millisecond)
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Fatalf("wait returned after %v following drain, want the pipe emptied", elapsed)
	}
}

func TestSignalIntakePushThenPopAll(t *testing.T) {
	si, err := newSignalIntake()
	if err != nil {
		t.Fatalf("newSignalIntake() error = %v", err)
	}
	defer si.close()

	si.queue.push(unix.SIGTERM)
	si.queue.push(unix.SIGHUP)

	got := si.popAll()
	if len(got) != 2 || got[0] != unix.SIGTERM || got[1] != unix.SIGHUP {
		t.Fatalf("popAll() = %v, want [SIGTERM SIGHUP]", got)
	}
}

func TestSignalIntakeCloseIsIdempotent(t *testing.T) {
	si, err := newSignalIntake()
	if err != nil {
		t.Fatalf("newSignalIntake() error = %v", err)
	}
	si.close()
	si.close()
}
