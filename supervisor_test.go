package legion

import (
	"sort"
	"testing"
)

func TestReconcileWorkersScalesUpFromEmpty(t *testing.T) {
	toStart, toStop := reconcileWorkers(map[int]int{}, 3)
	sort.Ints(toStart)
	if len(toStop) != 0 {
		t.Fatalf("toStop = %v, want none", toStop)
	}
	want := []int{0, 1, 2}
	if len(toStart) != len(want) {
		t.Fatalf("toStart = %v, want %v", toStart, want)
	}
	for i, w := range want {
		if toStart[i] != w {
			t.Fatalf("toStart = %v, want %v", toStart, want)
		}
	}
}

func TestReconcileWorkersScalesUpFromPartial(t *testing.T) {
	running := map[int]int{100: 0, 101: 1}
	toStart, toStop := reconcileWorkers(running, 4)
	sort.Ints(toStart)
	if len(toStop) != 0 {
		t.Fatalf("toStop = %v, want none", toStop)
	}
	want := []int{2, 3}
	if len(toStart) != len(want) || toStart[0] != want[0] || toStart[1] != want[1] {
		t.Fatalf("toStart = %v, want %v", toStart, want)
	}
}

func TestReconcileWorkersScalesDownStopsHighestIDs(t *testing.T) {
	running := map[int]int{100: 0, 101: 1, 102: 2, 103: 3}
	toStart, toStop := reconcileWorkers(running, 2)
	if len(toStart) != 0 {
		t.Fatalf("toStart = %v, want none", toStart)
	}
	sort.Ints(toStop)
	want := []int{102, 103}
	if len(toStop) != len(want) || toStop[0] != want[0] || toStop[1] != want[1] {
		t.Fatalf("toStop = %v, want %v", toStop, want)
	}
}

func TestReconcileWorkersScaleDownToZeroStopsAll(t *testing.T) {
	running := map[int]int{100: 0, 101: 1}
	toStart, toStop := reconcileWorkers(running, 0)
	if len(toStart) != 0 {
		t.Fatalf("toStart = %v, want none", toStart)
	}
	sort.Ints(toStop)
	want := []int{100, 101}
	if len(toStop) != len(want) || toStop[0] != want[0] || toStop[1] != want[1] {
		t.Fatalf("toStop = %v, want %v", toStop, want)
	}
}

func TestReconcileWorkersSteadyStateNoOp(t *testing.T) {
	running := map[int]int{100: 0, 101: 1, 102: 2}
	toStart, toStop := reconcileWorkers(running, 3)
	if len(toStart) != 0 || len(toStop) != 0 {
		t.Fatalf("toStart = %v, toStop = %v, want both empty", toStart, toStop)
	}
}

func TestSupervisorAddAssignsDistinctIDsInOrder(t *testing.T) {
	supervisorExists.Store(false)
	s, err := NewSupervisor(nil)
	if err != nil {
		t.Fatalf("NewSupervisor() error = %v", err)
	}
	defer supervisorExists.Store(false)

	idA := s.Add("svc-a", 1, nil)
	idB := s.Add("svc-b", 2, nil)

	descs := s.registry.inOrder()
	if len(descs) != 2 {
		t.Fatalf("len(inOrder()) = %d, want 2", len(descs))
	}
	if descs[0].id != idA || descs[1].id != idB {
		t.Fatalf("registration order not preserved: %v", descs)
	}
	if _, ok := s.running[idA]; !ok {
		t.Fatal("Add did not initialize the running-worker table for the new service")
	}
}

func TestSupervisorReconfigureUpdatesWorkerCountAndResetsLedger(t *testing.T) {
	supervisorExists.Store(false)
	s, err := NewSupervisor(nil)
	if err != nil {
		t.Fatalf("NewSupervisor() error = %v", err)
	}
	defer supervisorExists.Store(false)

	id := s.Add("svc-a", 1, nil)
	s.forkTimes.times = append(s.forkTimes.times, s.now())

	if err := s.Reconfigure(id, 5); err != nil {
		t.Fatalf("Reconfigure() error = %v", err)
	}

	d, _ := s.registry.get(id)
	if d.workerCount != 5 {
		t.Fatalf("workerCount = %d, want 5", d.workerCount)
	}
	if len(s.forkTimes.times) != 0 {
		t.Fatal("Reconfigure did not reset the fork-rate ledger")
	}
}

func TestSupervisorReconfigureUnknownIDErrors(t *testing.T) {
	supervisorExists.Store(false)
	s, err := NewSupervisor(nil)
	if err != nil {
		t.Fatalf("NewSupervisor() error = %v", err)
	}
	defer supervisorExists.Store(false)

	if err := s.Reconfigure([16]byte{}, 1); err == nil {
		t.Fatal("expected an error for an unregistered service id")
	}
}

func TestSupervisorSingletonIsEnforced(t *testing.T) {
	supervisorExists.Store(false)
	s1, err := NewSupervisor(nil)
	if err != nil {
		t.Fatalf("first NewSupervisor() error = %v", err)
	}
	defer supervisorExists.Store(false)

	if _, err := NewSupervisor(nil); err == nil {
		t.Fatal("expected a second NewSupervisor in the same process to fail")
	}
	_ = s1
}
