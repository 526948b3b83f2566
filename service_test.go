package legion

import (
	"encoding/json"
	"testing"
	"time"
)

type namedStub struct{ name string }

func (n *namedStub) Name() string { return n.name }

type timeoutStub struct{ d time.Duration }

func (t *timeoutStub) GracefulShutdownTimeout() time.Duration { return t.d }

type plainStub struct{}

func TestServiceNameDefaultsToFactoryName(t *testing.T) {
	if got := serviceName("echo", &plainStub{}); got != "echo" {
		t.Fatalf("serviceName() = %q, want %q", got, "echo")
	}
}

func TestServiceNameFallsBackToType(t *testing.T) {
	if got := serviceName("", &plainStub{}); got != "plainStub" {
		t.Fatalf("serviceName() = %q, want %q", got, "plainStub")
	}
}

func TestServiceNameHonorsNamed(t *testing.T) {
	svc := &namedStub{name: "custom"}
	if got := serviceName("echo", svc); got != "custom" {
		t.Fatalf("serviceName() = %q, want %q", got, "custom")
	}
}

func TestGracefulTimeoutDefault(t *testing.T) {
	if got := gracefulTimeout(&plainStub{}); got != defaultGracefulShutdownTimeout {
		t.Fatalf("gracefulTimeout() = %v, want %v", got, defaultGracefulShutdownTimeout)
	}
}

func TestGracefulTimeoutHonorsOverride(t *testing.T) {
	svc := &timeoutStub{d: 2 * time.Second}
	if got := gracefulTimeout(svc); got != 2*time.Second {
		t.Fatalf("gracefulTimeout() = %v, want %v", got, 2*time.Second)
	}
}

func TestRegisterAndLookup(t *testing.T) {
	Register("test-registry-basic", func(workerID int, params json.RawMessage) (Service, error) {
		return &plainStub{}, nil
	})

	f, ok := lookupFactory("test-registry-basic")
	if !ok {
		t.Fatal("expected factory to be registered")
	}
	svc, err := f(0, nil)
	if err != nil {
		t.Fatalf("factory returned error: %v", err)
	}
	if _, ok := svc.(*plainStub); !ok {
		t.Fatalf("factory returned %T, want *plainStub", svc)
	}
}

func TestRegisterTwicePanics(t *testing.T) {
	Register("test-registry-dup", func(int, json.RawMessage) (Service, error) { return &plainStub{}, nil })

	defer func() {
		if recover() == nil {
			t.Fatal("expected Register to panic on duplicate name")
		}
	}()
	Register("test-registry-dup", func(int, json.RawMessage) (Service, error) { return &plainStub{}, nil })
}

func TestLookupUnknownService(t *testing.T) {
	if _, ok := lookupFactory("test-registry-does-not-exist"); ok {
		t.Fatal("expected lookupFactory to report unknown service as absent")
	}
}

func TestDefaultReloadRequestsTerminate(t *testing.T) {
	called := false
	err := defaultReload(func() { called = true })
	if err != nil {
		t.Fatalf("defaultReload returned error: %v", err)
	}
	if !called {
		t.Fatal("defaultReload did not invoke its terminate callback")
	}
}
