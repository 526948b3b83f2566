package legion

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"time"
)

// defaultGracefulShutdownTimeout matches cotyledon's Service.graceful_shutdown_timeout
// class default: 60 seconds, zero meaning endless wait.
const defaultGracefulShutdownTimeout = 60 * time.Second

// Service is the user-supplied object a Worker runs. It has no required
// methods: Run, Terminate, Reload, Name and GracefulShutdownTimeout are all
// optional capabilities a concrete Service may implement, checked with type
// assertions the same way the standard library checks for io.ReaderFrom or
// http.Flusher.
type Service interface{}

// Runner is the optional body of a Service. If absent, the worker just
// idles in its signal-wait loop until signaled.
type Runner interface {
	Run(ctx context.Context) error
}

// Terminator is the optional graceful-shutdown hook. If absent, a terminate
// signal simply ends the worker with status 0.
type Terminator interface {
	Terminate(ctx context.Context) error
}

// Reloader is the optional reload hook. If absent, the default behavior
// (matching cotyledon) is to request the worker's own termination, and the
// supervisor starts a fresh process at the same worker id.
type Reloader interface {
	Reload() error
}

// Named lets a Service override the name derived from its factory name,
// used in log lines and the process title.
type Named interface {
	Name() string
}

// GracefulTimeout lets a Service override defaultGracefulShutdownTimeout.
// A zero duration means no deadline: terminate can run forever.
type GracefulTimeout interface {
	GracefulShutdownTimeout() time.Duration
}

func serviceName(name string, svc Service) string {
	if n, ok := svc.(Named); ok {
		if s := n.Name(); s != "" {
			return s
		}
	}
	if name != "" {
		return name
	}
	t := reflect.TypeOf(svc)
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil {
		return "service"
	}
	return t.Name()
}

func gracefulTimeout(svc Service) time.Duration {
	if g, ok := svc.(GracefulTimeout); ok {
		return g.GracefulShutdownTimeout()
	}
	return defaultGracefulShutdownTimeout
}

// defaultReload is invoked when a Service does not implement Reloader: it
// asks the worker to terminate itself, mirroring cotyledon's
// Service.reload() default of os.kill(os.getpid(), SIGTERM).
func defaultReload(requestTerminate func()) error {
	requestTerminate()
	return nil
}

// Factory constructs a Service instance for one worker slot. params carries
// whatever JSON payload was passed to Supervisor.Add, unmarshaled by the
// factory itself -- it crosses the re-exec process boundary as text, so it
// must be a value, never a captured closure or live object.
type Factory func(workerID int, params json.RawMessage) (Service, error)

var registry = newFactoryRegistry()

type factoryRegistry struct {
	factories map[string]Factory
}

func newFactoryRegistry() *factoryRegistry {
	return &factoryRegistry{factories: make(map[string]Factory)}
}

// Register associates a name with a Factory so that a re-exec'd worker
// process can look it up by name. Programs call Register from an init()
// function, before main ever calls legion.Main or builds a Supervisor --
// this is the same shape as database/sql.Register or image.RegisterFormat.
// Registering the same name twice panics, since it is always a programming
// error caught at init time, never a runtime condition to recover from.
func Register(name string, factory Factory) {
	if name == "" {
		panic("legion: Register called with empty name")
	}
	if factory == nil {
		panic("legion: Register called with nil factory")
	}
	if _, exists := registry.factories[name]; exists {
		panic(fmt.Sprintf("legion: service %q registered twice", name))
	}
	registry.factories[name] = factory
}

func lookupFactory(name string) (Factory, bool) {
	f, ok := registry.factories[name]
	return f, ok
}
