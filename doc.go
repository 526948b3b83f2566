// Package legion is a multi-process service supervisor.
//
// A Supervisor forks a pool of worker processes per registered service,
// restarts workers that die, and propagates lifecycle signals (terminate,
// reload) to them. Each worker runs exactly one Service instance and enforces
// a graceful-shutdown deadline before being killed outright.
//
// Go cannot safely fork a running multi-threaded program without an
// immediate exec, so workers are launched by re-executing the calling
// binary (os.Args[0]) rather than by forking the live image. Any program
// using this package must call Main at the very top of its own main,
// before touching flags, config, or anything else:
//
//	func main() {
//		legion.Main() // becomes a worker and never returns, if re-exec'd
//		sup, err := legion.NewSupervisor(nil)
//		if err != nil {
//			log.Fatal(err)
//		}
//		sup.Add("echo", 3, nil)
//		sup.Run()
//	}
//
// Services are registered by name at package init time with Register, since
// a factory closure cannot be carried across the re-exec process boundary:
//
//	func init() {
//		legion.Register("echo", func(workerID int, params json.RawMessage) (legion.Service, error) {
//			return &echoService{}, nil
//		})
//	}
package legion
