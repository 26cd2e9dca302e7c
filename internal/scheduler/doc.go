// Package scheduler drives reclamation cycles on a timer and on external
// triggers.
//
// A single Worker goroutine executes every privileged operation (cycles,
// pruning, autostart re-application) in submission order. The periodic loop
// only waits and enqueues; it posts its next wait after the previous cycle's
// completion signal, so two periodic cycles never overlap.
//
// Key features:
//   - Interval and RAM gate re-read from settings before every wait
//   - Manual, screen-off and boot-completed triggers
//   - Trigger files picked up from a directory via fsnotify
//   - Retention pruning on its own ticker
//   - Daemon mode support with PID file management
//   - Graceful shutdown with SIGTERM/SIGINT handling
//
// Example usage:
//
//	s := scheduler.New(scheduler.Config{
//		Engine:   eng,
//		Settings: config.NewFileSource(path),
//		Gate:     meminfo.Gate{},
//		Stats:    st,
//	})
//	if err := s.Start(); err != nil {
//		log.Fatal(err)
//	}
//	defer s.Stop()
//
//	if err := s.Trigger(scheduler.TriggerManual); err != nil {
//		log.Print(err)
//	}
package scheduler
