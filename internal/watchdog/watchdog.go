// Package watchdog provides the liveness deadline for the control loop.
// If the loop stops feeding the watchdog for longer than its deadline the
// whole process is reset: by the kernel for the device watchdog, by exiting
// for the software watchdog (the service supervisor restarts it).
package watchdog

// Watchdog is fed once per orchestration tick.
type Watchdog interface {
	// Feed restarts the deadline. It must not block.
	Feed()

	// Close disarms the watchdog on orderly shutdown.
	Close() error
}
