// Package workers provides abstractions for managing and running
// background workers in the agent.
// It defines the Worker interface and a Workers aggregate that starts and
// stops several workers as one.
package workers

import "context"

// Worker is the interface implemented by background jobs such as the
// automatic sync watcher.
//
// Start must return promptly and run the job in its own goroutine until ctx
// is cancelled or Stop is called. Stop blocks until the job has exited and
// must be safe to call on a worker that was never started.
type Worker interface {
	Start(ctx context.Context)
	Stop()
}
