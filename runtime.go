package hubclient

import "github.com/duskline/hubclient/internal/supervisor"

// Runtime is the one capability the client needs to run its
// subscribe loop without blocking the caller that started it:
// spawn(task) enqueues a detached unit of work that runs to
// completion cooperatively. The default Runtime spawns a goroutine;
// callers embedding this library in a system with its own scheduler
// (a worker pool, an actor runtime) can supply their own.
type Runtime = supervisor.Runtime

// GoRuntime is the default Runtime, spawning each task on its own
// goroutine.
type GoRuntime = supervisor.GoRuntime
