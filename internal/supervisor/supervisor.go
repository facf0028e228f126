// Package supervisor owns the single subscribe loop a Client keeps
// alive at any moment, creating one lazily on first subscribe and
// tearing it down once its last listener drops.
package supervisor

import (
	"context"
	"log/slog"
	"sync"

	"github.com/duskline/hubclient/internal/routing"
	"github.com/duskline/hubclient/internal/subscribeloop"
	"github.com/duskline/hubclient/internal/wire"
)

// consumerQueueCapacity bounds how far a listener may lag the loop
// before delivery blocks it (and, transitively, every other listener
// on every channel, since the loop stalls under the high-resiliency
// policy).
const consumerQueueCapacity = 10

// Runtime is the capability the supervisor needs to run a loop
// without blocking the caller that spawned it.
type Runtime interface {
	Spawn(task func())
}

// GoRuntime spawns each task on its own goroutine. It is the default
// used when a Client is not configured with an alternative Runtime.
type GoRuntime struct{}

func (GoRuntime) Spawn(task func()) { go task() }

// Supervisor holds at most one running subscribe loop and serializes
// every operation on it behind a mutex, matching the originating
// contract's requirement that subscribe/loop-termination never race.
type Supervisor struct {
	mu sync.Mutex

	transport subscribeloop.Transport
	runtime   Runtime
	origin    string
	subKey    string
	loopOpts  []subscribeloop.Option
	logger    *slog.Logger

	exitNotifier chan<- struct{}

	loopCancel context.CancelFunc
	loopInbox  chan subscribeloop.Control
	loopDone   chan struct{}
}

// New constructs a Supervisor. exitNotifier, if non-nil, receives one
// value every time a spawned loop's task returns (whether by Exit,
// by its last listener dropping, or by Close). The send does not
// block: if exitNotifier cannot take the value at that moment, the
// notification is dropped and a warning is logged.
func New(transport subscribeloop.Transport, runtime Runtime, origin, subKey string, exitNotifier chan<- struct{}, logger *slog.Logger, loopOpts ...subscribeloop.Option) *Supervisor {
	if runtime == nil {
		runtime = GoRuntime{}
	}
	return &Supervisor{
		transport:    transport,
		runtime:      runtime,
		origin:       origin,
		subKey:       subKey,
		loopOpts:     loopOpts,
		logger:       logger,
		exitNotifier: exitNotifier,
	}
}

func (s *Supervisor) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

// Subscribe registers a new listener for channel, spinning up a fresh
// loop if none is running. When it must start a loop, Subscribe
// blocks until that loop's first long-poll succeeds, so that a
// publish issued right after Subscribe returns is guaranteed to be
// observed.
func (s *Supervisor) Subscribe(ctx context.Context, channel string) (*Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := make(routing.Queue[wire.Message], consumerQueueCapacity)

	if s.loopInbox != nil {
		select {
		case s.loopInbox <- subscribeloop.AddControl(channel, q):
			return &Handle{channel: channel, inbox: s.loopInbox, done: s.loopDone, queue: q, logger: s.log()}, nil
		case <-s.loopDone:
			// The loop has returned but onLoopExit has not cleared its
			// record yet; start a fresh loop below.
			s.loopInbox, s.loopDone, s.loopCancel = nil, nil, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	inbox := make(chan subscribeloop.Control)
	ready := make(chan struct{})
	done := make(chan struct{})
	loop := subscribeloop.New(s.transport, s.origin, s.subKey,
		map[string][]routing.Queue[wire.Message]{channel: {q}},
		inbox, ready, s.loopOpts...)

	loopCtx, cancel := context.WithCancel(context.Background())
	s.loopInbox = inbox
	s.loopDone = done
	s.loopCancel = cancel

	s.runtime.Spawn(func() {
		if err := loop.Run(loopCtx); err != nil {
			s.log().Warn("subscribe loop exited with error", "error", err)
		}
		close(done)
		s.onLoopExit(inbox)
	})

	select {
	case <-ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return &Handle{channel: channel, inbox: inbox, done: done, queue: q, logger: s.log()}, nil
}

// onLoopExit clears the supervisor's record of the loop that just
// returned and notifies the configured exit queue, if any. It
// compares inbox identity so a loop that already lost the race to a
// newer one (constructed while the old one was winding down) does not
// clobber state it no longer owns.
func (s *Supervisor) onLoopExit(inbox chan subscribeloop.Control) {
	s.mu.Lock()
	if s.loopInbox == inbox {
		s.loopInbox = nil
		s.loopCancel = nil
		s.loopDone = nil
	}
	s.mu.Unlock()

	if s.exitNotifier != nil {
		select {
		case s.exitNotifier <- struct{}{}:
		default:
			s.log().Warn("exit notifier queue full, dropping notification")
		}
	}
}

// Close tears down any running loop. It is not part of the
// originating specification's core contract but gives a Client a
// clean way to release resources on shutdown instead of relying on
// every handle being dropped individually.
func (s *Supervisor) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loopCancel != nil {
		s.loopCancel()
	}
}

// Handle is a subscription returned by Supervisor.Subscribe. It
// satisfies the originating contract's subscription-handle shape:
// next() blocks for a message or end-of-stream, drop() notifies the
// loop asynchronously and at most once.
type Handle struct {
	channel string
	inbox   chan<- subscribeloop.Control
	done    <-chan struct{}
	queue   routing.Queue[wire.Message]
	logger  *slog.Logger
	dropped sync.Once
}

// Next blocks until a message is routed to this handle or the loop
// closes its queue, in which case ok is false.
func (h *Handle) Next(ctx context.Context) (msg wire.Message, ok bool) {
	select {
	case m, open := <-h.queue:
		return m, open
	case <-ctx.Done():
		return wire.Message{}, false
	}
}

// Drop releases the handle. The control-queue notification is
// best-effort and fire-and-forget: Drop never blocks its caller. The
// notification goroutine itself blocks until either the loop reads it
// or the loop exits on its own (done closes) — it does not give up
// after an arbitrary wall-clock window, since the default delivery
// policy (spec.md §4.4) lets the loop legitimately stay busy draining
// a slow listener on another channel for far longer than any fixed
// timeout. A closed done means the loop already tore down every
// consumer queue, including this one, so there is nothing left to
// notify.
func (h *Handle) Drop() {
	h.dropped.Do(func() {
		go func() {
			select {
			case h.inbox <- subscribeloop.DropControl(h.channel, h.queue):
			case <-h.done:
				h.logger.Warn("loop exited before drop notification was delivered, listener was already torn down", "channel", h.channel)
			}
		}()
	})
}
