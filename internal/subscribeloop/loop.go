// Package subscribeloop implements the long-running task that keeps
// one HTTP long-poll in flight against the subscribe endpoint for a
// changing set of channels, and fans each decoded message out to
// every consumer queue registered for it.
//
// A Loop is constructed and spawned by a supervisor; it is not meant
// to be driven directly by library callers. Its entire public surface
// is the control queue it reads from, the Transport it reads
// through, and the routing table it writes to.
package subscribeloop

import (
	"context"
	"log/slog"
	"time"

	"github.com/duskline/hubclient/internal/backoff"
	"github.com/duskline/hubclient/internal/routing"
	"github.com/duskline/hubclient/internal/wire"
)

// Transport is the capability the loop needs from the HTTP layer: one
// long-poll request per iteration, already decoded into a wire
// Response. A transport-level failure (network error, non-2xx
// status, malformed body) must come back as a single error value;
// the loop treats every such error identically, as specified by the
// originating contract's transport-failure taxonomy.
type Transport interface {
	Subscribe(ctx context.Context, url string) (wire.Response, error)
}

// State reports where a Loop sits in its lifecycle.
type State int

const (
	StateStarting State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	default:
		return "stopped"
	}
}

// controlKind tags the union of messages a supervisor sends down a
// Loop's inbox.
type controlKind int

const (
	ctlAdd controlKind = iota
	ctlDrop
	ctlExit
)

// Control is one message on a Loop's inbox. Construct values with
// AddControl, DropControl, or ExitControl rather than building one by
// hand.
type Control struct {
	kind    controlKind
	channel string
	queue   routing.Queue[wire.Message]
}

// AddControl requests that q be registered as a listener for
// channel, creating the channel in the loop's routing table if it is
// not already present.
func AddControl(channel string, q routing.Queue[wire.Message]) Control {
	return Control{kind: ctlAdd, channel: channel, queue: q}
}

// DropControl requests that q be removed from channel's listener
// list; the loop closes q once it removes it. If channel's listener
// list becomes empty, the loop drops the
// channel and, once no channels remain, terminates.
func DropControl(channel string, q routing.Queue[wire.Message]) Control {
	return Control{kind: ctlDrop, channel: channel, queue: q}
}

// ExitControl requests unconditional termination. It exists for
// tests; a loop with callers attached is normally wound down purely
// by Drop messages emptying its channel set.
func ExitControl() Control {
	return Control{kind: ctlExit}
}

// Loop owns one long-poll cycle over a changing channel set. The zero
// value is not usable; construct with New.
type Loop struct {
	transport Transport
	origin    string
	subKey    string
	inbox     <-chan Control
	ready     chan<- struct{}
	table     *routing.Table[wire.Message]
	timetoken wire.Timetoken
	backoff   backoff.Config
	logger    *slog.Logger

	state State
}

// Option configures a Loop at construction.
type Option func(*Loop)

// WithBackoff overrides the retry pacing used after a transport
// error. The default is backoff.DefaultConfig().
func WithBackoff(cfg backoff.Config) Option {
	return func(l *Loop) { l.backoff = cfg }
}

// WithLogger sets the logger used for recoverable-error and
// diagnostic messages. A nil logger (the default) falls back to
// slog.Default() lazily at each call site.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) { l.logger = logger }
}

// New constructs a Loop over its initial channel→listeners map. inbox
// is the control queue the supervisor writes to; ready is closed
// exactly once, the moment the loop's first long-poll succeeds.
func New(transport Transport, origin, subKey string, initial map[string][]routing.Queue[wire.Message], inbox <-chan Control, ready chan<- struct{}, opts ...Option) *Loop {
	table := routing.New[wire.Message]()
	for channel, queues := range initial {
		for _, q := range queues {
			table.Add(channel, q)
		}
	}

	l := &Loop{
		transport: transport,
		origin:    origin,
		subKey:    subKey,
		inbox:     inbox,
		ready:     ready,
		table:     table,
		timetoken: wire.Timetoken{T: "0", R: 0},
		backoff:   backoff.DefaultConfig(),
		state:     StateStarting,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

func (l *Loop) log() *slog.Logger {
	if l.logger != nil {
		return l.logger
	}
	return slog.Default()
}

type subscribeResult struct {
	resp wire.Response
	err  error
}

// Run drives the loop to completion: it returns nil once the channel
// set empties or an Exit control arrives, having closed every
// consumer queue it still owned. ctx cancellation tears the loop down
// the same way an Exit would, but callers should prefer DropControl
// on every outstanding handle so Drop notifications reach the
// supervisor normally.
func (l *Loop) Run(ctx context.Context) error {
	defer l.closeAll()

	delay := l.backoff.InitialDelay
	for {
		if l.table.Empty() {
			l.state = StateStopped
			return nil
		}

		url := wire.BuildSubscribeURL(l.origin, l.subKey, l.table.Keys(), l.timetoken)

		reqCtx, cancel := context.WithCancel(ctx)
		results := make(chan subscribeResult, 1)
		go func() {
			resp, err := l.transport.Subscribe(reqCtx, url)
			results <- subscribeResult{resp, err}
		}()

		select {
		case <-ctx.Done():
			cancel()
			l.state = StateStopped
			return nil

		case ctl := <-l.inbox:
			cancel()
			if stop := l.applyControl(ctl); stop {
				l.state = StateStopped
				return nil
			}
			delay = l.backoff.InitialDelay

		case res := <-results:
			cancel()
			if res.err != nil {
				l.log().Warn("subscribe request failed, retrying", "error", res.err, "delay", delay)
				if stop, advanced := l.waitOrControl(ctx, delay); stop {
					l.state = StateStopped
					return nil
				} else if !advanced {
					l.state = StateStopped
					return nil
				}
				delay = l.backoff.Next(delay)
				continue
			}

			delay = l.backoff.InitialDelay
			l.timetoken = res.resp.NextTimetoken()
			if l.state == StateStarting {
				close(l.ready)
				l.state = StateRunning
			}
			for _, env := range res.resp.M {
				msg := wire.FromEnvelope(env)
				if err := l.table.Send(ctx, msg.RoutingKey(), msg); err != nil {
					l.log().Warn("dropping message, context cancelled mid-delivery", "channel", msg.RoutingKey(), "error", err)
					l.state = StateStopped
					return nil
				}
			}
		}
	}
}

// applyControl mutates the routing table for a single control
// message and reports whether the loop must terminate as a result.
func (l *Loop) applyControl(ctl Control) (stop bool) {
	switch ctl.kind {
	case ctlAdd:
		l.table.Add(ctl.channel, ctl.queue)
		return false
	case ctlDrop:
		for _, q := range l.table.Listeners(ctl.channel) {
			if q == ctl.queue {
				close(q)
				break
			}
		}
		l.table.Drop(ctl.channel, ctl.queue)
		return l.table.Empty()
	case ctlExit:
		return true
	default:
		return false
	}
}

// waitOrControl sleeps for d, applying any control message that
// arrives during the wait instead of deferring it until the next
// request cycle — an Add/Drop during backoff still needs the updated
// channel set to take effect without losing the rest of the wait. It
// reports whether the loop must stop, and whether the wait ran its
// full course (false on ctx cancellation).
func (l *Loop) waitOrControl(ctx context.Context, d time.Duration) (stop bool, advanced bool) {
	return backoff.Wait(ctx, d, l.inbox, l.applyControl)
}

// closeAll releases every consumer queue still registered across all
// channels, so surviving handles observe end-of-stream from next().
func (l *Loop) closeAll() {
	for _, key := range l.table.Keys() {
		for _, q := range l.table.DropAll(key) {
			close(q)
		}
	}
}

// State reports the loop's current lifecycle state. Safe to call
// only from the goroutine running Run, or after Run has returned.
func (l *Loop) State() State {
	return l.state
}
