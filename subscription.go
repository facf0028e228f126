package hubclient

import (
	"context"

	"github.com/duskline/hubclient/internal/supervisor"
)

// Subscription is a lazy, finite-or-infinite sequence of Messages for
// one channel. Each call to Client.Subscribe yields a fresh
// Subscription with its own consumer queue; two Subscriptions on the
// same channel never share one.
type Subscription struct {
	handle *supervisor.Handle
}

// Next blocks until a Message is routed to this Subscription or the
// underlying loop closes its queue, in which case ok is false and no
// further call to Next will ever return true. Next also returns
// ok=false if ctx is done first.
func (s *Subscription) Next(ctx context.Context) (msg Message, ok bool) {
	return s.handle.Next(ctx)
}

// Drop releases the Subscription. It asynchronously notifies the
// loop so the channel can be removed from the server-side long-poll
// request once no listener remains; the notification is best-effort
// and Drop never blocks waiting for it to land. Calling Drop more
// than once is safe and a no-op after the first call.
func (s *Subscription) Drop() {
	s.handle.Drop()
}
