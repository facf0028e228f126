package hubclient

import "github.com/duskline/hubclient/internal/wire"

// MessageKind classifies a Message. The numeric tags 0-3 come
// straight off the wire; Presence is inferred from the channel a
// message arrives on rather than carried as its own tag, and any tag
// outside the known range becomes Unknown.
type MessageKind = wire.Kind

const (
	KindPublish  = wire.KindPublish
	KindSignal   = wire.KindSignal
	KindObjects  = wire.KindObjects
	KindAction   = wire.KindAction
	KindPresence = wire.KindPresence
	KindUnknown  = wire.KindUnknown
)

// Message is one unit of data delivered to a Subscription. Messages
// are immutable once constructed; the loop never mutates a Message
// after routing it, so it is safe to retain across goroutines.
type Message = wire.Message
