package hubclient

import (
	"fmt"

	"github.com/duskline/hubclient/internal/routing"
)

// TransportError wraps a network-level failure: a dial/read error, a
// non-2xx status, or a truncated body. Publish surfaces it verbatim;
// the subscribe loop treats it as recoverable and retries.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("hubclient: transport error for %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DecodeError wraps a failure to parse a response body: non-UTF-8
// bytes, malformed JSON, or an envelope missing a required field.
// Publish surfaces it verbatim; the subscribe loop treats it the same
// as a TransportError and retries with the same cursor.
type DecodeError struct {
	URL string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("hubclient: decode error for %s: %v", e.URL, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ErrReducedResiliencyUnimplemented is returned by WithReducedResiliency.
// Reduced resiliency (drop-to-slowest delivery instead of blocking) is
// a declared, unimplemented extension point; the core client only
// offers the blocking, zero-message-loss policy.
var ErrReducedResiliencyUnimplemented = routing.ErrReducedResiliencyUnimplemented
