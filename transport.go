package hubclient

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/duskline/hubclient/internal/httpkit"
	"github.com/duskline/hubclient/internal/subscribeloop"
	"github.com/duskline/hubclient/internal/wire"
)

// maxPublishBody and maxSubscribeBody bound how much of a response
// body gets read into memory. A publish response is a tiny JSON
// array; a subscribe response batches however many messages arrived
// during the long-poll window, so it gets a much larger ceiling.
const (
	maxPublishBody   = 4 << 10  // 4 KiB
	maxSubscribeBody = 16 << 20 // 16 MiB
)

// Transport is the capability a Client needs from the network: one
// publish request and one subscribe long-poll request. Implementing
// this interface is how a caller swaps in a mock transport for tests
// or a non-HTTP transport entirely; NewHTTPTransport is the default.
type Transport interface {
	Publish(ctx context.Context, url string) (Timetoken, error)
	subscribeloop.Transport
}

// HTTPTransport is the default Transport, built on the shared HTTP
// client construction in internal/httpkit. Publish and Subscribe use
// separate *http.Clients because they need incompatible timeout
// policies on the same underlying transport construction: a publish
// request is a small request/response pair that should not hang
// forever, while a subscribe long-poll is specified (spec.md §4.1) to
// block for "tens of seconds" while the server holds the connection
// open waiting for messages, and must not be truncated by a
// client-side deadline shorter than that window.
type HTTPTransport struct {
	publishClient   *http.Client
	subscribeClient *http.Client
	logger          *slog.Logger
}

// NewHTTPTransport builds an HTTPTransport. opts are httpkit
// ClientOptions, letting a caller tune timeouts, retry behavior, or
// TLS settings the same way any other client built on httpkit would;
// they apply to the publish client as given. The subscribe client
// always gets an unbounded http.Client.Timeout and an unbounded
// transport-level ResponseHeaderTimeout layered on top, since
// http.Client.Timeout bounds the whole round trip independent of the
// request's context.Context, and httpkit.NewTransport's default
// ResponseHeaderTimeout would truncate a long-poll just as surely.
// Callers control subscribe cancellation via the request's
// context.Context, not these fields.
func NewHTTPTransport(logger *slog.Logger, opts ...httpkit.ClientOption) *HTTPTransport {
	subscribeOpts := append(append([]httpkit.ClientOption{}, opts...),
		httpkit.WithTimeout(0),
		httpkit.WithTransport(unboundedResponseHeaderTransport()),
	)
	return &HTTPTransport{
		publishClient:   httpkit.NewClient(opts...),
		subscribeClient: httpkit.NewClient(subscribeOpts...),
		logger:          logger,
	}
}

// unboundedResponseHeaderTransport builds a transport identical to
// httpkit.NewTransport's defaults except for ResponseHeaderTimeout,
// which must not fire before the server's own long-poll window does.
func unboundedResponseHeaderTransport() *http.Transport {
	t := httpkit.NewTransport()
	t.ResponseHeaderTimeout = 0
	return t
}

func (t *HTTPTransport) log() *slog.Logger {
	if t.logger != nil {
		return t.logger
	}
	return slog.Default()
}

// Publish performs the one HTTP GET the publish endpoint expects and
// extracts the resulting timetoken. The full response body is read
// before decoding, per the originating contract's requirement that a
// partial body never be treated as a complete response.
func (t *HTTPTransport) Publish(ctx context.Context, url string) (Timetoken, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Timetoken{}, &TransportError{URL: url, Err: err}
	}

	resp, err := t.publishClient.Do(req)
	if err != nil {
		return Timetoken{}, &TransportError{URL: url, Err: err}
	}
	defer httpkit.DrainAndClose(resp.Body, 1024)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body := httpkit.ReadErrorBody(resp.Body, maxPublishBody)
		return Timetoken{}, &TransportError{URL: url, Err: statusError(resp.StatusCode, body)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPublishBody))
	if err != nil {
		return Timetoken{}, &TransportError{URL: url, Err: err}
	}

	tt, err := wire.DecodePublishResponse(body)
	if err != nil {
		return Timetoken{}, &DecodeError{URL: url, Err: err}
	}
	return tt, nil
}

// Subscribe performs the one HTTP GET the subscribe long-poll expects
// and decodes the resulting envelope batch. It satisfies
// subscribeloop.Transport directly, so an *HTTPTransport can be
// handed straight to a Client without adaptation.
func (t *HTTPTransport) Subscribe(ctx context.Context, url string) (wire.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return wire.Response{}, &TransportError{URL: url, Err: err}
	}

	resp, err := t.subscribeClient.Do(req)
	if err != nil {
		return wire.Response{}, &TransportError{URL: url, Err: err}
	}
	defer httpkit.DrainAndClose(resp.Body, 1024)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body := httpkit.ReadErrorBody(resp.Body, maxPublishBody)
		return wire.Response{}, &TransportError{URL: url, Err: statusError(resp.StatusCode, body)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSubscribeBody))
	if err != nil {
		return wire.Response{}, &TransportError{URL: url, Err: err}
	}

	decoded, err := wire.DecodeSubscribeResponse(body)
	if err != nil {
		return wire.Response{}, &DecodeError{URL: url, Err: err}
	}
	return decoded, nil
}

type httpStatusError struct {
	status int
	body   string
}

func statusError(status int, body string) error {
	return &httpStatusError{status: status, body: body}
}

func (e *httpStatusError) Error() string {
	if e.body == "" {
		return http.StatusText(e.status)
	}
	return http.StatusText(e.status) + ": " + e.body
}
