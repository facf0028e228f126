package hubclient

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/duskline/hubclient/internal/httpkit"
	"github.com/duskline/hubclient/internal/subscribeloop"
	"github.com/duskline/hubclient/internal/supervisor"
	"github.com/duskline/hubclient/internal/wire"
	"github.com/google/uuid"
)

// defaultOrigin is the host used when no Option overrides it.
const defaultOrigin = "ps.pndsn.com"

// Client is an immutable configuration container over a Transport and
// Runtime, plus the one mutable piece of state the originating
// contract carries on the facade itself: the stored filter string.
// Publish is stateless and safe for concurrent use; Subscribe is
// serialized internally by a Supervisor.
type Client struct {
	origin       string
	agent        string
	publishKey   string
	subscribeKey string
	secretKey    string
	authKey      string
	userID       string

	transport Transport
	sup       *supervisor.Supervisor
	logger    *slog.Logger

	mu      sync.Mutex
	filters string
}

// Option configures a Client built by NewClient.
type Option func(*clientConfig)

type clientConfig struct {
	origin            string
	agent             string
	secretKey         string
	authKey           string
	userID            string
	filters           string
	presence          bool
	reducedResiliency bool
	transport         Transport
	runtime           Runtime
	exitNotifier      chan<- struct{}
	logger            *slog.Logger
	loopOpts          []subscribeloop.Option
}

// WithOrigin replaces the default host:port the client targets.
func WithOrigin(origin string) Option {
	return func(c *clientConfig) { c.origin = origin }
}

// WithAgent sets the HTTP User-Agent sent on every request.
func WithAgent(agent string) Option {
	return func(c *clientConfig) { c.agent = agent }
}

// WithSecretKey sets the secret key reserved for the signature/PAM
// path. It is stored but does not currently affect URL construction.
func WithSecretKey(key string) Option {
	return func(c *clientConfig) { c.secretKey = key }
}

// WithAuthKey sets the auth key reserved for the signature/PAM path.
// It is stored but does not currently affect URL construction.
func WithAuthKey(key string) Option {
	return func(c *clientConfig) { c.authKey = key }
}

// WithUserID sets the issuing client id reserved for the
// signature/PAM path. It is stored but does not currently affect URL
// construction.
func WithUserID(id string) Option {
	return func(c *clientConfig) { c.userID = id }
}

// WithFilters sets the initial stored filter expression. It is
// percent-encoded and stored on the Client; a later call to
// Client.Filters replaces it. The stored value is not used in URL
// construction.
func WithFilters(filters string) Option {
	return func(c *clientConfig) { c.filters = filters }
}

// WithPresence sets the presence flag. The flag is accepted but has
// no effect: it is not kept on the Client and does not affect URL
// construction, since presence events are recognized by channel
// suffix rather than by a query flag.
func WithPresence(enable bool) Option {
	return func(c *clientConfig) { c.presence = enable }
}

// WithReducedResiliency would select the drop-slowest delivery
// policy instead of the default blocking one. WithReducedResiliency(true)
// makes NewClient return ErrReducedResiliencyUnimplemented: reduced
// resiliency is not implemented in this client's core, and the option
// is rejected rather than silently doing nothing.
// WithReducedResiliency(false) keeps the default blocking policy.
func WithReducedResiliency(enable bool) Option {
	return func(c *clientConfig) { c.reducedResiliency = enable }
}

// WithSubscribeLoopExitNotifier sets a queue that receives one
// notification every time the subscribe loop terminates, whether
// because its last listener dropped or because Close was called. The
// send does not block: if ch cannot take the value at that moment, the
// notification is dropped and a warning is logged.
func WithSubscribeLoopExitNotifier(ch chan<- struct{}) Option {
	return func(c *clientConfig) { c.exitNotifier = ch }
}

// WithTransport overrides the default HTTP transport.
func WithTransport(t Transport) Option {
	return func(c *clientConfig) { c.transport = t }
}

// WithRuntime overrides the default goroutine-spawning runtime.
func WithRuntime(r Runtime) Option {
	return func(c *clientConfig) { c.runtime = r }
}

// WithLogger sets the logger used for recoverable subscribe-loop
// errors and supervisor diagnostics. A nil logger (the default) falls
// back to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *clientConfig) { c.logger = logger }
}

// WithSubscribeBackoff overrides the retry pacing the subscribe loop
// uses after a transport or decode error. The specification this
// client implements does not mandate backoff at all (it permits but
// does not require it); the default schedule exists so a broken
// connection does not spin the loop in a tight retry cycle.
func WithSubscribeBackoff(opt subscribeloop.Option) Option {
	return func(c *clientConfig) { c.loopOpts = append(c.loopOpts, opt) }
}

// NewClient builds a Client for the given publish/subscribe key
// pair. WithReducedResiliency(true) is the only option that can make
// this return an error.
func NewClient(publishKey, subscribeKey string, opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		origin: defaultOrigin,
		agent:  "",
		userID: uuid.NewString(),
	}
	for _, o := range opts {
		o(cfg)
	}

	if cfg.reducedResiliency {
		return nil, ErrReducedResiliencyUnimplemented
	}

	var t Transport
	if cfg.transport != nil {
		t = cfg.transport
	} else if cfg.agent != "" {
		t = NewHTTPTransport(cfg.logger, httpkit.WithUserAgent(cfg.agent))
	} else {
		t = NewHTTPTransport(cfg.logger)
	}

	c := &Client{
		origin:       cfg.origin,
		agent:        cfg.agent,
		publishKey:   publishKey,
		subscribeKey: subscribeKey,
		secretKey:    cfg.secretKey,
		authKey:      cfg.authKey,
		userID:       cfg.userID,
		transport:    t,
		logger:       cfg.logger,
		filters:      wire.PercentEncode(cfg.filters),
	}

	c.sup = supervisor.New(t, cfg.runtime, cfg.origin, subscribeKey, cfg.exitNotifier, cfg.logger, cfg.loopOpts...)

	return c, nil
}

// Filters replaces the client's stored filter expression, percent-
// encoding it. The stored value is not used in URL construction, so
// it does not change the subscribe requests the loop sends.
func (c *Client) Filters(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filters = wire.PercentEncode(s)
}

// Publish sends payload to channel and returns the timetoken the
// service assigned it. Publish is stateless and may be called
// concurrently from multiple goroutines.
func (c *Client) Publish(ctx context.Context, channel string, payload any) (Timetoken, error) {
	return c.publish(ctx, channel, payload, nil)
}

// PublishWithMetadata accepts metadata alongside payload but does not
// send it: the request is the same one Publish makes, and the
// assigned timetoken is returned.
func (c *Client) PublishWithMetadata(ctx context.Context, channel string, payload, metadata any) (Timetoken, error) {
	return c.publish(ctx, channel, payload, metadata)
}

func (c *Client) publish(ctx context.Context, channel string, payload, metadata any) (Timetoken, error) {
	jsonPayload, err := wire.MarshalPayload(payload)
	if err != nil {
		return Timetoken{}, err
	}
	_ = metadata // metadata has no representation in the literal publish URL this client targets

	url := wire.BuildPublishURL(c.origin, c.publishKey, c.subscribeKey, channel, jsonPayload)
	return c.transport.Publish(ctx, url)
}

// Subscribe registers a new listener for channel, starting the
// subscribe loop if it is not already running. If this call starts
// the loop, Subscribe blocks until the loop's first long-poll
// succeeds, guaranteeing that a Publish issued immediately after
// Subscribe returns will be observed by it.
func (c *Client) Subscribe(ctx context.Context, channel string) (*Subscription, error) {
	handle, err := c.sup.Subscribe(ctx, channel)
	if err != nil {
		return nil, fmt.Errorf("hubclient: subscribe to %q: %w", channel, err)
	}
	return &Subscription{handle: handle}, nil
}

// Close tears down the running subscribe loop, if any. It is not
// part of the originating specification's core contract but gives a
// Client a deterministic shutdown path instead of relying on every
// Subscription being dropped individually.
func (c *Client) Close() {
	c.sup.Close()
}
