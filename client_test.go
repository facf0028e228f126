package hubclient

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeService emulates the publish and subscribe endpoints closely
// enough to exercise a Client end to end: publish always succeeds
// with a canned timetoken, and subscribe serves one scripted batch
// per call to /v2/subscribe/, replaying the last entry once the
// script runs out.
type fakeService struct {
	mu         sync.Mutex
	batches    []string // raw JSON bodies, one per call
	calls      int
	lastSubURL string
}

func (f *fakeService) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/publish/"):
			fmt.Fprint(w, `[1,"Sent","17000000000000000"]`)
		case strings.HasPrefix(r.URL.Path, "/v2/subscribe/"):
			f.mu.Lock()
			f.lastSubURL = r.URL.String()
			i := f.calls
			if i >= len(f.batches) {
				i = len(f.batches) - 1
			}
			f.calls++
			body := f.batches[i]
			f.mu.Unlock()
			fmt.Fprint(w, body)
		default:
			http.NotFound(w, r)
		}
	}
}

func newTestClient(t *testing.T, svc *fakeService) (*Client, string) {
	t.Helper()
	server := httptest.NewServer(svc.handler())
	t.Cleanup(server.Close)

	u, err := url.Parse(server.URL)
	if err != nil {
		t.Fatalf("parse test server URL: %v", err)
	}

	// httptest.Server serves plain HTTP; passing its origin with an
	// explicit "http://" scheme tells BuildPublishURL/BuildSubscribeURL
	// not to force HTTPS the way they do for a bare host:port origin.
	c, err := NewClient("demo", "demo", WithOrigin("http://"+u.Host))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(c.Close)
	return c, server.URL
}

func TestPublish_ReturnsAssignedTimetoken(t *testing.T) {
	svc := &fakeService{}
	c, _ := newTestClient(t, svc)

	tt, err := c.Publish(context.Background(), "demo", "Hi!")
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if tt.T != "17000000000000000" {
		t.Errorf("timetoken = %q, want 17000000000000000", tt.T)
	}
}

func TestSubscribe_ColdStartDeliversFirstMessage(t *testing.T) {
	svc := &fakeService{batches: []string{
		`{"t":{"t":"16999000000000000","r":2},"m":[{"e":0,"c":"demo2","d":"Hello, world!","p":{"t":"17000000000000000","r":2}}]}`,
		`{"t":{"t":"16999000000000001","r":2},"m":[]}`,
	}}
	c, _ := newTestClient(t, svc)

	sub, err := c.Subscribe(context.Background(), "demo2")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Drop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	msg, ok := sub.Next(ctx)
	if !ok {
		t.Fatal("expected a message")
	}
	if msg.Kind != KindPublish {
		t.Errorf("kind = %v, want Publish", msg.Kind)
	}
	if msg.Channel != "demo2" {
		t.Errorf("channel = %q, want demo2", msg.Channel)
	}
	if len(msg.Timetoken.T) != 17 {
		t.Errorf("timetoken length = %d, want 17", len(msg.Timetoken.T))
	}
	for _, d := range msg.Timetoken.T {
		if d < '0' || d > '9' {
			t.Fatalf("timetoken %q contains a non-digit", msg.Timetoken.T)
		}
	}
}

func TestSubscribe_TwoListenersSameChannelBothAttach(t *testing.T) {
	svc := &fakeService{batches: []string{
		`{"t":{"t":"1","r":0},"m":[{"e":0,"c":"room","d":"hi"}]}`,
		`{"t":{"t":"2","r":0},"m":[]}`,
	}}
	c, _ := newTestClient(t, svc)

	subA, err := c.Subscribe(context.Background(), "room")
	if err != nil {
		t.Fatalf("first Subscribe: %v", err)
	}
	defer subA.Drop()

	subB, err := c.Subscribe(context.Background(), "room")
	if err != nil {
		t.Fatalf("second Subscribe: %v", err)
	}
	defer subB.Drop()

	// subB attached after the cold-start message was already
	// delivered to subA; what matters here is that both handles are
	// independent queues fed by the same loop, not that they race for
	// the same historical message.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, ok := subA.Next(ctx); !ok {
		t.Error("expected subA to receive the cold-start message")
	}
}

func TestSubscribe_DropRemovesListener(t *testing.T) {
	svc := &fakeService{batches: []string{
		`{"t":{"t":"1","r":0},"m":[]}`,
	}}
	c, _ := newTestClient(t, svc)

	sub, err := c.Subscribe(context.Background(), "a")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	sub.Drop()

	// Dropping the only listener tears the loop down; Next should
	// eventually observe end-of-stream rather than block forever.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, ok := sub.Next(ctx); ok {
		t.Error("expected no further message after the only listener dropped")
	}
}

func TestSubscribe_AuthKeyAndFiltersAreStoredNotSentOnURL(t *testing.T) {
	svc := &fakeService{batches: []string{
		`{"t":{"t":"1","r":0},"m":[]}`,
	}}
	server := httptest.NewServer(svc.handler())
	t.Cleanup(server.Close)
	u, err := url.Parse(server.URL)
	if err != nil {
		t.Fatalf("parse test server URL: %v", err)
	}

	c, err := NewClient("demo", "demo",
		WithOrigin("http://"+u.Host),
		WithAuthKey("top-secret-auth"),
		WithSecretKey("top-secret-key"),
		WithFilters("sensor.temperature > 30"),
	)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(c.Close)

	sub, err := c.Subscribe(context.Background(), "a")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Drop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	sub.Next(ctx)

	svc.mu.Lock()
	got := svc.lastSubURL
	svc.mu.Unlock()

	for _, secret := range []string{"top-secret-auth", "top-secret-key", "sensor.temperature"} {
		if strings.Contains(got, secret) {
			t.Errorf("subscribe URL %q unexpectedly contains %q", got, secret)
		}
	}
}

func TestSubscribe_AddWhileRunningJoinsChannelSet(t *testing.T) {
	svc := &fakeService{batches: []string{
		`{"t":{"t":"1","r":0},"m":[]}`,
	}}
	c, _ := newTestClient(t, svc)

	subA, err := c.Subscribe(context.Background(), "a")
	if err != nil {
		t.Fatalf("Subscribe a: %v", err)
	}
	defer subA.Drop()

	subB, err := c.Subscribe(context.Background(), "b")
	if err != nil {
		t.Fatalf("Subscribe b: %v", err)
	}
	defer subB.Drop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		svc.mu.Lock()
		u := svc.lastSubURL
		svc.mu.Unlock()
		if strings.Contains(u, "a%2Cb") || strings.Contains(u, "b%2Ca") {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("expected the long-poll URL to eventually list both channels")
}

