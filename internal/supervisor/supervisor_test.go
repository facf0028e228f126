package supervisor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/duskline/hubclient/internal/wire"
)

type fakeTransport struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeTransport) Subscribe(ctx context.Context, url string) (wire.Response, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.mu.Unlock()

	if n == 1 {
		return wire.Response{T: struct {
			T string `json:"t"`
			R uint32 `json:"r"`
		}{T: "1", R: 0}}, nil
	}
	<-ctx.Done()
	return wire.Response{}, ctx.Err()
}

func TestSubscribe_BlocksUntilFirstReady(t *testing.T) {
	sup := New(&fakeTransport{}, nil, "origin", "sub", nil, nil)

	handle, err := sup.Subscribe(context.Background(), "a")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if handle == nil {
		t.Fatal("expected a non-nil handle")
	}
}

func TestSubscribe_SecondChannelReusesRunningLoop(t *testing.T) {
	transport := &fakeTransport{}
	sup := New(transport, nil, "origin", "sub", nil, nil)

	if _, err := sup.Subscribe(context.Background(), "a"); err != nil {
		t.Fatalf("first Subscribe: %v", err)
	}
	if _, err := sup.Subscribe(context.Background(), "b"); err != nil {
		t.Fatalf("second Subscribe: %v", err)
	}

	sup.mu.Lock()
	inbox := sup.loopInbox
	sup.mu.Unlock()
	if inbox == nil {
		t.Fatal("expected the loop started by the first Subscribe to still be running")
	}
}

func TestExitNotifier_FiresWhenLoopTerminates(t *testing.T) {
	exitCh := make(chan struct{}, 1)
	sup := New(&fakeTransport{}, nil, "origin", "sub", exitCh, nil)

	handle, err := sup.Subscribe(context.Background(), "a")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	handle.Drop()

	select {
	case <-exitCh:
	case <-time.After(time.Second):
		t.Fatal("expected exit notifier to fire once the only listener dropped")
	}
}

func TestHandle_DropIsIdempotent(t *testing.T) {
	sup := New(&fakeTransport{}, nil, "origin", "sub", nil, nil)
	handle, err := sup.Subscribe(context.Background(), "a")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	handle.Drop()
	handle.Drop() // must not panic or double-send
}

func TestHandle_NextSeesNoMoreMessagesAfterDrop(t *testing.T) {
	sup := New(&fakeTransport{}, nil, "origin", "sub", nil, nil)
	handle, err := sup.Subscribe(context.Background(), "a")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	handle.Drop()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if _, ok := handle.Next(ctx); ok {
		t.Error("expected no further message to be routed to a dropped handle")
	}
}

func TestHandle_NextObservesEndOfStreamOnFullShutdown(t *testing.T) {
	exitCh := make(chan struct{}, 1)
	sup := New(&fakeTransport{}, nil, "origin", "sub", exitCh, nil)
	handle, err := sup.Subscribe(context.Background(), "a")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	sup.Close()

	select {
	case <-exitCh:
	case <-time.After(time.Second):
		t.Fatal("expected Close to terminate the loop")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, ok := handle.Next(ctx); ok {
		t.Error("expected Next to observe end-of-stream once the loop shuts down fully")
	}
}

func TestSubscribe_ContextCancelledBeforeReady(t *testing.T) {
	sup := New(&fakeTransport{}, nil, "origin", "sub", nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := sup.Subscribe(ctx, "a"); err == nil {
		t.Fatal("expected Subscribe to report the already-cancelled context")
	}
}
