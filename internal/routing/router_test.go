package routing

import (
	"context"
	"testing"
	"time"
)

func TestAdd_ReportsNewKey(t *testing.T) {
	tbl := New[int]()
	q := make(Queue[int], 1)

	if newKey := tbl.Add("a", q); !newKey {
		t.Error("expected first Add to report a new key")
	}
	q2 := make(Queue[int], 1)
	if newKey := tbl.Add("a", q2); newKey {
		t.Error("expected second Add on same key to report existing key")
	}
}

func TestSend_PreservesInsertionOrder(t *testing.T) {
	tbl := New[string]()
	var order []string
	var qs []Queue[string]
	for i := 0; i < 3; i++ {
		q := make(Queue[string], 1)
		qs = append(qs, q)
		tbl.Add("x", q)
	}

	listeners := tbl.Listeners("x")
	if len(listeners) != len(qs) {
		t.Fatalf("got %d listeners, want %d", len(listeners), len(qs))
	}
	for i, q := range qs {
		if listeners[i] != q {
			t.Errorf("listener %d is not the queue added %dth", i, i)
		}
	}

	if err := tbl.Send(context.Background(), "x", "hello"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	for _, q := range qs {
		select {
		case v := <-q:
			order = append(order, v)
		default:
			t.Fatal("expected a value on every listener queue")
		}
	}
	for _, v := range order {
		if v != "hello" {
			t.Errorf("got %q, want hello", v)
		}
	}
}

func TestDrop_RemovesListenerAndReportsEmptied(t *testing.T) {
	tbl := New[int]()
	q1 := make(Queue[int], 1)
	q2 := make(Queue[int], 1)
	tbl.Add("c", q1)
	tbl.Add("c", q2)

	if emptied := tbl.Drop("c", q1); emptied {
		t.Error("expected not emptied after dropping one of two listeners")
	}
	if emptied := tbl.Drop("c", q2); !emptied {
		t.Error("expected emptied after dropping the last listener")
	}
	if !tbl.Empty() {
		t.Error("expected table to be empty")
	}
}

func TestDrop_UnknownQueueIsNoop(t *testing.T) {
	tbl := New[int]()
	q := make(Queue[int], 1)
	tbl.Add("c", q)

	other := make(Queue[int], 1)
	if emptied := tbl.Drop("c", other); emptied {
		t.Error("dropping an unregistered queue must not report emptied")
	}
	if len(tbl.Listeners("c")) != 1 {
		t.Error("expected original listener to remain registered")
	}
}

func TestSend_BlocksOnFullQueueUntilCancelled(t *testing.T) {
	tbl := New[int]()
	full := make(Queue[int], 1)
	full <- 1 // fill it
	tbl.Add("c", full)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := tbl.Send(ctx, "c", 2)
	if err == nil {
		t.Fatal("expected Send to report ctx cancellation when blocked on a full queue")
	}
}

func TestDropAll_RemovesEverything(t *testing.T) {
	tbl := New[int]()
	q1 := make(Queue[int], 1)
	q2 := make(Queue[int], 1)
	tbl.Add("c", q1)
	tbl.Add("c", q2)

	qs := tbl.DropAll("c")
	if len(qs) != 2 {
		t.Fatalf("expected 2 queues returned, got %d", len(qs))
	}
	if !tbl.Empty() {
		t.Error("expected table empty after DropAll")
	}
}

func TestTrySend_ReturnsUnimplemented(t *testing.T) {
	tbl := New[int]()
	if err := tbl.TrySend(context.Background(), "c", 1); err != ErrReducedResiliencyUnimplemented {
		t.Errorf("expected ErrReducedResiliencyUnimplemented, got %v", err)
	}
}
