package hubclient

import "testing"

func TestNewClient_ReducedResiliencyIsRejected(t *testing.T) {
	_, err := NewClient("demo", "demo", WithReducedResiliency(true))
	if err != ErrReducedResiliencyUnimplemented {
		t.Errorf("got %v, want ErrReducedResiliencyUnimplemented", err)
	}
}

func TestNewClient_DefaultsApply(t *testing.T) {
	c, err := NewClient("demo", "demo")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer c.Close()

	if c.origin != defaultOrigin {
		t.Errorf("origin = %q, want %q", c.origin, defaultOrigin)
	}
	if c.userID == "" {
		t.Error("expected a generated user id when none is supplied")
	}
}

func TestNewClient_WithUserIDOverridesDefault(t *testing.T) {
	c, err := NewClient("demo", "demo", WithUserID("fixed-id"))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer c.Close()

	if c.userID != "fixed-id" {
		t.Errorf("userID = %q, want fixed-id", c.userID)
	}
}

func TestClient_FiltersIsConcurrencySafe(t *testing.T) {
	c, err := NewClient("demo", "demo")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer c.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			c.Filters("a")
		}
		close(done)
	}()
	for i := 0; i < 100; i++ {
		c.Filters("b")
	}
	<-done
}
