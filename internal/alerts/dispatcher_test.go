package alerts

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

type fakeChannel struct {
	name string
	kind ChannelKind
	fail bool

	mu       sync.Mutex
	received []Alert
}

func (c *fakeChannel) Name() string { return c.name }

func (c *fakeChannel) Kind() ChannelKind { return c.kind }

func (c *fakeChannel) Deliver(_ context.Context, alert Alert) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("delivery failed")
	}
	c.received = append(c.received, alert)
	return nil
}

func (c *fakeChannel) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.received)
}

func testDispatcher(t *testing.T, channels ...Channel) *Dispatcher {
	t.Helper()
	d := NewDispatcher(Config{
		Enabled:         true,
		QueueSize:       16,
		HistorySize:     4,
		MaxRedeliveries: 0,
		RetryInterval:   time.Millisecond,
		DeliverTimeout:  time.Second,
	}, channels)
	t.Cleanup(d.Close)
	return d
}

func TestDispatchLowGoesToDurableOnly(t *testing.T) {
	webhook := &fakeChannel{name: "wh", kind: KindWebhook}
	durable := &fakeChannel{name: "db", kind: KindDurable}
	d := testDispatcher(t, webhook, durable)

	if err := d.Dispatch(context.Background(), Alert{ID: "1", MerchantID: "m"}, PriorityLow); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if webhook.count() != 0 || durable.count() != 1 {
		t.Fatalf("LOW routed wrong: webhook=%d durable=%d", webhook.count(), durable.count())
	}
}

func TestDispatchNormalGoesToWebhookOnly(t *testing.T) {
	webhook := &fakeChannel{name: "wh", kind: KindWebhook}
	durable := &fakeChannel{name: "db", kind: KindDurable}
	d := testDispatcher(t, webhook, durable)

	if err := d.Dispatch(context.Background(), Alert{ID: "1", MerchantID: "m"}, PriorityNormal); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if webhook.count() != 1 || durable.count() != 0 {
		t.Fatalf("NORMAL routed wrong: webhook=%d durable=%d", webhook.count(), durable.count())
	}
}

func TestDispatchHighFallsBackToDurable(t *testing.T) {
	webhook := &fakeChannel{name: "wh", kind: KindWebhook, fail: true}
	durable := &fakeChannel{name: "db", kind: KindDurable}
	d := testDispatcher(t, webhook, durable)

	if err := d.Dispatch(context.Background(), Alert{ID: "1", MerchantID: "m"}, PriorityHigh); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if durable.count() != 1 {
		t.Fatalf("HIGH fallback missed durable: %d", durable.count())
	}
}

func TestDispatchCriticalSucceedsIfAnyChannelDoes(t *testing.T) {
	webhook := &fakeChannel{name: "wh", kind: KindWebhook, fail: true}
	realtime := &fakeChannel{name: "rt", kind: KindRealtime, fail: true}
	durable := &fakeChannel{name: "db", kind: KindDurable}
	d := testDispatcher(t, webhook, realtime, durable)

	if err := d.Dispatch(context.Background(), Alert{ID: "1", MerchantID: "m"}, PriorityCritical); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
}

func TestDispatchNoChannelForRoute(t *testing.T) {
	durable := &fakeChannel{name: "db", kind: KindDurable}
	d := testDispatcher(t, durable)

	err := d.Dispatch(context.Background(), Alert{ID: "1", MerchantID: "m"}, PriorityNormal)
	if !errors.Is(err, ErrNoChannel) {
		t.Fatalf("got %v, want ErrNoChannel", err)
	}
}

func TestDispatchAllChannelsFailed(t *testing.T) {
	webhook := &fakeChannel{name: "wh", kind: KindWebhook, fail: true}
	d := testDispatcher(t, webhook)

	err := d.Dispatch(context.Background(), Alert{ID: "1", MerchantID: "m"}, PriorityNormal)
	if !errors.Is(err, ErrAllChannelsFailed) {
		t.Fatalf("got %v, want ErrAllChannelsFailed", err)
	}
}

func TestHistoryBoundedPerMerchant(t *testing.T) {
	durable := &fakeChannel{name: "db", kind: KindDurable}
	d := testDispatcher(t, durable)

	for i := 0; i < 10; i++ {
		d.Send(Alert{ID: fmt.Sprintf("a%d", i), MerchantID: "m"}, PriorityLow)
	}

	h := d.History("m")
	if len(h) != 4 {
		t.Fatalf("got %d retained alerts, want 4", len(h))
	}
	// Oldest entries are discarded first.
	if h[len(h)-1].ID != "a9" {
		t.Fatalf("expected newest alert retained, got %q", h[len(h)-1].ID)
	}

	if got := d.History("other"); len(got) != 0 {
		t.Fatalf("unrelated merchant history: got %d, want 0", len(got))
	}
}

func TestSendDeliversAsynchronously(t *testing.T) {
	durable := &fakeChannel{name: "db", kind: KindDurable}
	d := testDispatcher(t, durable)

	d.Send(Alert{ID: "1", MerchantID: "m"}, PriorityLow)
	d.Close() // drains the queue

	if durable.count() != 1 {
		t.Fatalf("got %d delivered, want 1", durable.count())
	}
}

func TestNilDispatcherIsValid(t *testing.T) {
	var d *Dispatcher

	d.Send(Alert{ID: "1", MerchantID: "m"}, PriorityCritical)
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher must report zero drops")
	}
	if d.History("m") != nil {
		t.Fatal("nil dispatcher must report no history")
	}
	if d.ChannelNames() != nil {
		t.Fatal("nil dispatcher must report no channels")
	}
}

func TestDisabledConfigYieldsNil(t *testing.T) {
	if d := NewDispatcher(Config{Enabled: false}, nil); d != nil {
		t.Fatal("disabled config must yield a nil dispatcher")
	}
}

func TestChannelNames(t *testing.T) {
	d := testDispatcher(t,
		&fakeChannel{name: "wh", kind: KindWebhook},
		&fakeChannel{name: "db", kind: KindDurable},
	)

	names := d.ChannelNames()
	if len(names) != 2 || names[0] != "wh" || names[1] != "db" {
		t.Fatalf("got %v, want [wh db]", names)
	}
}
