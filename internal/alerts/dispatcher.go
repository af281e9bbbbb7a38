package alerts

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrNoChannel means no channel of the required kind is configured.
	ErrNoChannel = errors.New("no alert channel for route")
	// ErrAllChannelsFailed means every channel on the route failed.
	ErrAllChannelsFailed = errors.New("all alert channels failed")
)

// Config controls queueing, redelivery, and history retention.
type Config struct {
	Enabled         bool
	QueueSize       int
	HistorySize     int
	MaxRedeliveries int
	RetryInterval   time.Duration
	DeliverTimeout  time.Duration
}

type job struct {
	alert    Alert
	priority Priority
	attempts int
}

// Dispatcher routes alerts to channels by priority. Send never blocks the
// caller; a nil Dispatcher is valid and discards everything.
type Dispatcher struct {
	cfg      Config
	channels []Channel

	jobs      chan job
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once

	mu      sync.Mutex
	history map[string][]Alert
}

func NewDispatcher(cfg Config, channels []Channel) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 32
	}
	if cfg.DeliverTimeout <= 0 {
		cfg.DeliverTimeout = 10 * time.Second
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 30 * time.Second
	}

	d := &Dispatcher{
		cfg:      cfg,
		channels: channels,
		jobs:     make(chan job, cfg.QueueSize),
		done:     make(chan struct{}),
		history:  make(map[string][]Alert),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

// Send queues an alert for delivery and returns immediately. The queue is
// bounded; overflow drops the alert and counts it, never blocking the caller.
func (d *Dispatcher) Send(alert Alert, priority Priority) {
	if d == nil || d.closed.Load() {
		return
	}

	d.record(alert)

	select {
	case d.jobs <- job{alert: alert, priority: priority}:
	case <-d.done:
	default:
		d.dropped.Add(1)
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case j := <-d.jobs:
			d.process(j)
		case <-d.done:
			for {
				select {
				case j := <-d.jobs:
					d.process(j)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) process(j job) {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.DeliverTimeout)
	err := d.Dispatch(ctx, j.alert, j.priority)
	cancel()
	if err == nil {
		return
	}

	if j.attempts >= d.cfg.MaxRedeliveries {
		d.dropped.Add(1)
		return
	}

	j.attempts++
	time.AfterFunc(d.cfg.RetryInterval, func() {
		if d.closed.Load() {
			return
		}
		select {
		case d.jobs <- j:
		default:
			d.dropped.Add(1)
		}
	})
}

// Dispatch delivers one alert synchronously over the route selected by
// priority. Exposed for the worker and for direct use in tests.
func (d *Dispatcher) Dispatch(ctx context.Context, alert Alert, priority Priority) error {
	if d == nil {
		return nil
	}

	switch priority {
	case PriorityCritical:
		return d.deliverAny(ctx, d.channels, alert)
	case PriorityHigh:
		if err := d.deliverFirst(ctx, d.ofKind(KindWebhook), alert); err == nil {
			return nil
		}
		return d.deliverFirst(ctx, d.ofKind(KindDurable), alert)
	case PriorityNormal:
		return d.deliverFirst(ctx, d.ofKind(KindWebhook), alert)
	default:
		return d.deliverFirst(ctx, d.ofKind(KindDurable), alert)
	}
}

// deliverAny fans out to every channel concurrently and succeeds if any
// channel succeeds.
func (d *Dispatcher) deliverAny(ctx context.Context, channels []Channel, alert Alert) error {
	if len(channels) == 0 {
		return ErrNoChannel
	}

	results := make(chan error, len(channels))
	for _, ch := range channels {
		go func(ch Channel) {
			results <- ch.Deliver(ctx, alert)
		}(ch)
	}

	for range channels {
		if err := <-results; err == nil {
			// Remaining goroutines drain into the buffered channel.
			return nil
		}
	}
	return ErrAllChannelsFailed
}

// deliverFirst tries channels in order and stops at the first success.
func (d *Dispatcher) deliverFirst(ctx context.Context, channels []Channel, alert Alert) error {
	if len(channels) == 0 {
		return ErrNoChannel
	}
	for _, ch := range channels {
		if err := ch.Deliver(ctx, alert); err == nil {
			return nil
		}
	}
	return ErrAllChannelsFailed
}

func (d *Dispatcher) ofKind(kind ChannelKind) []Channel {
	var out []Channel
	for _, ch := range d.channels {
		if ch.Kind() == kind {
			out = append(out, ch)
		}
	}
	return out
}

func (d *Dispatcher) record(alert Alert) {
	d.mu.Lock()
	defer d.mu.Unlock()

	h := append(d.history[alert.MerchantID], alert)
	if len(h) > d.cfg.HistorySize {
		h = h[len(h)-d.cfg.HistorySize:]
	}
	d.history[alert.MerchantID] = h
}

// History returns a copy of the retained alerts for one merchant, oldest
// first.
func (d *Dispatcher) History(merchantID string) []Alert {
	if d == nil {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	h := d.history[merchantID]
	out := make([]Alert, len(h))
	copy(out, h)
	return out
}

// Dropped reports alerts lost to queue overflow or redelivery exhaustion.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// ChannelNames lists configured channels for posture reporting.
func (d *Dispatcher) ChannelNames() []string {
	if d == nil {
		return nil
	}
	names := make([]string, 0, len(d.channels))
	for _, ch := range d.channels {
		names = append(names, ch.Name())
	}
	return names
}

func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}
