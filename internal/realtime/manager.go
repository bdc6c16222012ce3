package realtime

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Dat3K/viet-anh-supply-be/pkg/backoff"
)

// ChannelStatus is the lifecycle state of one named channel
type ChannelStatus string

const (
	StatusConnecting ChannelStatus = "connecting"
	StatusSubscribed ChannelStatus = "subscribed"
	StatusError      ChannelStatus = "error"
	StatusTimedOut   ChannelStatus = "timed_out"
	StatusClosed     ChannelStatus = "closed"
)

const (
	DefaultDebounceWindow   = 150 * time.Millisecond
	DefaultSubscribeTimeout = 10 * time.Second
	DefaultSweepInterval    = 30 * time.Second
)

// TableSubscription declares interest in one table within a channel. Filter,
// when set, drops events returning false before any callback or debounce
// bookkeeping. Callbacks for event types left nil are skipped.
type TableSubscription struct {
	Table    string
	Filter   func(Event) bool
	OnInsert func(Event)
	OnUpdate func(Event)
	OnDelete func(Event)
}

// Options tunes one channel subscription
type Options struct {
	// DebounceWindow collapses bursts of update/delete events on the same
	// (table, event type) into one callback carrying the latest payload.
	// Inserts are delivered immediately.
	DebounceWindow time.Duration
	// SubscribeTimeout bounds a single attempt to attach to the feed
	SubscribeTimeout time.Duration
	// Retry caps the subscription retry loop. Zero value means the default
	// policy (3 attempts, exponential delay).
	Retry backoff.Policy
	// OnError receives transport failures and recovered callback panics
	OnError func(channel string, err error)
}

func (o Options) withDefaults() Options {
	if o.DebounceWindow <= 0 {
		o.DebounceWindow = DefaultDebounceWindow
	}
	if o.SubscribeTimeout <= 0 {
		o.SubscribeTimeout = DefaultSubscribeTimeout
	}
	if o.Retry.MaxAttempts <= 0 {
		o.Retry = backoff.Default()
	}
	return o
}

// ChannelHealth is a point-in-time snapshot of one channel
type ChannelHealth struct {
	Name   string        `json:"name"`
	Status ChannelStatus `json:"status"`
	Tables []string      `json:"tables"`
	Errors uint64        `json:"errors"`
}

// HealthReport covers the whole manager
type HealthReport struct {
	Channels   []ChannelHealth `json:"channels"`
	ErrorCount uint64          `json:"error_count"`
	Uptime     time.Duration   `json:"uptime"`
}

type debounceKey struct {
	table string
	kind  EventType
}

type debounceEntry struct {
	timer  *time.Timer
	latest Event
	fire   func(Event)
}

// Channel is one named multiplexed subscription covering one or more tables.
// Subscribing twice under the same name returns the same Channel: callers
// must not assume independent lifecycles for identically-named channels.
type Channel struct {
	name string
	mgr  *Manager

	mu        sync.Mutex
	status    ChannelStatus
	tables    []string
	pendingDb map[debounceKey]*debounceEntry
	cancels   []func()
	errors    atomic.Uint64

	opts Options
	stop chan struct{}
	wg   sync.WaitGroup
}

// Name returns the channel name
func (c *Channel) Name() string { return c.name }

// Status returns the current subscription status
func (c *Channel) Status() ChannelStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Channel) setStatus(s ChannelStatus) {
	c.mu.Lock()
	// closed is final; a late retry loop must not resurrect the channel
	if c.status != StatusClosed {
		c.status = s
	}
	c.mu.Unlock()
}

func (c *Channel) reportError(err error) {
	c.errors.Add(1)
	c.mgr.errorCount.Add(1)
	if c.opts.OnError != nil {
		c.opts.OnError(c.name, err)
	} else {
		log.Printf("realtime: channel %q: %v", c.name, err)
	}
}

// safeInvoke runs a subscriber callback, converting a panic into a reported
// error so one bad callback cannot kill the delivery loop.
func (c *Channel) safeInvoke(fn func(Event), ev Event) {
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.reportError(fmt.Errorf("callback panic on %s %s: %v", ev.Table, ev.Type, r))
		}
	}()
	fn(ev)
}

// debounce schedules fn with the latest event for (table, type), collapsing
// earlier pending events in the window.
func (c *Channel) debounce(key debounceKey, ev Event, fn func(Event)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status == StatusClosed {
		return
	}

	if entry, ok := c.pendingDb[key]; ok {
		entry.latest = ev
		entry.fire = fn
		entry.timer.Reset(c.opts.DebounceWindow)
		return
	}

	entry := &debounceEntry{latest: ev, fire: fn}
	entry.timer = time.AfterFunc(c.opts.DebounceWindow, func() {
		c.mu.Lock()
		current, ok := c.pendingDb[key]
		if !ok || current != entry {
			c.mu.Unlock()
			return
		}
		delete(c.pendingDb, key)
		latest := current.latest
		fire := current.fire
		c.mu.Unlock()
		c.safeInvoke(fire, latest)
	})
	c.pendingDb[key] = entry
}

func (c *Channel) dispatch(sub TableSubscription, ev Event) {
	if sub.Filter != nil && !sub.Filter(ev) {
		return
	}
	switch ev.Type {
	case EventInsert:
		c.safeInvoke(sub.OnInsert, ev)
	case EventUpdate:
		c.debounce(debounceKey{ev.Table, EventUpdate}, ev, sub.OnUpdate)
	case EventDelete:
		c.debounce(debounceKey{ev.Table, EventDelete}, ev, sub.OnDelete)
	}
}

// run attaches one table subscription to the feed, retrying per the backoff
// policy, then pumps events until the channel stops. After retries are
// exhausted the table is left unsubscribed and the failure reported; there
// are no further automatic retries.
func (c *Channel) run(sub TableSubscription, connected *sync.WaitGroup) {
	defer c.wg.Done()

	var events <-chan Event
	var cancel func()

	policy := c.opts.Retry
	attempt := 0
	for {
		var err error
		events, cancel, err = c.subscribeWithTimeout(sub.Table)
		if err == nil {
			break
		}
		attempt++
		if attempt >= policy.MaxAttempts {
			if err == errSubscribeTimeout {
				c.setStatus(StatusTimedOut)
			} else {
				c.setStatus(StatusError)
			}
			c.reportError(fmt.Errorf("subscribe %s failed after %d attempts: %w", sub.Table, attempt, err))
			connected.Done()
			return
		}
		select {
		case <-time.After(policy.Delay(attempt - 1)):
		case <-c.stop:
			connected.Done()
			return
		}
	}

	c.mu.Lock()
	// close() may have snapshotted c.cancels while this subscribe was in
	// flight; registering now would leak the feed subscriber
	if c.status == StatusClosed {
		c.mu.Unlock()
		cancel()
		connected.Done()
		return
	}
	c.cancels = append(c.cancels, cancel)
	c.mu.Unlock()
	connected.Done()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			c.dispatch(sub, ev)
		case <-c.stop:
			return
		}
	}
}

var errSubscribeTimeout = fmt.Errorf("subscription attempt timed out")

func (c *Channel) subscribeWithTimeout(table string) (<-chan Event, func(), error) {
	type result struct {
		events <-chan Event
		cancel func()
		err    error
	}
	done := make(chan result, 1)
	go func() {
		events, cancel, err := c.mgr.feed.Subscribe(table)
		done <- result{events, cancel, err}
	}()

	select {
	case res := <-done:
		return res.events, res.cancel, res.err
	case <-time.After(c.opts.SubscribeTimeout):
		// discard the late result if the attempt eventually completes
		go func() {
			if res := <-done; res.err == nil && res.cancel != nil {
				res.cancel()
			}
		}()
		return nil, nil, errSubscribeTimeout
	}
}

func (c *Channel) close() {
	c.mu.Lock()
	if c.status == StatusClosed {
		c.mu.Unlock()
		return
	}
	c.status = StatusClosed
	for key, entry := range c.pendingDb {
		entry.timer.Stop()
		delete(c.pendingDb, key)
	}
	cancels := c.cancels
	c.cancels = nil
	c.mu.Unlock()

	close(c.stop)
	for _, cancel := range cancels {
		cancel()
	}
	c.wg.Wait()
}

// Manager owns the named channels over a change feed, the debounce state
// and the retry/health machinery.
type Manager struct {
	feed ChangeFeed

	mu       sync.Mutex
	channels map[string]*Channel

	start      time.Time
	errorCount atomic.Uint64

	sweepInterval time.Duration
	done          chan struct{}
	closeOnce     sync.Once
}

// NewManager builds a manager over the given feed and starts its periodic
// health sweep.
func NewManager(feed ChangeFeed) *Manager {
	m := &Manager{
		feed:          feed,
		channels:      make(map[string]*Channel),
		start:         time.Now(),
		sweepInterval: DefaultSweepInterval,
		done:          make(chan struct{}),
	}
	go m.sweep()
	return m
}

// Subscribe opens (or joins) the named channel covering the given table
// subscriptions. An existing channel with the same name is returned as-is:
// the new table subscriptions and options are ignored.
func (m *Manager) Subscribe(name string, subs []TableSubscription, opts Options) *Channel {
	m.mu.Lock()
	if existing, ok := m.channels[name]; ok {
		m.mu.Unlock()
		return existing
	}

	ch := &Channel{
		name:      name,
		mgr:       m,
		status:    StatusConnecting,
		pendingDb: make(map[debounceKey]*debounceEntry),
		opts:      opts.withDefaults(),
		stop:      make(chan struct{}),
	}
	for _, sub := range subs {
		ch.tables = append(ch.tables, sub.Table)
	}
	m.channels[name] = ch
	m.mu.Unlock()

	var connected sync.WaitGroup
	connected.Add(len(subs))
	for _, sub := range subs {
		ch.wg.Add(1)
		go ch.run(sub, &connected)
	}

	// flip to subscribed once every table attached, unless a retry loop
	// already marked the channel failed
	go func() {
		connected.Wait()
		ch.mu.Lock()
		if ch.status == StatusConnecting {
			ch.status = StatusSubscribed
		}
		ch.mu.Unlock()
	}()

	return ch
}

// Unsubscribe tears down the named channel, cancelling in-flight debounce
// timers. Unknown names are ignored.
func (m *Manager) Unsubscribe(name string) {
	m.mu.Lock()
	ch, ok := m.channels[name]
	if ok {
		delete(m.channels, name)
	}
	m.mu.Unlock()
	if ok {
		ch.close()
	}
}

// Health reports every channel's status, the cumulative error count and the
// manager's uptime.
func (m *Manager) Health() HealthReport {
	m.mu.Lock()
	channels := make([]ChannelHealth, 0, len(m.channels))
	for _, ch := range m.channels {
		channels = append(channels, ChannelHealth{
			Name:   ch.name,
			Status: ch.Status(),
			Tables: ch.tables,
			Errors: ch.errors.Load(),
		})
	}
	m.mu.Unlock()

	return HealthReport{
		Channels:   channels,
		ErrorCount: m.errorCount.Load(),
		Uptime:     time.Since(m.start),
	}
}

// sweep periodically surfaces channels stuck in a failed state. It observes
// only; it never forces a reconnect.
func (m *Manager) sweep() {
	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			for _, ch := range m.Health().Channels {
				if ch.Status == StatusError || ch.Status == StatusTimedOut {
					log.Printf("realtime: channel %q unhealthy (status=%s errors=%d)", ch.Name, ch.Status, ch.Errors)
				}
			}
		case <-m.done:
			return
		}
	}
}

// Close stops the sweep and tears down every channel
func (m *Manager) Close() {
	m.closeOnce.Do(func() { close(m.done) })

	m.mu.Lock()
	channels := make([]*Channel, 0, len(m.channels))
	for name, ch := range m.channels {
		channels = append(channels, ch)
		delete(m.channels, name)
	}
	m.mu.Unlock()

	for _, ch := range channels {
		ch.close()
	}
}
