package realtime

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Dat3K/viet-anh-supply-be/pkg/backoff"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// funcFeed lets a test script the feed's subscribe behavior
type funcFeed struct {
	subscribe func(table string) (<-chan Event, func(), error)
}

func (f *funcFeed) Subscribe(table string) (<-chan Event, func(), error) {
	return f.subscribe(table)
}

func fastOptions() Options {
	return Options{
		DebounceWindow:   20 * time.Millisecond,
		SubscribeTimeout: time.Second,
		Retry:            backoff.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond},
	}
}

func TestInsertsDeliverImmediately(t *testing.T) {
	bus := NewBus()
	defer bus.Close()
	m := NewManager(bus)
	defer m.Close()

	got := make(chan Event, 1)
	ch := m.Subscribe("inserts", []TableSubscription{{
		Table:    TableRequests,
		OnInsert: func(ev Event) { got <- ev },
	}}, fastOptions())

	require.Eventually(t, func() bool { return ch.Status() == StatusSubscribed }, time.Second, time.Millisecond)

	bus.Publish(Event{Table: TableRequests, Type: EventInsert, New: "r1"})

	select {
	case ev := <-got:
		assert.Equal(t, "r1", ev.New)
	case <-time.After(time.Second):
		t.Fatal("insert was not delivered")
	}
}

func TestUpdateBurstCollapsesToLatest(t *testing.T) {
	bus := NewBus()
	defer bus.Close()
	m := NewManager(bus)
	defer m.Close()

	var mu sync.Mutex
	var delivered []Event
	opts := fastOptions()
	opts.DebounceWindow = 100 * time.Millisecond
	ch := m.Subscribe("updates", []TableSubscription{{
		Table: TableRequests,
		OnUpdate: func(ev Event) {
			mu.Lock()
			delivered = append(delivered, ev)
			mu.Unlock()
		},
	}}, opts)
	require.Eventually(t, func() bool { return ch.Status() == StatusSubscribed }, time.Second, time.Millisecond)

	for i := 1; i <= 5; i++ {
		bus.Publish(Event{Table: TableRequests, Type: EventUpdate, New: fmt.Sprintf("v%d", i)})
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(delivered) > 0
	}, time.Second, time.Millisecond)

	// window has passed; nothing else may arrive
	time.Sleep(150 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, delivered, 1, "burst collapses into one callback")
	assert.Equal(t, "v5", delivered[0].New, "latest payload wins")
}

func TestUpdatesAndDeletesDebounceIndependently(t *testing.T) {
	bus := NewBus()
	defer bus.Close()
	m := NewManager(bus)
	defer m.Close()

	updates := make(chan Event, 4)
	deletes := make(chan Event, 4)
	ch := m.Subscribe("mixed", []TableSubscription{{
		Table:    TableRequestItems,
		OnUpdate: func(ev Event) { updates <- ev },
		OnDelete: func(ev Event) { deletes <- ev },
	}}, fastOptions())
	require.Eventually(t, func() bool { return ch.Status() == StatusSubscribed }, time.Second, time.Millisecond)

	bus.Publish(Event{Table: TableRequestItems, Type: EventUpdate, New: "u"})
	bus.Publish(Event{Table: TableRequestItems, Type: EventDelete, Old: "d"})

	select {
	case ev := <-updates:
		assert.Equal(t, "u", ev.New)
	case <-time.After(time.Second):
		t.Fatal("update not delivered")
	}
	select {
	case ev := <-deletes:
		assert.Equal(t, "d", ev.Old)
	case <-time.After(time.Second):
		t.Fatal("delete not delivered")
	}
}

func TestFilterDropsBeforeDispatch(t *testing.T) {
	bus := NewBus()
	defer bus.Close()
	m := NewManager(bus)
	defer m.Close()

	got := make(chan Event, 2)
	ch := m.Subscribe("filtered", []TableSubscription{{
		Table:    TableRequests,
		Filter:   func(ev Event) bool { return ev.New == "keep" },
		OnInsert: func(ev Event) { got <- ev },
	}}, fastOptions())
	require.Eventually(t, func() bool { return ch.Status() == StatusSubscribed }, time.Second, time.Millisecond)

	bus.Publish(Event{Table: TableRequests, Type: EventInsert, New: "drop"})
	bus.Publish(Event{Table: TableRequests, Type: EventInsert, New: "keep"})

	select {
	case ev := <-got:
		assert.Equal(t, "keep", ev.New)
	case <-time.After(time.Second):
		t.Fatal("filtered insert not delivered")
	}
	select {
	case ev := <-got:
		t.Fatalf("filtered-out event delivered: %v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRetryExhaustionMarksChannelFailed(t *testing.T) {
	attempts := 0
	feed := &funcFeed{subscribe: func(string) (<-chan Event, func(), error) {
		attempts++
		return nil, nil, fmt.Errorf("feed unavailable")
	}}
	m := NewManager(feed)
	defer m.Close()

	errs := make(chan error, 4)
	opts := fastOptions()
	opts.OnError = func(_ string, err error) { errs <- err }

	ch := m.Subscribe("doomed", []TableSubscription{{Table: TableRequests}}, opts)

	require.Eventually(t, func() bool { return ch.Status() == StatusError }, time.Second, time.Millisecond)
	assert.Equal(t, 3, attempts, "one attempt per retry budget slot")

	select {
	case err := <-errs:
		assert.Contains(t, err.Error(), "failed after 3 attempts")
	case <-time.After(time.Second):
		t.Fatal("failure was not reported")
	}

	report := m.Health()
	require.Len(t, report.Channels, 1)
	assert.Equal(t, StatusError, report.Channels[0].Status)
	assert.EqualValues(t, 1, report.Channels[0].Errors)
	assert.EqualValues(t, 1, report.ErrorCount)
}

func TestSubscribeAttemptTimesOut(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	feed := &funcFeed{subscribe: func(string) (<-chan Event, func(), error) {
		<-block
		return nil, nil, fmt.Errorf("never reached")
	}}
	m := NewManager(feed)
	defer m.Close()

	opts := fastOptions()
	opts.SubscribeTimeout = 10 * time.Millisecond
	opts.Retry = backoff.Policy{MaxAttempts: 1, BaseDelay: time.Millisecond}

	ch := m.Subscribe("stuck", []TableSubscription{{Table: TableRequests}}, opts)
	require.Eventually(t, func() bool { return ch.Status() == StatusTimedOut }, time.Second, time.Millisecond)
}

func TestCallbackPanicIsRecovered(t *testing.T) {
	bus := NewBus()
	defer bus.Close()
	m := NewManager(bus)
	defer m.Close()

	errs := make(chan error, 1)
	got := make(chan Event, 1)
	opts := fastOptions()
	opts.OnError = func(_ string, err error) { errs <- err }

	first := true
	ch := m.Subscribe("panicky", []TableSubscription{{
		Table: TableRequests,
		OnInsert: func(ev Event) {
			if first {
				first = false
				panic("bad subscriber")
			}
			got <- ev
		},
	}}, opts)
	require.Eventually(t, func() bool { return ch.Status() == StatusSubscribed }, time.Second, time.Millisecond)

	bus.Publish(Event{Table: TableRequests, Type: EventInsert, New: "boom"})

	select {
	case err := <-errs:
		assert.Contains(t, err.Error(), "callback panic")
	case <-time.After(time.Second):
		t.Fatal("panic was not reported")
	}

	// the delivery loop survived
	bus.Publish(Event{Table: TableRequests, Type: EventInsert, New: "after"})
	select {
	case ev := <-got:
		assert.Equal(t, "after", ev.New)
	case <-time.After(time.Second):
		t.Fatal("channel stopped delivering after a callback panic")
	}
}

func TestSubscribeSameNameReturnsExistingChannel(t *testing.T) {
	bus := NewBus()
	defer bus.Close()
	m := NewManager(bus)
	defer m.Close()

	a := m.Subscribe("shared", []TableSubscription{{Table: TableRequests}}, fastOptions())
	b := m.Subscribe("shared", []TableSubscription{{Table: TableApprovals}}, fastOptions())
	assert.Same(t, a, b)

	report := m.Health()
	require.Len(t, report.Channels, 1)
	assert.Equal(t, []string{TableRequests}, report.Channels[0].Tables)
}

func TestCloseCancelsSubscribeFinishingDuringShutdown(t *testing.T) {
	release := make(chan struct{})
	cancelled := make(chan struct{})
	feed := &funcFeed{subscribe: func(string) (<-chan Event, func(), error) {
		<-release
		return make(chan Event), func() { close(cancelled) }, nil
	}}
	m := NewManager(feed)

	m.Subscribe("late-attach", []TableSubscription{{Table: TableRequests}}, fastOptions())

	// Tear down while the subscribe attempt is still in flight, then let it
	// complete; its feed subscription must not outlive the channel
	closed := make(chan struct{})
	go func() {
		m.Close()
		close(closed)
	}()
	time.Sleep(10 * time.Millisecond)
	close(release)

	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("subscription completed during shutdown was never cancelled")
	}
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return")
	}
}

func TestUnsubscribeCancelsPendingDebounce(t *testing.T) {
	bus := NewBus()
	defer bus.Close()
	m := NewManager(bus)
	defer m.Close()

	fired := make(chan struct{}, 1)
	opts := fastOptions()
	opts.DebounceWindow = 50 * time.Millisecond
	ch := m.Subscribe("short-lived", []TableSubscription{{
		Table:    TableRequests,
		OnUpdate: func(Event) { fired <- struct{}{} },
	}}, opts)
	require.Eventually(t, func() bool { return ch.Status() == StatusSubscribed }, time.Second, time.Millisecond)

	bus.Publish(Event{Table: TableRequests, Type: EventUpdate, New: "v"})
	m.Unsubscribe("short-lived")
	assert.Equal(t, StatusClosed, ch.Status())

	select {
	case <-fired:
		t.Fatal("debounced callback fired after unsubscribe")
	case <-time.After(100 * time.Millisecond):
	}

	assert.Empty(t, m.Health().Channels)
}
