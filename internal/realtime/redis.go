package realtime

import (
	"context"
	"encoding/json"
	"log"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const changeChannelPrefix = "changes:"

// envelope wraps an event on the wire with the publishing instance id so a
// subscriber can drop its own echoes.
type envelope struct {
	Origin string `json:"origin"`
	Event  Event  `json:"event"`
}

// Bridge fans change events out to sibling server instances through Redis
// pub/sub. All methods are nil-safe on the client: without Redis configured
// the bridge degrades to a no-op and sessions on other instances rely on
// their own local bus only.
type Bridge struct {
	rdb    *redis.Client
	bus    *Bus
	origin string
}

// NewBridge wires the local bus to Redis. Events published on the bus are
// forwarded to the `changes:<table>` channel; events arriving from other
// instances are replayed into the local bus.
func NewBridge(rdb *redis.Client, bus *Bus) *Bridge {
	b := &Bridge{rdb: rdb, bus: bus, origin: uuid.NewString()}
	if rdb != nil {
		bus.AddSink(b.forward)
	}
	return b
}

// NewRedisClient parses addr (host:port or redis:// URL) and pings the
// server. Returns nil on any failure so callers can continue without the
// cross-instance feed.
func NewRedisClient(addr string) *redis.Client {
	if addr == "" {
		return nil
	}
	var opts *redis.Options
	if strings.Contains(addr, "://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			log.Printf("Redis connection warning: invalid REDIS_URL %q: %v (continuing without cross-instance feed)", addr, err)
			return nil
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: addr}
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("Redis connection warning: %v (continuing without cross-instance feed)", err)
		return nil
	}
	log.Println("Redis connected successfully")
	return client
}

func (b *Bridge) forward(ev Event) {
	payload, err := json.Marshal(envelope{Origin: b.origin, Event: ev})
	if err != nil {
		log.Printf("realtime: failed to marshal %s event: %v", ev.Table, err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := b.rdb.Publish(ctx, changeChannelPrefix+ev.Table, payload).Err(); err != nil {
		log.Printf("realtime: failed to publish %s event: %v", ev.Table, err)
	}
}

// Start subscribes to the `changes:*` pattern and replays events from other
// instances into the local bus until ctx ends.
func (b *Bridge) Start(ctx context.Context) error {
	if b.rdb == nil {
		return nil
	}
	sub := b.rdb.PSubscribe(ctx, changeChannelPrefix+"*")
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							log.Printf("PANIC in realtime bridge: %v\n%s", r, debug.Stack())
						}
					}()
					b.replay(msg.Payload)
				}()
			}
		}
	}()

	return nil
}

func (b *Bridge) replay(payload string) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		log.Printf("realtime: dropping malformed bridge payload: %v", err)
		return
	}
	if env.Origin == b.origin {
		return
	}
	b.bus.PublishLocal(env.Event)
}
