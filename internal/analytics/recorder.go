// Package analytics records fire-and-forget usage events.
//
// Callers hand events to the Recorder explicitly; a single background worker
// publishes them to NATS and bumps Redis counters. Enqueueing never blocks a
// response: a full queue drops the event and increments a metric.
package analytics

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/37-Inc/goose.gifts-sub000/pkg/logger"
	"github.com/37-Inc/goose.gifts-sub000/pkg/metrics"
)

const (
	subjectPrefix = "gifts.events"
	queueSize     = 256
	recordTimeout = 5 * time.Second
)

// Event types recorded by the pipeline and handlers.
const (
	EventBundleGenerated = "bundle_generated"
	EventBundleViewed    = "bundle_viewed"
)

// Event is one analytics fact.
type Event struct {
	Type       string    `json:"type"`
	Slug       string    `json:"slug,omitempty"`
	Provider   string    `json:"provider,omitempty"`
	IdeaCount  int       `json:"idea_count,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Config holds the optional analytics backends. Empty values disable the
// corresponding backend; with both empty the recorder is a no-op.
type Config struct {
	NATSURL   string
	NATSToken string
	RedisAddr string
}

// Recorder accepts events and records them in the background.
type Recorder struct {
	mu     sync.Mutex
	closed bool
	events chan Event
	done   chan struct{}
	nc     *nats.Conn
	rdb    *redis.Client
	logger *logger.Logger
}

// New connects the configured backends and starts the worker. Connection
// failure to a backend disables that backend with a warning rather than
// failing startup.
func New(cfg Config, log *logger.Logger) *Recorder {
	r := &Recorder{
		events: make(chan Event, queueSize),
		done:   make(chan struct{}),
		logger: log,
	}

	if cfg.NATSURL != "" {
		opts := []nats.Option{
			nats.MaxReconnects(-1),
			nats.ReconnectWait(2 * time.Second),
			nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
				log.Warn("NATS disconnected", zap.Error(err))
			}),
			nats.ReconnectHandler(func(nc *nats.Conn) {
				log.Info("NATS reconnected")
			}),
		}
		if cfg.NATSToken != "" {
			opts = append(opts, nats.Token(cfg.NATSToken))
		}
		nc, err := nats.Connect(cfg.NATSURL, opts...)
		if err != nil {
			log.Warn("NATS connect failed, event publishing disabled", zap.Error(err))
		} else {
			r.nc = nc
		}
	}

	if cfg.RedisAddr != "" {
		r.rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	}

	go r.run()
	return r
}

// Record enqueues an event without blocking. Events arriving after Close, as
// a late handler racing shutdown can produce, are counted as dropped.
func (r *Recorder) Record(e Event) {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		metrics.AnalyticsDroppedTotal.Inc()
		return
	}
	select {
	case r.events <- e:
		metrics.AnalyticsQueueDepth.Set(float64(len(r.events)))
	default:
		metrics.AnalyticsDroppedTotal.Inc()
	}
}

// Close drains the queue and releases connections. Safe to call more than
// once; later Record calls become no-ops.
func (r *Recorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.events)
	r.mu.Unlock()

	<-r.done
	if r.nc != nil {
		r.nc.Close()
	}
	if r.rdb != nil {
		_ = r.rdb.Close()
	}
}

func (r *Recorder) run() {
	defer close(r.done)
	for e := range r.events {
		metrics.AnalyticsQueueDepth.Set(float64(len(r.events)))
		r.record(e)
	}
}

func (r *Recorder) record(e Event) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	if r.nc != nil {
		data, err := json.Marshal(e)
		if err == nil {
			if err := r.nc.Publish(subjectPrefix+"."+e.Type, data); err != nil {
				r.logger.Warn("event publish failed", zap.String("type", e.Type), zap.Error(err))
			}
		}
	}

	if r.rdb != nil {
		var key string
		switch e.Type {
		case EventBundleViewed:
			key = "bundle:views:" + e.Slug
		case EventBundleGenerated:
			key = "stats:bundles_generated"
		default:
			return
		}
		if err := r.rdb.Incr(ctx, key).Err(); err != nil {
			r.logger.Warn("counter increment failed", zap.String("key", key), zap.Error(err))
		}
	}
}
