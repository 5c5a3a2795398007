// Package history publishes one record per applied game action to Redis so
// operators can replay or audit a table. Publishing is fire-and-forget off
// the table's critical path; a nil client disables history entirely.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	stream         = "table:actions"
	publishTimeout = 2 * time.Second
	queueSize      = 1024
)

// Record is one applied action.
type Record struct {
	TableID   string            `json:"tableId"`
	Index     int               `json:"index"`
	Actor     string            `json:"actor"`
	Key       string            `json:"key"`
	Params    map[string]string `json:"params,omitempty"`
	Timestamp int64             `json:"timestamp"`
}

// Publisher appends records to a Redis stream. One worker goroutine drains
// the queue so stream entries land in the same order the table emitted them.
type Publisher struct {
	rdb   *redis.Client
	log   *logrus.Entry
	queue chan Record
}

// NewPublisher wraps a Redis client; rdb may be nil to disable history.
func NewPublisher(rdb *redis.Client, log *logrus.Logger) *Publisher {
	p := &Publisher{rdb: rdb, log: log.WithField("component", "history")}
	if rdb != nil {
		p.queue = make(chan Record, queueSize)
		go p.drain()
	}
	return p
}

// Record satisfies table.Recorder. The enqueue never blocks so a slow Redis
// cannot stall a table; records that do not fit are dropped loudly.
func (p *Publisher) Record(tableID string, index int, actor, key string, params map[string]string) {
	if p == nil || p.rdb == nil {
		return
	}
	rec := Record{
		TableID:   tableID,
		Index:     index,
		Actor:     actor,
		Key:       key,
		Params:    params,
		Timestamp: time.Now().UnixMilli(),
	}
	select {
	case p.queue <- rec:
	default:
		p.log.WithFields(logrus.Fields{
			"table": rec.TableID,
			"index": rec.Index,
		}).Error("history queue full, record dropped")
	}
}

func (p *Publisher) drain() {
	for rec := range p.queue {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		err := p.publish(ctx, rec)
		cancel()
		if err != nil {
			p.log.WithError(err).WithFields(logrus.Fields{
				"table": rec.TableID,
				"index": rec.Index,
			}).Error("action publish failed")
		}
	}
}

func (p *Publisher) publish(ctx context.Context, rec Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("history: marshal record: %w", err)
	}
	return p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{
			"table":  rec.TableID,
			"index":  rec.Index,
			"record": payload,
		},
	}).Err()
}
