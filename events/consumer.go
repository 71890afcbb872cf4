package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Sink appends events to the log. Implementations assign Seq and must
// ignore events whose ID they already hold.
type Sink interface {
	AppendEvents(ctx context.Context, evs []Event) error
}

// ConsumerConfig configures a Kafka event consumer.
type ConsumerConfig struct {
	Brokers []string
	Topic   string
	Group   string
}

// Retry waits between failed appends of one batch.
const (
	DefaultRetryBackoff = 500 * time.Millisecond
	MaxRetryBackoff     = 30 * time.Second
)

// Consumer ingests events from a Kafka topic into a Sink.
type Consumer struct {
	client  *kgo.Client
	sink    Sink
	now     func() time.Time
	backoff time.Duration

	// OnIngest, when set, is told how many events each batch appended.
	OnIngest func(n int)
}

// NewConsumer connects to the brokers and joins the consumer group.
func NewConsumer(cfg ConsumerConfig, sink Sink) (*Consumer, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return nil, errors.New("event consumer needs brokers and a topic")
	}
	group := cfg.Group
	if group == "" {
		group = "doiregistry-events"
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(group),
		kgo.ConsumeTopics(cfg.Topic),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		return nil, fmt.Errorf("creating kafka client: %w", err)
	}
	return &Consumer{client: client, sink: sink, now: time.Now, backoff: DefaultRetryBackoff}, nil
}

// Run polls until ctx is cancelled. A batch whose append fails is retried
// until it succeeds, and offsets are committed only after that, so no polled
// record is skipped.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.client.Close()
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return ctx.Err()
		}
		for _, fe := range fetches.Errors() {
			slog.Error("kafka fetch failed", "topic", fe.Topic, "partition", fe.Partition, "err", fe.Err)
		}

		var records []*kgo.Record
		fetches.EachRecord(func(r *kgo.Record) {
			records = append(records, r)
		})
		if len(records) == 0 {
			continue
		}
		n, err := appendWithRetry(ctx, c.sink, decodeRecords(records, c.now()), c.backoff)
		if err != nil {
			return err
		}
		if c.OnIngest != nil {
			c.OnIngest(n)
		}
		if err := c.client.CommitUncommittedOffsets(ctx); err != nil {
			slog.Warn("committing offsets failed", "err", err)
		}
	}
}

// Ingest decodes records as JSON events, applies defaults and derived
// fields, and appends them. Records that cannot be decoded are logged and
// skipped. It returns the number of events handed to the sink.
func Ingest(ctx context.Context, sink Sink, records []*kgo.Record, now time.Time) (int, error) {
	evs := decodeRecords(records, now)
	if len(evs) == 0 {
		return 0, nil
	}
	if err := sink.AppendEvents(ctx, evs); err != nil {
		return 0, err
	}
	return len(evs), nil
}

func decodeRecords(records []*kgo.Record, now time.Time) []Event {
	evs := make([]Event, 0, len(records))
	for _, r := range records {
		e, err := DecodeEvent(r.Value, now)
		if err != nil {
			slog.Warn("skipping malformed event", "topic", r.Topic, "offset", r.Offset, "err", err)
			continue
		}
		evs = append(evs, e)
	}
	return evs
}

// appendWithRetry appends evs, retrying with a doubling backoff capped at
// MaxRetryBackoff. It gives up only when ctx is done. Retries resend the
// same event IDs, which the sink ignores when they were already stored.
func appendWithRetry(ctx context.Context, sink Sink, evs []Event, backoff time.Duration) (int, error) {
	if len(evs) == 0 {
		return 0, nil
	}
	for attempt := 1; ; attempt++ {
		err := sink.AppendEvents(ctx, evs)
		if err == nil {
			return len(evs), nil
		}
		slog.Error("appending events failed", "count", len(evs), "attempt", attempt, "retry_in", backoff, "err", err)
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, MaxRetryBackoff)
	}
}

// DecodeEvent parses one JSON event and prepares it for the log.
func DecodeEvent(data []byte, now time.Time) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, fmt.Errorf("decoding event: %w", err)
	}
	if e.SubjID == "" {
		return Event{}, errors.New("event has no subjId")
	}
	e.Seq = 0
	e.ApplyDefaults(now)
	e.Derive()
	return e, nil
}
