package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaLog is a Log backed by a single-partition Kafka topic. The single
// partition is what makes broker offsets a total order, so EnsureTopic always
// creates the topic with exactly one partition.
type KafkaLog struct {
	producer     *kgo.Client
	brokers      []string
	clientID     string
	topic        string
	fetchMaxWait time.Duration
	logger       *slog.Logger
}

// KafkaOption configures a KafkaLog.
type KafkaOption func(*KafkaLog)

// WithLogger sets a logger for subscription errors.
func WithLogger(logger *slog.Logger) KafkaOption {
	return func(l *KafkaLog) {
		l.logger = logger
	}
}

// WithFetchMaxWait bounds how long a poll waits for new records.
func WithFetchMaxWait(d time.Duration) KafkaOption {
	return func(l *KafkaLog) {
		l.fetchMaxWait = d
	}
}

// NewKafkaLog connects a producer for the given topic and creates the topic
// if it does not exist yet.
func NewKafkaLog(brokers []string, clientID, topic string, opts ...KafkaOption) (*KafkaLog, error) {
	l := &KafkaLog{
		brokers:      brokers,
		clientID:     clientID,
		topic:        topic,
		fetchMaxWait: 2 * time.Second,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}

	producer, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ClientID(clientID),
		kgo.RecordPartitioner(kgo.ManualPartitioner()),
		kgo.ProducerLinger(0),
	)
	if err != nil {
		return nil, fmt.Errorf("connect kafka producer: %w", err)
	}
	l.producer = producer

	if err := l.ensureTopic(context.Background()); err != nil {
		producer.Close()
		return nil, err
	}
	return l, nil
}

func (l *KafkaLog) ensureTopic(ctx context.Context) error {
	adm := kadm.NewClient(l.producer)
	resp, err := adm.CreateTopics(ctx, 1, 1, nil, l.topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", l.topic, err)
	}
	r, ok := resp[l.topic]
	if !ok || r.Err == nil {
		return nil
	}
	if !errors.Is(r.Err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", l.topic, r.Err)
	}

	// The topic predates this process. Offsets are only a total order over
	// exactly one partition, so refuse to run against a wider topic.
	details, err := adm.ListTopics(ctx, l.topic)
	if err != nil {
		return fmt.Errorf("describe topic %s: %w", l.topic, err)
	}
	d, ok := details[l.topic]
	if !ok {
		return fmt.Errorf("describe topic %s: missing from metadata", l.topic)
	}
	if d.Err != nil {
		return fmt.Errorf("describe topic %s: %w", l.topic, d.Err)
	}
	if n := len(d.Partitions); n != 1 {
		return fmt.Errorf("topic %s has %d partitions, need exactly 1", l.topic, n)
	}
	return nil
}

// Append produces the record to partition zero and blocks until the broker
// acknowledges it. The broker offset is the entry's position.
func (l *KafkaLog) Append(ctx context.Context, key, value []byte) (Position, error) {
	rec := &kgo.Record{
		Topic:     l.topic,
		Partition: 0,
		Key:       key,
		Value:     value,
	}
	res := l.producer.ProduceSync(ctx, rec)
	confirmed, err := res.First()
	if err != nil {
		return 0, fmt.Errorf("append to %s: %w", l.topic, err)
	}
	return Position(confirmed.Offset), nil
}

// Subscribe consumes partition zero from the given position with a dedicated
// client, dispatching entries to the handler in offset order.
func (l *KafkaLog) Subscribe(ctx context.Context, from Position, h Handler) error {
	offset := kgo.NewOffset().AtStart()
	if from > PositionStart {
		offset = kgo.NewOffset().At(int64(from))
	}

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(l.brokers...),
		kgo.ClientID(l.clientID),
		kgo.FetchMaxWait(l.fetchMaxWait),
		kgo.ConsumePartitions(map[string]map[int32]kgo.Offset{
			l.topic: {0: offset},
		}),
	)
	if err != nil {
		return fmt.Errorf("connect kafka consumer: %w", err)
	}
	defer consumer.Close()

	for {
		fetches := consumer.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return ctx.Err()
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, fetchErr := range fetches.Errors() {
			if errors.Is(fetchErr.Err, context.Canceled) || errors.Is(fetchErr.Err, context.DeadlineExceeded) {
				return fetchErr.Err
			}
			l.logger.ErrorContext(ctx, "kafka fetch error",
				"topic", fetchErr.Topic,
				"partition", fetchErr.Partition,
				"error", fetchErr.Err,
			)
		}

		iter := fetches.RecordIter()
		for !iter.Done() {
			rec := iter.Next()
			entry := Entry{
				Position:  Position(rec.Offset),
				Key:       rec.Key,
				Value:     rec.Value,
				Timestamp: rec.Timestamp,
			}
			if err := h.Handle(ctx, entry); err != nil {
				return err
			}
		}
	}
}

// Ping verifies broker reachability. Used by health checks.
func (l *KafkaLog) Ping(ctx context.Context) error {
	return l.producer.Ping(ctx)
}

// Close releases the producer connection.
func (l *KafkaLog) Close() {
	l.producer.Close()
}
