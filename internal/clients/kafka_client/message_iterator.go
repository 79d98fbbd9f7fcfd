package kafka_client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"
)

// MessageReader is satisfied by *kafka.Consumer.
type MessageReader interface {
	ReadMessage(timeout time.Duration) (*kafka.Message, error)
	Seek(partition kafka.TopicPartition, timeoutMs int) error
}

type KafkaMessageIterator struct {
	reader     MessageReader
	ctx        context.Context
	retryDelay time.Duration
}

func NewKafkaMessageIterator(ctx context.Context, reader MessageReader) *KafkaMessageIterator {
	return &KafkaMessageIterator{
		reader:     reader,
		ctx:        ctx,
		retryDelay: RETRY_DELAY,
	}
}

// Next blocks until a message arrives or the context is cancelled. Poll
// timeouts are not counted against the retry budget.
func (it *KafkaMessageIterator) Next() (*kafka.Message, error) {
	if it.reader == nil {
		return nil, errors.New("[KafkaIterator] Kafka consumer has not been initialized")
	}

	failures := 0
	for failures < MAX_RETRIES {
		select {
		case <-it.ctx.Done():
			slog.Warn("[KafkaIterator] Context cancelled, stopping iterator")
			return nil, it.ctx.Err()
		default:
		}

		msg, err := it.reader.ReadMessage(POLL_TIMEOUT)
		if err == nil {
			return msg, nil
		}

		var kafkaErr kafka.Error
		if errors.As(err, &kafkaErr) {
			switch kafkaErr.Code() {
			case kafka.ErrTimedOut:
				continue
			case kafka.ErrAllBrokersDown:
				slog.Error("[KafkaIterator] All Kafka brokers are down. Aborting")
				return nil, err
			}
		}

		failures++
		slog.Warn("[KafkaIterator] Failed to read message, retrying...",
			slog.Int("attempt", failures),
			slog.Int("max_retries", MAX_RETRIES),
			slog.String("error", err.Error()))

		if !sleep(it.ctx, it.retryDelay) {
			return nil, it.ctx.Err()
		}
	}
	return nil, fmt.Errorf("[KafkaIterator] Failed to read message after %d retries", MAX_RETRIES)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Rewind moves the partition of msg back to msg's offset, so the next reads
// from that partition start with msg again. Messages already fetched past it
// are discarded by the consumer.
func (it *KafkaMessageIterator) Rewind(msg *kafka.Message) error {
	if it.reader == nil {
		return errors.New("[KafkaIterator] Kafka consumer has not been initialized")
	}

	tp := msg.TopicPartition
	tp.Error = nil
	if err := it.reader.Seek(tp, SEEK_TIMEOUT_MS); err != nil {
		return fmt.Errorf("[KafkaIterator] Failed to seek partition %d to offset %s: %w",
			tp.Partition, tp.Offset.String(), err)
	}

	slog.Warn("[KafkaIterator] Rewound partition",
		slog.String("partition", fmt.Sprintf("%d", tp.Partition)),
		slog.String("offset", tp.Offset.String()))
	return nil
}
