package consumers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/goccy/go-json"

	"github.com/spacesedan/emotiflow/internal/classifier"
	"github.com/spacesedan/emotiflow/internal/clients/kafka_client"
	"github.com/spacesedan/emotiflow/internal/models"
)

const UNHEALTHY_BACKOFF = 5 * time.Second

type Classifier interface {
	ClassifyMany(ctx context.Context, sentences []string, credential string) ([]models.ClassificationResult, error)
}

type Publisher interface {
	Publish(ctx context.Context, topic, key string, payload any) error
}

type MessageIterator interface {
	Next() (*kafka.Message, error)
	Rewind(msg *kafka.Message) error
}

type Committer interface {
	Commit(msg *kafka.Message) error
}

type ClassificationConsumer struct {
	classifier        Classifier
	publisher         Publisher
	resultTopic       string
	defaultCredential string
	healthy           *atomic.Bool
	retryDelay        time.Duration
}

type Options struct {
	ResultTopic       string
	DefaultCredential string
	// Healthy, when set, pauses consumption while it reads false.
	Healthy *atomic.Bool
}

func NewClassificationConsumer(c Classifier, p Publisher, opts Options) *ClassificationConsumer {
	topic := opts.ResultTopic
	if topic == "" {
		topic = kafka_client.KAFKA_TOPIC_EMOTION_RESULTS
	}
	return &ClassificationConsumer{
		classifier:        c,
		publisher:         p,
		resultTopic:       topic,
		defaultCredential: opts.DefaultCredential,
		healthy:           opts.Healthy,
		retryDelay:        kafka_client.RETRY_DELAY,
	}
}

// Start consumes requests until the context is cancelled.
func (cc *ClassificationConsumer) Start(ctx context.Context, consumer *kafka.Consumer) {
	cc.Run(ctx,
		kafka_client.NewKafkaMessageIterator(ctx, consumer),
		kafka_client.NewCommitHandler(ctx, consumer))
}

func (cc *ClassificationConsumer) Run(ctx context.Context, iterator MessageIterator, committer Committer) {
	slog.Info("[ClassificationConsumer] Listening for messages...")

	for {
		select {
		case <-ctx.Done():
			slog.Warn("[ClassificationConsumer] Consumer shutting down...")
			return
		default:
		}

		if cc.healthy != nil && !cc.healthy.Load() {
			slog.Warn("[ClassificationConsumer] Model backend unhealthy, pausing",
				slog.Duration("backoff", UNHEALTHY_BACKOFF))
			select {
			case <-ctx.Done():
			case <-time.After(UNHEALTHY_BACKOFF):
			}
			continue
		}

		msg, err := iterator.Next()
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			slog.Error("[ClassificationConsumer] Kafka Consumer Error",
				slog.String("error", err.Error()))
			continue
		}

		if err := cc.HandleMessage(ctx, msg); err != nil {
			slog.Error("[ClassificationConsumer] Failed to publish response, rewinding to retry",
				slog.String("offset", msg.TopicPartition.Offset.String()),
				slog.String("error", err.Error()))

			// without the rewind a later commit on this partition would skip msg
			if err := iterator.Rewind(msg); err != nil {
				slog.Error("[ClassificationConsumer] Failed to rewind, stopping consumer",
					slog.String("error", err.Error()))
				return
			}

			select {
			case <-ctx.Done():
			case <-time.After(cc.retryDelay):
			}
			continue
		}

		if err := committer.Commit(msg); err != nil {
			slog.Warn("[ClassificationConsumer] Failed to commit offset",
				slog.String("error", err.Error()))
		}
	}
}

// HandleMessage classifies one request message and publishes exactly one
// response for it, keyed by request id.
func (cc *ClassificationConsumer) HandleMessage(ctx context.Context, msg *kafka.Message) error {
	resp := cc.handleRequest(ctx, msg.Value, cc.credential(msg))

	key := resp.RequestID
	if key == "" {
		key = string(msg.Key)
	}

	var err error
	for i := 0; i < 3; i++ {
		err = cc.publisher.Publish(ctx, cc.resultTopic, key, resp)
		if err == nil {
			return nil
		}
		slog.Warn("[ClassificationConsumer] Publishing failed",
			slog.Int("attempt", i+1),
			slog.String("request_id", resp.RequestID),
			slog.String("error", err.Error()))
		if ctx.Err() != nil {
			break
		}
	}
	return fmt.Errorf("publish response %q: %w", resp.RequestID, err)
}

func (cc *ClassificationConsumer) handleRequest(ctx context.Context, value []byte, credential string) models.ClassificationResponse {
	var req models.ClassificationRequest
	if err := json.Unmarshal(value, &req); err != nil {
		slog.Warn("[ClassificationConsumer] Failed to deserialize request",
			slog.String("error", err.Error()))
		return failed(req.RequestID, fmt.Errorf("%w: malformed request: %v", classifier.ErrInvalidInput, err))
	}

	start := time.Now()
	results, err := cc.classifier.ClassifyMany(ctx, req.Sentences, credential)
	if err != nil {
		slog.Error("[ClassificationConsumer] Classification failed",
			slog.String("request_id", req.RequestID),
			slog.String("kind", classifier.Kind(err)),
			slog.String("error", err.Error()))
		return failed(req.RequestID, err)
	}

	slog.Info("[ClassificationConsumer] Classified request",
		slog.String("request_id", req.RequestID),
		slog.Int("sentences", len(results)),
		slog.Duration("elapsed", time.Since(start)))

	return models.ClassificationResponse{
		RequestID: req.RequestID,
		Results:   results,
	}
}

func (cc *ClassificationConsumer) credential(msg *kafka.Message) string {
	for _, h := range msg.Headers {
		if strings.EqualFold(h.Key, kafka_client.HEADER_API_KEY) && len(h.Value) > 0 {
			return string(h.Value)
		}
	}
	return cc.defaultCredential
}

func failed(requestID string, err error) models.ClassificationResponse {
	return models.ClassificationResponse{
		RequestID: requestID,
		Error:     err.Error(),
		ErrorKind: classifier.Kind(err),
	}
}
