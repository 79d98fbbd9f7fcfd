package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spacesedan/emotiflow/internal/bootstrap"
	"github.com/spacesedan/emotiflow/internal/clients/kafka_client"
	"github.com/spacesedan/emotiflow/internal/consumers"
	"github.com/spacesedan/emotiflow/internal/logging"
	"github.com/spacesedan/emotiflow/internal/monitoring"
)

func main() {
	cfg, err := bootstrap.LoadConfig(os.Getenv("APP_ENV"))
	if err != nil {
		slog.Error("[Main] Failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logging.InitLogger(cfg.LogLevel)

	stack, err := bootstrap.NewStack(cfg)
	if err != nil {
		slog.Error("[Main] Failed to build classifier", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	kafkaCfg := kafka_client.KafkaConfig{
		Broker:       cfg.KafkaBroker,
		GroupID:      cfg.KafkaGroupID,
		RequestTopic: cfg.KafkaRequestTopic,
		ResultTopic:  cfg.KafkaResultTopic,
	}

	var producer *kafka_client.Producer
	for {
		producer, err = kafka_client.NewProducer(kafkaCfg)
		if err == nil {
			break
		}
		slog.Warn("[Main] Kafka init failed, retrying...", slog.String("error", err.Error()))
		select {
		case <-ctx.Done():
			return
		case <-time.After(5 * time.Second):
		}
	}
	defer producer.Close()

	consumer, err := kafka_client.NewConsumer(kafkaCfg)
	if err != nil {
		slog.Error("[Main] Failed to start consumer", slog.String("error", err.Error()))
		return
	}
	defer consumer.Close()

	healthy := &atomic.Bool{}
	healthy.Store(true)
	go monitoring.MonitorBreakerHealth(ctx, stack.Breaker, healthy, monitoring.HEALTHCHECK_INTERVAL)

	consumers.NewClassificationConsumer(stack.Classifier, producer, consumers.Options{
		ResultTopic:       cfg.KafkaResultTopic,
		DefaultCredential: cfg.DefaultCredential(),
		Healthy:           healthy,
	}).Start(ctx, consumer)
}
