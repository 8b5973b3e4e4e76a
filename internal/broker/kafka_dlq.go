package broker

import (
	"context"
	"log/slog"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pinngrowth/seo-site-audit/config"
	"github.com/segmentio/kafka-go"
)

// KafkaDLQClient publishes jobs that could not be processed so they can be
// inspected and replayed.
type KafkaDLQClient struct {
	serviceName string
	kafkaWriter *kafka.Writer
}

type deadLetter struct {
	Service   string    `json:"service"`
	Payload   string    `json:"payload"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

func NewKafkaDLQ(serviceName string, cfg *config.ProducerConfig) *KafkaDLQClient {
	return &KafkaDLQClient{
		serviceName: serviceName,
		kafkaWriter: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Addr...),
			Topic:        cfg.DeadLetterTopicName,
			Balancer:     &kafka.Hash{},
			MaxAttempts:  cfg.MaxAttempts,
			WriteTimeout: cfg.WriteTimeout,
			RequiredAcks: kafka.RequireOne,
		},
	}
}

func (dlq *KafkaDLQClient) SendJobToDLQ(payload string, cause error) {
	letter := deadLetter{
		Service:   dlq.serviceName,
		Payload:   payload,
		Error:     cause.Error(),
		Timestamp: time.Now().UTC(),
	}
	body, err := jsoniter.Marshal(letter)
	if err != nil {
		slog.Error("failed to marshal dead letter.", slog.String("err", err.Error()))
		return
	}
	err = dlq.kafkaWriter.WriteMessages(context.Background(), kafka.Message{Value: body})
	if err != nil {
		slog.Error("failed to send message to DLQ.", slog.String("err", err.Error()))
		return
	}
	slog.Debug("message sent to DLQ.")
}

func (dlq *KafkaDLQClient) Close() {
	if err := dlq.kafkaWriter.Close(); err != nil {
		slog.Error("failed to close DLQ writer.", slog.String("err", err.Error()))
	}
}
