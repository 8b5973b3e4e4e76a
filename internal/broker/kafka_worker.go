package broker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pinngrowth/seo-site-audit/config"
	"github.com/pinngrowth/seo-site-audit/internal/model"
	"github.com/pinngrowth/seo-site-audit/internal/telemetry"
	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/compress/lz4"
)

type KafkaProducerClient struct {
	completionChan <-chan *model.CrawlCompleted
	kafkaWriter    *kafka.Writer
	metrics        *telemetry.KafkaProducerMetrics
	cfg            *config.ProducerConfig
	wg             *sync.WaitGroup
}

func NewKafkaProducer(completionChan <-chan *model.CrawlCompleted, metrics *telemetry.KafkaProducerMetrics,
	cfg *config.ProducerConfig, wg *sync.WaitGroup) *KafkaProducerClient {
	kafkaWriter := kafka.Writer{
		Addr:         kafka.TCP(cfg.Addr...),
		Topic:        cfg.WriteTopicName,
		Balancer:     &kafka.Hash{},
		MaxAttempts:  cfg.MaxAttempts,
		BatchSize:    cfg.BatchSize,
		BatchTimeout: 100 * time.Millisecond,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: kafka.RequiredAcks(cfg.RequiredAsks),
		Async:        cfg.Async,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				slog.Error("failed to send messages to kafka.", slog.String("err", err.Error()))
			}
		},
		Compression: kafka.Compression(new(lz4.Codec).Code()),
	}
	return &KafkaProducerClient{
		completionChan: completionChan,
		kafkaWriter:    &kafkaWriter,
		metrics:        metrics,
		cfg:            cfg,
		wg:             wg,
	}
}

func (p *KafkaProducerClient) Run() {
	slog.Info("starting kafka producer...", slog.String("topic", p.cfg.WriteTopicName))
	defer func() {
		err := p.kafkaWriter.Close()
		if err != nil {
			slog.Error("failed to close kafka writer.", slog.String("err", err.Error()))
		}
	}()
	defer p.wg.Done()

	batch := make([]kafka.Message, 0, p.cfg.BatchSize)
	batchTicker := time.NewTicker(p.cfg.BatchTimeout)
	for {
		select {
		case <-batchTicker.C:
			if len(batch) == 0 {
				continue
			}
			p.writeMessage(batch)
			batch = batch[:0]
		case event, ok := <-p.completionChan:
			if !ok {
				if len(batch) > 0 {
					p.writeMessage(batch)
				}
				slog.Info("stopping kafka writer.")
				return
			}
			body, err := jsoniter.Marshal(event)
			if err != nil {
				slog.Error("marshaling error.", slog.String("err", err.Error()), slog.Any("event", event))
				p.metrics.FailedSendMsgCnt(1)
				continue
			}
			batch = append(batch, kafka.Message{
				Key:   []byte(event.CrawlID),
				Value: body,
			})
		default:
			if len(batch) >= p.cfg.BatchSize {
				p.writeMessage(batch)
				batch = batch[:0]
				batchTicker.Reset(p.cfg.BatchTimeout)
			}
		}
	}
}

func (p *KafkaProducerClient) writeMessage(batch []kafka.Message) {
	err := p.kafkaWriter.WriteMessages(context.Background(), batch...)
	if err != nil {
		slog.Error("failed to send messages to kafka.", slog.String("err", err.Error()))
		p.metrics.FailedSendMsgCnt(int64(len(batch)))
		return
	}
	p.metrics.SuccessfullySendMsgCnt(int64(len(batch)))
	slog.Debug("successfully sent messages to kafka.", slog.Int("batch length", len(batch)))
}

type KafkaConsumerClient struct {
	jobChan chan<- []byte
	metrics *telemetry.KafkaConsumerMetrics
	cfg     *config.ConsumerConfig
	wg      *sync.WaitGroup
}

func NewKafkaConsumer(jobChan chan<- []byte, metrics *telemetry.KafkaConsumerMetrics, cfg *config.ConsumerConfig,
	wg *sync.WaitGroup) *KafkaConsumerClient {
	return &KafkaConsumerClient{
		jobChan: jobChan,
		metrics: metrics,
		cfg:     cfg,
		wg:      wg,
	}
}

func (c *KafkaConsumerClient) Run(ctx context.Context) {
	slog.Info("starting kafka consumer.", slog.String("topic", c.cfg.ReadTopicName))
	defer c.wg.Done()

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:          c.cfg.Brokers,
		Topic:            c.cfg.ReadTopicName,
		GroupID:          c.cfg.GroupID,
		MaxWait:          c.cfg.MaxWait,
		ReadBatchTimeout: c.cfg.ReadBatchTimeout,
		QueueCapacity:    c.cfg.QueueCapacity,
		MaxBytes:         c.cfg.MaxBytes,
		CommitInterval:   c.cfg.CommitInterval,
	})

	for {
		select {
		case <-ctx.Done():
			slog.Info("stopping kafka reader.")
			err := r.Close()
			if err != nil {
				slog.Error("failed to close kafka reader.", slog.String("err", err.Error()))
			}
			close(c.jobChan)
			slog.Info("close jobChan.")
			return
		default:
			m, err := r.FetchMessage(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					slog.Info("kafka reader stopped.")
					continue
				}
				slog.Error("failed to fetch message from kafka.", slog.String("err", err.Error()))
				c.metrics.FailedReadMsgCnt(1)
				continue
			}
			err = r.CommitMessages(context.Background(), m)
			if err != nil {
				slog.Error("failed to commit messages.", slog.String("err", err.Error()))
				c.metrics.FailedReadMsgCnt(1)
				continue
			}
			slog.Debug("successfully read messages from kafka.")

			c.jobChan <- m.Value
			c.metrics.SuccessfullyReadMsgCnt(1)
		}
	}
}
