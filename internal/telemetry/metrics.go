package telemetry

import (
	"context"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel"

	"go.opentelemetry.io/contrib/detectors/aws/ecs"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/google/uuid"
	"github.com/pinngrowth/seo-site-audit/config"
)

var meter metric.Meter

type MetricsProvider struct {
	KafkaConsumerMetrics *KafkaConsumerMetrics
	KafkaProducerMetrics *KafkaProducerMetrics
	AppMetrics           *AppMetrics
	Close                func()
}

type KafkaConsumerMetrics struct {
	SuccessfullyReadMsgCnt func(count int64)
	FailedReadMsgCnt       func(count int64)
}

type KafkaProducerMetrics struct {
	SuccessfullySendMsgCnt func(count int64)
	FailedSendMsgCnt       func(count int64)
}

type AppMetrics struct {
	CompletedCrawlsCounter func(count int64)
	FailedCrawlsCounter    func(count int64)
	CrawledPagesCounter    func(count int64)
	DuplicateJobsCounter   func(count int64)
}

func SetupMetrics(ctx context.Context, cfg *config.Config) *MetricsProvider {
	metricsProvider := new(MetricsProvider)
	var meterProvider *sdkmetric.MeterProvider

	if cfg.TelemetrySettings.Enabled {
		r, err := newResource(cfg)
		if err != nil {
			slog.Error("failed to get resource.", slog.String("err", err.Error()))
			os.Exit(1)
		}
		exporter, err := newMetricExporter(ctx, cfg.TelemetrySettings)
		if err != nil {
			slog.Error("failed to get metric exporter.", slog.String("err", err.Error()))
			os.Exit(1)
		}
		meterProvider = newMeterProvider(exporter, *r)
		otel.SetMeterProvider(meterProvider)
	}

	meter = otel.Meter(cfg.ServiceName)
	metricsProvider.Close = func() {
		if meterProvider != nil {
			err := meterProvider.Shutdown(ctx)
			if err != nil {
				slog.Error("failed to shutdown metrics provider.", slog.String("err", err.Error()))
			}
		}
	}

	// Set up kafka consumer metrics
	kafkaConsumerSuccessCounter, err := meter.Int64Counter("seo-audit.kafka.read.success",
		metric.WithDescription("The number of messages that the kafka consumer successfully processed"),
		metric.WithUnit("{messages}"))
	kafkaConsumerFailCounter, err := meter.Int64Counter("seo-audit.kafka.read.fail",
		metric.WithDescription("The number of messages that the kafka consumer could not process"),
		metric.WithUnit("{messages}"))
	if err != nil {
		slog.Error("failed to create telemetry counters for kafka consumer.", slog.String("err", err.Error()))
		os.Exit(1)
	}
	metricsProvider.KafkaConsumerMetrics = &KafkaConsumerMetrics{
		SuccessfullyReadMsgCnt: func(count int64) {
			if cfg.TelemetrySettings.Enabled {
				kafkaConsumerSuccessCounter.Add(ctx, count)
			}
		},
		FailedReadMsgCnt: func(count int64) {
			if cfg.TelemetrySettings.Enabled {
				kafkaConsumerFailCounter.Add(ctx, count)
			}
		},
	}

	// Set up kafka producer metrics
	kafkaProducerSuccessCounter, err := meter.Int64Counter("seo-audit.kafka.send.success",
		metric.WithDescription("The number of messages that the kafka producer successfully processed"),
		metric.WithUnit("{messages}"))
	kafkaProducerFailCounter, err := meter.Int64Counter("seo-audit.kafka.send.fail",
		metric.WithDescription("The number of messages that the kafka producer could not process"),
		metric.WithUnit("{messages}"))
	if err != nil {
		slog.Error("failed to create telemetry counters for kafka producer.", slog.String("err", err.Error()))
		os.Exit(1)
	}
	metricsProvider.KafkaProducerMetrics = &KafkaProducerMetrics{
		SuccessfullySendMsgCnt: func(count int64) {
			if cfg.TelemetrySettings.Enabled {
				kafkaProducerSuccessCounter.Add(ctx, count)
			}
		},
		FailedSendMsgCnt: func(count int64) {
			if cfg.TelemetrySettings.Enabled {
				kafkaProducerFailCounter.Add(ctx, count)
			}
		},
	}

	// Set up crawl worker metrics
	completedCounter, err := meter.Int64Counter("seo-audit.crawls.success",
		metric.WithDescription("The number of crawl jobs that finished and were persisted"),
		metric.WithUnit("{crawls}"))
	failedCounter, err := meter.Int64Counter("seo-audit.crawls.fail",
		metric.WithDescription("The number of crawl jobs that could not be processed. Sent to DLQ."),
		metric.WithUnit("{crawls}"))
	pagesCounter, err := meter.Int64Counter("seo-audit.pages.crawled",
		metric.WithDescription("The number of pages rendered and extracted across all crawl jobs"),
		metric.WithUnit("{pages}"))
	duplicateCounter, err := meter.Int64Counter("seo-audit.crawls.duplicate",
		metric.WithDescription("The number of jobs skipped because the same site and profile were"+
			" audited within the dedup window"),
		metric.WithUnit("{crawls}"))
	if err != nil {
		slog.Error("failed to create telemetry counters for worker.", slog.String("err", err.Error()))
		os.Exit(1)
	}
	metricsProvider.AppMetrics = &AppMetrics{
		CompletedCrawlsCounter: func(count int64) {
			if cfg.TelemetrySettings.Enabled {
				completedCounter.Add(ctx, count)
			}
		},
		FailedCrawlsCounter: func(count int64) {
			if cfg.TelemetrySettings.Enabled {
				failedCounter.Add(ctx, count)
			}
		},
		CrawledPagesCounter: func(count int64) {
			if cfg.TelemetrySettings.Enabled {
				pagesCounter.Add(ctx, count)
			}
		},
		DuplicateJobsCounter: func(count int64) {
			if cfg.TelemetrySettings.Enabled {
				duplicateCounter.Add(ctx, count)
			}
		},
	}

	// initialize metrics in DataDog for setup UI
	if cfg.TelemetrySettings.Enabled {
		metricsProvider.KafkaProducerMetrics.SuccessfullySendMsgCnt(1)
		metricsProvider.KafkaProducerMetrics.FailedSendMsgCnt(1)
		metricsProvider.KafkaConsumerMetrics.SuccessfullyReadMsgCnt(1)
		metricsProvider.KafkaConsumerMetrics.FailedReadMsgCnt(1)
		metricsProvider.AppMetrics.CompletedCrawlsCounter(1)
		metricsProvider.AppMetrics.FailedCrawlsCounter(1)
		metricsProvider.AppMetrics.CrawledPagesCounter(1)
		metricsProvider.AppMetrics.DuplicateJobsCounter(1)
	}

	return metricsProvider
}

func newResource(cfg *config.Config) (*resource.Resource, error) {
	ecsResourceDetector := ecs.NewResourceDetector()
	ecsResource, err := ecsResourceDetector.Detect(context.Background())
	if err != nil {
		slog.Error("ecs detection failed", slog.String("err", err.Error()))
	}
	mergedResource, err := resource.Merge(ecsResource, resource.Default())
	if err != nil {
		slog.Error("failed to merge resources", slog.String("err", err.Error()))
	}
	keyValue, found := ecsResource.Set().Value("container.id")
	var serviceId string
	if found {
		serviceId = keyValue.AsString()
	} else {
		serviceId = uuid.New().String()
	}
	return resource.Merge(mergedResource,
		resource.NewWithAttributes(semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.DeploymentEnvironment(cfg.Env),
			semconv.ServiceInstanceID(serviceId),
		))
}

func newMetricExporter(ctx context.Context, cfg *config.TelemetryConfig) (sdkmetric.Exporter, error) {
	return otlpmetrichttp.New(ctx,
		otlpmetrichttp.WithEndpoint(cfg.CollectorUrl),
		otlpmetrichttp.WithInsecure())
}

func newMeterProvider(meterExporter sdkmetric.Exporter, resource resource.Resource) *sdkmetric.MeterProvider {
	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(meterExporter)),
		sdkmetric.WithResource(&resource),
	)
	return meterProvider
}
