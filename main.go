package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	_ "net/http/pprof"

	jsoniter "github.com/json-iterator/go"
	_ "github.com/lib/pq"
	"github.com/lmittmann/tint"
	gocache "github.com/patrickmn/go-cache"
	"github.com/pinngrowth/seo-site-audit/config"
	"github.com/pinngrowth/seo-site-audit/internal/aws_s3"
	"github.com/pinngrowth/seo-site-audit/internal/broker"
	cacheClient "github.com/pinngrowth/seo-site-audit/internal/cache"
	"github.com/pinngrowth/seo-site-audit/internal/model"
	"github.com/pinngrowth/seo-site-audit/internal/persistence"
	"github.com/pinngrowth/seo-site-audit/internal/telemetry"
	"github.com/pinngrowth/seo-site-audit/internal/worker"
)

var (
	cfg       *config.Config
	db        *sql.DB
	s3        aws_s3.BucketClient
	cache     cacheClient.CachedClient
	crawlRepo persistence.CrawlStorage
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg = config.MustLoad()
	setupLogger()
	metrics := telemetry.SetupMetrics(context.Background(), cfg)
	defer metrics.Close()
	db = setupDatabase()
	defer closeDatabase()
	s3 = aws_s3.NewS3BucketClient(cfg)
	cache = cacheClient.NewMemcachedClient(cfg.CacheSettings)
	defer cache.Close()
	crawlRepo = persistence.NewCrawlRepository(db)
	mechanism := model.RenderMechanism(cfg.RendererSettings.Mechanism)
	kafkaDLQ := broker.NewKafkaDLQ(cfg.ServiceName, cfg.KafkaSettings.Producer)
	defer kafkaDLQ.Close()
	httpTransport := getHttpTransport()
	slog.Info("starting application on port "+cfg.Port, slog.String("env", cfg.Env),
		slog.String("render mechanism", mechanism.String()))

	threadNum := parallelWorkers()
	jobChan := make(chan []byte, threadNum*2)
	completionChan := make(chan *model.CrawlCompleted, threadNum*2)

	kafkaWg := &sync.WaitGroup{}
	kafkaWg.Add(1)
	kafkaConsumer := broker.NewKafkaConsumer(jobChan, metrics.KafkaConsumerMetrics,
		cfg.KafkaSettings.Consumer, kafkaWg)
	go kafkaConsumer.Run(ctx)

	workerWg := &sync.WaitGroup{}
	crawlWorker := &worker.CrawlWorker{
		JobChan:        jobChan,
		CompletionChan: completionChan,
		Cfg:            cfg,
		Db:             crawlRepo,
		S3:             s3,
		Cache:          cache,
		Wg:             workerWg,
		Mechanism:      mechanism,
		KafkaDLQ:       kafkaDLQ,
		Metrics:        metrics.AppMetrics,
		HttpTransport:  httpTransport,
		RecentJobs:     gocache.New(cfg.WorkerSettings.JobDedupTtl, cfg.WorkerSettings.JobDedupTtl),
	}

	for i := 0; i < threadNum; i++ {
		workerWg.Add(1)
		go crawlWorker.Run(ctx)
	}

	kafkaWg.Add(1)
	kafkaProducer := broker.NewKafkaProducer(completionChan, metrics.KafkaProducerMetrics,
		cfg.KafkaSettings.Producer, kafkaWg)
	go kafkaProducer.Run()

	go healthCheckHandler()

	// Graceful shutdown.
	// 1. Stop Kafka Consumer by system call. Close jobChan
	// 2. Wait till all Workers processed all messages from jobChan. Close completionChan
	// 3. Wait till Producer process all messages from completionChan and write to Kafka. Stop Kafka Producer
	// 4. Close database and memcached connections
	<-ctx.Done()
	slog.Info("stopping server...")
	workerWg.Wait()
	close(completionChan)
	slog.Info("close completionChan.")
	kafkaWg.Wait()
	slog.Info("server stopped.")
}

func setupLogger() *slog.Logger {
	envLogLevel := strings.ToLower(cfg.LogLevel)
	var slogLevel slog.Level
	err := slogLevel.UnmarshalText([]byte(envLogLevel))
	if err != nil {
		log.Printf("encountenred log level: '%s'. The package does not support custom log levels", envLogLevel)
		slogLevel = slog.LevelDebug
	}
	log.Printf("slog level overwritten to '%v'", slogLevel)
	slog.SetLogLoggerLevel(slogLevel)

	replaceAttrs := func(groups []string, a slog.Attr) slog.Attr {
		if a.Key == slog.SourceKey {
			source := a.Value.Any().(*slog.Source)
			source.File = filepath.Base(source.File)
		}
		return a
	}

	var logger *slog.Logger
	if strings.ToLower(cfg.LogType) == "json" {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			AddSource:   true,
			Level:       slogLevel,
			ReplaceAttr: replaceAttrs}))
	} else {
		logger = slog.New(tint.NewHandler(os.Stdout, &tint.Options{
			AddSource:   true,
			Level:       slogLevel,
			ReplaceAttr: replaceAttrs,
			NoColor: func() bool {
				if cfg.Env == "local" {
					return false
				}
				return true
			}()}))
	}

	slog.SetDefault(logger)
	logger.Debug("debug messages are enabled.")

	return logger
}

func setupDatabase() *sql.DB {
	slog.Info("connecting to the database...")
	connStr := fmt.Sprintf("user=%s password=%s host=%s port=%s dbname=%s sslmode=disable",
		cfg.DbSettings.User,
		cfg.DbSettings.Password,
		cfg.DbSettings.Host,
		cfg.DbSettings.Port,
		cfg.DbSettings.Name,
	)
	database, err := sql.Open("postgres", connStr)
	if err != nil {
		slog.Error("failed to establish database connection.", slog.String("err", err.Error()))
		os.Exit(1)
	}
	database.SetConnMaxLifetime(cfg.DbSettings.ConnMaxLifetime)
	database.SetMaxOpenConns(cfg.DbSettings.MaxOpenConns)
	database.SetMaxIdleConns(cfg.DbSettings.MaxIdleConns)

	maxRetry := 6
	for i := 1; i <= maxRetry; i++ {
		slog.Info("ping the database.", slog.String("attempt", fmt.Sprintf("%d/%d", i, maxRetry)))
		pingErr := database.Ping()
		if pingErr != nil {
			slog.Error("not responding.", slog.String("err", pingErr.Error()))
			if i == maxRetry {
				slog.Error("failed to establish database connection.")
				os.Exit(1)
			}
			slog.Info(fmt.Sprintf("wait %d seconds", 5*i))
			time.Sleep(time.Duration(5*i) * time.Second)
		} else {
			break
		}
	}
	slog.Info("connected to the database!")

	return database
}

func closeDatabase() {
	slog.Info("closing database connection.")
	err := db.Close()
	if err != nil {
		slog.Error("failed to close database connection.", slog.String("err", err.Error()))
	}
}

// Set -1 to use all available CPUs
func parallelWorkers() int {
	customNumCPU := cfg.WorkerSettings.WorkersNum
	if customNumCPU == -1 {
		return runtime.NumCPU()
	}
	if customNumCPU <= 0 {
		slog.Error("workers number is 0 or less than -1")
		os.Exit(1)
	}

	return customNumCPU
}

func healthCheckHandler() {
	http.HandleFunc("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("pong"))
	})
	http.HandleFunc("/crawls", crawlHistoryHandler)
	if err := http.ListenAndServe(":"+cfg.Port, nil); err != nil {
		slog.Error("http server error", slog.String("err", err.Error()))
	}
}

// crawlHistoryHandler returns the user's past crawls, newest first.
func crawlHistoryHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}
	limit := 10
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	summaries, err := crawlRepo.List(userID, limit)
	if err != nil {
		slog.Error("failed to list crawl history.", slog.String("err", err.Error()))
		http.Error(w, "failed to list crawls", http.StatusInternalServerError)
		return
	}

	body, err := jsoniter.Marshal(summaries)
	if err != nil {
		http.Error(w, "failed to marshal crawls", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}

func getHttpTransport() *http.Transport {
	return &http.Transport{
		MaxIdleConns:        cfg.HttpClientSettings.MaxIdleConnections,
		MaxIdleConnsPerHost: cfg.HttpClientSettings.MaxIdleConnectionsPerHost,
		MaxConnsPerHost:     cfg.HttpClientSettings.MaxConnectionsPerHost,
		IdleConnTimeout:     cfg.HttpClientSettings.IdleConnectionTimeout,
		TLSHandshakeTimeout: cfg.HttpClientSettings.TlsHandshakeTimeout,
		DialContext: (&net.Dialer{
			Timeout:   cfg.HttpClientSettings.DialTimeout,
			KeepAlive: cfg.HttpClientSettings.DialKeepAlive,
		}).DialContext,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.HttpClientSettings.TlsInsecureSkipVerify,
		},
	}
}
