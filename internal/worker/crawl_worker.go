package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	gocache "github.com/patrickmn/go-cache"
	"github.com/pinngrowth/seo-site-audit/config"
	"github.com/pinngrowth/seo-site-audit/internal"
	"github.com/pinngrowth/seo-site-audit/internal/aws_s3"
	"github.com/pinngrowth/seo-site-audit/internal/broker"
	"github.com/pinngrowth/seo-site-audit/internal/cache"
	"github.com/pinngrowth/seo-site-audit/internal/crawler"
	"github.com/pinngrowth/seo-site-audit/internal/model"
	"github.com/pinngrowth/seo-site-audit/internal/persistence"
	"github.com/pinngrowth/seo-site-audit/internal/render"
	"github.com/pinngrowth/seo-site-audit/internal/telemetry"
)

type CrawlWorker struct {
	JobChan        <-chan []byte
	CompletionChan chan<- *model.CrawlCompleted
	Cfg            *config.Config
	Db             persistence.CrawlStorage
	S3             aws_s3.BucketClient
	Cache          cache.CachedClient
	Wg             *sync.WaitGroup
	Mechanism      model.RenderMechanism
	KafkaDLQ       *broker.KafkaDLQClient
	Metrics        *telemetry.AppMetrics
	HttpTransport  *http.Transport
	// RecentJobs deduplicates identical site+profile jobs submitted
	// within the configured window.
	RecentJobs *gocache.Cache
}

func (w *CrawlWorker) Run(ctx context.Context) {
	defer w.Wg.Done()
	slog.Debug("starting crawl worker.")

	for value := range w.JobChan {
		var job model.CrawlJob
		if err := jsoniter.Unmarshal(value, &job); err != nil {
			slog.Error("failed to unmarshal message.", slog.String("err", err.Error()))
			w.KafkaDLQ.SendJobToDLQ(string(value), err)
			w.Metrics.FailedCrawlsCounter(1)
			continue
		}
		if job.CrawlID == "" {
			job.CrawlID = uuid.New().String()
		}

		// Invalid jobs are rejected before any network activity.
		prof, err := ValidateJob(&job, w.Cfg.CrawlerSettings)
		if err != nil {
			slog.Error("invalid crawl job.", slog.String("crawl_id", job.CrawlID),
				slog.String("err", err.Error()))
			w.KafkaDLQ.SendJobToDLQ(string(value), err)
			w.Metrics.FailedCrawlsCounter(1)
			continue
		}

		dedupKey := internal.HashURL(job.StartURL) + "|" + job.ProfileKey
		if _, found := w.RecentJobs.Get(dedupKey); found {
			slog.Info("skipping duplicate job.", slog.String("url", job.StartURL),
				slog.String("profile", job.ProfileKey))
			w.Metrics.DuplicateJobsCounter(1)
			continue
		}

		// Each job owns its own renderer session.
		renderer := w.newRenderer()
		scheduler := crawler.NewScheduler(renderer, w.Cfg.CrawlerSettings, &progressLogger{crawlID: job.CrawlID})
		result, err := scheduler.Run(ctx, &job, prof)
		renderer.Close()
		if err != nil {
			if errors.Is(err, context.Canceled) {
				slog.Warn("crawl interrupted by shutdown.", slog.String("crawl_id", job.CrawlID))
				continue
			}
			slog.Error("crawl failed.", slog.String("crawl_id", job.CrawlID),
				slog.String("err", err.Error()))
			w.KafkaDLQ.SendJobToDLQ(string(value), err)
			w.Metrics.FailedCrawlsCounter(1)
			continue
		}

		w.RecentJobs.SetDefault(dedupKey, true)
		w.saveResult(&job, result, string(value))
	}
}

func (w *CrawlWorker) saveResult(job *model.CrawlJob, result *model.CrawlResult, rawJob string) {
	slog.Debug("saving crawl result.",
		slog.String("CrawlID", result.CrawlID),
		slog.String("StartURL", result.StartURL),
		slog.String("ProfileKey", result.ProfileKey),
		slog.Int("PageCount", result.PageCount),
		slog.Int64("TimeToCrawl", result.TimeToCrawl),
	)

	w.Cache.DecrementThreshold(job.StartURL)
	s3Key, err := w.S3.WriteResult(result)
	if err != nil {
		slog.Error("failed to save crawl result to S3.", slog.String("url", job.StartURL))
		w.KafkaDLQ.SendJobToDLQ(rawJob, err)
		w.Metrics.FailedCrawlsCounter(1)
		return
	}

	w.Cache.MarkCrawled(job.StartURL, s3Key)
	w.Db.Save(&model.CrawlSummary{
		CrawlID:     result.CrawlID,
		UserID:      job.UserID,
		TargetURL:   job.StartURL,
		ProfileKey:  job.ProfileKey,
		PageCount:   result.PageCount,
		S3Key:       s3Key,
		TimeToCrawl: result.TimeToCrawl,
		CrawledAt:   time.Now().UTC(),
	})

	w.CompletionChan <- &model.CrawlCompleted{
		CrawlID:   result.CrawlID,
		UserID:    job.UserID,
		S3Bucket:  w.Cfg.S3Settings.BucketName,
		S3Key:     s3Key,
		PageCount: result.PageCount,
	}
	w.Metrics.CompletedCrawlsCounter(1)
	w.Metrics.CrawledPagesCounter(int64(result.PageCount))
}

func (w *CrawlWorker) newRenderer() render.Renderer {
	switch w.Mechanism {
	case model.HeadlessBrowser:
		return render.NewChromeRenderer(w.Cfg.RendererSettings.RequestTimeout,
			w.Cfg.RendererSettings.WaitEvent, w.Cfg.WorkerSettings.UserAgent)
	default:
		return render.NewStaticRenderer(w.HttpTransport,
			w.Cfg.HttpClientSettings.RequestTimeout, w.Cfg.WorkerSettings.UserAgent)
	}
}

// progressLogger is the headless progress sink: the presentation host that
// submitted the job follows along via logs and the completion event.
type progressLogger struct {
	crawlID string
}

func (p *progressLogger) Status(message string) {
	slog.Info(message, slog.String("crawl_id", p.crawlID))
}

func (p *progressLogger) Progress(done, total int) {
	slog.Debug(fmt.Sprintf("progress %.2f", float64(done)/float64(total)),
		slog.String("crawl_id", p.crawlID))
}
