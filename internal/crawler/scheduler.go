// Package crawler owns the breadth-first crawl loop: the frontier, the
// visited set, domain scoping of discovered links, the politeness delay and
// the page budget.
package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	netUrl "net/url"
	"strings"
	"time"

	"github.com/pinngrowth/seo-site-audit/config"
	"github.com/pinngrowth/seo-site-audit/internal/extract"
	"github.com/pinngrowth/seo-site-audit/internal/model"
	"github.com/pinngrowth/seo-site-audit/internal/profile"
	"github.com/pinngrowth/seo-site-audit/internal/render"
)

// ProgressSink receives crawl progress for the presentation host.
type ProgressSink interface {
	Status(message string)
	Progress(done, total int)
}

type Scheduler struct {
	renderer render.Renderer
	cfg      *config.CrawlerConfig
	sink     ProgressSink

	// Injection points for deterministic tests.
	sleep     func(time.Duration)
	randFloat func() float64
}

func NewScheduler(renderer render.Renderer, cfg *config.CrawlerConfig, sink ProgressSink) *Scheduler {
	return &Scheduler{
		renderer:  renderer,
		cfg:       cfg,
		sink:      sink,
		sleep:     time.Sleep,
		randFloat: rand.Float64,
	}
}

// Run crawls breadth-first from the job's start url, staying on the start
// host, until the frontier is exhausted, the page budget is reached or ctx
// is cancelled. A single page failing to render or parse never aborts the
// run; the url is skipped and the crawl continues.
func (s *Scheduler) Run(ctx context.Context, job *model.CrawlJob, prof *profile.Profile) (*model.CrawlResult, error) {
	startTime := time.Now()
	startHost, err := hostOf(job.StartURL)
	if err != nil {
		return nil, fmt.Errorf("invalid start url %q: %w", job.StartURL, err)
	}

	frontier := []string{job.StartURL}
	visited := make(map[string]bool)
	result := &model.CrawlResult{
		CrawlID:    job.CrawlID,
		UserID:     job.UserID,
		StartURL:   job.StartURL,
		ProfileKey: job.ProfileKey,
		Records:    []*model.PageRecord{},
	}

	for len(frontier) > 0 && len(visited) < job.MaxPages {
		select {
		case <-ctx.Done():
			result.PageCount = len(result.Records)
			result.TimeToCrawl = time.Since(startTime).Milliseconds()
			return result, ctx.Err()
		default:
		}

		url := frontier[0]
		frontier = frontier[1:]
		// Duplicates may be enqueued before the first copy is visited;
		// they are discarded here without consuming a progress step.
		if visited[url] {
			continue
		}

		s.sink.Status(fmt.Sprintf("Crawling %d/%d: %s...", len(visited)+1, job.MaxPages, truncate(url, 50)))
		s.sink.Progress(len(visited), job.MaxPages)

		s.politenessDelay(job)

		doc, err := s.renderer.Navigate(ctx, url)
		if err != nil {
			slog.Error("failed to render page.", slog.String("url", url),
				slog.String("err", err.Error()))
			s.sink.Status(fmt.Sprintf("Skipping %s...", truncate(url, 50)))
			continue
		}

		visited[url] = true
		result.Records = append(result.Records, extract.Extract(doc, prof))

		frontier = append(frontier, s.harvestLinks(doc, startHost, visited)...)
	}

	result.PageCount = len(result.Records)
	result.TimeToCrawl = time.Since(startTime).Milliseconds()
	slog.Info("crawl finished.", slog.String("crawl_id", job.CrawlID),
		slog.Int("pages", result.PageCount), slog.Int64("time_to_crawl", result.TimeToCrawl))

	return result, nil
}

// politenessDelay blocks for a uniformly random duration in
// [delay_min, delay_max] seconds. It runs before every fetch, including the
// first one.
func (s *Scheduler) politenessDelay(job *model.CrawlJob) {
	span := float64(job.DelayMax - job.DelayMin)
	delay := float64(job.DelayMin) + s.randFloat()*span
	s.sleep(time.Duration(delay * float64(time.Second)))
}

// harvestLinks scans at most the first LinkScanLimit anchors, resolves each
// href against the document and keeps unvisited urls on the start host.
// The host check is substring containment of the start host in the resolved
// url, which can misclassify third-party urls carrying the host as a query
// parameter; kept for output parity with the audit pipeline.
func (s *Scheduler) harvestLinks(doc render.Document, startHost string, visited map[string]bool) []string {
	var discovered []string
	anchors := doc.Query("a")
	if len(anchors) > s.cfg.LinkScanLimit {
		anchors = anchors[:s.cfg.LinkScanLimit]
	}
	for _, a := range anchors {
		href, ok := a.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			continue
		}
		resolved, err := doc.ResolveURL(href)
		if err != nil {
			slog.Debug("dropping unresolvable link.", slog.String("href", href),
				slog.String("err", err.Error()))
			continue
		}
		if !strings.Contains(resolved, startHost) {
			continue
		}
		if visited[resolved] {
			continue
		}
		discovered = append(discovered, resolved)
	}
	return discovered
}

func hostOf(rawURL string) (string, error) {
	u, err := netUrl.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("url %q has no scheme or host", rawURL)
	}
	return u.Host, nil
}

// truncate cuts at rune boundaries so a multi-byte url never yields a
// broken status string.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
