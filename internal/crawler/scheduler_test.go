package crawler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/pinngrowth/seo-site-audit/config"
	"github.com/pinngrowth/seo-site-audit/internal/model"
	"github.com/pinngrowth/seo-site-audit/internal/profile"
	"github.com/pinngrowth/seo-site-audit/internal/render"
)

// fakeRenderer serves canned HTML per url and records navigation order.
type fakeRenderer struct {
	pages     map[string]string
	failures  map[string]bool
	navigated []string
}

func (r *fakeRenderer) Navigate(_ context.Context, url string) (render.Document, error) {
	r.navigated = append(r.navigated, url)
	if r.failures[url] {
		return nil, &render.RenderError{URL: url, Err: errors.New("boom")}
	}
	html, ok := r.pages[url]
	if !ok {
		return nil, &render.RenderError{URL: url, Err: errors.New("no such page")}
	}
	return render.ParseDocument(url, html)
}

func (r *fakeRenderer) Close() {}

type recordingSink struct {
	statuses  []string
	fractions []int
}

func (s *recordingSink) Status(message string)    { s.statuses = append(s.statuses, message) }
func (s *recordingSink) Progress(done, total int) { s.fractions = append(s.fractions, done) }

func pageWithLinks(hrefs ...string) string {
	var b strings.Builder
	b.WriteString("<html><head><title>T</title></head><body>")
	for _, h := range hrefs {
		b.WriteString(`<a href="` + h + `">link</a>`)
	}
	b.WriteString("</body></html>")
	return b.String()
}

func newTestScheduler(r render.Renderer, sink ProgressSink) (*Scheduler, *[]time.Duration) {
	s := NewScheduler(r, &config.CrawlerConfig{LinkScanLimit: 30}, sink)
	var slept []time.Duration
	s.sleep = func(d time.Duration) { slept = append(slept, d) }
	s.randFloat = func() float64 { return 0.5 }
	return s, &slept
}

func generalProfile(t *testing.T) *profile.Profile {
	t.Helper()
	p, err := profile.Get("general")
	if err != nil {
		t.Fatalf("failed to get profile: %v", err)
	}
	return p
}

func testJob(maxPages int) *model.CrawlJob {
	return &model.CrawlJob{
		CrawlID:    "t-1",
		UserID:     "u-1",
		StartURL:   "https://a.com",
		MaxPages:   maxPages,
		ProfileKey: "general",
		DelayMin:   1,
		DelayMax:   3,
	}
}

func TestRunDomainScoping(t *testing.T) {
	t.Parallel()

	r := &fakeRenderer{pages: map[string]string{
		"https://a.com":   pageWithLinks("https://a.com/x", "https://b.com/y", "/z"),
		"https://a.com/x": pageWithLinks(),
		"https://a.com/z": pageWithLinks(),
	}}
	s, _ := newTestScheduler(r, &recordingSink{})

	result, err := s.Run(context.Background(), testJob(10), generalProfile(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.PageCount != 3 {
		t.Fatalf("got %d pages, expected 3", result.PageCount)
	}
	for _, url := range r.navigated {
		if strings.Contains(url, "b.com") {
			t.Errorf("cross-domain url %q was rendered", url)
		}
	}
	if r.navigated[1] != "https://a.com/x" || r.navigated[2] != "https://a.com/z" {
		t.Errorf("got navigation order %v, expected FIFO /x then /z", r.navigated)
	}
}

func TestRunPageBudget(t *testing.T) {
	t.Parallel()

	hrefs := make([]string, 10)
	pages := map[string]string{}
	for i := range hrefs {
		hrefs[i] = fmt.Sprintf("/p%d", i)
		pages[fmt.Sprintf("https://a.com/p%d", i)] = pageWithLinks()
	}
	r := &fakeRenderer{pages: pages}
	r.pages["https://a.com"] = pageWithLinks(hrefs...)

	s, _ := newTestScheduler(r, &recordingSink{})
	result, err := s.Run(context.Background(), testJob(1), generalProfile(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.PageCount != 1 {
		t.Errorf("got %d pages, expected exactly 1", result.PageCount)
	}
	if len(r.navigated) != 1 {
		t.Errorf("got %d navigations, expected 1 (pending frontier discarded)", len(r.navigated))
	}
}

func TestRunNoDuplicateRecords(t *testing.T) {
	t.Parallel()

	// Both pages link back to each other and to themselves.
	r := &fakeRenderer{pages: map[string]string{
		"https://a.com":   pageWithLinks("/x", "https://a.com/x", "https://a.com"),
		"https://a.com/x": pageWithLinks("https://a.com", "/x"),
	}}
	s, _ := newTestScheduler(r, &recordingSink{})

	result, err := s.Run(context.Background(), testJob(10), generalProfile(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	seen := make(map[string]bool)
	for _, rec := range result.Records {
		if seen[rec.URL] {
			t.Errorf("url %q appears twice in the result list", rec.URL)
		}
		seen[rec.URL] = true
	}
	if result.PageCount != 2 {
		t.Errorf("got %d pages, expected 2", result.PageCount)
	}
}

func TestRunRenderFailureIsSkipped(t *testing.T) {
	t.Parallel()

	r := &fakeRenderer{
		pages: map[string]string{
			"https://a.com":   pageWithLinks("/x", "/z"),
			"https://a.com/z": pageWithLinks(),
		},
		failures: map[string]bool{"https://a.com/x": true},
	}
	s, _ := newTestScheduler(r, &recordingSink{})

	result, err := s.Run(context.Background(), testJob(10), generalProfile(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.PageCount != 2 {
		t.Errorf("got %d pages, expected 2 (failed url skipped, crawl continued)", result.PageCount)
	}
	for _, rec := range result.Records {
		if rec.URL == "https://a.com/x" {
			t.Error("failed url ended up in the result list")
		}
	}
}

func TestRunPolitenessDelay(t *testing.T) {
	t.Parallel()

	r := &fakeRenderer{pages: map[string]string{
		"https://a.com":   pageWithLinks("/x"),
		"https://a.com/x": pageWithLinks(),
	}}
	s, slept := newTestScheduler(r, &recordingSink{})

	if _, err := s.Run(context.Background(), testJob(10), generalProfile(t)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(*slept) != len(r.navigated) {
		t.Fatalf("got %d delays for %d fetches, expected one before every fetch",
			len(*slept), len(r.navigated))
	}
	for _, d := range *slept {
		if d < 1*time.Second || d > 3*time.Second {
			t.Errorf("delay %v outside [1s, 3s]", d)
		}
	}
}

func TestRunLinkScanLimit(t *testing.T) {
	t.Parallel()

	hrefs := make([]string, 40)
	pages := map[string]string{}
	for i := range hrefs {
		hrefs[i] = fmt.Sprintf("/p%d", i)
		pages[fmt.Sprintf("https://a.com/p%d", i)] = pageWithLinks()
	}
	r := &fakeRenderer{pages: pages}
	r.pages["https://a.com"] = pageWithLinks(hrefs...)

	s, _ := newTestScheduler(r, &recordingSink{})
	result, err := s.Run(context.Background(), testJob(100), generalProfile(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Start page plus the first 30 anchors only.
	if result.PageCount != 31 {
		t.Errorf("got %d pages, expected 31", result.PageCount)
	}
	for _, rec := range result.Records {
		if rec.URL == "https://a.com/p30" {
			t.Error("anchor beyond the scan limit was crawled")
		}
	}
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	t.Parallel()

	r := &fakeRenderer{pages: map[string]string{"https://a.com": pageWithLinks()}}
	s, _ := newTestScheduler(r, &recordingSink{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := s.Run(ctx, testJob(10), generalProfile(t))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, expected context.Canceled", err)
	}
	if result.PageCount != 0 {
		t.Errorf("got %d pages, expected 0", result.PageCount)
	}
	if len(r.navigated) != 0 {
		t.Errorf("got %d navigations after cancel, expected 0", len(r.navigated))
	}
}

func TestRunReportsProgress(t *testing.T) {
	t.Parallel()

	r := &fakeRenderer{pages: map[string]string{"https://a.com": pageWithLinks()}}
	sink := &recordingSink{}
	s, _ := newTestScheduler(r, sink)

	if _, err := s.Run(context.Background(), testJob(5), generalProfile(t)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(sink.statuses) == 0 {
		t.Fatal("no status messages reported")
	}
	if got := sink.statuses[0]; got != "Crawling 1/5: https://a.com..." {
		t.Errorf("got status %q", got)
	}
}

func TestRunStatusTruncatesAtRuneBoundaries(t *testing.T) {
	t.Parallel()

	url := "https://a.com/" + strings.Repeat("待", 60)
	r := &fakeRenderer{pages: map[string]string{url: pageWithLinks()}}
	sink := &recordingSink{}
	s, _ := newTestScheduler(r, sink)
	job := testJob(5)
	job.StartURL = url

	if _, err := s.Run(context.Background(), job, generalProfile(t)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "Crawling 1/5: " + string([]rune(url)[:50]) + "..."
	if got := sink.statuses[0]; got != want {
		t.Errorf("got status %q, expected %q", got, want)
	}
}

func TestRunRejectsInvalidStartURL(t *testing.T) {
	t.Parallel()

	s, _ := newTestScheduler(&fakeRenderer{}, &recordingSink{})
	job := testJob(5)
	job.StartURL = "not-a-url"

	if _, err := s.Run(context.Background(), job, generalProfile(t)); err == nil {
		t.Error("expected an error for a start url without scheme and host")
	}
}
