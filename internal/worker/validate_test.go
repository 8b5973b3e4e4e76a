package worker

import (
	"errors"
	"strings"
	"testing"

	"github.com/pinngrowth/seo-site-audit/config"
	"github.com/pinngrowth/seo-site-audit/internal/model"
	"github.com/pinngrowth/seo-site-audit/internal/profile"
)

func boundsConfig() *config.CrawlerConfig {
	return &config.CrawlerConfig{
		MaxPagesLimit: 500,
		LinkScanLimit: 30,
		DelayMinFloor: 1,
		DelayMinCeil:  10,
		DelayMaxFloor: 2,
		DelayMaxCeil:  15,
	}
}

func validJob() *model.CrawlJob {
	return &model.CrawlJob{
		CrawlID:    "c-1",
		UserID:     "u-1",
		StartURL:   "https://example.com",
		MaxPages:   50,
		ProfileKey: "blog_content",
		DelayMin:   3,
		DelayMax:   6,
	}
}

func TestValidateJob(t *testing.T) {
	t.Parallel()

	t.Run("valid job resolves its profile", func(t *testing.T) {
		t.Parallel()

		prof, err := ValidateJob(validJob(), boundsConfig())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if prof.Key != "blog_content" {
			t.Errorf("got profile %q, expected 'blog_content'", prof.Key)
		}
	})

	t.Run("url without scheme is rejected", func(t *testing.T) {
		t.Parallel()

		job := validJob()
		job.StartURL = "example.com"
		if _, err := ValidateJob(job, boundsConfig()); err == nil {
			t.Error("expected an error for url without scheme")
		}
	})

	t.Run("max_pages bounds", func(t *testing.T) {
		t.Parallel()

		for _, pages := range []int{0, 501} {
			job := validJob()
			job.MaxPages = pages
			if _, err := ValidateJob(job, boundsConfig()); err == nil {
				t.Errorf("expected an error for max_pages=%d", pages)
			}
		}
	})

	t.Run("delay bounds", func(t *testing.T) {
		t.Parallel()

		job := validJob()
		job.DelayMin = 0
		if _, err := ValidateJob(job, boundsConfig()); err == nil {
			t.Error("expected an error for delay_min below floor")
		}

		job = validJob()
		job.DelayMax = 16
		if _, err := ValidateJob(job, boundsConfig()); err == nil {
			t.Error("expected an error for delay_max above ceiling")
		}

		job = validJob()
		job.DelayMin = 8
		job.DelayMax = 5
		_, err := ValidateJob(job, boundsConfig())
		if err == nil || !strings.Contains(err.Error(), "greater than") {
			t.Errorf("got %v, expected delay ordering error", err)
		}
	})

	t.Run("unknown profile is rejected before any crawl", func(t *testing.T) {
		t.Parallel()

		job := validJob()
		job.ProfileKey = "automotive"
		_, err := ValidateJob(job, boundsConfig())
		if !errors.Is(err, profile.ErrUnknownProfile) {
			t.Errorf("got %v, expected ErrUnknownProfile", err)
		}
	})
}
