package worker

import (
	"fmt"
	netUrl "net/url"

	"github.com/pinngrowth/seo-site-audit/config"
	"github.com/pinngrowth/seo-site-audit/internal/model"
	"github.com/pinngrowth/seo-site-audit/internal/profile"
)

// ValidateJob checks the job against the configured input bounds and
// resolves its extraction profile. It runs before any network activity.
func ValidateJob(job *model.CrawlJob, cfg *config.CrawlerConfig) (*profile.Profile, error) {
	u, err := netUrl.Parse(job.StartURL)
	if err != nil {
		return nil, fmt.Errorf("invalid start url %q: %w", job.StartURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("start url %q must have a scheme and host", job.StartURL)
	}
	if job.MaxPages < 1 || job.MaxPages > cfg.MaxPagesLimit {
		return nil, fmt.Errorf("max_pages %d outside [1, %d]", job.MaxPages, cfg.MaxPagesLimit)
	}
	if job.DelayMin < cfg.DelayMinFloor || job.DelayMin > cfg.DelayMinCeil {
		return nil, fmt.Errorf("delay_min %d outside [%d, %d]", job.DelayMin,
			cfg.DelayMinFloor, cfg.DelayMinCeil)
	}
	if job.DelayMax < cfg.DelayMaxFloor || job.DelayMax > cfg.DelayMaxCeil {
		return nil, fmt.Errorf("delay_max %d outside [%d, %d]", job.DelayMax,
			cfg.DelayMaxFloor, cfg.DelayMaxCeil)
	}
	if job.DelayMin > job.DelayMax {
		return nil, fmt.Errorf("delay_min %d greater than delay_max %d", job.DelayMin, job.DelayMax)
	}

	prof, err := profile.Get(job.ProfileKey)
	if err != nil {
		return nil, err
	}

	return prof, nil
}
