package persistence

import (
	"database/sql"
	"log/slog"

	"github.com/pinngrowth/seo-site-audit/internal/model"
)

type CrawlStorage interface {
	Save(*model.CrawlSummary)
	List(userID string, limit int) ([]*model.CrawlSummary, error)
}

type CrawlRepository struct {
	db *sql.DB
}

func NewCrawlRepository(db *sql.DB) *CrawlRepository {
	return &CrawlRepository{db: db}
}

func (cr *CrawlRepository) Save(summary *model.CrawlSummary) {
	_, err := cr.db.Exec(`INSERT INTO seo_audit.crawl_history
    (crawl_id, user_id, target_url, profile_key, page_count, s3_key, time_to_crawl, crawled_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (crawl_id) DO UPDATE
	SET user_id = EXCLUDED.user_id,
	    target_url = EXCLUDED.target_url,
		profile_key = EXCLUDED.profile_key,
		page_count = EXCLUDED.page_count,
		s3_key = EXCLUDED.s3_key,
		time_to_crawl = EXCLUDED.time_to_crawl,
		crawled_at = EXCLUDED.crawled_at;`,
		summary.CrawlID,
		summary.UserID,
		summary.TargetURL,
		summary.ProfileKey,
		summary.PageCount,
		summary.S3Key,
		summary.TimeToCrawl,
		summary.CrawledAt)
	if err != nil {
		slog.Error("failed to save crawl summary to database.", slog.String("err", err.Error()))
		return
	}
	slog.Debug("crawl summary saved to db.")
}

// List returns the user's most recent crawls, newest first.
func (cr *CrawlRepository) List(userID string, limit int) ([]*model.CrawlSummary, error) {
	rows, err := cr.db.Query(`SELECT crawl_id, user_id, target_url, profile_key, page_count, s3_key,
		time_to_crawl, crawled_at
	FROM seo_audit.crawl_history
	WHERE user_id = $1
	ORDER BY crawled_at DESC
	LIMIT $2;`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []*model.CrawlSummary
	for rows.Next() {
		s := &model.CrawlSummary{}
		err = rows.Scan(&s.CrawlID, &s.UserID, &s.TargetURL, &s.ProfileKey, &s.PageCount, &s.S3Key,
			&s.TimeToCrawl, &s.CrawledAt)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}

	return summaries, rows.Err()
}
