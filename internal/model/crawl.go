package model

import "time"

type RenderMechanism int

const (
	Static RenderMechanism = iota
	HeadlessBrowser
)

func (rm RenderMechanism) String() string {
	return [...]string{"static", "headless browser"}[rm]
}

// CrawlJob is one crawl request as it arrives from the request topic.
// Immutable after validation.
type CrawlJob struct {
	CrawlID    string `json:"crawl_id"`
	UserID     string `json:"user_id"`
	StartURL   string `json:"start_url"`
	MaxPages   int    `json:"max_pages"`
	ProfileKey string `json:"profile_key"`
	DelayMin   int    `json:"delay_min"` // seconds
	DelayMax   int    `json:"delay_max"` // seconds
}

// ImageInfo describes one <img> element found on a page.
type ImageInfo struct {
	Src        string `json:"src"`
	Alt        string `json:"alt"`
	AltQuality string `json:"alt_quality"` // good | short | empty | missing
}

type HreflangLink struct {
	Lang string `json:"lang"`
	Href string `json:"href"`
}

// SchemaEntry is one typed object pulled out of an ld+json script block.
type SchemaEntry struct {
	Type string `json:"type"`
	Raw  string `json:"raw"`
}

// PageRecord is the flat extraction output for one rendered page. Every
// field is always present so tabular export stays well-formed; misses are
// the empty string, empty list or zero, never an absent key.
type PageRecord struct {
	URL string `json:"url"`

	BestTitle       string `json:"best_title"`
	BestTitleSource string `json:"best_title_source"`
	TitleTag        string `json:"title_tag"`
	OGTitle         string `json:"og_title"`
	H1Title         string `json:"h1_title"`
	TwitterTitle    string `json:"twitter_title"`
	HeaderBoldText  string `json:"header_bold_text"`

	BestDescription       string `json:"best_description"`
	BestDescriptionSource string `json:"best_description_source"`
	MetaDescription       string `json:"meta_description"`
	OGDescription         string `json:"og_description"`
	FirstParagraph        string `json:"first_paragraph"`
	TwitterDescription    string `json:"twitter_description"`

	MetaKeywords string `json:"meta_keywords"`

	H1Tags        []string `json:"h1_tags"`
	H2Tags        []string `json:"h2_tags"`
	H3Tags        []string `json:"h3_tags"`
	H4Tags        []string `json:"h4_tags"`
	H5Tags        []string `json:"h5_tags"`
	H6Tags        []string `json:"h6_tags"`
	HeadingIssues []string `json:"heading_structure_issues"`

	MainContent   string `json:"main_content"`
	ContentSource string `json:"content_source"`
	WordCount     int    `json:"word_count"`
	ContentLength string `json:"content_length"` // thin | good | long

	Images             []ImageInfo `json:"images"`
	TotalImages        int         `json:"total_images"`
	ImagesWithGoodAlt  int         `json:"images_with_good_alt"`
	ImagesWithShortAlt int         `json:"images_with_short_alt"`
	ImagesWithEmptyAlt int         `json:"images_with_empty_alt"`
	ImagesWithoutAlt   int         `json:"images_without_alt"`
	BackgroundImages   []string    `json:"background_images"`

	TotalLinks     int `json:"total_links"`
	InternalLinks  int `json:"internal_links"`
	ExternalLinks  int `json:"external_links"`
	AnchorLinks    int `json:"anchor_links"`
	EmptyTextLinks int `json:"empty_text_links"`
	NofollowLinks  int `json:"nofollow_links"`

	StructuredData []SchemaEntry `json:"structured_data"`
	HasSchema      bool          `json:"has_schema"`
	MicrodataCount int           `json:"microdata_count"`

	CanonicalURL string            `json:"canonical_url"`
	MetaRobots   string            `json:"meta_robots"`
	Hreflang     []HreflangLink    `json:"hreflang"`
	OpenGraph    map[string]string `json:"open_graph"`
	TwitterMeta  map[string]string `json:"twitter_meta"`

	ProfileFields map[string][]string `json:"profile_fields"`
}

// CrawlResult is the full output of one crawl run.
type CrawlResult struct {
	CrawlID     string        `json:"crawl_id"`
	UserID      string        `json:"user_id"`
	StartURL    string        `json:"start_url"`
	ProfileKey  string        `json:"profile_key"`
	Records     []*PageRecord `json:"records"`
	PageCount   int           `json:"page_count"`
	TimeToCrawl int64         `json:"time_to_crawl"` // in milliseconds
}

// CrawlSummary is the durable per-crawl row kept in the history table.
type CrawlSummary struct {
	CrawlID     string    `json:"crawl_id"`
	UserID      string    `json:"user_id"`
	TargetURL   string    `json:"target_url"`
	ProfileKey  string    `json:"profile_key"`
	PageCount   int       `json:"page_count"`
	S3Key       string    `json:"s3_key"`
	TimeToCrawl int64     `json:"time_to_crawl"`
	CrawledAt   time.Time `json:"crawled_at"`
}

// CrawlCompleted is published to the results topic when a job finishes.
type CrawlCompleted struct {
	CrawlID   string `json:"crawl_id"`
	UserID    string `json:"user_id"`
	S3Bucket  string `json:"s3_bucket"`
	S3Key     string `json:"s3_key"`
	PageCount int    `json:"page_count"`
}
