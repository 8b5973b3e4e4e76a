package extract

import (
	"fmt"
	"log/slog"
	netUrl "net/url"
	"strings"
	"unicode/utf8"

	jsoniter "github.com/json-iterator/go"
	"github.com/pinngrowth/seo-site-audit/internal/model"
	"github.com/pinngrowth/seo-site-audit/internal/profile"
	"github.com/pinngrowth/seo-site-audit/internal/render"
)

// Sentinels written when every strategy in a fallback chain comes up empty.
const (
	NoTitleFound       = "NO TITLE FOUND"
	NoDescriptionFound = "NO DESCRIPTION FOUND"
)

const (
	NoH1Issue       = "NO_H1"
	MultipleH1Issue = "MULTIPLE_H1"
)

const (
	ContentThin = "thin"
	ContentGood = "good"
	ContentLong = "long"
)

const (
	AltGood    = "good"
	AltShort   = "short"
	AltEmpty   = "empty"
	AltMissing = "missing"
)

const (
	profileFieldPrefix  = "profile_"
	perSelectorElements = 5
	perFieldValues      = 10
	headingLevels       = 6
)

var lazySrcAttrs = []string{"data-src", "data-lazy-src", "data-original"}

// backgroundImageScript collects computed-style background images across the
// page. Only runs on renderers with script support.
const backgroundImageScript = `(() => {
	const seen = new Set();
	for (const el of document.querySelectorAll("*")) {
		const bg = getComputedStyle(el).backgroundImage;
		if (bg && bg !== "none") seen.add(bg);
	}
	return Array.from(seen).slice(0, 50);
})()`

// largestBoldHeaderScript picks the bold short text with the largest
// rendered font size inside header-like regions.
const largestBoldHeaderScript = `(() => {
	const sel = 'header b, header strong, nav b, nav strong, [class*="header"] b, [class*="header"] strong';
	let best = "", bestSize = 0;
	for (const el of document.querySelectorAll(sel)) {
		const text = (el.textContent || "").trim();
		if (!text || text.length > 80) continue;
		const size = parseFloat(getComputedStyle(el).fontSize) || 0;
		if (size > bestSize) { best = text; bestSize = size; }
	}
	return best;
})()`

// Extract runs every fixed SEO dimension plus the profile-specific fields
// against one rendered document. Each dimension is fault-isolated: a failure
// in one never aborts the others, so the record always aggregates whatever
// could be extracted.
func Extract(doc render.Document, prof *profile.Profile) *model.PageRecord {
	rec := newPageRecord(doc.URL())

	capture("titles", func() { extractTitles(doc, rec) })
	capture("descriptions", func() { extractDescriptions(doc, rec) })
	capture("headings", func() { extractHeadings(doc, rec) })
	capture("content", func() { extractContent(doc, rec) })
	capture("images", func() { extractImages(doc, rec) })
	capture("links", func() { extractLinks(doc, rec) })
	capture("structured_data", func() { extractStructuredData(doc, rec) })
	capture("seo_meta", func() { extractSeoMeta(doc, rec) })
	if prof != nil && len(prof.Fields) > 0 {
		capture("profile_fields", func() { extractProfileFields(doc, prof, rec) })
	}

	return rec
}

// newPageRecord pre-fills every list and map so the record shape is stable
// across pages regardless of what the extraction finds.
func newPageRecord(url string) *model.PageRecord {
	return &model.PageRecord{
		URL:              url,
		H1Tags:           []string{},
		H2Tags:           []string{},
		H3Tags:           []string{},
		H4Tags:           []string{},
		H5Tags:           []string{},
		H6Tags:           []string{},
		HeadingIssues:    []string{},
		Images:           []model.ImageInfo{},
		BackgroundImages: []string{},
		StructuredData:   []model.SchemaEntry{},
		Hreflang:         []model.HreflangLink{},
		OpenGraph:        map[string]string{},
		TwitterMeta:      map[string]string{},
		ProfileFields:    map[string][]string{},
	}
}

// capture isolates one extraction dimension: panics are logged and swallowed.
func capture(dimension string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Debug("extraction dimension failed.", slog.String("dimension", dimension),
				slog.Any("panic", r))
		}
	}()
	fn()
}

func extractTitles(doc render.Document, rec *model.PageRecord) {
	strategies := []Strategy[string]{
		Computed("title_tag", func(d render.Document) (string, error) {
			return collapse(d.Title()), nil
		}),
		Attr("og_title", `meta[property="og:title"]`, "content"),
		Text("h1", "h1"),
		Attr("twitter_title", `meta[name="twitter:title"]`, "content"),
		Computed("header_bold", largestBoldHeaderText),
	}
	values, best, source := resolveAll(doc, NoTitleFound, isEmptyText, strategies)
	rec.TitleTag, rec.OGTitle, rec.H1Title, rec.TwitterTitle, rec.HeaderBoldText =
		values[0], values[1], values[2], values[3], values[4]
	rec.BestTitle = best
	rec.BestTitleSource = source
}

func extractDescriptions(doc render.Document, rec *model.PageRecord) {
	strategies := []Strategy[string]{
		Attr("meta_description", `meta[name="description"]`, "content"),
		Attr("og_description", `meta[property="og:description"]`, "content"),
		Computed("first_paragraph", firstSubstantialParagraph),
		Attr("twitter_description", `meta[name="twitter:description"]`, "content"),
	}
	values, best, source := resolveAll(doc, NoDescriptionFound, isEmptyText, strategies)
	rec.MetaDescription, rec.OGDescription, rec.FirstParagraph, rec.TwitterDescription =
		values[0], values[1], values[2], values[3]
	rec.BestDescription = best
	rec.BestDescriptionSource = source
}

// firstSubstantialParagraph returns the first <p> whose text length is
// strictly between 50 and 500 characters.
func firstSubstantialParagraph(doc render.Document) (string, error) {
	for _, el := range doc.Query("p") {
		t := collapse(el.Text())
		if n := utf8.RuneCountInString(t); n > 50 && n < 500 {
			return t, nil
		}
	}
	return "", nil
}

// largestBoldHeaderText prefers the rendered-layout heuristic and falls back
// to the longest short bold text in header-like regions, ties broken by
// document order.
func largestBoldHeaderText(doc render.Document) (string, error) {
	var fromScript string
	if err := doc.Evaluate(largestBoldHeaderScript, &fromScript); err == nil && fromScript != "" {
		return collapse(fromScript), nil
	}

	var best string
	sel := `header b, header strong, nav b, nav strong, [class*="header"] b, [class*="header"] strong`
	for _, el := range doc.Query(sel) {
		t := collapse(el.Text())
		if t == "" || len(t) > 80 {
			continue
		}
		if len(t) > len(best) {
			best = t
		}
	}
	return best, nil
}

func extractHeadings(doc render.Document, rec *model.PageRecord) {
	levels := make([][]string, headingLevels)
	for i := 0; i < headingLevels; i++ {
		levels[i] = []string{}
		for _, el := range doc.Query(fmt.Sprintf("h%d", i+1)) {
			if t := collapse(el.Text()); t != "" {
				levels[i] = append(levels[i], t)
			}
		}
	}
	rec.H1Tags, rec.H2Tags, rec.H3Tags = levels[0], levels[1], levels[2]
	rec.H4Tags, rec.H5Tags, rec.H6Tags = levels[3], levels[4], levels[5]

	h1Count := len(doc.Query("h1"))
	switch {
	case h1Count == 0:
		rec.HeadingIssues = append(rec.HeadingIssues, NoH1Issue)
	case h1Count > 1:
		rec.HeadingIssues = append(rec.HeadingIssues, MultipleH1Issue)
	}
}

// genericContentSelectors is the fixed precedence order for non-semantic
// content containers; body is the last resort before the size heuristic.
var genericContentSelectors = []string{
	`[class*="content"]`,
	`[id*="content"]`,
	`[class*="post"]`,
	`[class*="entry"]`,
	`[class*="article"]`,
	`body`,
}

func extractContent(doc render.Document, rec *model.PageRecord) {
	strategies := []Strategy[string]{
		Computed("semantic", func(d render.Document) (string, error) {
			for _, el := range d.Query(`main, article, [role="main"]`) {
				if t := collapse(el.Text()); t != "" {
					return t, nil
				}
			}
			return "", nil
		}),
		Computed("generic_container", func(d render.Document) (string, error) {
			for _, sel := range genericContentSelectors {
				els := d.Query(sel)
				if len(els) == 0 {
					continue
				}
				if t := collapse(els[0].Text()); len(t) > 100 {
					return t, nil
				}
			}
			return "", nil
		}),
		Computed("largest_block", func(d render.Document) (string, error) {
			// Stable: a later block must be strictly longer to win.
			var best string
			for _, el := range d.Query("div, section, article") {
				t := collapse(el.Text())
				if len(t) > 200 && len(t) > len(best) {
					best = t
				}
			}
			return best, nil
		}),
	}

	content, source := ResolveText(doc, "", strategies)
	rec.MainContent = content
	rec.ContentSource = source
	rec.WordCount = len(strings.Fields(content))
	switch {
	case rec.WordCount < 300:
		rec.ContentLength = ContentThin
	case rec.WordCount < 2000:
		rec.ContentLength = ContentGood
	default:
		rec.ContentLength = ContentLong
	}
}

func extractImages(doc render.Document, rec *model.PageRecord) {
	for _, el := range doc.Query("img") {
		src, _ := el.Attr("src")
		for _, lazy := range lazySrcAttrs {
			if src != "" {
				break
			}
			src, _ = el.Attr(lazy)
		}

		alt, present := el.Attr("alt")
		alt = strings.TrimSpace(alt)
		var quality string
		switch {
		case !present:
			quality = AltMissing
			rec.ImagesWithoutAlt++
		case len(alt) == 0:
			quality = AltEmpty
			rec.ImagesWithEmptyAlt++
		case utf8.RuneCountInString(alt) > 5:
			quality = AltGood
			rec.ImagesWithGoodAlt++
		default:
			quality = AltShort
			rec.ImagesWithShortAlt++
		}

		rec.Images = append(rec.Images, model.ImageInfo{Src: src, Alt: alt, AltQuality: quality})
		rec.TotalImages++
	}

	var backgrounds []string
	if err := doc.Evaluate(backgroundImageScript, &backgrounds); err == nil {
		rec.BackgroundImages = append(rec.BackgroundImages, backgrounds...)
	}
}

// extractLinks tallies the anchors on the page. Categories are independent:
// one link may count toward several of them. The internal/external split
// uses substring containment of the page host, a known heuristic that can
// misclassify third-party urls embedding the host as a parameter.
func extractLinks(doc render.Document, rec *model.PageRecord) {
	host := ""
	if u, err := netUrl.Parse(doc.URL()); err == nil {
		host = u.Host
	}

	for _, el := range doc.Query("a") {
		rec.TotalLinks++
		href, _ := el.Attr("href")
		href = strings.TrimSpace(href)

		if strings.HasPrefix(href, "/") || (host != "" && strings.Contains(href, host)) {
			rec.InternalLinks++
		} else if strings.HasPrefix(href, "http") {
			rec.ExternalLinks++
		}
		if strings.HasPrefix(href, "#") {
			rec.AnchorLinks++
		}
		if collapse(el.Text()) == "" {
			rec.EmptyTextLinks++
		}
		if rel, _ := el.Attr("rel"); strings.Contains(rel, "nofollow") {
			rec.NofollowLinks++
		}
	}
}

func extractStructuredData(doc render.Document, rec *model.PageRecord) {
	for _, el := range doc.Query(`script[type="application/ld+json"]`) {
		var payload any
		if err := jsoniter.UnmarshalFromString(el.Text(), &payload); err != nil {
			// One malformed block never aborts the others.
			slog.Debug("skipping malformed ld+json block.", slog.String("url", rec.URL),
				slog.String("err", err.Error()))
			continue
		}

		switch v := payload.(type) {
		case map[string]any:
			appendSchemaEntry(rec, v)
		case []any:
			for _, item := range v {
				if obj, ok := item.(map[string]any); ok {
					appendSchemaEntry(rec, obj)
				}
			}
		}
	}
	rec.HasSchema = len(rec.StructuredData) > 0
	rec.MicrodataCount = len(doc.Query("[itemscope]"))
}

func appendSchemaEntry(rec *model.PageRecord, obj map[string]any) {
	schemaType := typeOf(obj)
	if schemaType == "" {
		return
	}
	raw, err := jsoniter.MarshalToString(obj)
	if err != nil {
		return
	}
	rec.StructuredData = append(rec.StructuredData, model.SchemaEntry{Type: schemaType, Raw: raw})
}

func typeOf(obj map[string]any) string {
	switch t := obj["@type"].(type) {
	case string:
		return t
	case []any:
		if len(t) > 0 {
			if s, ok := t[0].(string); ok {
				return s
			}
		}
	}
	return ""
}

func extractSeoMeta(doc render.Document, rec *model.PageRecord) {
	canonical, _ := ResolveText(doc, "", []Strategy[string]{
		Attr("canonical", `link[rel="canonical"]`, "href"),
	})
	rec.CanonicalURL = canonical
	robots, _ := ResolveText(doc, "", []Strategy[string]{
		Attr("robots", `meta[name="robots"]`, "content"),
	})
	rec.MetaRobots = robots
	keywords, _ := ResolveText(doc, "", []Strategy[string]{
		Attr("keywords", `meta[name="keywords"]`, "content"),
	})
	rec.MetaKeywords = keywords

	for _, el := range doc.Query(`link[rel="alternate"]`) {
		lang, ok := el.Attr("hreflang")
		if !ok {
			continue
		}
		href, _ := el.Attr("href")
		rec.Hreflang = append(rec.Hreflang, model.HreflangLink{Lang: lang, Href: href})
	}

	// Last-seen value wins on duplicate keys.
	for _, el := range doc.Query(`meta[property^="og:"]`) {
		prop, _ := el.Attr("property")
		content, _ := el.Attr("content")
		rec.OpenGraph[prop] = content
	}
	for _, el := range doc.Query(`meta[name^="twitter:"]`) {
		name, _ := el.Attr("name")
		content, _ := el.Attr("content")
		rec.TwitterMeta[name] = content
	}
}

// extractProfileFields is a union across all of a field's selectors, not a
// first-match chain: up to 5 elements are visited per selector, texts are
// deduplicated by exact equality in first-seen order and the final list is
// capped at 10 values.
func extractProfileFields(doc render.Document, prof *profile.Profile, rec *model.PageRecord) {
	for _, field := range prof.Fields {
		seen := make(map[string]bool)
		values := []string{}
		for _, sel := range field.Selectors {
			els := doc.Query(sel)
			if len(els) > perSelectorElements {
				els = els[:perSelectorElements]
			}
			for _, el := range els {
				t := collapse(el.Text())
				if t == "" || seen[t] {
					continue
				}
				seen[t] = true
				values = append(values, t)
			}
		}
		if len(values) > perFieldValues {
			values = values[:perFieldValues]
		}
		rec.ProfileFields[profileFieldPrefix+field.Name] = values
	}
}

func isEmptyText(s string) bool { return s == "" }
