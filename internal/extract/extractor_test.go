package extract

import (
	"reflect"
	"strings"
	"testing"

	"github.com/pinngrowth/seo-site-audit/internal/profile"
)

func generalProfile(t *testing.T) *profile.Profile {
	t.Helper()
	p, err := profile.Get("general")
	if err != nil {
		t.Fatalf("failed to get general profile: %v", err)
	}
	return p
}

func TestExtractTitles(t *testing.T) {
	t.Parallel()

	t.Run("title tag wins over h1", func(t *testing.T) {
		t.Parallel()

		doc := mustDoc(t, "https://a.com",
			`<html><head><title>Home</title></head><body><h1>Welcome</h1></body></html>`)
		rec := Extract(doc, generalProfile(t))

		if rec.BestTitle != "Home" {
			t.Errorf("got %q, expected 'Home'", rec.BestTitle)
		}
		if rec.BestTitleSource != "title_tag" {
			t.Errorf("got source %q, expected 'title_tag'", rec.BestTitleSource)
		}
		if rec.H1Title != "Welcome" {
			t.Errorf("got h1 candidate %q, expected 'Welcome'", rec.H1Title)
		}
		if len(rec.HeadingIssues) != 0 {
			t.Errorf("got issues %v, expected none", rec.HeadingIssues)
		}
	})

	t.Run("og title beats h1 when title tag is missing", func(t *testing.T) {
		t.Parallel()

		doc := mustDoc(t, "https://a.com",
			`<html><head><meta property="og:title" content="OG"></head><body><h1>H1</h1></body></html>`)
		rec := Extract(doc, generalProfile(t))

		if rec.BestTitle != "OG" || rec.BestTitleSource != "og_title" {
			t.Errorf("got %q via %q, expected 'OG' via 'og_title'", rec.BestTitle, rec.BestTitleSource)
		}
	})

	t.Run("sentinel when nothing found", func(t *testing.T) {
		t.Parallel()

		doc := mustDoc(t, "https://a.com", `<html><body><p>no titles here</p></body></html>`)
		rec := Extract(doc, generalProfile(t))

		if rec.BestTitle != NoTitleFound {
			t.Errorf("got %q, expected sentinel %q", rec.BestTitle, NoTitleFound)
		}
		if rec.BestTitleSource != "" {
			t.Errorf("got source %q, expected empty", rec.BestTitleSource)
		}
	})
}

func TestExtractDescriptions(t *testing.T) {
	t.Parallel()

	t.Run("paragraph fallback requires 50 to 500 chars", func(t *testing.T) {
		t.Parallel()

		long := strings.Repeat("word ", 15) // 75 chars
		doc := mustDoc(t, "https://a.com",
			`<html><body><p>short</p><p>`+long+`</p></body></html>`)
		rec := Extract(doc, generalProfile(t))

		if rec.BestDescriptionSource != "first_paragraph" {
			t.Errorf("got source %q, expected 'first_paragraph'", rec.BestDescriptionSource)
		}
		if rec.BestDescription != strings.TrimSpace(long) {
			t.Errorf("got %q, expected the long paragraph", rec.BestDescription)
		}
	})

	t.Run("paragraph length is counted in characters, not bytes", func(t *testing.T) {
		t.Parallel()

		// 20 characters but 60 bytes; must not pass the 50-character floor.
		short := strings.Repeat("語", 20)
		doc := mustDoc(t, "https://a.com",
			`<html><body><p>`+short+`</p></body></html>`)
		rec := Extract(doc, generalProfile(t))

		if rec.BestDescription != NoDescriptionFound {
			t.Errorf("got %q, expected sentinel for a 20-character paragraph", rec.BestDescription)
		}

		long := strings.Repeat("語", 60)
		doc = mustDoc(t, "https://a.com",
			`<html><body><p>`+long+`</p></body></html>`)
		rec = Extract(doc, generalProfile(t))

		if rec.BestDescriptionSource != "first_paragraph" {
			t.Errorf("got source %q, expected a 60-character paragraph to qualify",
				rec.BestDescriptionSource)
		}
	})

	t.Run("sentinel when nothing found", func(t *testing.T) {
		t.Parallel()

		doc := mustDoc(t, "https://a.com", `<html><body><p>short</p></body></html>`)
		rec := Extract(doc, generalProfile(t))

		if rec.BestDescription != NoDescriptionFound {
			t.Errorf("got %q, expected sentinel %q", rec.BestDescription, NoDescriptionFound)
		}
	})
}

func TestExtractHeadings(t *testing.T) {
	t.Parallel()

	t.Run("missing h1 is flagged", func(t *testing.T) {
		t.Parallel()

		doc := mustDoc(t, "https://a.com",
			`<html><body><h2>A</h2><h2>B</h2></body></html>`)
		rec := Extract(doc, generalProfile(t))

		if len(rec.H1Tags) != 0 {
			t.Errorf("got h1 tags %v, expected none", rec.H1Tags)
		}
		if len(rec.H2Tags) != 2 {
			t.Errorf("got %d h2 tags, expected 2", len(rec.H2Tags))
		}
		if !reflect.DeepEqual(rec.HeadingIssues, []string{NoH1Issue}) {
			t.Errorf("got issues %v, expected [NO_H1]", rec.HeadingIssues)
		}
	})

	t.Run("multiple h1 is flagged and never co-occurs with NO_H1", func(t *testing.T) {
		t.Parallel()

		doc := mustDoc(t, "https://a.com",
			`<html><body><h1>A</h1><h1>B</h1></body></html>`)
		rec := Extract(doc, generalProfile(t))

		if !reflect.DeepEqual(rec.HeadingIssues, []string{MultipleH1Issue}) {
			t.Errorf("got issues %v, expected [MULTIPLE_H1]", rec.HeadingIssues)
		}
	})

	t.Run("empty headings are dropped", func(t *testing.T) {
		t.Parallel()

		doc := mustDoc(t, "https://a.com",
			`<html><body><h3>  </h3><h3>kept</h3></body></html>`)
		rec := Extract(doc, generalProfile(t))

		if !reflect.DeepEqual(rec.H3Tags, []string{"kept"}) {
			t.Errorf("got h3 tags %v, expected [kept]", rec.H3Tags)
		}
	})
}

func TestExtractContent(t *testing.T) {
	t.Parallel()

	t.Run("semantic region wins", func(t *testing.T) {
		t.Parallel()

		doc := mustDoc(t, "https://a.com",
			`<html><body><main>main text</main><div class="content">`+
				strings.Repeat("filler ", 30)+`</div></body></html>`)
		rec := Extract(doc, generalProfile(t))

		if rec.ContentSource != "semantic" {
			t.Errorf("got source %q, expected 'semantic'", rec.ContentSource)
		}
		if rec.MainContent != "main text" {
			t.Errorf("got %q, expected 'main text'", rec.MainContent)
		}
	})

	t.Run("word count and thin classification", func(t *testing.T) {
		t.Parallel()

		doc := mustDoc(t, "https://a.com",
			`<html><body><main>one two three</main></body></html>`)
		rec := Extract(doc, generalProfile(t))

		if rec.WordCount != 3 {
			t.Errorf("got word count %d, expected 3", rec.WordCount)
		}
		if rec.ContentLength != ContentThin {
			t.Errorf("got %q, expected 'thin'", rec.ContentLength)
		}
	})

	t.Run("good classification at 300 words", func(t *testing.T) {
		t.Parallel()

		doc := mustDoc(t, "https://a.com",
			`<html><body><main>`+strings.Repeat("word ", 300)+`</main></body></html>`)
		rec := Extract(doc, generalProfile(t))

		if rec.WordCount != 300 {
			t.Errorf("got word count %d, expected 300", rec.WordCount)
		}
		if rec.ContentLength != ContentGood {
			t.Errorf("got %q, expected 'good'", rec.ContentLength)
		}
	})
}

func TestExtractImages(t *testing.T) {
	t.Parallel()

	doc := mustDoc(t, "https://a.com", `<html><body>
<img src="a.png" alt="a descriptive alt text">
<img src="b.png" alt="ok">
<img src="c.png" alt="">
<img src="d.png">
<img data-src="lazy.png" alt="lazy loaded image">
</body></html>`)
	rec := Extract(doc, generalProfile(t))

	if rec.TotalImages != 5 {
		t.Fatalf("got %d images, expected 5", rec.TotalImages)
	}
	if rec.ImagesWithGoodAlt != 2 {
		t.Errorf("got %d good, expected 2", rec.ImagesWithGoodAlt)
	}
	if rec.ImagesWithShortAlt != 1 {
		t.Errorf("got %d short, expected 1", rec.ImagesWithShortAlt)
	}
	if rec.ImagesWithEmptyAlt != 1 {
		t.Errorf("got %d empty, expected 1", rec.ImagesWithEmptyAlt)
	}
	if rec.ImagesWithoutAlt != 1 {
		t.Errorf("got %d missing, expected 1", rec.ImagesWithoutAlt)
	}
	if rec.Images[2].AltQuality != AltEmpty {
		t.Errorf("got alt quality %q for alt=\"\", expected 'empty'", rec.Images[2].AltQuality)
	}
	if rec.Images[4].Src != "lazy.png" {
		t.Errorf("got src %q, expected lazy-load fallback 'lazy.png'", rec.Images[4].Src)
	}
}

func TestExtractImagesAltQualityCountsCharacters(t *testing.T) {
	t.Parallel()

	// "日本" is 2 characters (6 bytes); "日本語のサイト" is 7 characters.
	doc := mustDoc(t, "https://a.com", `<html><body>
<img src="a.png" alt="日本">
<img src="b.png" alt="日本語のサイト">
</body></html>`)
	rec := Extract(doc, generalProfile(t))

	if rec.Images[0].AltQuality != AltShort {
		t.Errorf("got quality %q for a 2-character alt, expected 'short'", rec.Images[0].AltQuality)
	}
	if rec.Images[1].AltQuality != AltGood {
		t.Errorf("got quality %q for a 7-character alt, expected 'good'", rec.Images[1].AltQuality)
	}
	if rec.ImagesWithGoodAlt != 1 || rec.ImagesWithShortAlt != 1 {
		t.Errorf("got good=%d short=%d, expected 1 and 1",
			rec.ImagesWithGoodAlt, rec.ImagesWithShortAlt)
	}
}

func TestExtractLinks(t *testing.T) {
	t.Parallel()

	doc := mustDoc(t, "https://a.com/page", `<html><body>
<a href="/internal">In</a>
<a href="https://a.com/other">Also in</a>
<a href="https://b.com/x">Out</a>
<a href="#">Anchor</a>
<a href="/empty"></a>
<a href="https://b.com/y" rel="nofollow">NF</a>
</body></html>`)
	rec := Extract(doc, generalProfile(t))

	if rec.TotalLinks != 6 {
		t.Errorf("got %d total, expected 6", rec.TotalLinks)
	}
	if rec.InternalLinks != 3 {
		t.Errorf("got %d internal, expected 3", rec.InternalLinks)
	}
	if rec.ExternalLinks != 2 {
		t.Errorf("got %d external, expected 2", rec.ExternalLinks)
	}
	if rec.AnchorLinks != 1 {
		t.Errorf("got %d anchor, expected 1", rec.AnchorLinks)
	}
	if rec.EmptyTextLinks != 1 {
		t.Errorf("got %d empty-text, expected 1", rec.EmptyTextLinks)
	}
	if rec.NofollowLinks != 1 {
		t.Errorf("got %d nofollow, expected 1", rec.NofollowLinks)
	}
}

func TestExtractStructuredData(t *testing.T) {
	t.Parallel()

	doc := mustDoc(t, "https://a.com", `<html><body>
<script type="application/ld+json">{"@type": "Product", "name": "Widget"}</script>
<script type="application/ld+json">{not valid json</script>
<script type="application/ld+json">[{"@type": "Offer"}, {"@type": "Review"}]</script>
<div itemscope></div>
<span itemscope></span>
</body></html>`)
	rec := Extract(doc, generalProfile(t))

	if len(rec.StructuredData) != 3 {
		t.Fatalf("got %d entries, expected 3 (malformed block skipped)", len(rec.StructuredData))
	}
	if rec.StructuredData[0].Type != "Product" {
		t.Errorf("got type %q, expected 'Product'", rec.StructuredData[0].Type)
	}
	if !rec.HasSchema {
		t.Error("has_schema is false, expected true")
	}
	if rec.MicrodataCount != 2 {
		t.Errorf("got %d itemscope elements, expected 2", rec.MicrodataCount)
	}
}

func TestExtractSeoMeta(t *testing.T) {
	t.Parallel()

	doc := mustDoc(t, "https://a.com", `<html><head>
<link rel="canonical" href="https://a.com/canonical">
<meta name="robots" content="noindex, follow">
<meta name="keywords" content="seo, crawler">
<link rel="alternate" hreflang="en" href="https://a.com/en">
<link rel="alternate" hreflang="de" href="https://a.com/de">
<link rel="alternate" type="application/rss+xml" href="/feed.xml">
<meta property="og:type" content="website">
<meta property="og:type" content="article">
<meta name="twitter:card" content="summary">
</head><body></body></html>`)
	rec := Extract(doc, generalProfile(t))

	if rec.CanonicalURL != "https://a.com/canonical" {
		t.Errorf("got canonical %q", rec.CanonicalURL)
	}
	if rec.MetaRobots != "noindex, follow" {
		t.Errorf("got robots %q", rec.MetaRobots)
	}
	if rec.MetaKeywords != "seo, crawler" {
		t.Errorf("got keywords %q", rec.MetaKeywords)
	}
	if len(rec.Hreflang) != 2 {
		t.Errorf("got %d hreflang links, expected 2 (rss alternate skipped)", len(rec.Hreflang))
	}
	if rec.OpenGraph["og:type"] != "article" {
		t.Errorf("got og:type %q, expected last-seen 'article'", rec.OpenGraph["og:type"])
	}
	if rec.TwitterMeta["twitter:card"] != "summary" {
		t.Errorf("got twitter:card %q, expected 'summary'", rec.TwitterMeta["twitter:card"])
	}
}

func TestExtractProfileFields(t *testing.T) {
	t.Parallel()

	ecommerce, err := profile.Get("ecommerce")
	if err != nil {
		t.Fatalf("failed to get profile: %v", err)
	}

	t.Run("union across selectors with dedup and caps", func(t *testing.T) {
		t.Parallel()

		var b strings.Builder
		b.WriteString(`<html><body>`)
		// 7 class matches; the per-selector cap keeps the first 5.
		for i := 0; i < 7; i++ {
			b.WriteString(`<span class="price">$` + strings.Repeat("9", i+1) + `</span>`)
		}
		// Duplicate of the first value through a different selector.
		b.WriteString(`<div id="price-box">$9</div>`)
		b.WriteString(`</body></html>`)

		doc := mustDoc(t, "https://shop.com", b.String())
		rec := Extract(doc, ecommerce)

		values := rec.ProfileFields["profile_price"]
		if len(values) != 5 {
			t.Fatalf("got %d values, expected 5: %v", len(values), values)
		}
		seen := make(map[string]bool)
		for _, v := range values {
			if seen[v] {
				t.Errorf("duplicate value %q in %v", v, values)
			}
			seen[v] = true
		}
	})

	t.Run("field list never exceeds ten values", func(t *testing.T) {
		t.Parallel()

		var b strings.Builder
		b.WriteString(`<html><body>`)
		for i := 0; i < 5; i++ {
			b.WriteString(`<span class="price">a` + string(rune('a'+i)) + `</span>`)
		}
		for i := 0; i < 5; i++ {
			b.WriteString(`<span id="price-` + string(rune('a'+i)) + `">b` + string(rune('a'+i)) + `</span>`)
		}
		for i := 0; i < 5; i++ {
			b.WriteString(`<span data-testid="price-` + string(rune('a'+i)) + `">c` + string(rune('a'+i)) + `</span>`)
		}
		b.WriteString(`</body></html>`)

		doc := mustDoc(t, "https://shop.com", b.String())
		rec := Extract(doc, ecommerce)

		if got := len(rec.ProfileFields["profile_price"]); got != 10 {
			t.Errorf("got %d values, expected cap of 10", got)
		}
	})

	t.Run("general profile produces no profile fields", func(t *testing.T) {
		t.Parallel()

		doc := mustDoc(t, "https://a.com", `<html><body><span class="price">$1</span></body></html>`)
		rec := Extract(doc, generalProfile(t))

		if len(rec.ProfileFields) != 0 {
			t.Errorf("got profile fields %v, expected none", rec.ProfileFields)
		}
	})
}

func TestExtractIdempotence(t *testing.T) {
	t.Parallel()

	html := `<html><head><title>Home</title>
<meta name="description" content="A page about things that matter to the test.">
<meta property="og:type" content="website">
</head><body>
<h1>Welcome</h1><h2>Sub</h2>
<main>` + strings.Repeat("content ", 50) + `</main>
<img src="a.png" alt="an image of testing">
<a href="/x">X</a><a href="https://b.com">B</a>
<script type="application/ld+json">{"@type": "WebSite"}</script>
</body></html>`

	ecommerce, err := profile.Get("ecommerce")
	if err != nil {
		t.Fatalf("failed to get profile: %v", err)
	}

	first := Extract(mustDoc(t, "https://a.com", html), ecommerce)
	second := Extract(mustDoc(t, "https://a.com", html), ecommerce)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("re-extraction of the same document differs:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}
