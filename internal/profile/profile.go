// Package profile holds the static registry of extraction profiles. A profile
// tailors extraction to an industry vertical by mapping logical field names to
// ordered lists of CSS selectors. The registry is fixed at build time and is
// never mutated after process start.
package profile

import (
	"errors"
	"fmt"
)

var ErrUnknownProfile = errors.New("unknown extraction profile")

// FieldSpec is one profile field with its selectors in declared precedence order.
type FieldSpec struct {
	Name      string
	Selectors []string
}

type Profile struct {
	Key         string
	Name        string
	Description string
	Fields      []FieldSpec
	SchemaTypes []string
}

// Choice is a (key, display name) pair for presentation layers.
type Choice struct {
	Key  string
	Name string
}

// keyOrder fixes the iteration order for Keys().
var keyOrder = []string{"ecommerce", "b2b", "blog_content", "local_business", "general"}

var registry = map[string]*Profile{
	"ecommerce": {
		Key:         "ecommerce",
		Name:        "E-commerce",
		Description: "Extracts product prices, SKUs, inventory, reviews",
		Fields: []FieldSpec{
			{Name: "price", Selectors: []string{
				`[class*="price"]`,
				`[id*="price"]`,
				`[data-testid*="price"]`,
				`.product-price`,
				`span[itemprop="price"]`,
			}},
			{Name: "product_name", Selectors: []string{
				`h1[class*="product"]`,
				`[itemprop="name"]`,
				`.product-title`,
			}},
			{Name: "sku", Selectors: []string{
				`[class*="sku"]`,
				`[data-sku]`,
				`span[itemprop="sku"]`,
			}},
			{Name: "availability", Selectors: []string{
				`[class*="stock"]`,
				`[itemprop="availability"]`,
				`.availability`,
			}},
			{Name: "reviews", Selectors: []string{
				`[class*="review"]`,
				`[itemprop="ratingValue"]`,
				`.rating`,
			}},
		},
		SchemaTypes: []string{"Product", "Offer", "AggregateRating"},
	},
	"b2b": {
		Key:         "b2b",
		Name:        "B2B / SaaS",
		Description: "Extracts CTAs, forms, case studies, features",
		Fields: []FieldSpec{
			{Name: "cta_buttons", Selectors: []string{
				`a[href*="contact"]`,
				`a[href*="demo"]`,
				`button[class*="cta"]`,
				`.btn-primary`,
			}},
			{Name: "forms", Selectors: []string{
				`form[class*="contact"]`,
				`form[class*="lead"]`,
				`input[type="email"]`,
			}},
			{Name: "case_studies", Selectors: []string{
				`[class*="case-study"]`,
				`[class*="testimonial"]`,
				`.customer-story`,
			}},
			{Name: "features", Selectors: []string{
				`[class*="feature"]`,
				`.benefits li`,
				`[class*="capability"]`,
			}},
			{Name: "pricing", Selectors: []string{
				`[class*="price"]`,
				`[class*="plan"]`,
				`.pricing-tier`,
			}},
		},
		SchemaTypes: []string{"Organization", "Service", "FAQPage"},
	},
	"blog_content": {
		Key:         "blog_content",
		Name:        "Blog / Content Site",
		Description: "Extracts articles, authors, dates, categories",
		Fields: []FieldSpec{
			{Name: "article_body", Selectors: []string{
				`article`,
				`[class*="content"]`,
				`.post-content`,
				`main`,
			}},
			{Name: "author", Selectors: []string{
				`[class*="author"]`,
				`[rel="author"]`,
				`span[itemprop="author"]`,
			}},
			{Name: "publish_date", Selectors: []string{
				`time[datetime]`,
				`[class*="date"]`,
				`meta[property="article:published_time"]`,
			}},
			{Name: "categories", Selectors: []string{
				`[class*="category"]`,
				`[class*="tag"]`,
				`.taxonomy`,
			}},
			{Name: "reading_time", Selectors: []string{
				`[class*="reading-time"]`,
				`[class*="read-time"]`,
			}},
		},
		SchemaTypes: []string{"Article", "BlogPosting", "NewsArticle"},
	},
	"local_business": {
		Key:         "local_business",
		Name:        "Local Business",
		Description: "Extracts NAP, hours, services, locations",
		Fields: []FieldSpec{
			{Name: "business_name", Selectors: []string{
				`h1`,
				`[itemprop="name"]`,
				`.business-name`,
			}},
			{Name: "address", Selectors: []string{
				`[class*="address"]`,
				`[itemprop="address"]`,
				`.location`,
			}},
			{Name: "phone", Selectors: []string{
				`a[href^="tel:"]`,
				`[class*="phone"]`,
				`[itemprop="telephone"]`,
			}},
			{Name: "hours", Selectors: []string{
				`[class*="hours"]`,
				`[itemprop="openingHours"]`,
				`.business-hours`,
			}},
			{Name: "services", Selectors: []string{
				`[class*="service"]`,
				`ul.services li`,
				`.offerings`,
			}},
		},
		SchemaTypes: []string{"LocalBusiness", "Service", "OpeningHoursSpecification"},
	},
	"general": {
		Key:         "general",
		Name:        "General SEO Audit",
		Description: "Standard SEO elements only",
		Fields:      nil,
		SchemaTypes: nil,
	},
}

// Get returns the profile registered under key.
func Get(key string) (*Profile, error) {
	p, ok := registry[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProfile, key)
	}
	return p, nil
}

// Keys returns (key, display name) pairs in registration order.
func Keys() []Choice {
	choices := make([]Choice, 0, len(keyOrder))
	for _, k := range keyOrder {
		choices = append(choices, Choice{Key: k, Name: registry[k].Name})
	}
	return choices
}
