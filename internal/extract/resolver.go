// Package extract implements the page extraction pipeline: a generic
// ordered-fallback field resolver plus the per-dimension SEO extractors
// built on it.
package extract

import (
	"log/slog"
	"strings"

	"github.com/pinngrowth/seo-site-audit/internal/render"
)

// Strategy is one candidate method for resolving a logical field. Strategies
// are tried strictly in the declared order; the first non-empty result wins.
type Strategy[T any] struct {
	Name string
	Eval func(doc render.Document) (T, error)
}

// safeEval isolates one strategy evaluation. Errors and panics are treated
// the same as producing nothing.
func safeEval[T any](doc render.Document, s Strategy[T]) (value T, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Debug("strategy panicked.", slog.String("strategy", s.Name), slog.Any("panic", r))
			ok = false
		}
	}()
	value, err := s.Eval(doc)
	if err != nil {
		return value, false
	}
	return value, true
}

// resolve tries strategies in order and stops at the first whose result is
// non-empty. If every strategy comes up empty it returns the sentinel and an
// empty source name. It never fails.
func resolve[T any](doc render.Document, sentinel T, empty func(T) bool, strategies []Strategy[T]) (T, string) {
	for _, s := range strategies {
		v, ok := safeEval(doc, s)
		if !ok || empty(v) {
			continue
		}
		return v, s.Name
	}
	return sentinel, ""
}

// resolveAll evaluates every strategy (so each fallback candidate can be
// recorded alongside the winner) and picks the first non-empty one.
func resolveAll[T any](doc render.Document, sentinel T, empty func(T) bool, strategies []Strategy[T]) (values []T, best T, source string) {
	values = make([]T, len(strategies))
	best = sentinel
	for i, s := range strategies {
		v, ok := safeEval(doc, s)
		if !ok {
			continue
		}
		values[i] = v
		if source == "" && !empty(v) {
			best = v
			source = s.Name
		}
	}
	return values, best, source
}

// ResolveText resolves a scalar text field.
func ResolveText(doc render.Document, sentinel string, strategies []Strategy[string]) (string, string) {
	return resolve(doc, sentinel, func(s string) bool { return s == "" }, strategies)
}

// ResolveList resolves a list field; the sentinel is the empty list.
func ResolveList(doc render.Document, strategies []Strategy[[]string]) ([]string, string) {
	return resolve(doc, []string{}, func(s []string) bool { return len(s) == 0 }, strategies)
}

// Text queries the selector and returns the trimmed text of the first match.
func Text(name, selector string) Strategy[string] {
	return Strategy[string]{Name: name, Eval: func(doc render.Document) (string, error) {
		els := doc.Query(selector)
		if len(els) == 0 {
			return "", nil
		}
		return collapse(els[0].Text()), nil
	}}
}

// Attr queries the selector and returns the named attribute of the first match.
func Attr(name, selector, attr string) Strategy[string] {
	return Strategy[string]{Name: name, Eval: func(doc render.Document) (string, error) {
		els := doc.Query(selector)
		if len(els) == 0 {
			return "", nil
		}
		v, _ := els[0].Attr(attr)
		return strings.TrimSpace(v), nil
	}}
}

// Computed wraps an arbitrary document-level query as a strategy.
func Computed(name string, fn func(doc render.Document) (string, error)) Strategy[string] {
	return Strategy[string]{Name: name, Eval: fn}
}

// AllText queries the selector and returns deduplicated trimmed texts of all
// matches in first-occurrence order, capped at max entries.
func AllText(name, selector string, max int) Strategy[[]string] {
	return Strategy[[]string]{Name: name, Eval: func(doc render.Document) ([]string, error) {
		seen := make(map[string]bool)
		var out []string
		for _, el := range doc.Query(selector) {
			t := collapse(el.Text())
			if t == "" || seen[t] {
				continue
			}
			seen[t] = true
			out = append(out, t)
			if len(out) == max {
				break
			}
		}
		return out, nil
	}}
}

// collapse trims and collapses all whitespace runs to single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
