// Package extract defines the extractor contract consumed by the pipeline
// and a chromedp-backed Google Maps implementation. The core depends only on
// the Extractor interface; page-interaction details never leak past it.
package extract

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/unicode/norm"

	"github.com/handyman-tn/leadsync/internal/model"
)

// ErrNoResults is returned by Search when the source found nothing for a
// query. The runner converts it into a skipped target, never a run failure.
var ErrNoResults = eris.New("extract: no results")

// SearchResult holds the ordered detail locators found for a query.
// IsList=false with a single locator means the source resolved the query
// straight to a detail page.
type SearchResult struct {
	Locators []string
	IsList   bool
}

// SkipReason classifies why a single locator produced no usable record.
type SkipReason string

const (
	// SkipFetchFailed covers navigation or page-load failures for one locator.
	SkipFetchFailed SkipReason = "fetch_failed"
	// SkipParseFailed covers pages that loaded but yielded no readable fields.
	SkipParseFailed SkipReason = "parse_failed"
	// SkipInvalidRecord covers records with neither name nor website.
	SkipInvalidRecord SkipReason = "invalid_record"
)

// DetailResult is the explicit success-or-skip outcome of fetching one
// detail locator. Failures never escape FetchDetail as errors or panics;
// a skipped candidate carries its reason and the pipeline moves on.
type DetailResult struct {
	Business model.Business
	Skip     SkipReason
	Err      error // underlying cause when skipped, for logging only
}

// Skipped reports whether the locator should be dropped.
func (r DetailResult) Skipped() bool {
	return r.Skip != ""
}

// Extractor is the contract the pipeline consumes.
type Extractor interface {
	// Search returns detail locators for a query, or ErrNoResults.
	Search(ctx context.Context, query string) (SearchResult, error)
	// FetchDetail resolves one locator into a record or a typed skip.
	FetchDetail(ctx context.Context, locator string) DetailResult
	// Name identifies the extractor in logs.
	Name() string
}

// cleanText normalizes scraped text at the extraction boundary: NFKC so
// visually identical glyphs compare equal downstream, then whitespace
// collapse. Fingerprinting assumes text entered the pipeline this way.
func cleanText(s string) string {
	return strings.Join(strings.Fields(norm.NFKC.String(s)), " ")
}
