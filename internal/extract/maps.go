package extract

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/handyman-tn/leadsync/internal/model"
	"github.com/handyman-tn/leadsync/internal/resilience"
)

const mapsSearchURL = "https://www.google.com/maps/search/"

// MapsOptions configures the Google Maps extractor.
type MapsOptions struct {
	Headless     bool
	ExecPath     string // browser binary; empty = chromedp default lookup
	UserAgent    string
	ScrollPasses int           // feed scroll iterations to load more cards
	SettleDelay  time.Duration // wait after navigation for panels to render
	MaxRetries   int           // search retry attempts on transient failures
}

func (o MapsOptions) withDefaults() MapsOptions {
	if o.ScrollPasses <= 0 {
		o.ScrollPasses = 5
	}
	if o.SettleDelay <= 0 {
		o.SettleDelay = 2 * time.Second
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = 2
	}
	if o.UserAgent == "" {
		o.UserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 " +
			"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	}
	return o
}

// MapsExtractor implements Extractor against Google Maps via chromedp.
type MapsExtractor struct {
	opts     MapsOptions
	allocCtx context.Context
	cancel   context.CancelFunc
}

// NewMaps creates a MapsExtractor with its own browser allocator. Close must
// be called when the run finishes.
func NewMaps(opts MapsOptions) *MapsExtractor {
	opts = opts.withDefaults()

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(opts.UserAgent),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	// Suppress chromedp log noise.
	silentCtx, cancelSilent := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	return &MapsExtractor{
		opts:     opts,
		allocCtx: silentCtx,
		cancel: func() {
			cancelSilent()
			cancelAlloc()
		},
	}
}

// Close shuts down the browser allocator.
func (m *MapsExtractor) Close() {
	m.cancel()
}

// Name identifies the extractor in logs.
func (m *MapsExtractor) Name() string { return "gmaps" }

const collectCardsJS = `(function() {
	var out = [];
	var cards = document.querySelectorAll('a.hfpxzc');
	for (var i = 0; i < cards.length; i++) {
		var href = cards[i].getAttribute('href');
		if (!href) continue;
		out.push(href.indexOf('http') === 0 ? href : 'https://www.google.com' + href);
	}
	return out;
})()`

// Search navigates to the maps results feed for a query and returns the
// detail-page URLs of every loaded card. When the query resolves straight to
// a single detail page (no feed), the landed URL is the sole locator and
// IsList is false. Returns ErrNoResults when neither happens.
func (m *MapsExtractor) Search(ctx context.Context, query string) (SearchResult, error) {
	log := zap.L().With(zap.String("component", "extract.gmaps"), zap.String("query", query))

	cfg := resilience.DefaultRetryConfig()
	cfg.MaxAttempts = m.opts.MaxRetries
	cfg.OnRetry = resilience.RetryLogger("gmaps", "search")

	return resilience.DoVal(ctx, cfg, func(ctx context.Context) (SearchResult, error) {
		tabCtx, cancel := chromedp.NewContext(m.allocCtx)
		defer cancel()
		// Honor the watchdog budget: cancel the tab when the pipeline
		// context expires.
		stop := context.AfterFunc(ctx, cancel)
		defer stop()

		target := mapsSearchURL + strings.ReplaceAll(strings.TrimSpace(query), " ", "+")

		var hasFeed bool
		var landedURL string
		if err := chromedp.Run(tabCtx,
			chromedp.Navigate(target),
			chromedp.Sleep(m.opts.SettleDelay),
			chromedp.Evaluate(`document.querySelector('[role="feed"]') !== null`, &hasFeed),
			chromedp.Location(&landedURL),
		); err != nil {
			return SearchResult{}, eris.Wrap(err, "extract: maps search navigate")
		}

		if !hasFeed {
			// Maps redirects single-match queries straight to the place page.
			if strings.Contains(landedURL, "/maps/place/") {
				log.Debug("single-result page resolved directly")
				return SearchResult{Locators: []string{landedURL}, IsList: false}, nil
			}
			return SearchResult{}, ErrNoResults
		}

		// Scroll the feed to load more cards before collecting hrefs.
		var locators []string
		tasks := chromedp.Tasks{}
		for i := 0; i < m.opts.ScrollPasses; i++ {
			tasks = append(tasks,
				chromedp.Evaluate(`(function(){var f=document.querySelector('[role="feed"]');if(f){f.scrollTop=f.scrollHeight;}return true;})()`, new(bool)),
				chromedp.Sleep(m.opts.SettleDelay),
			)
		}
		tasks = append(tasks, chromedp.Evaluate(collectCardsJS, &locators))

		if err := chromedp.Run(tabCtx, tasks); err != nil {
			return SearchResult{}, eris.Wrap(err, "extract: maps collect cards")
		}

		if len(locators) == 0 {
			return SearchResult{}, ErrNoResults
		}

		log.Debug("feed collected", zap.Int("cards", len(locators)))
		return SearchResult{Locators: locators, IsList: true}, nil
	})
}

// detailPayload mirrors the fields pulled from a place detail page.
type detailPayload struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
	Website string `json:"website"`
	Rating  string `json:"rating"`
	Reviews string `json:"reviews"`
}

const detailJS = `(function() {
	var text = function(sel) {
		var el = document.querySelector(sel);
		return el && el.textContent ? el.textContent.trim() : '';
	};
	var out = {name: '', address: '', phone: '', website: '', rating: '', reviews: ''};
	out.name = text('h1.DUwDvf');
	out.address = text('button[data-item-id="address"] div.Io6YTe');
	var tel = document.querySelector('a[href^="tel:"]');
	if (tel) { out.phone = tel.getAttribute('href').replace('tel:', '').trim(); }
	var links = document.querySelectorAll('a[href^="http"]');
	for (var i = 0; i < links.length; i++) {
		var href = links[i].getAttribute('href');
		if (href && href.indexOf('google.com/maps') === -1 &&
			href.indexOf('tel:') === -1 && href.indexOf('mailto:') === -1) {
			out.website = href.trim();
			break;
		}
	}
	out.rating = text('div.F7nice span[aria-hidden="true"]');
	var rc = document.querySelector('div.F7nice span[aria-label]');
	if (rc) { out.reviews = rc.getAttribute('aria-label') || ''; }
	return out;
})()`

// FetchDetail visits one place page and extracts the listing fields. The
// returned record carries no scope fields; the runner stamps city, service,
// and state. Failures come back as typed skips, never as errors.
func (m *MapsExtractor) FetchDetail(ctx context.Context, locator string) DetailResult {
	tabCtx, cancel := chromedp.NewContext(m.allocCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var payload detailPayload
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(locator),
		chromedp.Sleep(m.opts.SettleDelay),
		chromedp.Evaluate(detailJS, &payload),
	)
	if err != nil {
		return DetailResult{Skip: SkipFetchFailed, Err: eris.Wrapf(err, "extract: fetch detail %s", locator)}
	}

	b := model.Business{
		Name:      cleanText(payload.Name),
		Address:   cleanText(payload.Address),
		Phone:     strings.TrimSpace(payload.Phone),
		Website:   strings.TrimSpace(payload.Website),
		SourceURL: locator,
	}
	if !b.Valid() {
		return DetailResult{Skip: SkipInvalidRecord}
	}

	if rating, count, ok := parseReviews(payload.Rating, payload.Reviews); ok {
		b.SetReviews(rating, count)
	}

	return DetailResult{Business: b}
}

// parseReviews converts the scraped rating text ("4.8") and review label
// ("512 reviews") into numeric values.
func parseReviews(ratingText, reviewText string) (float64, int, bool) {
	rating, err := strconv.ParseFloat(strings.TrimSpace(ratingText), 64)
	if err != nil {
		return 0, 0, false
	}

	digits := strings.Builder{}
	for _, r := range reviewText {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	count := 0
	if digits.Len() > 0 {
		count, _ = strconv.Atoi(digits.String())
	}
	return rating, count, true
}
