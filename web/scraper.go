package web

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/siherrmann/grimoire/helper"
	"github.com/siherrmann/grimoire/model"
	"golang.org/x/time/rate"
)

// Target is a site queried with a fixed URL template.
// Template contains the placeholder {query}, which is replaced by Escape(query).
type Target struct {
	Name     string
	Template string
	Escape   func(string) string
}

// URL returns the search URL for query
func (t Target) URL(query string) string {
	escape := t.Escape
	if escape == nil {
		escape = url.QueryEscape
	}
	return strings.ReplaceAll(t.Template, "{query}", escape(query))
}

// DefaultTargets are searched in order, one request per target
func DefaultTargets() []Target {
	return []Target{
		{Name: "dndbeyond", Template: "https://www.dndbeyond.com/search?q={query}", Escape: url.QueryEscape},
		{Name: "roll20", Template: "https://roll20.net/compendium/dnd5e/{query}", Escape: url.PathEscape},
	}
}

// WebFetchError is a failed fetch of a single page
type WebFetchError struct {
	URL string
	Err error
}

func (e *WebFetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *WebFetchError) Unwrap() error {
	return e.Err
}

// Scraper fetches the visible text of search pages.
// Requests are spaced by the configured interval and results are kept per query in memory.
type Scraper struct {
	targets    []Target
	httpClient *http.Client
	limiter    *rate.Limiter
	userAgent  string
	maxChars   int
	logger     *slog.Logger

	mu    sync.Mutex
	cache map[string][]model.WebSnippet
}

// NewScraper creates a scraper for targets. Nil targets use DefaultTargets.
func NewScraper(config model.WebConfig, targets []Target, logger *slog.Logger) (*Scraper, error) {
	if config.MaxChars <= 0 {
		return nil, helper.NewError("scraper validation", fmt.Errorf("max chars must be positive, got %d", config.MaxChars))
	}
	if targets == nil {
		targets = DefaultTargets()
	}
	if logger == nil {
		logger = slog.Default()
	}

	limit := rate.Inf
	if interval := model.Duration(config.RequestInterval); interval > 0 {
		limit = rate.Every(interval)
	}

	return &Scraper{
		targets:    targets,
		httpClient: &http.Client{Timeout: model.Duration(config.Timeout)},
		limiter:    rate.NewLimiter(limit, 1),
		userAgent:  config.UserAgent,
		maxChars:   config.MaxChars,
		logger:     logger,
		cache:      map[string][]model.WebSnippet{},
	}, nil
}

// Search fetches at most maxResults targets for query and returns the pages with text.
// Failed pages are logged and skipped, only a cancelled context is returned as an error.
func (s *Scraper) Search(ctx context.Context, query string, maxResults int) ([]model.WebSnippet, error) {
	if maxResults <= 0 {
		return []model.WebSnippet{}, nil
	}

	key := fmt.Sprintf("%d|%s", maxResults, query)
	if snippets, ok := s.cached(key); ok {
		s.logger.Debug("Web search served from cache", slog.String("query", query))
		return snippets, nil
	}

	targets := s.targets
	if len(targets) > maxResults {
		targets = targets[:maxResults]
	}

	snippets := []model.WebSnippet{}
	failed := false
	for _, target := range targets {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, helper.NewError("web search", err)
		}

		pageURL := target.URL(query)
		text, err := s.fetch(ctx, pageURL)
		if err != nil {
			if ctx.Err() != nil {
				return nil, helper.NewError("web search", ctx.Err())
			}
			failed = true
			s.logger.Warn("Web fetch failed", slog.String("target", target.Name), slog.Any("error", err))
			continue
		}
		if text == "" {
			continue
		}

		snippets = append(snippets, model.WebSnippet{URL: pageURL, Text: text})
	}

	if !failed {
		s.store(key, snippets)
	}

	s.logger.Info("Web search finished", slog.String("query", query), slog.Int("results", len(snippets)))

	return snippets, nil
}

// fetch returns the visible text of pageURL, capped to maxChars runes
func (s *Scraper) fetch(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", &WebFetchError{URL: pageURL, Err: err}
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", &WebFetchError{URL: pageURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &WebFetchError{URL: pageURL, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", &WebFetchError{URL: pageURL, Err: err}
	}

	return helper.Truncate(PageText(doc), s.maxChars), nil
}

func (s *Scraper) cached(key string) ([]model.WebSnippet, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snippets, ok := s.cache[key]
	return snippets, ok
}

func (s *Scraper) store(key string, snippets []model.WebSnippet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[key] = snippets
}

// PageText returns the whitespace collapsed text of the main content of doc.
// Scripts, styles, navigation and footers are dropped.
func PageText(doc *goquery.Document) string {
	doc.Find("script, style, noscript, nav, footer").Remove()

	content := doc.Find("main").First()
	if content.Length() == 0 {
		content = doc.Find("body")
	}

	var b strings.Builder
	collectText(content, &b)

	return strings.Join(strings.Fields(b.String()), " ")
}

func collectText(s *goquery.Selection, b *strings.Builder) {
	s.Contents().Each(func(_ int, child *goquery.Selection) {
		switch goquery.NodeName(child) {
		case "#text":
			b.WriteString(child.Text())
			b.WriteByte(' ')
		case "#comment":
		default:
			collectText(child, b)
		}
	})
}
