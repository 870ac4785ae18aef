// Package fetch retrieves rendered page text for a domain under
// classification, preferring a headless-browser crawl and falling back to
// a plain HTTP GET.
package fetch

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

// DefaultMaxDepth and DefaultMaxPages bound the headless crawl when the
// caller doesn't override them.
const (
	DefaultMaxDepth = 3
	DefaultMaxPages = 5
)

// Fetcher retrieves rendered body text for a domain. All network and
// browser errors are swallowed; Fetch returns "" rather than an error.
type Fetcher struct {
	MaxDepth int
	MaxPages int

	// allocatorOpts lets tests substitute a stub allocator; nil uses
	// chromedp's default.
	allocatorOpts []chromedp.ExecAllocatorOption
}

// New builds a Fetcher with default crawl bounds.
func New() *Fetcher {
	return &Fetcher{MaxDepth: DefaultMaxDepth, MaxPages: DefaultMaxPages}
}

// Fetch tries https:// then http://, and for each scheme tries the
// headless crawl before falling back to a plain GET. The first
// non-empty result wins; output is truncated to maxBytes.
func (f *Fetcher) Fetch(ctx context.Context, domain string, timeout time.Duration, maxBytes int) string {
	for _, scheme := range []string{"https://", "http://"} {
		root := scheme + domain

		text := f.crawl(ctx, root, timeout)
		if text == "" {
			text = f.plainGet(ctx, root, timeout)
		}
		if text != "" {
			return truncate(text, maxBytes)
		}
	}
	return ""
}

// crawl drives a bounded headless-browser traversal of root, staying
// within the fetched domain and concatenating each page's extracted
// body text. Any error at any step yields "" for that scheme.
func (f *Fetcher) crawl(ctx context.Context, root string, perPageTimeout time.Duration) string {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, append(chromedp.DefaultExecAllocatorOptions[:], f.allocatorOpts...)...)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	visited := make(map[string]struct{})
	queue := []string{root}
	var pages []string

	maxPages := f.MaxPages
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}

	for len(queue) > 0 && len(pages) < maxPages {
		url := queue[0]
		queue = queue[1:]
		if _, seen := visited[url]; seen {
			continue
		}
		visited[url] = struct{}{}

		text, links, err := f.loadPage(browserCtx, url, perPageTimeout)
		if err != nil {
			continue
		}
		if text != "" {
			pages = append(pages, text)
		}
		if len(visited) < f.maxDepth() {
			queue = append(queue, sameDomainLinks(root, links)...)
		}
	}

	return strings.Join(pages, "\n")
}

func (f *Fetcher) maxDepth() int {
	if f.MaxDepth <= 0 {
		return DefaultMaxDepth
	}
	return f.MaxDepth
}

// loadPage navigates to url, waits for the DOM, and extracts body text
// plus same-document anchor hrefs.
func (f *Fetcher) loadPage(ctx context.Context, url string, timeout time.Duration) (string, []string, error) {
	pageCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var text string
	var links []string
	err := chromedp.Run(pageCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
		chromedp.Evaluate(`document.body.innerText`, &text),
		chromedp.Evaluate(`Array.from(document.querySelectorAll('a[href]')).map(a => a.href)`, &links),
	)
	if err != nil {
		return "", nil, err
	}
	return text, links, nil
}

// plainGet is the stdlib fallback: one GET, total timeout = timeout.
// No ecosystem HTTP client in the pack offers anything beyond this for
// a single bounded GET, so net/http is used directly.
func (f *Fetcher) plainGet(ctx context.Context, url string, timeout time.Duration) string {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return ""
	}

	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return ""
	}
	return string(body)
}

func sameDomainLinks(root string, links []string) []string {
	out := make([]string, 0, len(links))
	for _, l := range links {
		if l == root || (strings.HasPrefix(l, root) && strings.ContainsRune("/?#", rune(l[len(root)]))) {
			out = append(out, l)
		}
	}
	return out
}

func truncate(s string, maxBytes int) string {
	if maxBytes <= 0 || len(s) <= maxBytes {
		return s
	}
	return s[:maxBytes]
}
