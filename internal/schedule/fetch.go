package schedule

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// ErrFetch reports that the schedule source was unreachable or returned a
// non-2xx status. Callers abandon the current cycle/query and retry on the
// next tick.
var ErrFetch = errors.New("schedule fetch failed")

const userAgent = "zap-bot/1.0"

// Responses bigger than this are not a schedule page.
const maxBodyBytes = 4 << 20

// Fetcher retrieves the schedule page and reduces it to plain text.
type Fetcher struct {
	url    string
	client *http.Client
}

func NewFetcher(url string, timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Fetcher{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (f *Fetcher) URL() string { return f.url }

// FetchText GETs the source URL and returns the document's text content with
// markup stripped and text nodes joined by newlines.
func (f *Fetcher) FetchText(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFetch, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: status %d from %s", ErrFetch, resp.StatusCode, f.url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("%w: reading body: %v", ErrFetch, err)
	}

	return HTMLToText(string(body)), nil
}

// HTMLToText strips tags and joins text nodes with newlines. Non-HTML input
// passes through effectively unchanged (the tokenizer treats it as one big
// text run).
func HTMLToText(doc string) string {
	node, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return doc
	}

	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.ElementNode:
			// Script/style bodies are not page text.
			if n.Data == "script" || n.Data == "style" || n.Data == "noscript" {
				return
			}
		case html.TextNode:
			if t := strings.TrimSpace(n.Data); t != "" {
				b.WriteString(t)
				b.WriteByte('\n')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(node)
	return strings.TrimRight(b.String(), "\n")
}
