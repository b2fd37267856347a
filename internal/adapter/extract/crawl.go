package extract

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/harmonize-tools/s4h-workbench/internal/adapter"
	"github.com/harmonize-tools/s4h-workbench/internal/adapter/httpclient"
)

// link is an anchor found on a page.
type link struct {
	URL  *url.URL
	Text string
}

// parseLinks returns the resolved href targets of every <a> in body.
func parseLinks(base *url.URL, body string) ([]link, error) {
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return nil, err
	}
	var links []link
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.A {
			for _, a := range n.Attr {
				if a.Key != "href" {
					continue
				}
				ref, err := url.Parse(strings.TrimSpace(a.Val))
				if err != nil {
					continue
				}
				u := base.ResolveReference(ref)
				if u.Scheme != "http" && u.Scheme != "https" {
					continue
				}
				u.Fragment = ""
				links = append(links, link{URL: u, Text: strings.TrimSpace(textOf(n))})
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return links, nil
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// matchesKeywords reports whether the link mentions any keyword. No
// keywords match everything.
func matchesKeywords(l link, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}
	hay := strings.ToLower(l.URL.String() + " " + l.Text)
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" && strings.Contains(hay, k) {
			return true
		}
	}
	return false
}

// discover crawls pages breadth-first from start, following same-host
// links up to depth hops, and returns file links with wanted extensions
// that match the keywords, in discovery order.
func discover(ctx context.Context, client *resty.Client, start *url.URL, req adapter.ExtractRequest) ([]*url.URL, error) {
	type page struct {
		u     *url.URL
		depth int
	}
	visited := map[string]bool{start.String(): true}
	seenFile := make(map[string]bool)
	queue := []page{{u: start}}
	var files []*url.URL

	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]

		resp, err := client.R().SetContext(ctx).Get(p.u.String())
		if err != nil {
			return nil, fmt.Errorf("fetching %s: %w", p.u, err)
		}
		if err := httpclient.Check(resp); err != nil {
			if p.depth == 0 {
				return nil, err
			}
			continue
		}
		links, err := parseLinks(p.u, resp.String())
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", p.u, err)
		}

		for _, l := range links {
			key := l.URL.String()
			if Wants(l.URL.Path, req.Options) {
				if !seenFile[key] && matchesKeywords(l, req.Keywords) {
					seenFile[key] = true
					files = append(files, l.URL)
				}
				continue
			}
			if p.depth < req.Depth && l.URL.Host == start.Host && !visited[key] {
				visited[key] = true
				queue = append(queue, page{u: l.URL, depth: p.depth + 1})
			}
		}
	}
	return files, nil
}
