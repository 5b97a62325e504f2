package crawler

import (
	"bytes"
	"io"
	"net/url"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/linkrank/internal/urlnorm"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"golang.org/x/net/html"
)

// extractHTML returns the href of every <a> element, resolved against
// base. A <base href> element, when present before the links, overrides
// base.
func extractHTML(body []byte, base *url.URL) ([]string, error) {
	z := html.NewTokenizer(bytes.NewReader(body))
	var links []string
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if err := z.Err(); err != io.EOF {
				return links, err
			}
			return links, nil
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if !hasAttr {
				continue
			}
			tag := string(name)
			if tag != "a" && tag != "base" {
				continue
			}
			href, ok := attr(z, "href")
			if !ok {
				continue
			}
			if tag == "base" {
				if u, err := base.Parse(strings.TrimSpace(href)); err == nil {
					base = u
				}
				continue
			}
			if link, ok := urlnorm.Resolve(base, href); ok {
				links = append(links, link)
			}
		}
	}
}

func attr(z *html.Tokenizer, key string) (string, bool) {
	for {
		k, v, more := z.TagAttr()
		if string(k) == key {
			return string(v), true
		}
		if !more {
			return "", false
		}
	}
}

// extractMarkdown returns the destinations of inline links and autolinks
// in a Markdown document, resolved against base.
func extractMarkdown(body []byte, base *url.URL) []string {
	doc := goldmark.DefaultParser().Parse(text.NewReader(body))

	var links []string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		var dest string
		switch node := n.(type) {
		case *ast.Link:
			dest = string(node.Destination)
		case *ast.AutoLink:
			if node.AutoLinkType != ast.AutoLinkURL {
				return ast.WalkContinue, nil
			}
			dest = string(node.URL(body))
		default:
			return ast.WalkContinue, nil
		}
		if link, ok := urlnorm.Resolve(base, dest); ok {
			links = append(links, link)
		}
		return ast.WalkContinue, nil
	})
	return links
}

func isMarkdown(contentType string, u *url.URL) bool {
	ct := strings.ToLower(contentType)
	if strings.Contains(ct, "markdown") {
		return true
	}
	if strings.Contains(ct, "html") {
		return false
	}
	path := strings.ToLower(u.Path)
	return strings.HasSuffix(path, ".md") || strings.HasSuffix(path, ".markdown")
}
