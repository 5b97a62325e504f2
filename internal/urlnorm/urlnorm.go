// Package urlnorm validates and canonicalizes page URLs so that the
// identifiers submitted by a caller and the links discovered on pages
// compare equal when they name the same resource.
package urlnorm

import (
	"net"
	"net/url"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/linkrank/pkg/errors"
)

var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
}

// IsValid reports whether raw parses as an absolute URL with both a scheme
// and a host.
func IsValid(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return u.Scheme != "" && u.Host != ""
}

// Normalize lowercases the scheme and host, strips the scheme's default
// port, drops the fragment and turns an empty path into "/". Query strings
// and path case are preserved.
func Normalize(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", apperrors.Invalid("malformed URL %q", raw)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", apperrors.Invalid("URL %q needs a scheme and host", raw)
	}
	return canonical(u), nil
}

func canonical(u *url.URL) string {
	c := *u
	c.Scheme = strings.ToLower(c.Scheme)
	host := strings.ToLower(c.Hostname())
	port := c.Port()
	if port == defaultPorts[c.Scheme] {
		port = ""
	}
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port != "" {
		host = net.JoinHostPort(strings.Trim(host, "[]"), port)
	}
	c.Host = host
	c.Fragment = ""
	c.RawFragment = ""
	if c.Path == "" && c.Opaque == "" {
		c.Path = "/"
		c.RawPath = ""
	}
	return c.String()
}

// Resolve turns href, as found on the page at base, into a normalized
// absolute URL. Only http and https targets are kept; fragment-only links,
// mailto:, javascript: and similar report false.
func Resolve(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	abs := ref
	if base != nil {
		abs = base.ResolveReference(ref)
	}
	switch strings.ToLower(abs.Scheme) {
	case "http", "https":
	default:
		return "", false
	}
	if abs.Host == "" {
		return "", false
	}
	return canonical(abs), true
}

// Dedupe removes repeated entries, keeping the first occurrence.
func Dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, s := range items {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// Prepare filters raw to valid URLs, normalizes them and drops
// duplicates, preserving input order.
func Prepare(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		if !IsValid(r) {
			continue
		}
		n, err := Normalize(r)
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	return Dedupe(out)
}
