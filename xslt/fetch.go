package xslt

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// Fetcher resolves the referent of xsl:include/xsl:import/document().
// The default implementation reads local filesystem paths and file://
// URLs only; wiring an HTTP fetcher is left to the caller as an
// explicit, separately-reviewed extension.
type Fetcher interface {
	Fetch(resolvedURL string) (string, error)
}

// LocalFetcher reads plain filesystem paths and file:// URLs.
type LocalFetcher struct{}

func (LocalFetcher) Fetch(resolvedURL string) (string, error) {
	path := resolvedURL
	if u, err := url.Parse(resolvedURL); err == nil && u.Scheme == "file" {
		path = u.Path
	} else if err == nil && u.Scheme != "" && u.Scheme != "file" {
		return "", fmt.Errorf("%w: scheme %q not supported by the default fetcher", ErrFetch, u.Scheme)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFetch, err)
	}
	return string(data), nil
}

// resolveURL joins a possibly-relative href against a base URL the way
// a browser would resolve a relative link, falling back to filesystem
// path joining when the base isn't a well-formed URL.
func resolveURL(base, href string) string {
	if href == "" {
		return href
	}
	if strings.Contains(href, "://") {
		return href
	}
	if base == "" {
		return href
	}
	if u, err := url.Parse(base); err == nil && u.Scheme != "" {
		ref, err := url.Parse(href)
		if err == nil {
			return u.ResolveReference(ref).String()
		}
	}
	if filepath.IsAbs(href) {
		return href
	}
	return filepath.Join(filepath.Dir(base), href)
}

func (e *Engine) fetchCached(resolvedURL string) (string, error) {
	if v, ok := e.fetchLog[resolvedURL]; ok {
		return v, nil
	}
	text, err := e.Fetcher.Fetch(resolvedURL)
	if err != nil {
		return "", err
	}
	e.fetchLog[resolvedURL] = text
	return text, nil
}
