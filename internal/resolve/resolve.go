// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package resolve maps a catalogued URL to a concrete downloadable
// resource. A Registry picks one Resolver per URL: the direct-file resolver
// when the URL names a file, else the site connector registered for the
// URL's domain, else the Unsupported fallback.
package resolve

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
)

var (
	// ErrAmbiguousValidity marks a page whose validity flag and status text contradict each other.
	ErrAmbiguousValidity = errors.New("ambiguous document validity")

	// ErrPageStructure marks a page missing an element the connector depends on.
	ErrPageStructure = errors.New("unexpected page structure")

	// ErrEmptyTitle marks a title that sanitizes to nothing.
	ErrEmptyTitle = errors.New("title is empty after sanitization")
)

// Result describes what a resolver found and saved. An empty DownloadURL
// means no download was produced.
type Result struct {
	// DownloadURL is the concrete resource URL.
	DownloadURL string

	// SavedPath is the local file path; set whenever DownloadURL is.
	SavedPath string

	// Title is the human-readable document title.
	Title string

	// Validity is the classified version state of the document.
	Validity Validity

	// Existed is true when SavedPath was already on disk and nothing was fetched.
	Existed bool
}

// Resolver resolves one URL into a saved resource under outputDir. A nil
// error with an empty Result means the URL produces no download.
type Resolver interface {
	Name() string
	Resolve(ctx context.Context, url, title, outputDir string) (Result, error)
}

type route struct {
	domain   string
	resolver Resolver
}

// Registry selects a resolver by URL in a fixed priority order.
type Registry struct {
	direct   Resolver
	routes   []route
	fallback Resolver
}

// NewRegistry returns a registry that tries direct first and fallback last.
func NewRegistry(direct, fallback Resolver) *Registry {
	return &Registry{direct: direct, fallback: fallback}
}

// Register adds a connector for a domain. A URL matches when its host
// equals the domain or is a subdomain of it. Connectors are tried in
// registration order.
func (r *Registry) Register(domain string, res Resolver) {
	r.routes = append(r.routes, route{domain: strings.TrimPrefix(domain, "."), resolver: res})
}

func hostMatches(host, domain string) bool {
	host = strings.ToLower(host)
	return host == domain || strings.HasSuffix(host, "."+domain)
}

// Lookup returns the resolver responsible for rawURL.
func (r *Registry) Lookup(rawURL string) Resolver {
	if r.direct != nil && IsFileURL(rawURL) {
		return r.direct
	}
	if u, err := url.Parse(strings.TrimSpace(rawURL)); err == nil {
		for _, rt := range r.routes {
			if hostMatches(u.Hostname(), rt.domain) {
				return rt.resolver
			}
		}
	}
	return r.fallback
}

// Resolve dispatches rawURL to its resolver.
func (r *Registry) Resolve(ctx context.Context, rawURL, title, outputDir string) (Result, error) {
	return r.Lookup(rawURL).Resolve(ctx, rawURL, title, outputDir)
}

// Unsupported is the fallback for URLs no connector handles. It logs and
// returns an empty Result.
type Unsupported struct {
	Logger *slog.Logger
}

func (u Unsupported) Name() string { return "unsupported" }

func (u Unsupported) Resolve(_ context.Context, rawURL, title, _ string) (Result, error) {
	log := u.Logger
	if log == nil {
		log = slog.Default()
	}
	log.Info("no resolver for URL, skipping", "url", rawURL, "title", title)
	return Result{}, nil
}
