// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"strings"
	"time"
)

// CatalogRow is one reference discovered on the source site, before it has
// an identity.
type CatalogRow struct {
	// Area is the top-level classification (e.g. "Davki").
	Area string `json:"area_name" yaml:"area_name"`

	// AreaDesc is the short description shown next to the area.
	AreaDesc string `json:"area_desc" yaml:"area_desc"`

	// Subarea is the reference name inside the area.
	Subarea string `json:"reference_name" yaml:"reference_name"`

	// SourceHref is the primary discovered URL.
	SourceHref string `json:"reference_href" yaml:"reference_href"`

	// Section is the heading on the subarea page under which the details link appeared.
	Section string `json:"details_section" yaml:"details_section"`

	// SectionText is the text of that section.
	SectionText string `json:"details_section_text,omitempty" yaml:"details_section_text,omitempty"`

	// DetailsName is the anchor text of the details link.
	DetailsName string `json:"details_href_name" yaml:"details_href_name"`

	// DetailsHref is the deeper link; it takes precedence over SourceHref.
	DetailsHref string `json:"details_href" yaml:"details_href"`
}

// ReferenceEntry is one catalogued source document.
type ReferenceEntry struct {
	// ID is assigned once when the entry is first catalogued and never reused.
	ID string `json:"id" yaml:"id"`

	CatalogRow `yaml:",inline"`

	// SourceHrefClean is SourceHref without its fragment.
	SourceHrefClean string `json:"reference_href_clean" yaml:"reference_href_clean"`

	// IsScraped is true once the download stage has reached a terminal outcome.
	IsScraped bool `json:"is_scraped" yaml:"is_scraped"`

	// UsedDownloadHref is the catalog link the download stage resolved.
	UsedDownloadHref string `json:"used_download_href,omitempty" yaml:"used_download_href,omitempty"`

	// ActualDownloadLink is the concrete resource URL that was fetched.
	ActualDownloadLink string `json:"actual_download_link,omitempty" yaml:"actual_download_link,omitempty"`

	// ActualDownloadLocation is the local path of the downloaded file.
	ActualDownloadLocation string `json:"actual_download_location,omitempty" yaml:"actual_download_location,omitempty"`

	// DateDownloaded is when the file was fetched; zero until downloaded.
	DateDownloaded time.Time `json:"date_downloaded,omitempty" yaml:"date_downloaded,omitempty"`
}

// Title returns the human-readable name used for file naming: the details
// link name when a details link exists, the subarea otherwise.
func (e ReferenceEntry) Title() string {
	if e.DetailsHref != "" && e.DetailsName != "" {
		return e.DetailsName
	}
	return e.Subarea
}

// CleanURL strips the fragment from a URL.
func CleanURL(u string) string {
	u = strings.TrimSpace(u)
	if i := strings.IndexByte(u, '#'); i >= 0 {
		return u[:i]
	}
	return u
}
