// Package pipeline orchestrates layer loads: fetch, convert, normalize,
// then hand the result to the layer registry.
package pipeline

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/joeblew999/plat-view/internal/format"
	"github.com/joeblew999/plat-view/internal/render"
)

// Kind selects the converter chain for a request.
type Kind string

const (
	// ServiceFeature queries a feature service and sniffs the response for
	// ArcGIS JSON or WFS/GML XML.
	ServiceFeature Kind = "service-feature"
	// ServiceImagery builds an imagery provider reference, no feature
	// conversion.
	ServiceImagery Kind = "service-imagery"
	// RawData parses a file payload by detected format.
	RawData Kind = "raw-data"
	// CSVData ingests a join table.
	CSVData Kind = "csv-data"
)

// Request describes one load.
type Request struct {
	Kind   Kind       `json:"kind" yaml:"kind"`
	Name   string     `json:"name" yaml:"name"`
	URL    string     `json:"url" yaml:"url"`
	Format format.Tag `json:"format,omitempty" yaml:"format,omitempty"`
	// Body carries a pre-fetched payload; when set, the fetcher is skipped.
	Body    []byte          `json:"-" yaml:"-"`
	Imagery *render.Imagery `json:"imagery,omitempty" yaml:"imagery,omitempty"`
}

// Fetcher returns the payload and content type for a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, string, error)
}

// ProxyResolver rewrites a URL to route through a proxy. Implementations
// return the input unchanged when no rewrite applies.
type ProxyResolver interface {
	Resolve(url string) string
}

// Reporter receives load failures for presentation. Failures reach exactly
// one reporter call per failed load and are never retried.
type Reporter interface {
	ReportLoadError(name, url string, err error)
}

// LogReporter is the default Reporter, presenting failures in the log.
type LogReporter struct{}

func (LogReporter) ReportLoadError(name, url string, err error) {
	log.WithFields(log.Fields{
		"layer": name,
		"url":   url,
	}).WithError(err).Error("layer load failed")
}

// FetchError carries the HTTP status and response body of a failed fetch so
// the reporter can present both.
type FetchError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %q: status %d: %s", e.URL, e.StatusCode, e.Body)
}
