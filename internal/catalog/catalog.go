// Package catalog reads layer bootstrap files. A catalog is YAML or JSON
// (JSON is valid YAML, so one decoder covers both) listing the layers a
// session starts with.
package catalog

import (
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-view/internal/format"
	"github.com/joeblew999/plat-view/internal/pipeline"
	"github.com/joeblew999/plat-view/internal/render"
)

// File is the on-disk catalog shape.
type File struct {
	Name   string  `json:"name,omitempty" yaml:"name,omitempty"`
	Proxy  string  `json:"proxy,omitempty" yaml:"proxy,omitempty"`
	Layers []Entry `json:"layers" yaml:"layers"`
}

// Entry describes one layer to load. Kind and format are optional; a blank
// kind is classified from the URL's detected format.
type Entry struct {
	Name    string          `json:"name,omitempty" yaml:"name,omitempty"`
	Kind    string          `json:"kind,omitempty" yaml:"kind,omitempty"`
	URL     string          `json:"url" yaml:"url"`
	Format  string          `json:"format,omitempty" yaml:"format,omitempty"`
	Imagery *render.Imagery `json:"imagery,omitempty" yaml:"imagery,omitempty"`
}

// Load reads and parses a catalog file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %q: %w", path, err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %q: %w", path, err)
	}
	log.WithFields(log.Fields{"path": path, "layers": len(f.Layers)}).Debug("catalog loaded")
	return f, nil
}

// Parse decodes catalog bytes.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(f.Layers) == 0 {
		return nil, fmt.Errorf("parse catalog: no layers listed")
	}
	return &f, nil
}

// Requests maps the catalog's entries onto pipeline requests, in file order.
func (f *File) Requests() ([]pipeline.Request, error) {
	reqs := make([]pipeline.Request, 0, len(f.Layers))
	for i, e := range f.Layers {
		req, err := e.Request()
		if err != nil {
			return nil, fmt.Errorf("catalog layer %d: %w", i, err)
		}
		reqs = append(reqs, req)
	}
	return reqs, nil
}

// Request maps one entry onto a pipeline request.
func (e Entry) Request() (pipeline.Request, error) {
	req := pipeline.Request{
		Name:    e.Name,
		URL:     e.URL,
		Imagery: e.Imagery,
	}
	if e.URL == "" {
		return req, fmt.Errorf("entry %q has no url", e.Name)
	}
	if e.Format != "" {
		tag, ok := format.Lookup(e.Format)
		if !ok {
			return req, fmt.Errorf("entry %q: format %q: %w", e.Name, e.Format, format.ErrUnsupported)
		}
		req.Format = tag
	}

	kind, err := e.kind(req.Format)
	if err != nil {
		return req, err
	}
	req.Kind = kind
	return req, nil
}

// kind resolves the request kind. Explicit kinds are validated; a blank one
// is classified from the entry's format or URL.
func (e Entry) kind(tag format.Tag) (pipeline.Kind, error) {
	switch k := pipeline.Kind(strings.ToLower(e.Kind)); k {
	case pipeline.ServiceFeature, pipeline.ServiceImagery, pipeline.RawData, pipeline.CSVData:
		return k, nil
	case "":
	default:
		return "", fmt.Errorf("entry %q: unknown kind %q", e.Name, e.Kind)
	}
	if e.Imagery != nil {
		return pipeline.ServiceImagery, nil
	}
	if tag == "" {
		tag = format.Detect(e.URL)
	}
	if tag == format.CSV {
		return pipeline.CSVData, nil
	}
	return pipeline.RawData, nil
}
