package pipeline

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"sync"

	"github.com/paulmach/orb/geojson"
	log "github.com/sirupsen/logrus"

	"github.com/joeblew999/plat-view/internal/format"
	"github.com/joeblew999/plat-view/internal/geom"
	"github.com/joeblew999/plat-view/internal/join"
	"github.com/joeblew999/plat-view/internal/layer"
	"github.com/joeblew999/plat-view/internal/render"
	"github.com/joeblew999/plat-view/internal/style"
)

// Config wires the loader's collaborators. Zero fields fall back to the
// built-in translator, the log reporter, no proxy and the default reduction
// parameters.
type Config struct {
	Fetcher    Fetcher
	Translator format.Translator
	Reporter   Reporter
	Proxy      ProxyResolver
	Tolerance  float64
	MaxRun     int
}

// Loader drives requests through the converter chain into the registry.
//
// In-flight fetches cannot be cancelled, so each load takes a generation
// token per requested name; a completion whose token has been superseded is
// discarded instead of applied.
type Loader struct {
	registry   *layer.Registry
	fetcher    Fetcher
	translator format.Translator
	reporter   Reporter
	proxy      ProxyResolver
	tolerance  float64
	maxRun     int

	mu   sync.Mutex
	gens map[string]uint64
}

// New creates a loader feeding the given registry.
func New(reg *layer.Registry, cfg Config) *Loader {
	ld := &Loader{
		registry:   reg,
		fetcher:    cfg.Fetcher,
		translator: cfg.Translator,
		reporter:   cfg.Reporter,
		proxy:      cfg.Proxy,
		tolerance:  cfg.Tolerance,
		maxRun:     cfg.MaxRun,
		gens:       make(map[string]uint64),
	}
	if ld.translator == nil {
		ld.translator = format.XMLTranslator{}
	}
	if ld.reporter == nil {
		ld.reporter = LogReporter{}
	}
	if ld.tolerance <= 0 {
		ld.tolerance = geom.DefaultTolerance
	}
	if ld.maxRun <= 0 {
		ld.maxRun = geom.DefaultMaxRun
	}
	return ld
}

// Load runs one request to completion. Feature, imagery and raw loads end in
// exactly one registry add or one reported error; CSV loads end in a join
// table change or a reported error. An unrecognized raw-data format returns
// format.ErrUnsupported without reporting, so the caller may fall back to a
// conversion service. An unknown request kind is a programming error in the
// dispatch table and panics.
func (ld *Loader) Load(ctx context.Context, req Request) error {
	switch req.Kind {
	case ServiceFeature, ServiceImagery, RawData, CSVData:
	default:
		panic(fmt.Sprintf("pipeline: unknown request kind %q", req.Kind))
	}

	if req.Name == "" {
		req.Name = nameFromURL(req.URL)
	}
	gen := ld.nextGen(req.Name)

	body := req.Body
	if body == nil && req.Kind != ServiceImagery {
		b, err := ld.fetch(ctx, req.URL)
		if err != nil {
			ld.reporter.ReportLoadError(req.Name, req.URL, err)
			return err
		}
		body = b
	}
	if !ld.fresh(req.Name, gen) {
		log.WithField("layer", req.Name).Debug("superseded load discarded")
		return nil
	}

	switch req.Kind {
	case ServiceFeature:
		return ld.loadServiceFeature(req, body)
	case ServiceImagery:
		return ld.loadImagery(req)
	case CSVData:
		return ld.loadCSV(req, body)
	default:
		return ld.loadRaw(ctx, req, body)
	}
}

func (ld *Loader) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if ld.fetcher == nil {
		return nil, fmt.Errorf("no fetcher configured for %q", rawURL)
	}
	target := rawURL
	if ld.proxy != nil {
		target = ld.proxy.Resolve(target)
	}
	body, _, err := ld.fetcher.Fetch(ctx, target)
	return body, err
}

// loadServiceFeature sniffs the response shape: JSON means ArcGIS REST,
// anything else is treated as WFS/GML XML.
func (ld *Loader) loadServiceFeature(req Request, body []byte) error {
	var (
		fc  *geojson.FeatureCollection
		tag format.Tag
		err error
	)
	if format.SniffJSON(body) {
		fc, err = format.FromEsriJSON(body)
		tag = format.JSON
	} else {
		fc, err = format.FromEsriGML(body)
	}
	if err != nil {
		ld.reporter.ReportLoadError(req.Name, req.URL, err)
		return err
	}
	return ld.addFeatureLayer(req, tag, fc)
}

func (ld *Loader) loadImagery(req Request) error {
	prov := req.Imagery
	if prov == nil {
		kind := render.WMS
		if strings.Contains(req.URL, "{z}") {
			kind = render.Tiles
		}
		prov = &render.Imagery{Kind: kind, URL: req.URL}
	}
	l := &layer.Layer{
		Name:    req.Name,
		Kind:    layer.Imagery,
		Source:  req.URL,
		Imagery: prov,
		Style:   style.Default(),
	}
	if err := ld.registry.Add(l); err != nil {
		ld.reporter.ReportLoadError(req.Name, req.URL, err)
		return err
	}
	return nil
}

func (ld *Loader) loadRaw(ctx context.Context, req Request, body []byte) error {
	tag := req.Format
	if tag == "" {
		tag = format.Detect(req.URL)
	}
	switch tag {
	case format.CZML, format.TopoJSON:
		l := &layer.Layer{
			Name:     req.Name,
			Kind:     layer.Feature,
			Source:   req.URL,
			Format:   tag,
			Document: body,
			Style:    style.ForName(req.Name),
		}
		if err := ld.registry.Add(l); err != nil {
			ld.reporter.ReportLoadError(req.Name, req.URL, err)
			return err
		}
		return nil
	case format.GeoJSON, format.GJSON, format.JSON:
		fc, err := format.ParseVector(body)
		if err != nil {
			ld.reporter.ReportLoadError(req.Name, req.URL, err)
			return err
		}
		return ld.addFeatureLayer(req, tag, fc)
	case format.KML, format.GPX:
		return ld.translate(ctx, req, tag, body)
	case format.KMZ:
		doc, err := format.ExtractKMZ(body)
		if err != nil {
			ld.reporter.ReportLoadError(req.Name, req.URL, err)
			return err
		}
		return ld.translate(ctx, req, format.KML, doc)
	case format.CSV:
		return ld.loadCSV(req, body)
	}
	return fmt.Errorf("load %q: %w", req.URL, format.ErrUnsupported)
}

func (ld *Loader) translate(ctx context.Context, req Request, tag format.Tag, body []byte) error {
	fc, err := ld.translator.Translate(ctx, tag, body)
	if err != nil {
		ld.reporter.ReportLoadError(req.Name, req.URL, err)
		return err
	}
	return ld.addFeatureLayer(req, tag, fc)
}

func (ld *Loader) loadCSV(req Request, body []byte) error {
	table, err := join.ParseTable(body)
	if err != nil {
		ld.reporter.ReportLoadError(req.Name, req.URL, err)
		return err
	}
	ld.registry.SetJoinTable(table)
	log.WithFields(log.Fields{
		"key":  table.KeyField,
		"rows": len(table.Values),
	}).Info("join table ingested")
	return nil
}

// addFeatureLayer normalizes the collection to WGS84, reduces oversized
// runs, then registers the layer. A reference system without a registered
// transform aborts this collection only.
func (ld *Loader) addFeatureLayer(req Request, tag format.Tag, fc *geojson.FeatureCollection) error {
	extent, err := geom.NormalizeCollection(fc, ld.tolerance, ld.maxRun)
	if err != nil {
		ld.reporter.ReportLoadError(req.Name, req.URL, err)
		return err
	}
	l := &layer.Layer{
		Name:       req.Name,
		Kind:       layer.Feature,
		Source:     req.URL,
		Format:     tag,
		Collection: fc,
		Style:      style.ForName(req.Name),
		Extent:     extent,
	}
	if err := ld.registry.Add(l); err != nil {
		ld.reporter.ReportLoadError(req.Name, req.URL, err)
		return err
	}
	return nil
}

func (ld *Loader) nextGen(name string) uint64 {
	ld.mu.Lock()
	defer ld.mu.Unlock()
	ld.gens[name]++
	return ld.gens[name]
}

func (ld *Loader) fresh(name string, gen uint64) bool {
	ld.mu.Lock()
	defer ld.mu.Unlock()
	return ld.gens[name] == gen
}

func nameFromURL(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		base := path.Base(u.Path)
		if ext := path.Ext(base); ext != "" {
			base = strings.TrimSuffix(base, ext)
		}
		if base != "" && base != "." && base != "/" {
			return base
		}
	}
	return "layer"
}
