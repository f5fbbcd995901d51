// Package globe is the explicit-order rendering backend. Every attached
// layer carries a stacking index, and feature visibility is modeled as
// membership in an active data-source set rather than a flag.
package globe

import (
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/joeblew999/plat-view/internal/format"
	"github.com/joeblew999/plat-view/internal/layer"
)

// Globe accepts every recognized payload, CZML documents included.
type Globe struct {
	mu      sync.Mutex
	entries map[string]*entry
	sources map[string]*entry
}

type entry struct {
	g       *Globe
	l       *layer.Layer
	z       int
	visible bool
}

// New creates an empty globe backend.
func New() *Globe {
	return &Globe{
		entries: make(map[string]*entry),
		sources: make(map[string]*entry),
	}
}

// Attach registers the layer, feature layers joining the active data-source
// set immediately. Document payloads must be a renderer-native format.
func (g *Globe) Attach(l *layer.Layer) (layer.Attachment, error) {
	if l.Document != nil && !format.Passthrough(l.Format) {
		return nil, fmt.Errorf("layer %q: document format %q is not renderer-native", l.Name, l.Format)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.entries[l.Name]; ok {
		return nil, fmt.Errorf("layer %q already attached", l.Name)
	}
	e := &entry{g: g, l: l, visible: true}
	g.entries[l.Name] = e
	if l.Kind == layer.Feature {
		g.sources[l.Name] = e
	}
	log.WithFields(log.Fields{"layer": l.Name, "kind": l.Kind}).Debug("globe attach")
	return e, nil
}

func (e *entry) Detach() error {
	e.g.mu.Lock()
	defer e.g.mu.Unlock()
	delete(e.g.entries, e.l.Name)
	delete(e.g.sources, e.l.Name)
	return nil
}

// SetVisible removes feature layers from the data-source set or adds them
// back; imagery just flips the flag.
func (e *entry) SetVisible(v bool) error {
	e.g.mu.Lock()
	defer e.g.mu.Unlock()
	e.visible = v
	if e.l.Kind == layer.Feature {
		if v {
			e.g.sources[e.l.Name] = e
		} else {
			delete(e.g.sources, e.l.Name)
		}
	}
	return nil
}

func (e *entry) SetOrder(z int) error {
	e.g.mu.Lock()
	defer e.g.mu.Unlock()
	e.z = z
	return nil
}

// Has reports whether the named layer is attached.
func (g *Globe) Has(name string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.entries[name]
	return ok
}

// ZIndex returns the explicit stacking index of the named layer, highest on
// top.
func (g *Globe) ZIndex(name string) (int, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.entries[name]
	if !ok {
		return 0, false
	}
	return e.z, true
}

// InActiveSet reports data-source membership. Hidden feature layers leave
// the set entirely; imagery never joins it.
func (g *Globe) InActiveSet(name string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.sources[name]
	return ok
}

// Shown reports the visibility flag of the named layer.
func (g *Globe) Shown(name string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.entries[name]
	return ok && e.visible
}

// Len counts attached layers.
func (g *Globe) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.entries)
}
