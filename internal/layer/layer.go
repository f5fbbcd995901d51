// Package layer holds the ordered registry of displayable layers and the
// renderer interfaces the registry drives.
package layer

import (
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-view/internal/format"
	"github.com/joeblew999/plat-view/internal/geom"
	"github.com/joeblew999/plat-view/internal/render"
	"github.com/joeblew999/plat-view/internal/style"
)

// Kind partitions the registry. Feature layers always render above imagery.
type Kind string

const (
	Feature Kind = "feature"
	Imagery Kind = "imagery"
)

// Layer is one displayable unit: a feature collection, a passthrough
// document, or an imagery source. A layer carries either feature data or an
// imagery reference, never both.
type Layer struct {
	Name       string                     `json:"name"`
	Kind       Kind                       `json:"kind"`
	Source     string                     `json:"source,omitempty"`
	Format     format.Tag                 `json:"format,omitempty"`
	Collection *geojson.FeatureCollection `json:"-"`
	Document   []byte                     `json:"-"`
	Imagery    *render.Imagery            `json:"imagery,omitempty"`
	Style      style.Style                `json:"style"`
	Extent     geom.Extent                `json:"extent"`
	Visible    bool                       `json:"visible"`

	attachment Attachment
}

// Attached reports whether the layer currently holds a renderer handle.
func (l *Layer) Attached() bool { return l.attachment != nil }

// Backend is a renderer the registry can drive. Attach hands the layer's
// data over and returns a handle the registry alone owns from then on.
type Backend interface {
	Attach(l *Layer) (Attachment, error)
}

// Attachment is the renderer-native handle for one added layer.
type Attachment interface {
	Detach() error
	SetVisible(visible bool) error
	// SetOrder assigns the explicit stacking index, zero at the bottom.
	// Backends with relative stacking ignore it.
	SetOrder(z int) error
}

// Stacker marks backends whose stacking is relative. The registry issues one
// Raise or Lower per swap instead of resyncing explicit indexes.
type Stacker interface {
	Raise(name string) error
	Lower(name string) error
}
