// Package flatmap is the relative-order rendering backend: stacking changes
// arrive as raise and lower calls, one per swap, the way a 2D slippy map
// restacks panes. It can also emit its visible overlays as Mapbox vector
// tiles.
package flatmap

import (
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/joeblew999/plat-view/internal/format"
	"github.com/joeblew999/plat-view/internal/layer"
)

// Map keeps overlays in draw order, top first, features above imagery.
type Map struct {
	mu       sync.Mutex
	order    []string
	overlays map[string]*overlay
}

type overlay struct {
	m       *Map
	l       *layer.Layer
	visible bool
}

// New creates an empty flat map backend.
func New() *Map {
	return &Map{overlays: make(map[string]*overlay)}
}

// Attach registers the layer at the feature/imagery boundary, mirroring the
// registry's partition rule. CZML documents only render on the globe and are
// refused here.
func (m *Map) Attach(l *layer.Layer) (layer.Attachment, error) {
	if l.Format == format.CZML {
		return nil, fmt.Errorf("layer %q: czml renders on the globe backend only", l.Name)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.overlays[l.Name]; ok {
		return nil, fmt.Errorf("layer %q already attached", l.Name)
	}
	o := &overlay{m: m, l: l, visible: true}
	m.overlays[l.Name] = o

	i := m.featureEndLocked()
	m.order = append(m.order, "")
	copy(m.order[i+1:], m.order[i:])
	m.order[i] = l.Name
	log.WithFields(log.Fields{"layer": l.Name, "kind": l.Kind}).Debug("flatmap attach")
	return o, nil
}

// Raise moves the named overlay one slot toward the top. Raising the top
// overlay is a no-op.
func (m *Map) Raise(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.indexLocked(name)
	if i < 0 {
		return fmt.Errorf("raise %q: not attached", name)
	}
	if i == 0 {
		return nil
	}
	m.order[i-1], m.order[i] = m.order[i], m.order[i-1]
	return nil
}

// Lower moves the named overlay one slot toward the bottom. Lowering the
// bottom overlay is a no-op.
func (m *Map) Lower(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.indexLocked(name)
	if i < 0 {
		return fmt.Errorf("lower %q: not attached", name)
	}
	if i == len(m.order)-1 {
		return nil
	}
	m.order[i], m.order[i+1] = m.order[i+1], m.order[i]
	return nil
}

func (o *overlay) Detach() error {
	o.m.mu.Lock()
	defer o.m.mu.Unlock()
	i := o.m.indexLocked(o.l.Name)
	if i >= 0 {
		o.m.order = append(o.m.order[:i], o.m.order[i+1:]...)
	}
	delete(o.m.overlays, o.l.Name)
	return nil
}

func (o *overlay) SetVisible(v bool) error {
	o.m.mu.Lock()
	defer o.m.mu.Unlock()
	o.visible = v
	return nil
}

// SetOrder is a no-op: stacking here is relative and arrives through Raise
// and Lower.
func (o *overlay) SetOrder(int) error { return nil }

func (m *Map) indexLocked(name string) int {
	for i, n := range m.order {
		if n == name {
			return i
		}
	}
	return -1
}

func (m *Map) featureEndLocked() int {
	for i, name := range m.order {
		if m.overlays[name].l.Kind != layer.Feature {
			return i
		}
	}
	return len(m.order)
}

// Order returns the overlay names top first.
func (m *Map) Order() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Has reports whether the named overlay is attached.
func (m *Map) Has(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.overlays[name]
	return ok
}

// Visible reports the visibility flag of the named overlay.
func (m *Map) Visible(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.overlays[name]
	return ok && o.visible
}
