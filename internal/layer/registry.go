package layer

import (
	"errors"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/joeblew999/plat-view/internal/geom"
	"github.com/joeblew999/plat-view/internal/join"
)

// Registry is the ordered collection of layers, index 0 at the top of the
// stack. Feature layers occupy a contiguous run above the imagery run, and
// the registry keeps the backend's native ordering in step with its own.
//
// The registry is the sole owner of renderer handles. Events publish after
// the lock is released, so subscribers may call back into the registry.
type Registry struct {
	mu      sync.Mutex
	backend Backend
	layers  []*Layer
	table   *join.Table
	bus     *EventBus
}

// New creates a registry driving the given backend.
func New(backend Backend) *Registry {
	return &Registry{backend: backend, bus: NewEventBus()}
}

// Subscribe returns a channel of registry change events.
func (r *Registry) Subscribe() chan Event { return r.bus.Subscribe() }

// Unsubscribe removes a subscriber and closes its channel.
func (r *Registry) Unsubscribe(ch chan Event) { r.bus.Unsubscribe(ch) }

// Add resolves the layer's name, attaches it to the backend and inserts it
// at the partition boundary: a feature layer lands at the end of the feature
// run, an imagery layer at the start of the imagery run. Either way features
// stay above imagery regardless of arrival order. The active join table, if
// any, is correlated against feature layers on the way in.
func (r *Registry) Add(l *Layer) error {
	if l == nil {
		return errors.New("add: nil layer")
	}
	r.mu.Lock()
	l.Name = r.uniqueNameLocked(l.Name)
	if l.Kind == Feature && l.Collection != nil && r.table != nil {
		join.Correlate(l.Collection, r.table)
	}
	att, err := r.backend.Attach(l)
	if err != nil {
		r.mu.Unlock()
		return fmt.Errorf("attach layer %q: %w", l.Name, err)
	}
	l.attachment = att
	l.Visible = true

	i := r.featureEndLocked()
	r.layers = append(r.layers, nil)
	copy(r.layers[i+1:], r.layers[i:])
	r.layers[i] = l
	r.resyncOrderLocked()
	name, kind := l.Name, l.Kind
	r.mu.Unlock()

	log.WithFields(log.Fields{"layer": name, "kind": kind}).Info("layer added")
	r.bus.Publish(Event{Action: ActionAdded, Name: name})
	return nil
}

// Remove releases the renderer handle of the layer at index and splices it
// out. An index that resolves to nothing is logged and ignored.
func (r *Registry) Remove(index int) {
	r.mu.Lock()
	name, ok := r.removeLocked(index)
	r.mu.Unlock()
	if !ok {
		log.WithField("index", index).Warn("remove: no layer at index")
		return
	}
	r.bus.Publish(Event{Action: ActionRemoved, Name: name})
}

// RemoveName removes the layer with the given registry name. A name that
// resolves to nothing is logged and ignored.
func (r *Registry) RemoveName(name string) {
	r.mu.Lock()
	removed, ok := r.removeLocked(r.indexLocked(name))
	r.mu.Unlock()
	if !ok {
		log.WithField("layer", name).Warn("remove: no such layer")
		return
	}
	r.bus.Publish(Event{Action: ActionRemoved, Name: removed})
}

func (r *Registry) removeLocked(index int) (string, bool) {
	if index < 0 || index >= len(r.layers) {
		return "", false
	}
	l := r.layers[index]
	if l.attachment != nil {
		if err := l.attachment.Detach(); err != nil {
			log.WithError(err).WithField("layer", l.Name).Warn("renderer detach failed")
		}
		l.attachment = nil
	}
	r.layers = append(r.layers[:index], r.layers[index+1:]...)
	r.resyncOrderLocked()
	return l.Name, true
}

// MoveUp swaps the named imagery layer with its neighbor above. Feature
// layers never reorder, and a swap that would cross the feature boundary is
// rejected rather than clamped. Only an actual swap emits an event.
func (r *Registry) MoveUp(name string) { r.move(name, -1) }

// MoveDown swaps the named imagery layer with its neighbor below, under the
// same rules as MoveUp.
func (r *Registry) MoveDown(name string) { r.move(name, +1) }

func (r *Registry) move(name string, delta int) {
	r.mu.Lock()
	i := r.indexLocked(name)
	if i < 0 {
		r.mu.Unlock()
		log.WithField("layer", name).Warn("move: no such layer")
		return
	}
	l := r.layers[i]
	if l.Kind == Feature {
		r.mu.Unlock()
		return
	}
	j := i + delta
	if j < r.featureEndLocked() || j >= len(r.layers) {
		r.mu.Unlock()
		return
	}
	r.layers[i], r.layers[j] = r.layers[j], r.layers[i]
	if s, ok := r.backend.(Stacker); ok {
		var err error
		if delta < 0 {
			err = s.Raise(l.Name)
		} else {
			err = s.Lower(l.Name)
		}
		if err != nil {
			log.WithError(err).WithField("layer", l.Name).Warn("renderer restack failed")
		}
	}
	r.resyncOrderLocked()
	r.mu.Unlock()
	r.bus.Publish(Event{Action: ActionReordered})
}

// Show toggles layer visibility. Feature layers leave or rejoin the active
// rendering set; imagery layers flip a flag on the primitive. Both live
// behind the attachment's SetVisible. A missing name is logged and ignored.
func (r *Registry) Show(name string, visible bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexLocked(name)
	if i < 0 {
		log.WithField("layer", name).Warn("show: no such layer")
		return
	}
	l := r.layers[i]
	if l.Visible == visible {
		return
	}
	if l.attachment != nil {
		if err := l.attachment.SetVisible(visible); err != nil {
			log.WithError(err).WithField("layer", l.Name).Warn("renderer visibility change failed")
		}
	}
	l.Visible = visible
}

// SetJoinTable replaces the active join table and replays it against every
// feature layer already registered. Later feature layers correlate against
// it on Add until the next table supersedes it.
func (r *Registry) SetJoinTable(t *join.Table) {
	r.mu.Lock()
	r.table = t
	if t != nil {
		for _, l := range r.layers {
			if l.Kind == Feature && l.Collection != nil {
				join.Correlate(l.Collection, t)
			}
		}
	}
	r.mu.Unlock()
	r.bus.Publish(Event{Action: ActionJoinChanged})
}

// JoinTable returns the active join table, nil when none was ingested.
func (r *Registry) JoinTable() *join.Table {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.table
}

// Get returns the layer at index, nil when the index resolves to nothing.
func (r *Registry) Get(index int) *Layer {
	r.mu.Lock()
	defer r.mu.Unlock()
	if index < 0 || index >= len(r.layers) {
		return nil
	}
	return r.layers[index]
}

// Lookup returns the layer with the given registry name.
func (r *Registry) Lookup(name string) (*Layer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexLocked(name)
	if i < 0 {
		return nil, false
	}
	return r.layers[i], true
}

// Index returns the position of the named layer, -1 when absent.
func (r *Registry) Index(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.indexLocked(name)
}

// Len returns the number of registered layers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.layers)
}

// Names returns the layer names top first.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.layers))
	for i, l := range r.layers {
		names[i] = l.Name
	}
	return names
}

// Layers returns a snapshot of the stack, top first.
func (r *Registry) Layers() []*Layer {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Layer, len(r.layers))
	copy(out, r.layers)
	return out
}

// VisibleIn returns the visible layers whose extent intersects the view
// extent, top first. Layers without a computed extent never match.
func (r *Registry) VisibleIn(e geom.Extent) []*Layer {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Layer
	for _, l := range r.layers {
		if l.Visible && l.Extent.Intersects(e) {
			out = append(out, l)
		}
	}
	return out
}

// UniqueName resolves a candidate display name against the registry,
// suffixing " (n)" until it is free.
func (r *Registry) UniqueName(candidate string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.uniqueNameLocked(candidate)
}

func (r *Registry) uniqueNameLocked(candidate string) string {
	if candidate == "" {
		candidate = "layer"
	}
	if r.indexLocked(candidate) < 0 {
		return candidate
	}
	for n := 1; ; n++ {
		name := fmt.Sprintf("%s (%d)", candidate, n)
		if r.indexLocked(name) < 0 {
			return name
		}
	}
}

func (r *Registry) indexLocked(name string) int {
	for i, l := range r.layers {
		if l.Name == name {
			return i
		}
	}
	return -1
}

// featureEndLocked returns the index one past the feature run, which is both
// the append point for features and the insert point for imagery.
func (r *Registry) featureEndLocked() int {
	for i, l := range r.layers {
		if l.Kind != Feature {
			return i
		}
	}
	return len(r.layers)
}

// resyncOrderLocked pushes explicit stacking indexes to every attachment,
// zero at the bottom of the stack. Relative-stacking backends hear about
// order through Raise and Lower instead.
func (r *Registry) resyncOrderLocked() {
	if _, ok := r.backend.(Stacker); ok {
		return
	}
	n := len(r.layers)
	for i, l := range r.layers {
		if l.attachment == nil {
			continue
		}
		if err := l.attachment.SetOrder(n - 1 - i); err != nil {
			log.WithError(err).WithField("layer", l.Name).Warn("renderer order sync failed")
		}
	}
}
