package ecs

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/text/cases"
)

// ErrUnknownKind is returned when a kind name does not resolve.
var ErrUnknownKind = errors.New("unknown component kind")

// KindInfo describes one registered component kind.
type KindInfo struct {
	id           KindID
	name         string
	serializable bool
	onLoad       func()
	store        Removable
}

func (k *KindInfo) ID() KindID         { return k.id }
func (k *KindInfo) Name() string       { return k.name }
func (k *KindInfo) Serializable() bool { return k.serializable }

// Load runs before a snapshot is loaded. Payloads of the kind are dropped,
// then the kind's own hook runs.
func (k *KindInfo) Load() {
	if k.store != nil {
		k.store.Clear()
	}
	if k.onLoad != nil {
		k.onLoad()
	}
}

// KindOption configures a kind at registration.
type KindOption func(*KindInfo)

// Transient marks a kind as not serializable; its bit is cleared on save.
func Transient() KindOption {
	return func(k *KindInfo) { k.serializable = false }
}

// Serializable sets whether the kind's bit survives a save.
func Serializable(v bool) KindOption {
	return func(k *KindInfo) { k.serializable = v }
}

// OnLoad sets a hook that runs before a snapshot is loaded.
func OnLoad(fn func()) KindOption {
	return func(k *KindInfo) { k.onLoad = fn }
}

// Registry assigns bit indices to component kinds and owns their payload
// stores. Kinds are registered once at startup; NewWorld seals the registry.
type Registry struct {
	mu     sync.RWMutex
	kinds  []*KindInfo
	byName map[string]*KindInfo
	stores []Removable
	sealed bool
}

func NewRegistry() *Registry {
	return &Registry{
		kinds:  make([]*KindInfo, 0, 16),
		byName: make(map[string]*KindInfo, 16),
		stores: make([]Removable, 0, 16),
	}
}

func foldName(name string) string {
	return cases.Fold().String(name)
}

func (r *Registry) register(name string, store Removable, opts []KindOption) *KindInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		panic(fmt.Sprintf("ecs: cannot register kind %q after the world is built", name))
	}
	if len(r.kinds) >= MaxKinds {
		panic(fmt.Sprintf("ecs: cannot register kind %q: maximum number of kinds (%d) reached", name, MaxKinds))
	}
	key := foldName(name)
	if _, dup := r.byName[key]; dup {
		panic(fmt.Sprintf("ecs: kind %q already registered", name))
	}

	k := &KindInfo{
		id:           KindID(len(r.kinds)),
		name:         name,
		serializable: true,
		store:        store,
	}
	for _, opt := range opts {
		opt(k)
	}
	r.kinds = append(r.kinds, k)
	r.byName[key] = k
	if store != nil {
		r.stores = append(r.stores, store)
	}
	return k
}

// RegisterTag registers a kind that carries no payload.
func (r *Registry) RegisterTag(name string, opts ...KindOption) KindID {
	return r.register(name, nil, opts).id
}

// Register registers a kind whose payload is a T.
func Register[T any](r *Registry, name string, opts ...KindOption) *Kind[T] {
	store := NewPtrComponentStore[T]()
	info := r.register(name, store, opts)
	return &Kind[T]{info: info, store: store}
}

// Lookup resolves a kind by name. Names compare case-insensitively.
func (r *Registry) Lookup(name string) (*KindInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	k, ok := r.byName[foldName(name)]
	return k, ok
}

// Kind returns the kind registered under id, or nil.
func (r *Registry) Kind(id KindID) *KindInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(id) >= len(r.kinds) {
		return nil
	}
	return r.kinds[id]
}

// Kinds returns all registered kinds in bit order.
func (r *Registry) Kinds() []*KindInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*KindInfo, len(r.kinds))
	copy(out, r.kinds)
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.kinds)
}

// MaskWords is the persisted mask width in 64-bit words: the registered kind
// count rounded up to a whole word.
func (r *Registry) MaskWords() int {
	return (r.Len() + bitsPerWord - 1) / bitsPerWord
}

// Mask resolves kind names into a mask.
func (r *Registry) Mask(names ...string) (Mask, error) {
	var m Mask
	for _, name := range names {
		k, ok := r.Lookup(name)
		if !ok {
			return Mask{}, fmt.Errorf("resolve %q: %w", name, ErrUnknownKind)
		}
		m = m.With(k.id)
	}
	return m, nil
}

// Filter resolves required and excluded kind names into a query filter.
func (r *Registry) Filter(required, excluded []string) (Filter, error) {
	req, err := r.Mask(required...)
	if err != nil {
		return Filter{}, fmt.Errorf("required: %w", err)
	}
	exc, err := r.Mask(excluded...)
	if err != nil {
		return Filter{}, fmt.Errorf("excluded: %w", err)
	}
	return Filter{Required: req, Excluded: exc}, nil
}

// RemoveAll clears the given entity from every registered component store.
func (r *Registry) RemoveAll(id EntityID) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.stores {
		s.Remove(id)
	}
}

func (r *Registry) serializableMask() Mask {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var m Mask
	for _, k := range r.kinds {
		if k.serializable {
			m = m.With(k.id)
		}
	}
	return m
}

// knownMask has a bit set for every registered kind.
func (r *Registry) knownMask() Mask {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var m Mask
	for _, k := range r.kinds {
		m = m.With(k.id)
	}
	return m
}

func (r *Registry) seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}
