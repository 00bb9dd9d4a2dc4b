// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package polyval

import (
	"fmt"
	"sort"
)

// Factory builds a shape from its dimensions. A factory either returns a
// fully formed shape, or an error and nothing.
type Factory func(dims ...float64) (Shape, error)

// Registry maps shape kinds to their factories.
type Registry struct {
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// DefaultRegistry returns a registry which knows about circles, rectangles,
// and polygons. Polygons are allocated from h.
func DefaultRegistry(h *Heap) *Registry {
	r := NewRegistry()
	r.Register(KindCircle, func(dims ...float64) (Shape, error) {
		if len(dims) != 1 {
			return nil, invalidGeometry("circle expects 1 dimension, got %d", len(dims))
		}
		return NewCircle(dims[0])
	})
	r.Register(KindRectangle, func(dims ...float64) (Shape, error) {
		if len(dims) != 2 {
			return nil, invalidGeometry("rectangle expects 2 dimensions, got %d", len(dims))
		}
		return NewRectangle(dims[0], dims[1])
	})
	r.Register(KindPolygon, func(dims ...float64) (Shape, error) {
		if len(dims)%2 != 0 {
			return nil, invalidGeometry("polygon expects coordinate pairs, got %d dimensions", len(dims))
		}
		vertices := make([]Point, len(dims)/2)
		for i := range vertices {
			vertices[i] = Point{dims[2*i], dims[2*i+1]}
		}
		return h.NewPolygon(vertices...)
	})
	return r
}

// Register makes a factory available under kind. Registering twice under the
// same kind, or registering a nil factory, panics.
func (r *Registry) Register(kind string, factory Factory) {
	if factory == nil {
		panic("polyval: Register factory is nil")
	}
	if _, dup := r.factories[kind]; dup {
		panic(fmt.Sprintf("polyval: Register called twice for kind %s", kind))
	}
	r.factories[kind] = factory
}

// New builds a shape of the given kind.
func (r *Registry) New(kind string, dims ...float64) (Shape, error) {
	factory, ok := r.factories[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	s, err := factory(dims...)
	if err != nil {
		return nil, err
	}
	if IsNilShape(s) {
		dispatchCorruption("factory for %s returned no shape", kind)
	}
	if s.Kind() != kind {
		s.Release()
		dispatchCorruption("factory for %s returned a %s", kind, s.Kind())
	}
	return s, nil
}

// Kinds returns the registered kinds, sorted.
func (r *Registry) Kinds() []string {
	kinds := make([]string, 0, len(r.factories))
	for kind := range r.factories {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}
