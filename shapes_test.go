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
	"errors"
	"math"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (s *Zuite) TestArea() {
	c, err := NewCircle(2)
	require.NoError(s.T(), err)
	r, err := NewRectangle(3, 4)
	require.NoError(s.T(), err)
	p, err := s.heap.NewPolygon(Point{0, 0}, Point{4, 0}, Point{4, 3})
	require.NoError(s.T(), err)
	defer Release(p)

	assert.InDelta(s.T(), 4*math.Pi, Area(c), 1e-9)
	assert.Equal(s.T(), 12.0, Area(r))
	assert.Equal(s.T(), 6.0, Area(p))
}

func (s *Zuite) TestPerimeterOf() {
	c, _ := NewCircle(1)
	r, _ := NewRectangle(3, 4)
	p, err := s.heap.NewPolygon(Point{0, 0}, Point{4, 0}, Point{4, 3})
	require.NoError(s.T(), err)
	defer Release(p)

	cases := []struct {
		shape    Shape
		expected float64
	}{
		{c, 2 * math.Pi},
		{r, 14},
		{p, 12},
	}
	for _, ex := range cases {
		perimeter, ok := PerimeterOf(ex.shape)
		assert.True(s.T(), ok, ex.shape.Kind())
		assert.InDelta(s.T(), ex.expected, perimeter, 1e-9, ex.shape.Kind())
	}

	perimeter, ok := PerimeterOf(areaOnly{})
	assert.False(s.T(), ok)
	assert.Equal(s.T(), 0.0, perimeter)
}

func (s *Zuite) TestInvalidGeometry() {
	nan := math.NaN()
	inf := math.Inf(1)
	constructors := map[string]func() (Shape, error){
		"negative radius":   func() (Shape, error) { return NewCircle(-1) },
		"zero radius":       func() (Shape, error) { return NewCircle(0) },
		"nan radius":        func() (Shape, error) { return NewCircle(nan) },
		"infinite radius":   func() (Shape, error) { return NewCircle(inf) },
		"zero width":        func() (Shape, error) { return NewRectangle(0, 5) },
		"negative height":   func() (Shape, error) { return NewRectangle(5, -1) },
		"two vertices":      func() (Shape, error) { return s.heap.NewPolygon(Point{0, 0}, Point{1, 1}) },
		"collinear":         func() (Shape, error) { return s.heap.NewPolygon(Point{0, 0}, Point{1, 1}, Point{2, 2}) },
		"non finite vertex": func() (Shape, error) { return s.heap.NewPolygon(Point{0, 0}, Point{nan, 1}, Point{2, 0}) },
		"nan area": func() (Shape, error) {
			return s.heap.NewPolygon(Point{1e200, 1e200}, Point{1e200, 1e200}, Point{0, 0})
		},
		"infinite area": func() (Shape, error) {
			return s.heap.NewPolygon(Point{0, 0}, Point{1e200, 0}, Point{0, 1e200})
		},
	}
	for name, constructor := range constructors {
		shape, err := constructor()
		assert.Nil(s.T(), shape, name)
		assert.True(s.T(), errors.Is(err, ErrInvalidGeometry), "%s: %s", name, err)
	}
	require.Equal(s.T(), 0, s.heap.Live(), "rejected shapes allocate nothing")
}

func (s *Zuite) TestPolygon_allocationFailure() {
	s.heap.SetLimit(47)

	shape, err := s.heap.NewPolygon(Point{0, 0}, Point{4, 0}, Point{4, 3})
	require.Nil(s.T(), shape)
	require.True(s.T(), errors.Is(err, ErrAllocationFailure), "%s", err)
	require.Equal(s.T(), 0, s.heap.Live())
}

func (s *Zuite) TestPolygon_release() {
	p, err := s.heap.NewPolygon(Point{0, 0}, Point{2, 0}, Point{2, 2}, Point{0, 2})
	require.NoError(s.T(), err)
	require.Equal(s.T(), 1, s.heap.Live())
	require.Equal(s.T(), []float64{0, 0, 2, 0, 2, 2, 0, 2}, p.Dims())

	Release(p)
	require.Equal(s.T(), 0, s.heap.Live())
	require.NotPanics(s.T(), func() { Release(p) })
	require.Equal(s.T(), 0.0, Area(p), "a released polygon is empty")
	require.Empty(s.T(), p.Dims())
}

func (s *Zuite) TestRelease_scalarShapes() {
	c, _ := NewCircle(1)
	r, _ := NewRectangle(1, 2)
	for _, shape := range []Shape{c, r} {
		require.NotPanics(s.T(), func() {
			Release(shape)
			Release(shape)
		})
	}
	require.NotPanics(s.T(), func() { Release(nil) })
}

func (s *Zuite) TestArea_noVariantIsDispatchCorruption() {
	var headless Shape
	var typedNil *circle
	s.mustPanicWith(ErrDispatchCorruption, func() { Area(headless) })
	s.mustPanicWith(ErrDispatchCorruption, func() { Area(typedNil) })
	s.mustPanicWith(ErrDispatchCorruption, func() { PerimeterOf(typedNil) })
	require.NotPanics(s.T(), func() { Release(typedNil) })
}

func (s *Zuite) TestPolygon_freedVerticesAreDetected() {
	shape, err := s.heap.NewPolygon(Point{0, 0}, Point{1, 0}, Point{0, 1})
	require.NoError(s.T(), err)
	p := shape.(*polygon)
	alias := &polygon{vertices: p.vertices, n: p.n}

	Release(p)
	s.mustPanicWith(ErrDispatchCorruption, func() { alias.Area() })
}

func (s *Zuite) TestConstructedShapesAlwaysDispatch() {
	registry := DefaultRegistry(s.heap)
	cases := []struct {
		kind string
		dims []float64
	}{
		{KindCircle, []float64{0.5}},
		{KindCircle, []float64{1e6}},
		{KindRectangle, []float64{1e-3, 7}},
		{KindPolygon, []float64{0, 0, 1, 0, 1, 1, 0, 1}},
	}
	for _, ex := range cases {
		shape, err := registry.New(ex.kind, ex.dims...)
		require.NoError(s.T(), err)
		require.NotPanics(s.T(), func() { Area(shape) }, ex.kind)
		require.Greater(s.T(), Area(shape), 0.0, ex.kind)
		Release(shape)
	}
}

// areaOnly is a shape defined outside of the package's variants, without the
// optional perimeter.
type areaOnly struct{}

func (areaOnly) Kind() string    { return "area_only" }
func (areaOnly) Area() float64   { return 1 }
func (areaOnly) Dims() []float64 { return nil }
func (areaOnly) Release()        {}
