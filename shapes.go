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
	"encoding/binary"
	"fmt"
	"math"
	"reflect"
)

// Shape is the capability set shared by all shapes. The set of shapes is
// open: any type implementing Shape can be used with Area and Release, and
// registered in a Registry.
type Shape interface {
	// Kind returns the name under which the shape's factory is registered.
	Kind() string

	// Area returns the shape's area.
	Area() float64

	// Dims returns the dimensions the shape was built from, in the order its
	// factory expects them.
	Dims() []float64

	// Release frees any resources owned by the shape. It must be safe to call
	// more than once.
	Release()
}

// Perimeter is an optional capability of shapes.
type Perimeter interface {
	Perimeter() float64
}

// Assert that all variants are shapes with a perimeter.
var _ = []interface {
	Shape
	Perimeter
}{
	&circle{},
	&rectangle{},
	&polygon{},
}

// Point is a vertex of a polygon.
type Point struct {
	X, Y float64
}

const (
	KindCircle    = "circle"
	KindRectangle = "rectangle"
	KindPolygon   = "polygon"
)

// The variant types are unexported, a shape can only be obtained fully formed
// from its factory.

type circle struct {
	radius float64
}

type rectangle struct {
	width, height float64
}

type polygon struct {
	// vertices holds pairs of little-endian float64 coordinates. It is nil
	// once the polygon is released.
	vertices *buffer
	n        int
}

func positive(dim float64) bool {
	return dim > 0 && !math.IsInf(dim, 1)
}

func NewCircle(radius float64) (Shape, error) {
	if !positive(radius) {
		return nil, invalidGeometry("circle radius must be positive, was %v", radius)
	}
	return &circle{radius}, nil
}

func NewRectangle(width, height float64) (Shape, error) {
	if !positive(width) || !positive(height) {
		return nil, invalidGeometry("rectangle sides must be positive, were %v by %v", width, height)
	}
	return &rectangle{width, height}, nil
}

// NewPolygon builds a simple polygon whose vertices are stored in a buffer
// owned by the shape, and allocated from h. The polygon must be released.
func (h *Heap) NewPolygon(vertices ...Point) (Shape, error) {
	if len(vertices) < 3 {
		return nil, invalidGeometry("polygon needs at least 3 vertices, had %d", len(vertices))
	}
	for _, v := range vertices {
		if math.IsNaN(v.X) || math.IsInf(v.X, 0) || math.IsNaN(v.Y) || math.IsInf(v.Y, 0) {
			return nil, invalidGeometry("polygon vertex (%v, %v) is not finite", v.X, v.Y)
		}
	}
	if a := shoelace(vertices); a == 0 || math.IsNaN(a) || math.IsInf(a, 0) {
		return nil, invalidGeometry("polygon is degenerate, or its area is not finite")
	}

	buf, err := h.alloc(16 * len(vertices))
	if err != nil {
		return nil, fmt.Errorf("polygon: %w", err)
	}
	for i, v := range vertices {
		binary.LittleEndian.PutUint64(buf.data[16*i:], math.Float64bits(v.X))
		binary.LittleEndian.PutUint64(buf.data[16*i+8:], math.Float64bits(v.Y))
	}
	return &polygon{vertices: buf, n: len(vertices)}, nil
}

// Area dispatches to the shape's area. A nil shape has no variant to dispatch
// to, which can only come from a broken invariant, and panics.
func Area(s Shape) float64 {
	mustDispatch(s, "area")
	return s.Area()
}

// PerimeterOf returns the perimeter of s, if it has one.
func PerimeterOf(s Shape) (float64, bool) {
	mustDispatch(s, "perimeter")
	p, ok := s.(Perimeter)
	if !ok {
		return 0, false
	}
	return p.Perimeter(), true
}

// Release releases s. Releasing a nil shape does nothing.
func Release(s Shape) {
	if IsNilShape(s) {
		return
	}
	s.Release()
}

func mustDispatch(s Shape, op string) {
	if IsNilShape(s) {
		dispatchCorruption("%s of a shape with no variant (%T)", op, s)
	}
}

// IsNilShape reports whether s has no variant behind it, either because it is
// nil or because it holds a typed nil pointer.
func IsNilShape(s Shape) bool {
	if s == nil {
		return true
	}
	v := reflect.ValueOf(s)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Func, reflect.Slice, reflect.Interface, reflect.Chan:
		return v.IsNil()
	}
	return false
}

func (s *circle) Kind() string {
	return KindCircle
}

func (s *circle) Area() float64 {
	return math.Pi * s.radius * s.radius
}

func (s *circle) Perimeter() float64 {
	return 2 * math.Pi * s.radius
}

func (s *circle) Dims() []float64 {
	return []float64{s.radius}
}

func (s *circle) Release() {}

func (s *circle) String() string {
	return fmt.Sprintf("circle(%v)", s.radius)
}

func (s *rectangle) Kind() string {
	return KindRectangle
}

func (s *rectangle) Area() float64 {
	return s.width * s.height
}

func (s *rectangle) Perimeter() float64 {
	return 2 * (s.width + s.height)
}

func (s *rectangle) Dims() []float64 {
	return []float64{s.width, s.height}
}

func (s *rectangle) Release() {}

func (s *rectangle) String() string {
	return fmt.Sprintf("rectangle(%v, %v)", s.width, s.height)
}

func (s *polygon) Kind() string {
	return KindPolygon
}

// points decodes the vertices. A released polygon has none.
func (s *polygon) points() []Point {
	if s.vertices == nil {
		return nil
	}
	if !s.vertices.heap.isLive(s.vertices) {
		dispatchCorruption("polygon vertices %s were freed", s.vertices.id)
	}
	points := make([]Point, s.n)
	for i := range points {
		points[i] = Point{
			X: math.Float64frombits(binary.LittleEndian.Uint64(s.vertices.data[16*i:])),
			Y: math.Float64frombits(binary.LittleEndian.Uint64(s.vertices.data[16*i+8:])),
		}
	}
	return points
}

func (s *polygon) Area() float64 {
	return math.Abs(shoelace(s.points())) / 2
}

func (s *polygon) Perimeter() float64 {
	points := s.points()
	var perimeter float64
	for i := range points {
		next := points[(i+1)%len(points)]
		perimeter += math.Hypot(next.X-points[i].X, next.Y-points[i].Y)
	}
	return perimeter
}

func (s *polygon) Dims() []float64 {
	points := s.points()
	dims := make([]float64, 0, 2*len(points))
	for _, p := range points {
		dims = append(dims, p.X, p.Y)
	}
	return dims
}

func (s *polygon) Release() {
	if s.vertices == nil {
		return
	}
	if err := s.vertices.heap.free(s.vertices); err != nil {
		panic(fmt.Sprintf("unexpected %s", err))
	}
	s.vertices = nil
	s.n = 0
}

func (s *polygon) String() string {
	return fmt.Sprintf("polygon%v", s.points())
}

// shoelace returns twice the signed area of the polygon.
func shoelace(points []Point) float64 {
	var sum float64
	for i := range points {
		next := points[(i+1)%len(points)]
		sum += points[i].X*next.Y - next.X*points[i].Y
	}
	return sum
}
