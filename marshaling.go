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
	"encoding/json"
	"fmt"
)

// Assert that values implement the json.Marshaler interface.
var _ json.Marshaler = &Value{}

// jValue is the JSON form of a value, exactly one field is set.
type jValue struct {
	Int    *int64   `json:"int,omitempty"`
	Float  *float64 `json:"float,omitempty"`
	String *string  `json:"string,omitempty"`
}

// jShape is the JSON form of a shape.
type jShape struct {
	Kind string    `json:"kind"`
	Dims []float64 `json:"dims"`
}

func (value *Value) MarshalJSON() ([]byte, error) {
	var j jValue
	switch value.tag {
	case TagInt:
		i := value.i
		j.Int = &i
	case TagFloat:
		f := value.f
		j.Float = &f
	case TagOwnedString:
		s := string(value.ownedBytes())
		j.String = &s
	default:
		dispatchCorruption("marshaling of %s", value.tag)
	}
	return json.Marshal(j)
}

// UnmarshalValue decodes a value produced by MarshalJSON. An owned string is
// decoded into a fresh buffer allocated from h.
func (h *Heap) UnmarshalValue(data []byte) (*Value, error) {
	var j jValue
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, err
	}

	var set int
	for _, present := range []bool{j.Int != nil, j.Float != nil, j.String != nil} {
		if present {
			set++
		}
	}
	if set != 1 {
		return nil, fmt.Errorf("%w: expecting exactly one of int, float, string in %s", ErrUnknownTag, data)
	}

	switch {
	case j.Int != nil:
		return NewInt(*j.Int), nil
	case j.Float != nil:
		return NewFloat(*j.Float), nil
	default:
		return h.NewOwnedString(*j.String)
	}
}

// MarshalShape encodes a shape as its kind and dimensions.
func MarshalShape(s Shape) ([]byte, error) {
	mustDispatch(s, "marshaling")
	return json.Marshal(jShape{
		Kind: s.Kind(),
		Dims: s.Dims(),
	})
}

// UnmarshalShape decodes a shape produced by MarshalShape. The shape is built
// by the factory registered for its kind, and is validated like any other.
func (r *Registry) UnmarshalShape(data []byte) (Shape, error) {
	var j jShape
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, err
	}
	return r.New(j.Kind, j.Dims...)
}
