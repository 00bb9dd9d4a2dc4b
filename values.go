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
	"strconv"
)

// Value represents a runtime value: an integer, a floating-point number, or a
// string whose bytes live in a buffer owned by the value.
//
// Values are handled through pointers. Assigning one *Value to another
// variable aliases it, and copying the struct itself is flagged by go vet.
// To duplicate, use Clone. To hand ownership to someone else, use Move.
type Value struct {
	noCopy noCopy

	tag Tag
	i   int64
	f   float64
	buf *buffer
}

// noCopy may be embedded into structs which must not be copied after first
// use. See https://golang.org/issues/8005#issuecomment-190753527.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

func NewInt(value int64) *Value {
	return &Value{tag: TagInt, i: value}
}

func NewFloat(value float64) *Value {
	return &Value{tag: TagFloat, f: value}
}

// NewOwnedString copies s into a fresh buffer from the default heap.
func NewOwnedString(s string) (*Value, error) {
	return defaultHeap.NewOwnedString(s)
}

// NewOwnedString copies s into a fresh buffer allocated from h. On failure,
// nothing is allocated and no value is returned.
func (h *Heap) NewOwnedString(s string) (*Value, error) {
	buf, err := h.alloc(len(s))
	if err != nil {
		return nil, fmt.Errorf("owned string: %w", err)
	}
	copy(buf.data, s)
	return &Value{tag: TagOwnedString, buf: buf}, nil
}

func (value *Value) Tag() Tag {
	return value.tag
}

func (value *Value) AsInt() (int64, bool) {
	return value.i, value.tag == TagInt
}

func (value *Value) AsFloat() (float64, bool) {
	return value.f, value.tag == TagFloat
}

func (value *Value) AsString() (string, bool) {
	if value.tag != TagOwnedString {
		return "", false
	}
	return string(value.ownedBytes()), true
}

// ownedBytes returns the owned buffer's contents, and guards against an
// OwnedString whose buffer was freed out from under it.
func (value *Value) ownedBytes() []byte {
	if value.buf == nil {
		dispatchCorruption("owned string without a buffer")
	}
	if !value.buf.heap.isLive(value.buf) {
		dispatchCorruption("owned string buffer %s was freed", value.buf.id)
	}
	return value.buf.data
}

// Score is an example derived operation, total over all tags.
func (value *Value) Score() int64 {
	switch value.tag {
	case TagInt:
		return value.i + 1
	case TagFloat:
		return int64(value.f) + 2
	case TagOwnedString:
		return int64(len(value.ownedBytes())) + 3
	}
	dispatchCorruption("score of %s", value.tag)
	return 0
}

// String renders the value, e.g. `Int: 10`, `Float: 3.14` or
// `OwnedString: hello`.
func (value *Value) String() string {
	switch value.tag {
	case TagInt:
		return "Int: " + strconv.FormatInt(value.i, 10)
	case TagFloat:
		return "Float: " + strconv.FormatFloat(value.f, 'f', -1, 64)
	case TagOwnedString:
		return "OwnedString: " + string(value.ownedBytes())
	}
	dispatchCorruption("render of %s", value.tag)
	return ""
}

// Equal reports whether both values have the same tag and the same content.
// Two owned strings with equal bytes are equal even though they own
// different buffers.
func (value *Value) Equal(that *Value) bool {
	if value == nil || that == nil {
		return value == that
	}
	if value.tag != that.tag {
		return false
	}
	switch value.tag {
	case TagInt:
		return value.i == that.i
	case TagFloat:
		return value.f == that.f
	case TagOwnedString:
		return string(value.ownedBytes()) == string(that.ownedBytes())
	}
	dispatchCorruption("equality of %s", value.tag)
	return false
}

// Release frees the owned buffer, if any, and resets the value to Int(0).
// Releasing an already released value, or a nil value, does nothing.
func (value *Value) Release() {
	if value == nil {
		return
	}
	if value.tag == TagOwnedString && value.buf != nil {
		if err := value.buf.heap.free(value.buf); err != nil {
			panic(fmt.Sprintf("unexpected %s", err))
		}
	}
	value.reset()
}

func (value *Value) reset() {
	value.tag = TagInt
	value.i = 0
	value.f = 0
	value.buf = nil
}
