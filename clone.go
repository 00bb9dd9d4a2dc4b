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
)

// Clone duplicates this value to create a deep-copy. An owned string gets a
// fresh buffer, from the same heap as the original, so that the clone and the
// original can be released independently.
func (value *Value) Clone() (*Value, error) {
	switch value.tag {
	case TagInt:
		return NewInt(value.i), nil
	case TagFloat:
		return NewFloat(value.f), nil
	case TagOwnedString:
		src := value.ownedBytes()
		buf, err := value.buf.heap.alloc(len(src))
		if err != nil {
			return nil, fmt.Errorf("clone: %w", err)
		}
		copy(buf.data, src)
		return &Value{tag: TagOwnedString, buf: buf}, nil
	}
	dispatchCorruption("clone of %s", value.tag)
	return nil, nil
}

// MustClone is like Clone, but panics if the allocation fails.
func (value *Value) MustClone() *Value {
	dup, err := value.Clone()
	if err != nil {
		panic(err)
	}
	return dup
}

// Move transfers this value's payload, and ownership of its buffer, into a
// new value. This value is left as Int(0), owning nothing, so releasing it
// afterwards does not free anything.
func (value *Value) Move() *Value {
	moved := &Value{
		tag: value.tag,
		i:   value.i,
		f:   value.f,
		buf: value.buf,
	}
	value.reset()
	return moved
}
