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
	"strings"
)

// NewValue parses a literal: `10` is an Int, `3.14` is a Float, and a Go
// quoted string such as `"hello"` is an OwnedString allocated from the
// default heap.
func NewValue(literal string) (*Value, error) {
	return defaultHeap.NewValue(literal)
}

func MustNewValue(literal string) *Value {
	value, err := NewValue(literal)
	if err != nil {
		panic(err)
	}
	return value
}

// NewValue parses a literal, allocating owned strings from h.
func (h *Heap) NewValue(literal string) (*Value, error) {
	literal = strings.TrimSpace(literal)
	if literal == "" {
		return nil, fmt.Errorf("expecting literal")
	}

	if literal[0] == '"' || literal[0] == '`' {
		s, err := strconv.Unquote(literal)
		if err != nil {
			return nil, fmt.Errorf("unreadable string %s", literal)
		}
		return h.NewOwnedString(s)
	}

	if i, err := strconv.ParseInt(literal, 10, 64); err == nil {
		return NewInt(i), nil
	}
	if f, err := strconv.ParseFloat(literal, 64); err == nil {
		return NewFloat(f), nil
	}
	return nil, fmt.Errorf("unknown literal %s", literal)
}

// MustNewValue is like NewValue, but panics on error.
func (h *Heap) MustNewValue(literal string) *Value {
	value, err := h.NewValue(literal)
	if err != nil {
		panic(err)
	}
	return value
}

// Literal is the inverse of NewValue.
func (value *Value) Literal() string {
	switch value.tag {
	case TagInt:
		return strconv.FormatInt(value.i, 10)
	case TagFloat:
		s := strconv.FormatFloat(value.f, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eEnN") {
			s += ".0"
		}
		return s
	case TagOwnedString:
		return strconv.Quote(string(value.ownedBytes()))
	}
	dispatchCorruption("literal of %s", value.tag)
	return ""
}
