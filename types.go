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

// Tag is the discriminant of a Value.
type Tag int

// The tag set is closed. The zero tag is TagInt so that the zero Value is
// Int(0), which is also the state Release leaves behind.
const (
	TagInt Tag = iota
	TagFloat
	TagOwnedString
)

// Tags lists every tag, in declaration order.
var Tags = []Tag{
	TagInt,
	TagFloat,
	TagOwnedString,
}

func (tag Tag) String() string {
	switch tag {
	case TagInt:
		return "Int"
	case TagFloat:
		return "Float"
	case TagOwnedString:
		return "OwnedString"
	}
	return fmt.Sprintf("Tag(%d)", int(tag))
}

// ParseTag is the inverse of Tag.String.
func ParseTag(s string) (Tag, error) {
	for _, tag := range Tags {
		if tag.String() == s {
			return tag, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownTag, s)
}

func (tag Tag) valid() bool {
	return TagInt <= tag && tag <= TagOwnedString
}
