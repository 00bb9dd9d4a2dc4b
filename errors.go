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
	"fmt"
)

var (
	// ErrAllocationFailure is returned when a heap cannot satisfy an
	// allocation. Nothing is constructed on this path.
	ErrAllocationFailure = errors.New("allocation failure")

	// ErrInvalidGeometry is returned by shape factories given non-positive
	// or non-finite dimensions.
	ErrInvalidGeometry = errors.New("invalid geometry")

	// ErrDispatchCorruption signals a value or shape whose variant is unset
	// or unknown. It is only ever raised through panic.
	ErrDispatchCorruption = errors.New("dispatch corruption")

	// ErrDoubleFree is returned when a buffer is freed twice.
	ErrDoubleFree = errors.New("double free")

	ErrUnknownKind = errors.New("unknown shape kind")
	ErrUnknownTag  = errors.New("unknown value tag")
)

func invalidGeometry(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidGeometry, fmt.Sprintf(format, args...))
}

func dispatchCorruption(format string, args ...interface{}) {
	panic(fmt.Errorf("%w: %s", ErrDispatchCorruption, fmt.Sprintf(format, args...)))
}
