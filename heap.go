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

	"github.com/satori/go.uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Heap hands out owned buffers and keeps track of which ones are live. Every
// buffer has exactly one owner, which must free it exactly once.
//
// A Heap is not safe for concurrent use.
type Heap struct {
	limit  int
	inUse  int
	live   map[string]*buffer
	logger *zap.Logger
}

// HeapOption configures a Heap.
type HeapOption func(h *Heap)

// WithLimit caps the total number of bytes live at any one time. A limit of
// zero means unlimited.
func WithLimit(bytes int) HeapOption {
	return func(h *Heap) {
		h.limit = bytes
	}
}

// WithLogger sets the logger used to trace allocations.
func WithLogger(logger *zap.Logger) HeapOption {
	return func(h *Heap) {
		if logger != nil {
			h.logger = logger
		}
	}
}

func NewHeap(opts ...HeapOption) *Heap {
	h := &Heap{
		live:   make(map[string]*buffer),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// defaultHeap backs the package level constructors.
var defaultHeap = NewHeap()

// DefaultHeap returns the heap used by NewOwnedString.
func DefaultHeap() *Heap {
	return defaultHeap
}

// SetLimit changes the allocation limit. Buffers already live are not
// affected, even if they exceed the new limit.
func (h *Heap) SetLimit(bytes int) {
	h.limit = bytes
}

type buffer struct {
	id   string
	data []byte
	heap *Heap

	// reclaimed is set when Close frees a leaked buffer, whose owner may
	// still release it.
	reclaimed bool
}

func (h *Heap) alloc(size int) (*buffer, error) {
	if size < 0 {
		return nil, fmt.Errorf("%w: negative size %d", ErrAllocationFailure, size)
	}
	if h.limit != 0 && h.limit < h.inUse+size {
		h.logger.Debug("allocation refused",
			zap.Int("size", size),
			zap.Int("in_use", h.inUse),
			zap.Int("limit", h.limit))
		return nil, fmt.Errorf("%w: %d bytes requested, %d of %d in use",
			ErrAllocationFailure, size, h.inUse, h.limit)
	}

	b := &buffer{
		id:   uuid.Must(uuid.NewV4()).String(),
		data: make([]byte, size),
		heap: h,
	}
	h.live[b.id] = b
	h.inUse += size
	h.logger.Debug("alloc", zap.String("buffer", b.id), zap.Int("size", size))
	return b, nil
}

func (h *Heap) free(b *buffer) error {
	if b == nil || b.reclaimed {
		return nil
	}
	if live, ok := h.live[b.id]; !ok || live != b {
		h.logger.Warn("double free", zap.String("buffer", b.id))
		return fmt.Errorf("%w: buffer %s", ErrDoubleFree, b.id)
	}

	delete(h.live, b.id)
	h.inUse -= len(b.data)
	h.logger.Debug("free", zap.String("buffer", b.id), zap.Int("size", len(b.data)))

	// Scrub, a stale alias must not read the old contents.
	for i := range b.data {
		b.data[i] = 0
	}
	b.data = nil
	return nil
}

func (h *Heap) isLive(b *buffer) bool {
	live, ok := h.live[b.id]
	return ok && live == b
}

// Live returns the number of buffers which have been allocated but not yet
// freed.
func (h *Heap) Live() int {
	return len(h.live)
}

// InUse returns the number of bytes held by live buffers.
func (h *Heap) InUse() int {
	return h.inUse
}

// Close frees every buffer still live, and reports each one as a leak. The
// owners of leaked buffers can still be released afterwards, which frees
// nothing.
func (h *Heap) Close() error {
	ids := make([]string, 0, len(h.live))
	for id := range h.live {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var err error
	for _, id := range ids {
		b := h.live[id]
		h.logger.Warn("leaked buffer", zap.String("buffer", id), zap.Int("size", len(b.data)))
		err = multierr.Append(err, fmt.Errorf("leaked buffer %s (%d bytes)", id, len(b.data)))
		if freeErr := h.free(b); freeErr != nil {
			panic(fmt.Sprintf("unexpected %s", freeErr))
		}
		b.reclaimed = true
	}
	return err
}
