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
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// LocalStore keeps named values and shapes in a JSON file. Loading always
// produces new instances: owned strings get fresh buffers from the store's
// heap, and shapes are rebuilt through the store's registry.
type LocalStore struct {
	heap     *Heap
	registry *Registry
	filename string
}

func NewLocalStore(heap *Heap, registry *Registry, filename string) *LocalStore {
	return &LocalStore{
		heap:     heap,
		registry: registry,
		filename: filename,
	}
}

type localContents struct {
	Values map[string]json.RawMessage `json:"values"`
	Shapes map[string]json.RawMessage `json:"shapes"`
}

func (s *LocalStore) read() (*localContents, error) {
	contents := &localContents{
		Values: make(map[string]json.RawMessage),
		Shapes: make(map[string]json.RawMessage),
	}
	data, err := os.ReadFile(s.filename)
	if errors.Is(err, fs.ErrNotExist) {
		return contents, nil
	} else if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, contents); err != nil {
		return nil, fmt.Errorf("%s: %w", s.filename, err)
	}
	if contents.Values == nil {
		contents.Values = make(map[string]json.RawMessage)
	}
	if contents.Shapes == nil {
		contents.Shapes = make(map[string]json.RawMessage)
	}
	return contents, nil
}

func (s *LocalStore) write(contents *localContents) error {
	data, err := json.MarshalIndent(contents, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.filename, data, 0o644)
}

func (s *LocalStore) SaveValue(name string, value *Value) error {
	contents, err := s.read()
	if err != nil {
		return err
	}
	data, err := value.MarshalJSON()
	if err != nil {
		return err
	}
	contents.Values[name] = data
	return s.write(contents)
}

func (s *LocalStore) LoadValue(name string) (*Value, error) {
	contents, err := s.read()
	if err != nil {
		return nil, err
	}
	data, ok := contents.Values[name]
	if !ok {
		return nil, fmt.Errorf("value not found %s", name)
	}
	return s.heap.UnmarshalValue(data)
}

func (s *LocalStore) SaveShape(name string, shape Shape) error {
	contents, err := s.read()
	if err != nil {
		return err
	}
	data, err := MarshalShape(shape)
	if err != nil {
		return err
	}
	contents.Shapes[name] = data
	return s.write(contents)
}

func (s *LocalStore) LoadShape(name string) (Shape, error) {
	contents, err := s.read()
	if err != nil {
		return nil, err
	}
	data, ok := contents.Shapes[name]
	if !ok {
		return nil, fmt.Errorf("shape not found %s", name)
	}
	return s.registry.UnmarshalShape(data)
}
