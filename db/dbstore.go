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


package db

import (
	"fmt"

	"github.com/homelight/dat/dat"
	runner "github.com/homelight/dat/sqlx-runner"
	"github.com/lib/pq"
	"github.com/satori/go.uuid"

	"github.com/homelight/polyval"
)

// Schema creates the tables used by the store.
const Schema = `
create table if not exists polyval_values (
	id          text primary key,
	tag         text not null,
	int_value   bigint,
	float_value double precision,
	text_value  text
);

create table if not exists polyval_shapes (
	id   text primary key,
	kind text not null,
	dims double precision[] not null
);
`

// Store persists values and shapes in Postgres.
//
// Records are rebuilt through the regular constructors when loaded: an owned
// string gets a fresh buffer from the store's heap, and a shape is built by
// the factory registered for its kind. A record which does not pass those
// constructors is an error, never a partially built instance.
type Store struct {
	heap     *polyval.Heap
	registry *polyval.Registry
}

func NewStore(heap *polyval.Heap, registry *polyval.Registry) *Store {
	return &Store{
		heap:     heap,
		registry: registry,
	}
}

// Open opens a session on the store, bound to the transaction tx.
func (s *Store) Open(tx *runner.Tx) *Session {
	return &Session{
		Store: s,
		tx:    tx,
	}
}

// Session is a store bound to a transaction.
type Session struct {
	*Store
	tx *runner.Tx
}

// rValue represents a record of the polyval_values table.
type rValue struct {
	Id         string          `db:"id"`
	Tag        string          `db:"tag"`
	IntValue   dat.NullInt64   `db:"int_value"`
	FloatValue dat.NullFloat64 `db:"float_value"`
	TextValue  dat.NullString  `db:"text_value"`
}

// rShape represents a record of the polyval_shapes table.
type rShape struct {
	Id   string          `db:"id"`
	Kind string          `db:"kind"`
	Dims pq.Float64Array `db:"dims"`
}

func newId() string {
	return uuid.Must(uuid.NewV4()).String()
}

// SaveValue inserts value, and returns the identifier it was saved under.
func (s *Session) SaveValue(value *polyval.Value) (string, error) {
	rec := rValue{
		Id:  newId(),
		Tag: value.Tag().String(),
	}
	switch value.Tag() {
	case polyval.TagInt:
		i, _ := value.AsInt()
		rec.IntValue = dat.NullInt64From(i)
	case polyval.TagFloat:
		f, _ := value.AsFloat()
		rec.FloatValue = dat.NullFloat64From(f)
	case polyval.TagOwnedString:
		text, _ := value.AsString()
		rec.TextValue = dat.NullStringFrom(text)
	default:
		return "", fmt.Errorf("%w: %s", polyval.ErrUnknownTag, value.Tag())
	}

	_, err := s.tx.
		InsertInto("polyval_values").
		Columns("id", "tag", "int_value", "float_value", "text_value").
		Record(&rec).
		Exec()
	if err != nil {
		return "", err
	}
	return rec.Id, nil
}

// LoadValue loads the value saved under id.
func (s *Session) LoadValue(id string) (*polyval.Value, error) {
	var recs []rValue
	if err := s.tx.
		Select("tag", "int_value", "float_value", "text_value").
		From("polyval_values").
		Where("id = $1", id).
		QueryStructs(&recs); err != nil {
		return nil, err
	} else if len(recs) == 0 {
		return nil, fmt.Errorf("value not found %s", id)
	}
	rec := recs[0]

	tag, err := polyval.ParseTag(rec.Tag)
	if err != nil {
		return nil, fmt.Errorf("value %s: %w", id, err)
	}
	switch tag {
	case polyval.TagInt:
		if !rec.IntValue.Valid {
			return nil, fmt.Errorf("value %s: missing int_value", id)
		}
		return polyval.NewInt(rec.IntValue.Int64), nil
	case polyval.TagFloat:
		if !rec.FloatValue.Valid {
			return nil, fmt.Errorf("value %s: missing float_value", id)
		}
		return polyval.NewFloat(rec.FloatValue.Float64), nil
	case polyval.TagOwnedString:
		if !rec.TextValue.Valid {
			return nil, fmt.Errorf("value %s: missing text_value", id)
		}
		return s.heap.NewOwnedString(rec.TextValue.String)
	}
	return nil, fmt.Errorf("value %s: %w: %s", id, polyval.ErrUnknownTag, tag)
}

// SaveShape inserts shape, and returns the identifier it was saved under.
func (s *Session) SaveShape(shape polyval.Shape) (string, error) {
	if polyval.IsNilShape(shape) {
		return "", fmt.Errorf("cannot save a shape with no variant (%T)", shape)
	}
	rec := rShape{
		Id:   newId(),
		Kind: shape.Kind(),
		Dims: pq.Float64Array(shape.Dims()),
	}
	_, err := s.tx.
		InsertInto("polyval_shapes").
		Columns("id", "kind", "dims").
		Record(&rec).
		Exec()
	if err != nil {
		return "", err
	}
	return rec.Id, nil
}

// LoadShape loads the shape saved under id.
func (s *Session) LoadShape(id string) (polyval.Shape, error) {
	var recs []rShape
	if err := s.tx.
		Select("kind", "dims").
		From("polyval_shapes").
		Where("id = $1", id).
		QueryStructs(&recs); err != nil {
		return nil, err
	} else if len(recs) == 0 {
		return nil, fmt.Errorf("shape not found %s", id)
	}

	shape, err := s.registry.New(recs[0].Kind, recs[0].Dims...)
	if err != nil {
		return nil, fmt.Errorf("shape %s: %w", id, err)
	}
	return shape, nil
}
