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
	"database/sql/driver"
	"errors"
	"regexp"

	"github.com/DATA-DOG/go-sqlmock"
	runner "github.com/homelight/dat/sqlx-runner"
	"github.com/stretchr/testify/require"

	"github.com/homelight/polyval"
)

var (
	insertValue = `(?i)insert into "?polyval_values"?`
	selectValue = `(?i)select .*tag.*int_value.*float_value.*text_value.* from "?polyval_values"? where`
	insertShape = `(?i)insert into "?polyval_shapes"?`
	selectShape = `(?i)select .*kind.*dims.* from "?polyval_shapes"? where`
)

func (s *Zuite) TestSaveValue() {
	str := s.heap.MustNewValue(`"hello"`)
	defer str.Release()

	cases := []struct {
		value    *polyval.Value
		expected []driver.Value
	}{
		{polyval.NewInt(10), []driver.Value{"Int", int64(10), nil, nil}},
		{polyval.NewFloat(3.14), []driver.Value{"Float", nil, 3.14, nil}},
		{str, []driver.Value{"OwnedString", nil, nil, "hello"}},
	}
	for _, ex := range cases {
		s.mock.ExpectBegin()
		s.mock.ExpectExec(insertValue).
			WithArgs(append([]driver.Value{sqlmock.AnyArg()}, ex.expected...)...).
			WillReturnResult(sqlmock.NewResult(0, 1))
		s.mock.ExpectCommit()

		var id string
		s.MustRunTransaction(func(tx *runner.Tx) error {
			var err error
			id, err = s.store.Open(tx).SaveValue(ex.value)
			return err
		})
		require.Len(s.T(), id, 36, "uuid")
	}
}

func (s *Zuite) TestLoadValue() {
	cases := []struct {
		row      []driver.Value
		expected string
	}{
		{[]driver.Value{"Int", int64(10), nil, nil}, "Int: 10"},
		{[]driver.Value{"Float", nil, 3.14, nil}, "Float: 3.14"},
		{[]driver.Value{"OwnedString", nil, nil, "hello"}, "OwnedString: hello"},
	}
	for _, ex := range cases {
		s.mock.ExpectBegin()
		s.mock.ExpectQuery(selectValue).
			WithArgs("some-id").
			WillReturnRows(sqlmock.NewRows([]string{"tag", "int_value", "float_value", "text_value"}).
				AddRow(ex.row...))
		s.mock.ExpectCommit()

		s.MustRunTransaction(func(tx *runner.Tx) error {
			value, err := s.store.Open(tx).LoadValue("some-id")
			if err != nil {
				return err
			}
			defer value.Release()
			require.Equal(s.T(), ex.expected, value.String())
			return nil
		})
	}
	require.Equal(s.T(), 0, s.heap.Live())
}

func (s *Zuite) TestLoadValue_ownedStringGetsFreshBuffer() {
	s.mock.ExpectBegin()
	s.mock.ExpectQuery(selectValue).
		WillReturnRows(sqlmock.NewRows([]string{"tag", "int_value", "float_value", "text_value"}).
			AddRow("OwnedString", nil, nil, "hello"))
	s.mock.ExpectQuery(selectValue).
		WillReturnRows(sqlmock.NewRows([]string{"tag", "int_value", "float_value", "text_value"}).
			AddRow("OwnedString", nil, nil, "hello"))
	s.mock.ExpectCommit()

	s.MustRunTransaction(func(tx *runner.Tx) error {
		session := s.store.Open(tx)
		a, err := session.LoadValue("same-id")
		require.NoError(s.T(), err)
		b, err := session.LoadValue("same-id")
		require.NoError(s.T(), err)

		require.Equal(s.T(), 2, s.heap.Live())
		a.Release()
		require.Equal(s.T(), "OwnedString: hello", b.String())
		b.Release()
		return nil
	})
}

func (s *Zuite) TestLoadValue_corruptRows() {
	cases := map[string][]driver.Value{
		"unknown tag":   {"Bool", nil, nil, nil},
		"missing int":   {"Int", nil, 3.14, nil},
		"missing float": {"Float", int64(3), nil, nil},
		"missing text":  {"OwnedString", nil, nil, nil},
	}
	for name, row := range cases {
		s.mock.ExpectBegin()
		s.mock.ExpectQuery(selectValue).
			WillReturnRows(sqlmock.NewRows([]string{"tag", "int_value", "float_value", "text_value"}).
				AddRow(row...))
		s.mock.ExpectRollback()

		err := RunTransaction(s.db, func(tx *runner.Tx) error {
			value, err := s.store.Open(tx).LoadValue("some-id")
			require.Nil(s.T(), value, name)
			return err
		})
		require.Error(s.T(), err, name)
	}
	require.Equal(s.T(), 0, s.heap.Live())
}

func (s *Zuite) TestLoadValue_notFound() {
	s.mock.ExpectBegin()
	s.mock.ExpectQuery(selectValue).
		WillReturnRows(sqlmock.NewRows([]string{"tag", "int_value", "float_value", "text_value"}))
	s.mock.ExpectRollback()

	err := RunTransaction(s.db, func(tx *runner.Tx) error {
		_, err := s.store.Open(tx).LoadValue("nope")
		return err
	})
	require.EqualError(s.T(), err, "value not found nope")
}

func (s *Zuite) TestSaveShape() {
	rect, err := polyval.NewRectangle(3, 4)
	require.NoError(s.T(), err)

	s.mock.ExpectBegin()
	s.mock.ExpectExec(insertShape).
		WithArgs(sqlmock.AnyArg(), "rectangle", "{3,4}").
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.mock.ExpectCommit()

	s.MustRunTransaction(func(tx *runner.Tx) error {
		_, err := s.store.Open(tx).SaveShape(rect)
		return err
	})
}

func (s *Zuite) TestLoadShape() {
	s.mock.ExpectBegin()
	s.mock.ExpectQuery(selectShape).
		WithArgs("some-id").
		WillReturnRows(sqlmock.NewRows([]string{"kind", "dims"}).
			AddRow("polygon", []byte("{0,0,4,0,4,3}")))
	s.mock.ExpectCommit()

	s.MustRunTransaction(func(tx *runner.Tx) error {
		shape, err := s.store.Open(tx).LoadShape("some-id")
		require.NoError(s.T(), err)
		defer polyval.Release(shape)

		require.Equal(s.T(), "polygon", shape.Kind())
		require.Equal(s.T(), 6.0, polyval.Area(shape))
		require.Equal(s.T(), 1, s.heap.Live())
		return nil
	})
}

func (s *Zuite) TestLoadShape_invalidRows() {
	cases := []struct {
		kind, dims string
		expected   error
	}{
		{"circle", "{-1}", polyval.ErrInvalidGeometry},
		{"rectangle", "{0,5}", polyval.ErrInvalidGeometry},
		{"rectangle", "{1}", polyval.ErrInvalidGeometry},
		{"hexagon", "{1}", polyval.ErrUnknownKind},
	}
	for _, ex := range cases {
		s.mock.ExpectBegin()
		s.mock.ExpectQuery(selectShape).
			WillReturnRows(sqlmock.NewRows([]string{"kind", "dims"}).
				AddRow(ex.kind, []byte(ex.dims)))
		s.mock.ExpectRollback()

		err := RunTransaction(s.db, func(tx *runner.Tx) error {
			shape, err := s.store.Open(tx).LoadShape("some-id")
			require.Nil(s.T(), shape)
			return err
		})
		require.True(s.T(), errors.Is(err, ex.expected), "%s %s: %s", ex.kind, ex.dims, err)
	}
}

func (s *Zuite) TestSaveShape_noVariant() {
	var typedNil *headlessShape
	for _, shape := range []polyval.Shape{nil, typedNil} {
		s.mock.ExpectBegin()
		s.mock.ExpectRollback()

		err := RunTransaction(s.db, func(tx *runner.Tx) error {
			_, err := s.store.Open(tx).SaveShape(shape)
			return err
		})
		require.Error(s.T(), err, "%T", shape)
	}
}

// headlessShape is only ever used as a typed nil.
type headlessShape struct{}

func (*headlessShape) Kind() string    { return "headless" }
func (*headlessShape) Area() float64   { return 0 }
func (*headlessShape) Dims() []float64 { return nil }
func (*headlessShape) Release()        {}

func (s *Zuite) TestCreateSchema() {
	s.mock.ExpectExec(regexp.QuoteMeta(Schema)).WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(s.T(), CreateSchema(s.db))
}
