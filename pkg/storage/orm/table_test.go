// Copyright (c) 2019 Uber Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package orm_test

import (
	"reflect"
	"time"

	"github.com/menustore/menustore/pkg/storage/objects/base"
	"github.com/menustore/menustore/pkg/storage/orm"
)

// TestTableFromObject tests creating orm.Table from given base object
// This is meant to test that only entities annotated in a certain format will
// be successfully converted to orm tables
func (suite *ORMTestSuite) TestTableFromObject() {
	table, err := orm.TableFromObject(&ValidObject{})
	suite.NoError(err)
	suite.Equal("valid_object", table.Name)
	suite.Equal("valid", table.Entity)
	suite.Equal([]string{"id", "name", "data"}, table.Columns)
	suite.Equal([]string{"id"}, table.Key.Columns)
	suite.Equal("id", table.AutoIncrement)
	suite.Equal(reflect.TypeOf(uint64(0)), table.ColumnToType["id"])
	suite.Equal("Name", table.ColumnToFieldName["name"])
	suite.Equal("data", table.FieldToColumnName["Data"])

	table, err = orm.TableFromObject(&CompositeKeyObject{})
	suite.NoError(err)
	suite.Equal([]string{"id", "name"}, table.Key.Columns)
	suite.Empty(table.AutoIncrement)
	suite.Equal("composite_key", table.Entity)

	tt := []base.Object{
		&InvalidObject1{},
		&InvalidObject2{},
		&InvalidObject3{},
		&InvalidObject4{},
		&InvalidObject5{},
		&InvalidObject6{},
		&InvalidObject7{},
	}
	for _, t := range tt {
		_, err := orm.TableFromObject(t)
		suite.Error(err, "%T", t)
	}

	// not a pointer to struct
	_, err = orm.TableFromObject(ValidObject{})
	suite.Error(err)
}

// TestGetRowFromObject tests building a row (list of base.Column) from base
// object
func (suite *ORMTestSuite) TestGetRowFromObject() {
	e := &ValidObject{
		ID:   uint64(1),
		Name: "test",
		Data: "testdata",
	}
	table, err := orm.TableFromObject(e)
	suite.NoError(err)

	row := table.GetRowFromObject(e)
	suite.ensureRowsEqual(row, testRow)

	fieldsToUpdate := []string{"ID", "Name"}
	selectedFieldsRow := table.GetRowFromObject(e, fieldsToUpdate...)
	suite.ensureRowsEqual(selectedFieldsRow, keyRow)

	// unknown fields are ignored
	suite.Len(table.GetRowFromObject(e, "Unknown"), 0)
}

// TestGetCreateRowFromObject tests that an unset autoIncrement key is
// left to the DB
func (suite *ORMTestSuite) TestGetCreateRowFromObject() {
	e := &ValidObject{
		Name: "test",
		Data: "testdata",
	}
	table, err := orm.TableFromObject(e)
	suite.NoError(err)

	suite.ensureRowsEqual(table.GetCreateRowFromObject(e), testRow[1:])

	e.ID = 1
	suite.ensureRowsEqual(table.GetCreateRowFromObject(e), testRow)
}

// TestGetRowFromObjectWithOptString tests building a row (list of base.Column) from base
// object, with PK of type custom optional string
func (suite *ORMTestSuite) TestGetRowFromObjectWithOptString() {
	e := &ValidObjectWithOptString{
		Name: &base.OptionalString{Value: "testname"},
		Data: "testdata",
	}
	table, err := orm.TableFromObject(e)
	suite.NoError(err)

	row := table.GetRowFromObject(e)
	suite.ensureRowsEqual(
		row,
		[]base.Column{
			{
				Name:  "name",
				Value: "testname",
			},
			{
				Name:  "data",
				Value: "testdata",
			},
		},
	)

	// nil optional string is written as NULL
	e.Name = nil
	row = table.GetRowFromObject(e)
	suite.Nil(row[0].Value)
}

// TestGetKeyRowFromObject tests getting primary key row (list of primary key
// base.Column) from base object
func (suite *ORMTestSuite) TestGetKeyRowFromObject() {
	e := &CompositeKeyObject{
		ID:   uint64(1),
		Name: "test",
		Data: "junk",
	}
	table, err := orm.TableFromObject(e)
	suite.NoError(err)

	keyRow := table.GetKeyRowFromObject(e)
	suite.Equal(e.ID, keyRow[0].Value)
	suite.Equal(e.Name, keyRow[1].Value)
	suite.Equal(len(keyRow), 2)
}

// TestGetKeyRowFromObjectWithOptString tests getting primary key row (list of primary key
// base.Column) from base object, with PK of type custom optional string
func (suite *ORMTestSuite) TestGetKeyRowFromObjectWithOptString() {
	e := &ValidObjectWithOptString{
		Name: &base.OptionalString{Value: "testname"},
		Data: "testdata",
	}
	table, err := orm.TableFromObject(e)
	suite.NoError(err)

	keyRow := table.GetKeyRowFromObject(e)
	suite.Equal(e.Name.String(), keyRow[0].Value)
	suite.Len(keyRow, 1)
}

// TestSetObjectFromRow tests populating a storage object from a row
// returned by the connector
func (suite *ORMTestSuite) TestSetObjectFromRow() {
	table, err := orm.TableFromObject(&ValidObject{})
	suite.NoError(err)

	e := &ValidObject{Data: "stale"}
	table.SetObjectFromRow(e, map[string]interface{}{
		"id":      int64(3),
		"name":    "test",
		"data":    nil,
		"unknown": "ignored",
	})
	suite.Equal(uint64(3), e.ID)
	suite.Equal("test", e.Name)
	suite.Empty(e.Data)

	optTable, err := orm.TableFromObject(&ValidObjectWithOptString{})
	suite.NoError(err)

	o := &ValidObjectWithOptString{}
	optTable.SetObjectFromRow(o, map[string]interface{}{
		"name": "testname",
		"data": "testdata",
	})
	suite.Equal("testname", o.Name.String())
	suite.Equal("testdata", o.Data)

	optTable.SetObjectFromRow(o, map[string]interface{}{"name": nil})
	suite.Nil(o.Name)
	// columns absent from the row are untouched
	suite.Equal("testdata", o.Data)
}

// TestSetObjectFromRowTime tests that time columns are set as is
func (suite *ORMTestSuite) TestSetObjectFromRowTime() {
	type TimedObject struct {
		base.Object `sql:"name=timed_objects, primaryKey=(id)"`
		ID          int64     `column:"name=id"`
		CreatedAt   time.Time `column:"name=created_at"`
	}
	table, err := orm.TableFromObject(&TimedObject{})
	suite.NoError(err)
	suite.Equal("timed", table.Entity)

	now := time.Now().UTC()
	e := &TimedObject{}
	table.SetObjectFromRow(e, map[string]interface{}{
		"id":         int64(1),
		"created_at": now,
	})
	suite.True(now.Equal(e.CreatedAt))
}

// TestSetAutoIncrementValue tests writing back the DB assigned key
func (suite *ORMTestSuite) TestSetAutoIncrementValue() {
	table, err := orm.TableFromObject(&ValidObject{})
	suite.NoError(err)
	e := &ValidObject{}
	table.SetAutoIncrementValue(e, 42)
	suite.Equal(uint64(42), e.ID)

	linkedTable, err := orm.TableFromObject(&LinkedObject{})
	suite.NoError(err)
	l := &LinkedObject{}
	linkedTable.SetAutoIncrementValue(l, 7)
	suite.Equal(int64(7), l.ID)

	// no-op without an autoIncrement column
	compositeTable, err := orm.TableFromObject(&CompositeKeyObject{})
	suite.NoError(err)
	c := &CompositeKeyObject{}
	compositeTable.SetAutoIncrementValue(c, 7)
	suite.Zero(c.ID)
}

// TestNewObject tests allocating objects of the table's type
func (suite *ORMTestSuite) TestNewObject() {
	table, err := orm.TableFromObject(&ValidObject{})
	suite.NoError(err)
	o, ok := table.NewObject().(*ValidObject)
	suite.True(ok)
	suite.Zero(o.ID)
}

// TestBuildObjectIndex tests indexing objects by type
func (suite *ORMTestSuite) TestBuildObjectIndex() {
	index, tables, err := orm.BuildObjectIndex(
		[]base.Object{&ValidObject{}, &LinkedObject{}})
	suite.NoError(err)
	suite.Len(index, 2)
	suite.Equal("valid_object", tables[0].Name)
	suite.Equal("linked_objects", tables[1].Name)
	suite.Equal(tables[1], index[reflect.TypeOf(LinkedObject{})])

	_, _, err = orm.BuildObjectIndex(
		[]base.Object{&ValidObject{}, &ValidObject{}})
	suite.Error(err)

	_, _, err = orm.BuildObjectIndex(
		[]base.Object{&ValidObject{}, &InvalidObject1{}})
	suite.Error(err)
}
