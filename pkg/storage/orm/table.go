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

package orm

import (
	"reflect"
	"regexp"
	"strings"
	"unicode"

	"github.com/menustore/menustore/pkg/storage/objects/base"

	"github.com/pkg/errors"
)

const (
	// _objectTag is the annotation key on the embedded base.Object
	_objectTag = "sql"
	// _columnTag is the annotation key on every persisted field
	_columnTag = "column"
	// storage object type names end with this suffix, e.g. MenuObject
	_objectSuffix = "Object"
)

var (
	// sql:"name=menus, primaryKey=(id)"
	_objectTagRegexp = regexp.MustCompile(
		`^name=(\w+)\s*,\s*primaryKey=\(([\w\s,]+)\)$`)
	// column:"name=id, autoIncrement=true"
	_columnTagRegexp = regexp.MustCompile(
		`^name=(\w+)(?:\s*,\s*autoIncrement=(true|false))?$`)

	_objectType = reflect.TypeOf((*base.Object)(nil)).Elem()
)

// Table is an ORM internal representation of storage object. Storage
// object is translated into Definition that contains the primary key
// information as well as column to datatype map
// It also contains maps used to translate storage object fields into DB columns
// and viceversa and this is used during read and write operations
type Table struct {
	base.Definition

	// map of object field name to DB column name
	FieldToColumnName map[string]string
	// map of DB column name to object field name
	ColumnToFieldName map[string]string

	// type of the storage object struct
	objectType reflect.Type
}

// TableFromObject creates a orm.Table from a storage.Object instance.
func TableFromObject(e base.Object) (*Table, error) {
	v := reflect.ValueOf(e)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return nil, errors.Errorf(
			"storage object must be a pointer to struct, got %T", e)
	}
	t := v.Elem().Type()

	table := &Table{
		Definition: base.Definition{
			Entity:       entityName(t.Name()),
			ColumnToType: map[string]reflect.Type{},
		},
		FieldToColumnName: map[string]string{},
		ColumnToFieldName: map[string]string{},
		objectType:        t,
	}

	var keyColumns []string
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		if field.Anonymous && field.Type == _objectType {
			name, key, err := parseObjectTag(field.Tag.Get(_objectTag))
			if err != nil {
				return nil, errors.Wrapf(err, "object %s", t.Name())
			}
			table.Name = name
			keyColumns = key
			continue
		}

		name, autoIncrement, err := parseColumnTag(field.Tag.Get(_columnTag))
		if err != nil {
			return nil, errors.Wrapf(err, "field %s.%s", t.Name(), field.Name)
		}
		if _, ok := table.ColumnToType[name]; ok {
			return nil, errors.Errorf(
				"duplicate column %q in object %s", name, t.Name())
		}
		table.Columns = append(table.Columns, name)
		table.ColumnToType[name] = field.Type
		table.FieldToColumnName[field.Name] = name
		table.ColumnToFieldName[name] = field.Name
		if autoIncrement {
			if table.AutoIncrement != "" {
				return nil, errors.Errorf(
					"object %s has more than one autoIncrement column", t.Name())
			}
			table.AutoIncrement = name
		}
	}

	if table.Name == "" {
		return nil, errors.Errorf(
			"object %s does not embed an annotated base.Object", t.Name())
	}

	for _, k := range keyColumns {
		if _, ok := table.ColumnToType[k]; !ok {
			return nil, errors.Errorf(
				"primary key column %q not found in object %s", k, t.Name())
		}
	}
	table.Key = &base.PrimaryKey{Columns: keyColumns}

	if table.AutoIncrement != "" {
		if len(keyColumns) != 1 || keyColumns[0] != table.AutoIncrement {
			return nil, errors.Errorf(
				"autoIncrement column %q must be the only primary key column of %s",
				table.AutoIncrement, t.Name())
		}
		switch table.ColumnToType[table.AutoIncrement].Kind() {
		case reflect.Int64, reflect.Uint64:
		default:
			return nil, errors.Errorf(
				"autoIncrement column %q must be int64 or uint64", table.AutoIncrement)
		}
	}

	return table, nil
}

// parseObjectTag returns the table name and primary key columns from the
// annotation on base.Object
func parseObjectTag(tag string) (string, []string, error) {
	matches := _objectTagRegexp.FindStringSubmatch(strings.TrimSpace(tag))
	if matches == nil {
		return "", nil, errors.Errorf("invalid %s annotation %q", _objectTag, tag)
	}
	var key []string
	for _, k := range strings.Split(matches[2], ",") {
		k = strings.TrimSpace(k)
		if k == "" {
			return "", nil, errors.Errorf("empty primary key column in %q", tag)
		}
		key = append(key, k)
	}
	return matches[1], key, nil
}

// parseColumnTag returns the column name and whether the column is
// assigned by the DB on insert
func parseColumnTag(tag string) (string, bool, error) {
	matches := _columnTagRegexp.FindStringSubmatch(strings.TrimSpace(tag))
	if matches == nil {
		return "", false, errors.Errorf("invalid %s annotation %q", _columnTag, tag)
	}
	return matches[1], matches[2] == "true", nil
}

// entityName converts the Go type name into a snake cased entity name:
// MenuItemObject -> menu_item
func entityName(typeName string) string {
	name := strings.TrimSuffix(typeName, _objectSuffix)
	var b strings.Builder
	for i, r := range name {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}

// GetKeyRowFromObject is a helper for generating a row of partition and
// clustering key column values to be used in a select query.
func (t *Table) GetKeyRowFromObject(e base.Object) []base.Column {
	v := reflect.ValueOf(e).Elem()
	row := []base.Column{}

	for _, keyColumn := range t.Key.Columns {
		fieldName := t.ColumnToFieldName[keyColumn]
		row = append(row, base.Column{
			Name:  keyColumn,
			Value: rawValue(v.FieldByName(fieldName)),
		})
	}
	return row
}

// GetRowFromObject is a helper for generating a row from the storage object
// selectedFields will be used to restrict the number of columns in that row
// This will be used to convert only select fields of an object to a row.
// Leaving this empty will result in all fields of the object being converted
func (t *Table) GetRowFromObject(
	e base.Object, selectedFields ...string) []base.Column {
	v := reflect.ValueOf(e).Elem()
	row := []base.Column{}

	if len(selectedFields) == 0 {
		for _, columnName := range t.Columns {
			fieldName := t.ColumnToFieldName[columnName]
			row = append(row, base.Column{
				Name:  columnName,
				Value: rawValue(v.FieldByName(fieldName)),
			})
		}
		return row
	}

	for _, fieldName := range selectedFields {
		columnName, ok := t.FieldToColumnName[fieldName]
		if !ok {
			continue
		}
		row = append(row, base.Column{
			Name:  columnName,
			Value: rawValue(v.FieldByName(fieldName)),
		})
	}
	return row
}

// GetCreateRowFromObject returns the row to insert for the object. An
// unset autoIncrement key is left out so that the DB assigns it.
func (t *Table) GetCreateRowFromObject(e base.Object) []base.Column {
	row := t.GetRowFromObject(e)
	if t.AutoIncrement == "" {
		return row
	}

	filtered := row[:0]
	for _, col := range row {
		if col.Name == t.AutoIncrement && isZero(col.Value) {
			continue
		}
		filtered = append(filtered, col)
	}
	return filtered
}

// SetObjectFromRow is a helper for populating storage object from the
// given row. Columns missing from the row leave the field untouched, NULL
// values reset it.
func (t *Table) SetObjectFromRow(e base.Object, row map[string]interface{}) {
	v := reflect.ValueOf(e).Elem()

	for columnName, value := range row {
		fieldName, ok := t.ColumnToFieldName[columnName]
		if !ok {
			continue
		}
		field := v.FieldByName(fieldName)

		if value == nil {
			field.Set(reflect.Zero(field.Type()))
			continue
		}
		if base.IsOfTypeOptional(field.Type()) {
			field.Set(base.ConvertFromRawToOptionalType(value))
			continue
		}
		rv := reflect.ValueOf(value)
		if rv.Type().ConvertibleTo(field.Type()) {
			field.Set(rv.Convert(field.Type()))
		}
	}
}

// SetAutoIncrementValue writes the DB assigned key into the object.
func (t *Table) SetAutoIncrementValue(e base.Object, id int64) {
	if t.AutoIncrement == "" {
		return
	}
	field := reflect.ValueOf(e).Elem().FieldByName(
		t.ColumnToFieldName[t.AutoIncrement])
	switch field.Kind() {
	case reflect.Uint64:
		field.SetUint(uint64(id))
	case reflect.Int64:
		field.SetInt(id)
	}
}

// NewObject allocates an empty storage object of the table's type.
func (t *Table) NewObject() base.Object {
	return reflect.New(t.objectType).Interface()
}

// rawValue returns the value of an object field as understood by the DB
// layer
func rawValue(field reflect.Value) interface{} {
	if base.IsOfTypeOptional(field.Type()) {
		return base.ConvertFromOptionalToRawType(field)
	}
	return field.Interface()
}

func isZero(value interface{}) bool {
	if value == nil {
		return true
	}
	return reflect.ValueOf(value).IsZero()
}

// BuildObjectIndex builds an index of storage object type to its table.
// Tables are also returned in the order the objects were given.
func BuildObjectIndex(objects []base.Object) (
	map[reflect.Type]*Table, []*Table, error) {
	objectIndex := make(map[reflect.Type]*Table)
	var tables []*Table

	for _, o := range objects {
		table, err := TableFromObject(o)
		if err != nil {
			return nil, nil, err
		}
		t := reflect.TypeOf(o).Elem()
		if _, ok := objectIndex[t]; ok {
			return nil, nil, errors.Errorf(
				"object %s registered more than once", t.Name())
		}
		objectIndex[t] = table
		tables = append(tables, table)
	}
	return objectIndex, tables, nil
}
