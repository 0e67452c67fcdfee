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

package base

import (
	"reflect"
)

// Definition stores schema information about an Object
type Definition struct {
	// normalized object name, the table name
	Name string
	// Entity is the singular, snake cased name of the object, used to name
	// foreign key columns that reference it
	Entity string
	// Primary key of the object
	Key *PrimaryKey
	// Column name to data type mapping of the object
	ColumnToType map[string]reflect.Type
	// Column names in declaration order
	Columns []string
	// AutoIncrement is the key column assigned by the DB on insert, if any
	AutoIncrement string
	// Unique lists additional unique constraints, each a list of columns
	Unique [][]string
	// ForeignKeys of the object
	ForeignKeys []*ForeignKey
}

// Column holds a column name and value for one row.
type Column struct {
	// Name of the column
	Name string
	// Value of the column
	Value interface{}
}

// PrimaryKey stores the names of the primary key columns
type PrimaryKey struct {
	// List of key column names
	Columns []string
}

// ForeignKey references the key of another object. Rows holding it are
// deleted together with the referenced row.
type ForeignKey struct {
	// Column holding the reference
	Column string
	// Table and column being referenced
	RefTable  string
	RefColumn string
}

// Join describes how the rows of a table are reached through another
// table, e.g. menus reached through the menu_restaurant junction.
type Join struct {
	// Through is the intermediate table
	Through *Definition
	// LocalColumn is the column of the table being read
	LocalColumn string
	// ForeignColumn is the column of Through matched with LocalColumn
	ForeignColumn string
	// OrderBy is a column of Through that orders the result
	OrderBy string
}

// GetColumnsToRead returns a list of column names to be read for this object
// in a select operation
func (o *Definition) GetColumnsToRead() []string {
	colNamesToRead := make([]string, len(o.Columns))
	copy(colNamesToRead, o.Columns)
	return colNamesToRead
}

// IsKeyColumn returns true if the column is part of the primary key
func (o *Definition) IsKeyColumn(name string) bool {
	for _, k := range o.Key.Columns {
		if k == name {
			return true
		}
	}
	return false
}

// Object is a marker interface method that is used to add connector specific
// annotations to storage objects. Users can embed this interface in any
// storage object structure definition.
//
// For example:
// MenuObject is a representation of the orm annotations
// 	type MenuObject struct {
//		base.Object `sql:"name=menus, primaryKey=(id)"`
//		ID          uint64    `column:"name=id, autoIncrement=true"`
//		Title       string    `column:"name=title"`
//		CreatedAt   time.Time `column:"name=created_at"`
//	}
// Here, base.Object is embedded in a MenuObject just to specify the table
// name and the primary key of that object. The key `id` is generated by
// the DB when the row is inserted and written back to the object.
//
// The `sql` keyword denotes that this annotation is for relational
// connectors. The primary key format is: (COL1, COL2..)
type Object interface {
}
