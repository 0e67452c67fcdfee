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
	"sort"
	"strings"

	"github.com/menustore/menustore/pkg/storage/objects/base"

	"github.com/pkg/errors"
)

const (
	// junction table key, it also records the link order
	_junctionKeyColumn = "id"
	// suffix of junction columns referencing an object key
	_foreignKeySuffix = "_id"
)

// Relation declares a many-to-many relation between two storage objects.
type Relation struct {
	Left  base.Object
	Right base.Object
}

// BelongsToMany declares that every a may be linked with many b, and every
// b with many a. The relation is symmetric: BelongsToMany(a, b) and
// BelongsToMany(b, a) describe the same junction table.
func BelongsToMany(a, b base.Object) Relation {
	return Relation{Left: a, Right: b}
}

// Association is the materialized form of a Relation. It owns the
// definition of the junction table holding one row per linked pair.
type Association struct {
	// Definition of the junction table
	Definition base.Definition

	left  *Table
	right *Table
}

func newAssociation(left, right *Table) (*Association, error) {
	if left == right || left.Entity == right.Entity {
		return nil, errors.Errorf(
			"cannot associate %s with itself", left.Entity)
	}

	for _, t := range []*Table{left, right} {
		if len(t.Key.Columns) != 1 {
			return nil, errors.Errorf(
				"associated object %s must have a single column primary key",
				t.Entity)
		}
	}

	entities := []string{left.Entity, right.Entity}
	sort.Strings(entities)

	def := base.Definition{
		Name:   junctionName(left.Entity, right.Entity),
		Entity: strings.Join(entities, "_"),
		Key: &base.PrimaryKey{
			Columns: []string{_junctionKeyColumn},
		},
		ColumnToType: map[string]reflect.Type{
			_junctionKeyColumn: reflect.TypeOf(int64(0)),
		},
		Columns:       []string{_junctionKeyColumn},
		AutoIncrement: _junctionKeyColumn,
	}

	// columns are laid out in entity order so both declarations of the
	// relation produce the same table
	tables := []*Table{left, right}
	sort.Slice(tables, func(i, j int) bool {
		return tables[i].Entity < tables[j].Entity
	})
	var pair []string
	for _, t := range tables {
		col := t.Entity + _foreignKeySuffix
		refCol := t.Key.Columns[0]
		def.Columns = append(def.Columns, col)
		def.ColumnToType[col] = t.ColumnToType[refCol]
		def.ForeignKeys = append(def.ForeignKeys, &base.ForeignKey{
			Column:    col,
			RefTable:  t.Name,
			RefColumn: refCol,
		})
		pair = append(pair, col)
	}
	def.Unique = [][]string{pair}

	return &Association{
		Definition: def,
		left:       left,
		right:      right,
	}, nil
}

// junctionName returns the junction table name for two entities,
// independent of their order.
func junctionName(a, b string) string {
	names := []string{a, b}
	sort.Strings(names)
	return strings.Join(names, "_")
}

// Involves returns true if the table is one of the two linked tables.
func (a *Association) Involves(t *Table) bool {
	return a.left == t || a.right == t
}

// Column returns the junction column referencing the table.
func (a *Association) Column(t *Table) string {
	return t.Entity + _foreignKeySuffix
}

// pairRow returns the junction columns identifying the link between the
// owner and the related object.
func (a *Association) pairRow(
	ownerTable *Table, ownerKey interface{},
	relatedTable *Table, relatedKey interface{},
) []base.Column {
	return []base.Column{
		{Name: a.Column(ownerTable), Value: ownerKey},
		{Name: a.Column(relatedTable), Value: relatedKey},
	}
}

// join returns how rows of the table are reached through the junction.
func (a *Association) join(t *Table) *base.Join {
	return &base.Join{
		Through:       &a.Definition,
		LocalColumn:   t.Key.Columns[0],
		ForeignColumn: a.Column(t),
		OrderBy:       _junctionKeyColumn,
	}
}
