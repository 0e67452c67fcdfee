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
	"context"
	"reflect"

	"github.com/menustore/menustore/pkg/storage"
	"github.com/menustore/menustore/pkg/storage/objects/base"

	"github.com/pkg/errors"
)

// Client defines the methods to operate with DB storage objects
type Client interface {
	// Create creates the storage object in the database. A DB assigned
	// key is written back to the object.
	Create(ctx context.Context, e base.Object) error
	// Get gets the storage object from the database by its primary key.
	// It fails with a storage.NotFoundError when the row is absent.
	Get(ctx context.Context, e base.Object) error
	// GetAll gets every stored object of the prototype's type, ordered by
	// primary key
	GetAll(ctx context.Context, prototype base.Object) ([]base.Object, error)
	// Update updates the storage object in the database. Only the named
	// fields are written, or all non-key fields if none are named.
	Update(ctx context.Context, e base.Object, fieldsToUpdate ...string) error
	// Delete deletes the storage object and every link it takes part in
	Delete(ctx context.Context, e base.Object) error

	// Link associates two persisted objects. Linking an already linked
	// pair is a no-op.
	Link(ctx context.Context, owner, related base.Object) error
	// Unlink removes the association between two objects, if any
	Unlink(ctx context.Context, owner, related base.Object) error
	// GetLinked returns the objects of the prototype's type linked with
	// owner, in the order they were linked
	GetLinked(
		ctx context.Context,
		owner base.Object,
		prototype base.Object,
	) ([]base.Object, error)
	// CreateLinked creates related and links it with owner atomically
	CreateLinked(ctx context.Context, owner, related base.Object) error

	// Transaction runs fn with a client bound to a single transaction
	Transaction(
		ctx context.Context,
		fn func(ctx context.Context, c Client) error,
	) error

	// SyncSchema creates the missing tables of all objects and
	// associations
	SyncSchema(ctx context.Context) error
	// ResetSchema drops and recreates the tables of all objects and
	// associations. All data is lost.
	ResetSchema(ctx context.Context) error

	// Close closes the underlying connector
	Close() error
}

// associationKey indexes associations by the pair of object types
type associationKey [2]reflect.Type

type client struct {
	objectIndex  map[reflect.Type]*Table
	tables       []*Table
	associations map[associationKey]*Association
	// associations in declaration order
	assocList []*Association
	connector Connector
}

// NewClient returns a new ORM client for the storage objects, relations
// and connector provided.
func NewClient(
	conn Connector,
	objects []base.Object,
	relations ...Relation,
) (Client, error) {
	oi, tables, err := BuildObjectIndex(objects)
	if err != nil {
		return nil, err
	}

	c := &client{
		objectIndex:  oi,
		tables:       tables,
		associations: make(map[associationKey]*Association),
		connector:    conn,
	}

	junctions := make(map[string]struct{})
	for _, r := range relations {
		left, err := c.getTable(r.Left)
		if err != nil {
			return nil, errors.Wrap(err, "relation")
		}
		right, err := c.getTable(r.Right)
		if err != nil {
			return nil, errors.Wrap(err, "relation")
		}

		assoc, err := newAssociation(left, right)
		if err != nil {
			return nil, err
		}
		if _, ok := junctions[assoc.Definition.Name]; ok {
			return nil, errors.Errorf(
				"relation between %s and %s declared more than once",
				left.Entity, right.Entity)
		}
		junctions[assoc.Definition.Name] = struct{}{}

		c.associations[associationKey{left.objectType, right.objectType}] = assoc
		c.associations[associationKey{right.objectType, left.objectType}] = assoc
		c.assocList = append(c.assocList, assoc)
	}

	return c, nil
}

// withConnector returns a copy of the client issuing its queries on conn
func (c *client) withConnector(conn Connector) *client {
	cp := *c
	cp.connector = conn
	return &cp
}

// getTable gets the base Table structure that matches the base instance
// provided. Return an error when not found.
func (c *client) getTable(e base.Object) (*Table, error) {
	t := reflect.TypeOf(e)
	if t == nil || t.Kind() != reflect.Ptr {
		return nil, errors.Errorf("storage object must be a pointer, got %T", e)
	}
	table, ok := c.objectIndex[t.Elem()]
	if !ok {
		return nil, errors.Errorf(
			"Table not found for object: %q", t.Elem().Name())
	}
	return table, nil
}

// getAssociation returns the association between the two objects' types
func (c *client) getAssociation(
	owner, related base.Object) (*Table, *Table, *Association, error) {
	ownerTable, err := c.getTable(owner)
	if err != nil {
		return nil, nil, nil, err
	}
	relatedTable, err := c.getTable(related)
	if err != nil {
		return nil, nil, nil, err
	}
	assoc, ok := c.associations[associationKey{
		ownerTable.objectType, relatedTable.objectType}]
	if !ok {
		return nil, nil, nil, errors.Errorf(
			"no relation between %s and %s", ownerTable.Entity, relatedTable.Entity)
	}
	return ownerTable, relatedTable, assoc, nil
}

// keyValue returns the value of the single column primary key
func keyValue(table *Table, e base.Object) interface{} {
	return table.GetKeyRowFromObject(e)[0].Value
}

// notFoundKey returns a printable key for a NotFoundError
func notFoundKey(keyRow []base.Column) interface{} {
	if len(keyRow) == 1 {
		return keyRow[0].Value
	}
	var values []interface{}
	for _, col := range keyRow {
		values = append(values, col.Value)
	}
	return values
}

// Create creates the storage object in the database
func (c *client) Create(ctx context.Context, e base.Object) error {
	// lookup if a table exists for this object, return error if not found
	table, err := c.getTable(e)
	if err != nil {
		return err
	}

	// translate the storage object into a row (list of column)
	row := table.GetCreateRowFromObject(e)

	// Tell the connector to create a row in the DB using this row
	id, err := c.connector.Create(ctx, &table.Definition, row)
	if err != nil {
		return err
	}

	if table.AutoIncrement != "" && isZero(keyValue(table, e)) {
		table.SetAutoIncrementValue(e, id)
	}
	return nil
}

// Get fetches an base by primary key, The base provided must contain
// values for all components of its primary key for the operation to succeed.
func (c *client) Get(ctx context.Context, e base.Object) error {
	// lookup if a table exists for this object, return error if not found
	table, err := c.getTable(e)
	if err != nil {
		return err
	}

	// build a primary key row from storage object
	keyRow := table.GetKeyRowFromObject(e)

	row, err := c.connector.Get(
		ctx, &table.Definition, keyRow, table.GetColumnsToRead()...)
	if err != nil {
		return err
	}
	if row == nil {
		return storage.NewNotFoundError(table.Entity, notFoundKey(keyRow))
	}

	// build a storage object from the row
	table.SetObjectFromRow(e, row)

	return nil
}

// GetAll fetches all objects of the prototype's table
func (c *client) GetAll(
	ctx context.Context,
	prototype base.Object,
) ([]base.Object, error) {
	table, err := c.getTable(prototype)
	if err != nil {
		return nil, err
	}

	rows, err := c.connector.GetAll(ctx, &table.Definition, nil)
	if err != nil {
		return nil, err
	}
	return table.objectsFromRows(rows), nil
}

// objectsFromRows materializes one storage object per row
func (t *Table) objectsFromRows(rows []map[string]interface{}) []base.Object {
	objs := make([]base.Object, 0, len(rows))
	for _, row := range rows {
		o := t.NewObject()
		t.SetObjectFromRow(o, row)
		objs = append(objs, o)
	}
	return objs
}

// Update updates the storage object in the database
func (c *client) Update(
	ctx context.Context,
	e base.Object,
	fieldsToUpdate ...string,
) error {
	table, err := c.getTable(e)
	if err != nil {
		return err
	}

	var row []base.Column
	for _, col := range table.GetRowFromObject(e, fieldsToUpdate...) {
		// key columns identify the row, they are never rewritten
		if table.IsKeyColumn(col.Name) {
			continue
		}
		row = append(row, col)
	}
	if len(row) == 0 {
		return errors.Errorf("no columns to update for %s", table.Entity)
	}

	keyRow := table.GetKeyRowFromObject(e)
	if err := c.connector.Update(
		ctx, &table.Definition, row, keyRow); err != nil {
		if storage.IsNotFoundError(err) {
			return storage.NewNotFoundError(table.Entity, notFoundKey(keyRow))
		}
		return err
	}
	return nil
}

// Delete deletes the storage object in the database
func (c *client) Delete(ctx context.Context, e base.Object) error {
	// lookup if a table exists for this object, return error if not found
	table, err := c.getTable(e)
	if err != nil {
		return err
	}

	// build a primary key row from storage object
	keyRow := table.GetKeyRowFromObject(e)

	return c.connector.Transaction(ctx,
		func(ctx context.Context, conn Connector) error {
			row, err := conn.Get(ctx, &table.Definition, keyRow, table.Key.Columns...)
			if err != nil {
				return err
			}
			if row == nil {
				return storage.NewNotFoundError(table.Entity, notFoundKey(keyRow))
			}

			// junction rows go first so that backends without cascading
			// foreign keys do not keep dangling links
			for _, assoc := range c.assocList {
				if !assoc.Involves(table) {
					continue
				}
				if err := conn.Delete(ctx, &assoc.Definition, []base.Column{
					{Name: assoc.Column(table), Value: keyRow[0].Value},
				}); err != nil {
					return err
				}
			}

			// Tell the connector to delete the row in the DB using this keyRow
			return conn.Delete(ctx, &table.Definition, keyRow)
		})
}

// Link associates owner with related
func (c *client) Link(ctx context.Context, owner, related base.Object) error {
	ownerTable, relatedTable, assoc, err := c.getAssociation(owner, related)
	if err != nil {
		return err
	}
	return c.connector.Transaction(ctx,
		func(ctx context.Context, conn Connector) error {
			return c.withConnector(conn).link(
				ctx, assoc, ownerTable, owner, relatedTable, related)
		})
}

// link inserts the junction row unless the pair is already linked. It
// must run inside a transaction.
func (c *client) link(
	ctx context.Context,
	assoc *Association,
	ownerTable *Table, owner base.Object,
	relatedTable *Table, related base.Object,
) error {
	for _, o := range []struct {
		table *Table
		obj   base.Object
	}{{ownerTable, owner}, {relatedTable, related}} {
		keyRow := o.table.GetKeyRowFromObject(o.obj)
		row, err := c.connector.Get(
			ctx, &o.table.Definition, keyRow, o.table.Key.Columns...)
		if err != nil {
			return err
		}
		if row == nil {
			return storage.NewNotFoundError(o.table.Entity, notFoundKey(keyRow))
		}
	}

	pair := assoc.pairRow(
		ownerTable, keyValue(ownerTable, owner),
		relatedTable, keyValue(relatedTable, related))
	row, err := c.connector.Get(
		ctx, &assoc.Definition, pair, assoc.Definition.Key.Columns...)
	if err != nil {
		return err
	}
	if row != nil {
		return nil
	}

	_, err = c.connector.Create(ctx, &assoc.Definition, pair)
	return err
}

// Unlink removes the association between owner and related
func (c *client) Unlink(ctx context.Context, owner, related base.Object) error {
	ownerTable, relatedTable, assoc, err := c.getAssociation(owner, related)
	if err != nil {
		return err
	}
	pair := assoc.pairRow(
		ownerTable, keyValue(ownerTable, owner),
		relatedTable, keyValue(relatedTable, related))
	return c.connector.Delete(ctx, &assoc.Definition, pair)
}

// GetLinked fetches the objects linked with owner
func (c *client) GetLinked(
	ctx context.Context,
	owner base.Object,
	prototype base.Object,
) ([]base.Object, error) {
	ownerTable, relatedTable, assoc, err := c.getAssociation(owner, prototype)
	if err != nil {
		return nil, err
	}

	rows, err := c.connector.GetAllJoined(
		ctx,
		&relatedTable.Definition,
		assoc.join(relatedTable),
		[]base.Column{{
			Name:  assoc.Column(ownerTable),
			Value: keyValue(ownerTable, owner),
		}},
	)
	if err != nil {
		return nil, err
	}
	return relatedTable.objectsFromRows(rows), nil
}

// CreateLinked creates related and links it with owner in one transaction
func (c *client) CreateLinked(
	ctx context.Context,
	owner, related base.Object,
) error {
	ownerTable, relatedTable, assoc, err := c.getAssociation(owner, related)
	if err != nil {
		return err
	}

	err = c.connector.Transaction(ctx,
		func(ctx context.Context, conn Connector) error {
			tc := c.withConnector(conn)
			if err := tc.Create(ctx, related); err != nil {
				return err
			}
			return tc.link(ctx, assoc, ownerTable, owner, relatedTable, related)
		})
	if err != nil && relatedTable.AutoIncrement != "" {
		// the insert was rolled back, the object is unsaved again
		relatedTable.SetAutoIncrementValue(related, 0)
	}
	return err
}

// Transaction runs fn with a client bound to one transaction
func (c *client) Transaction(
	ctx context.Context,
	fn func(ctx context.Context, c Client) error,
) error {
	return c.connector.Transaction(ctx,
		func(ctx context.Context, conn Connector) error {
			return fn(ctx, c.withConnector(conn))
		})
}

// SyncSchema creates object tables first and junction tables last, so that
// foreign keys always reference an existing table
func (c *client) SyncSchema(ctx context.Context) error {
	for _, t := range c.tables {
		if err := c.connector.CreateTable(ctx, &t.Definition); err != nil {
			return err
		}
	}
	for _, a := range c.assocList {
		if err := c.connector.CreateTable(ctx, &a.Definition); err != nil {
			return err
		}
	}
	return nil
}

// ResetSchema drops all tables in reverse creation order and recreates them
func (c *client) ResetSchema(ctx context.Context) error {
	for i := len(c.assocList) - 1; i >= 0; i-- {
		if err := c.connector.DropTable(
			ctx, &c.assocList[i].Definition); err != nil {
			return err
		}
	}
	for i := len(c.tables) - 1; i >= 0; i-- {
		if err := c.connector.DropTable(
			ctx, &c.tables[i].Definition); err != nil {
			return err
		}
	}
	return c.SyncSchema(ctx)
}

// Close closes the connector
func (c *client) Close() error {
	return c.connector.Close()
}
