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
	"context"

	"github.com/menustore/menustore/pkg/storage"
	"github.com/menustore/menustore/pkg/storage/objects/base"
	"github.com/menustore/menustore/pkg/storage/orm"
	ormmocks "github.com/menustore/menustore/pkg/storage/orm/mocks"

	"github.com/golang/mock/gomock"
	"github.com/pkg/errors"
)

// testValidObject is the storage object representation of testRow
var testValidObject = &ValidObject{
	ID:   uint64(1),
	Name: "test",
	Data: "testdata",
}

func (suite *ORMTestSuite) newClient(
	conn orm.Connector) orm.Client {
	client, err := orm.NewClient(
		conn,
		[]base.Object{&ValidObject{}, &LinkedObject{}},
		orm.BelongsToMany(&ValidObject{}, &LinkedObject{}),
	)
	suite.NoError(err)
	return client
}

// TestNewClient tests creating new base client with base objects
func (suite *ORMTestSuite) TestNewClient() {
	defer suite.ctrl.Finish()
	conn := ormmocks.NewMockConnector(suite.ctrl)
	_, err := orm.NewClient(conn, []base.Object{&ValidObject{}})
	suite.NoError(err)

	_, err = orm.NewClient(conn, []base.Object{&InvalidObject1{}})
	suite.Error(err)

	// relation with an object that is not registered
	_, err = orm.NewClient(
		conn,
		[]base.Object{&ValidObject{}},
		orm.BelongsToMany(&ValidObject{}, &LinkedObject{}),
	)
	suite.Error(err)

	// relation of an object with itself
	_, err = orm.NewClient(
		conn,
		[]base.Object{&ValidObject{}},
		orm.BelongsToMany(&ValidObject{}, &ValidObject{}),
	)
	suite.Error(err)

	// the same relation declared from both sides
	_, err = orm.NewClient(
		conn,
		[]base.Object{&ValidObject{}, &LinkedObject{}},
		orm.BelongsToMany(&ValidObject{}, &LinkedObject{}),
		orm.BelongsToMany(&LinkedObject{}, &ValidObject{}),
	)
	suite.Error(err)

	// relations need a single column key
	_, err = orm.NewClient(
		conn,
		[]base.Object{&ValidObject{}, &CompositeKeyObject{}},
		orm.BelongsToMany(&ValidObject{}, &CompositeKeyObject{}),
	)
	suite.Error(err)
}

// TestClientCreate tests client create operation on valid and invalid entities
func (suite *ORMTestSuite) TestClientCreate() {
	defer suite.ctrl.Finish()
	conn := ormmocks.NewMockConnector(suite.ctrl)

	conn.EXPECT().Create(suite.ctx, gomock.Any(), gomock.Any()).
		Do(func(_ context.Context, e *base.Definition, row []base.Column) {
			suite.Equal("valid_object", e.Name)
			suite.ensureRowsEqual(row, testRow[1:])
		}).Return(int64(1), nil)

	client := suite.newClient(conn)

	e := &ValidObject{Name: "test", Data: "testdata"}
	err := client.Create(suite.ctx, e)
	suite.NoError(err)
	suite.Equal(testValidObject, e)

	err = client.Create(suite.ctx, &InvalidObject1{})
	suite.Error(err)
}

// TestClientCreateFailure tests that the key is not set on failure
func (suite *ORMTestSuite) TestClientCreateFailure() {
	defer suite.ctrl.Finish()
	conn := ormmocks.NewMockConnector(suite.ctrl)

	conn.EXPECT().Create(suite.ctx, gomock.Any(), gomock.Any()).
		Return(int64(0), errors.New("insert failed"))

	client := suite.newClient(conn)

	e := &ValidObject{Name: "test"}
	suite.Error(client.Create(suite.ctx, e))
	suite.Zero(e.ID)
}

// TestClientGet tests client get operation on valid and invalid entities
func (suite *ORMTestSuite) TestClientGet() {
	defer suite.ctrl.Finish()
	conn := ormmocks.NewMockConnector(suite.ctrl)

	// ValidObject instance with only primary key set
	e := &ValidObject{
		ID: uint64(1),
	}

	conn.EXPECT().Get(suite.ctx, gomock.Any(), gomock.Any(), gomock.Any()).
		Do(func(_ context.Context, _ *base.Definition,
			row []base.Column, _ ...string) {
			suite.Equal("id", row[0].Name)
			suite.Equal(e.ID, row[0].Value)
		}).Return(map[string]interface{}{
		"id":   uint64(1),
		"name": "test",
		"data": "testdata",
	}, nil)

	client := suite.newClient(conn)

	// Do a get on the ValidObject instance and verify that the expected
	// fields in the object are set as per testRow
	err := client.Get(suite.ctx, e)
	suite.NoError(err)

	// compare the values from testRow to that of the entity fields
	suite.Equal(testRow[1].Value, e.Name)
	suite.Equal(testRow[2].Value, e.Data)

	err = client.Get(suite.ctx, &InvalidObject1{})
	suite.Error(err)
}

// TestClientGetNotFound tests that a missing row is reported as
// storage.NotFoundError
func (suite *ORMTestSuite) TestClientGetNotFound() {
	defer suite.ctrl.Finish()
	conn := ormmocks.NewMockConnector(suite.ctrl)

	conn.EXPECT().Get(suite.ctx, gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, nil)
	conn.EXPECT().Get(suite.ctx, gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, errors.New("connection lost"))

	client := suite.newClient(conn)

	err := client.Get(suite.ctx, &ValidObject{ID: 2})
	suite.True(storage.IsNotFoundError(err))
	suite.EqualError(err, "valid 2 not found")

	err = client.Get(suite.ctx, &ValidObject{ID: 2})
	suite.Error(err)
	suite.False(storage.IsNotFoundError(err))
}

// TestClientGetAll tests fetching all rows of a table
func (suite *ORMTestSuite) TestClientGetAll() {
	defer suite.ctrl.Finish()
	conn := ormmocks.NewMockConnector(suite.ctrl)

	conn.EXPECT().GetAll(suite.ctx, gomock.Any(), gomock.Nil()).
		Return([]map[string]interface{}{
			{"id": uint64(1), "name": "test", "data": "testdata"},
			{"id": uint64(2), "name": "test2", "data": nil},
		}, nil)

	client := suite.newClient(conn)

	objs, err := client.GetAll(suite.ctx, &ValidObject{})
	suite.NoError(err)
	suite.Len(objs, 2)
	suite.Equal(testValidObject, objs[0])
	suite.Equal(&ValidObject{ID: 2, Name: "test2"}, objs[1])

	_, err = client.GetAll(suite.ctx, &InvalidObject1{})
	suite.Error(err)
}

// TestClientUpdate tests updating selected fields of an object
func (suite *ORMTestSuite) TestClientUpdate() {
	defer suite.ctrl.Finish()
	conn := ormmocks.NewMockConnector(suite.ctrl)

	gomock.InOrder(
		conn.EXPECT().Update(suite.ctx, gomock.Any(), gomock.Any(), gomock.Any()).
			Do(func(_ context.Context, _ *base.Definition,
				row []base.Column, keys []base.Column) {
				// key column is never part of the values
				suite.ensureRowsEqual(row, testRow[1:])
				suite.ensureRowsEqual(keys, testRow[:1])
			}).Return(nil),
		conn.EXPECT().Update(suite.ctx, gomock.Any(), gomock.Any(), gomock.Any()).
			Do(func(_ context.Context, _ *base.Definition,
				row []base.Column, keys []base.Column) {
				suite.ensureRowsEqual(row, testRow[2:])
			}).Return(nil),
		conn.EXPECT().Update(suite.ctx, gomock.Any(), gomock.Any(), gomock.Any()).
			Return(storage.NewNotFoundError("valid_object", "1")),
	)

	client := suite.newClient(conn)

	suite.NoError(client.Update(suite.ctx, testValidObject))
	suite.NoError(client.Update(suite.ctx, testValidObject, "ID", "Data"))

	err := client.Update(suite.ctx, testValidObject)
	suite.True(storage.IsNotFoundError(err))
	suite.EqualError(err, "valid 1 not found")

	// only the key is selected
	suite.Error(client.Update(suite.ctx, testValidObject, "ID"))
}

// TestClientDelete tests deleting an object together with its links
func (suite *ORMTestSuite) TestClientDelete() {
	defer suite.ctrl.Finish()
	conn := ormmocks.NewMockConnector(suite.ctrl)

	suite.expectTransaction(conn)
	gomock.InOrder(
		conn.EXPECT().Get(suite.ctx, gomock.Any(), gomock.Any(), gomock.Any()).
			Return(map[string]interface{}{"id": uint64(1)}, nil),
		conn.EXPECT().Delete(suite.ctx, gomock.Any(), gomock.Any()).
			Do(func(_ context.Context, e *base.Definition, keys []base.Column) {
				suite.Equal("linked_valid", e.Name)
				suite.ensureRowsEqual(keys, []base.Column{
					{Name: "valid_id", Value: uint64(1)},
				})
			}).Return(nil),
		conn.EXPECT().Delete(suite.ctx, gomock.Any(), gomock.Any()).
			Do(func(_ context.Context, e *base.Definition, keys []base.Column) {
				suite.Equal("valid_object", e.Name)
				suite.ensureRowsEqual(keys, testRow[:1])
			}).Return(nil),
	)

	client := suite.newClient(conn)
	suite.NoError(client.Delete(suite.ctx, testValidObject))
}

// TestClientDeleteNotFound tests deleting an object which is gone
func (suite *ORMTestSuite) TestClientDeleteNotFound() {
	defer suite.ctrl.Finish()
	conn := ormmocks.NewMockConnector(suite.ctrl)

	suite.expectTransaction(conn)
	conn.EXPECT().Get(suite.ctx, gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, nil)

	client := suite.newClient(conn)
	err := client.Delete(suite.ctx, testValidObject)
	suite.True(storage.IsNotFoundError(err))

	suite.Error(client.Delete(suite.ctx, &InvalidObject1{}))
}

// TestClientTransaction tests that a transaction client issues its
// queries on the transaction connector
func (suite *ORMTestSuite) TestClientTransaction() {
	defer suite.ctrl.Finish()
	conn := ormmocks.NewMockConnector(suite.ctrl)
	txConn := ormmocks.NewMockConnector(suite.ctrl)

	conn.EXPECT().Transaction(suite.ctx, gomock.Any()).
		DoAndReturn(func(
			ctx context.Context,
			fn func(context.Context, orm.Connector) error,
		) error {
			return fn(ctx, txConn)
		})
	txConn.EXPECT().Create(suite.ctx, gomock.Any(), gomock.Any()).
		Return(int64(3), nil)

	client := suite.newClient(conn)

	e := &ValidObject{Name: "test"}
	err := client.Transaction(suite.ctx,
		func(ctx context.Context, c orm.Client) error {
			return c.Create(ctx, e)
		})
	suite.NoError(err)
	suite.Equal(uint64(3), e.ID)
}

// TestClientSchema tests the order tables are created and dropped in
func (suite *ORMTestSuite) TestClientSchema() {
	defer suite.ctrl.Finish()
	conn := ormmocks.NewMockConnector(suite.ctrl)

	var created, dropped []string
	conn.EXPECT().CreateTable(suite.ctx, gomock.Any()).
		Do(func(_ context.Context, e *base.Definition) {
			created = append(created, e.Name)
		}).Return(nil).Times(6)
	conn.EXPECT().DropTable(suite.ctx, gomock.Any()).
		Do(func(_ context.Context, e *base.Definition) {
			dropped = append(dropped, e.Name)
		}).Return(nil).Times(3)

	client := suite.newClient(conn)

	suite.NoError(client.SyncSchema(suite.ctx))
	suite.Equal(
		[]string{"valid_object", "linked_objects", "linked_valid"}, created)

	created = nil
	suite.NoError(client.ResetSchema(suite.ctx))
	suite.Equal(
		[]string{"linked_valid", "linked_objects", "valid_object"}, dropped)
	suite.Equal(
		[]string{"valid_object", "linked_objects", "linked_valid"}, created)
}

// TestClientSchemaFailure tests that a DDL failure stops the reset
func (suite *ORMTestSuite) TestClientSchemaFailure() {
	defer suite.ctrl.Finish()
	conn := ormmocks.NewMockConnector(suite.ctrl)

	conn.EXPECT().DropTable(suite.ctx, gomock.Any()).
		Return(errors.New("drop failed"))

	client := suite.newClient(conn)
	suite.Error(client.ResetSchema(suite.ctx))
}

// TestClientClose tests closing the connector
func (suite *ORMTestSuite) TestClientClose() {
	defer suite.ctrl.Finish()
	conn := ormmocks.NewMockConnector(suite.ctrl)
	conn.EXPECT().Close().Return(nil)

	client := suite.newClient(conn)
	suite.NoError(client.Close())
}
