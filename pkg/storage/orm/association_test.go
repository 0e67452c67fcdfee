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
	"reflect"

	"github.com/menustore/menustore/pkg/storage"
	"github.com/menustore/menustore/pkg/storage/objects/base"
	"github.com/menustore/menustore/pkg/storage/orm"
	ormmocks "github.com/menustore/menustore/pkg/storage/orm/mocks"

	"github.com/golang/mock/gomock"
	"github.com/pkg/errors"
)

var testLinkedObject = &LinkedObject{
	ID:    int64(5),
	Label: "linked",
}

// linkedValidRow is the junction row between testValidObject and
// testLinkedObject
var linkedValidRow = []base.Column{
	{Name: "linked_id", Value: int64(5)},
	{Name: "valid_id", Value: uint64(1)},
}

// junctionDefinition returns the junction definition the client derives
// for the ValidObject / LinkedObject relation
func (suite *ORMTestSuite) junctionDefinition() *base.Definition {
	conn := ormmocks.NewMockConnector(suite.ctrl)
	var def *base.Definition
	conn.EXPECT().CreateTable(gomock.Any(), gomock.Any()).
		Do(func(_ context.Context, e *base.Definition) {
			def = e
		}).Return(nil).AnyTimes()
	suite.NoError(suite.newClient(conn).SyncSchema(suite.ctx))
	return def
}

// TestAssociationDefinition tests the junction table derived from a
// relation
func (suite *ORMTestSuite) TestAssociationDefinition() {
	defer suite.ctrl.Finish()
	def := suite.junctionDefinition()

	suite.Equal("linked_valid", def.Name)
	suite.Equal([]string{"id", "linked_id", "valid_id"}, def.Columns)
	suite.Equal([]string{"id"}, def.Key.Columns)
	suite.Equal("id", def.AutoIncrement)
	suite.Equal([][]string{{"linked_id", "valid_id"}}, def.Unique)
	suite.Equal(reflect.TypeOf(int64(0)), def.ColumnToType["linked_id"])
	suite.Equal(reflect.TypeOf(uint64(0)), def.ColumnToType["valid_id"])
	suite.Equal([]*base.ForeignKey{
		{Column: "linked_id", RefTable: "linked_objects", RefColumn: "id"},
		{Column: "valid_id", RefTable: "valid_object", RefColumn: "id"},
	}, def.ForeignKeys)
}

// TestAssociationDefinitionSymmetric tests that declaring the relation
// from the other side yields the same junction table
func (suite *ORMTestSuite) TestAssociationDefinitionSymmetric() {
	defer suite.ctrl.Finish()
	expected := suite.junctionDefinition()

	conn := ormmocks.NewMockConnector(suite.ctrl)
	var defs []*base.Definition
	conn.EXPECT().CreateTable(gomock.Any(), gomock.Any()).
		Do(func(_ context.Context, e *base.Definition) {
			defs = append(defs, e)
		}).Return(nil).Times(3)

	client, err := orm.NewClient(
		conn,
		[]base.Object{&LinkedObject{}, &ValidObject{}},
		orm.BelongsToMany(&LinkedObject{}, &ValidObject{}),
	)
	suite.NoError(err)
	suite.NoError(client.SyncSchema(suite.ctx))
	suite.Equal(expected, defs[2])
}

// TestClientLink tests linking two persisted objects
func (suite *ORMTestSuite) TestClientLink() {
	defer suite.ctrl.Finish()
	conn := ormmocks.NewMockConnector(suite.ctrl)

	suite.expectTransaction(conn)
	gomock.InOrder(
		conn.EXPECT().Get(suite.ctx, gomock.Any(), gomock.Any(), gomock.Any()).
			Do(func(_ context.Context, e *base.Definition,
				keys []base.Column, _ ...string) {
				suite.Equal("valid_object", e.Name)
			}).Return(map[string]interface{}{"id": uint64(1)}, nil),
		conn.EXPECT().Get(suite.ctx, gomock.Any(), gomock.Any(), gomock.Any()).
			Do(func(_ context.Context, e *base.Definition,
				keys []base.Column, _ ...string) {
				suite.Equal("linked_objects", e.Name)
			}).Return(map[string]interface{}{"id": int64(5)}, nil),
		conn.EXPECT().Get(suite.ctx, gomock.Any(), gomock.Any(), gomock.Any()).
			Do(func(_ context.Context, e *base.Definition,
				keys []base.Column, _ ...string) {
				suite.Equal("linked_valid", e.Name)
				suite.ensureRowsEqual(keys, linkedValidRow)
			}).Return(nil, nil),
		conn.EXPECT().Create(suite.ctx, gomock.Any(), gomock.Any()).
			Do(func(_ context.Context, e *base.Definition, row []base.Column) {
				suite.Equal("linked_valid", e.Name)
				suite.ensureRowsEqual(row, linkedValidRow)
			}).Return(int64(1), nil),
	)

	client := suite.newClient(conn)
	suite.NoError(client.Link(suite.ctx, testValidObject, testLinkedObject))
}

// TestClientLinkIdempotent tests that linking a linked pair inserts nothing
func (suite *ORMTestSuite) TestClientLinkIdempotent() {
	defer suite.ctrl.Finish()
	conn := ormmocks.NewMockConnector(suite.ctrl)

	suite.expectTransaction(conn)
	gomock.InOrder(
		conn.EXPECT().Get(suite.ctx, gomock.Any(), gomock.Any(), gomock.Any()).
			Return(map[string]interface{}{"id": int64(5)}, nil),
		conn.EXPECT().Get(suite.ctx, gomock.Any(), gomock.Any(), gomock.Any()).
			Return(map[string]interface{}{"id": uint64(1)}, nil),
		conn.EXPECT().Get(suite.ctx, gomock.Any(), gomock.Any(), gomock.Any()).
			Return(map[string]interface{}{"id": int64(1)}, nil),
	)

	client := suite.newClient(conn)
	// the relation can be used from either side
	suite.NoError(client.Link(suite.ctx, testLinkedObject, testValidObject))
}

// TestClientLinkNotFound tests linking with an object which is not stored
func (suite *ORMTestSuite) TestClientLinkNotFound() {
	defer suite.ctrl.Finish()
	conn := ormmocks.NewMockConnector(suite.ctrl)

	suite.expectTransaction(conn)
	gomock.InOrder(
		conn.EXPECT().Get(suite.ctx, gomock.Any(), gomock.Any(), gomock.Any()).
			Return(map[string]interface{}{"id": uint64(1)}, nil),
		conn.EXPECT().Get(suite.ctx, gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, nil),
	)

	client := suite.newClient(conn)
	err := client.Link(suite.ctx, testValidObject, testLinkedObject)
	suite.True(storage.IsNotFoundError(err))
	suite.EqualError(err, "linked 5 not found")

	// no relation between the types
	unrelated, err := orm.NewClient(
		conn, []base.Object{&ValidObject{}, &LinkedObject{}})
	suite.NoError(err)
	suite.Error(unrelated.Link(suite.ctx, testValidObject, testLinkedObject))
}

// TestClientUnlink tests removing a link
func (suite *ORMTestSuite) TestClientUnlink() {
	defer suite.ctrl.Finish()
	conn := ormmocks.NewMockConnector(suite.ctrl)

	conn.EXPECT().Delete(suite.ctx, gomock.Any(), gomock.Any()).
		Do(func(_ context.Context, e *base.Definition, keys []base.Column) {
			suite.Equal("linked_valid", e.Name)
			suite.ensureRowsEqual(keys, linkedValidRow)
		}).Return(nil)

	client := suite.newClient(conn)
	suite.NoError(client.Unlink(suite.ctx, testValidObject, testLinkedObject))
}

// TestClientGetLinked tests reading linked objects through the junction
func (suite *ORMTestSuite) TestClientGetLinked() {
	defer suite.ctrl.Finish()
	conn := ormmocks.NewMockConnector(suite.ctrl)

	conn.EXPECT().GetAllJoined(
		suite.ctx, gomock.Any(), gomock.Any(), gomock.Any()).
		Do(func(_ context.Context, e *base.Definition, join *base.Join,
			keys []base.Column) {
			suite.Equal("linked_objects", e.Name)
			suite.Equal("linked_valid", join.Through.Name)
			suite.Equal("id", join.LocalColumn)
			suite.Equal("linked_id", join.ForeignColumn)
			suite.Equal("id", join.OrderBy)
			suite.ensureRowsEqual(keys, linkedValidRow[1:])
		}).Return([]map[string]interface{}{
		{"id": int64(5), "label": "linked"},
		{"id": int64(6), "label": "other"},
	}, nil)
	conn.EXPECT().GetAllJoined(
		suite.ctx, gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, errors.New("select failed"))

	client := suite.newClient(conn)

	objs, err := client.GetLinked(suite.ctx, testValidObject, &LinkedObject{})
	suite.NoError(err)
	suite.Equal([]base.Object{
		testLinkedObject,
		&LinkedObject{ID: 6, Label: "other"},
	}, objs)

	_, err = client.GetLinked(suite.ctx, testValidObject, &LinkedObject{})
	suite.Error(err)
}

// TestClientCreateLinked tests creating and linking an object in one
// transaction
func (suite *ORMTestSuite) TestClientCreateLinked() {
	defer suite.ctrl.Finish()
	conn := ormmocks.NewMockConnector(suite.ctrl)

	suite.expectTransaction(conn)
	gomock.InOrder(
		conn.EXPECT().Create(suite.ctx, gomock.Any(), gomock.Any()).
			Do(func(_ context.Context, e *base.Definition, row []base.Column) {
				suite.Equal("linked_objects", e.Name)
			}).Return(int64(5), nil),
		conn.EXPECT().Get(suite.ctx, gomock.Any(), gomock.Any(), gomock.Any()).
			Return(map[string]interface{}{"id": uint64(1)}, nil),
		conn.EXPECT().Get(suite.ctx, gomock.Any(), gomock.Any(), gomock.Any()).
			Return(map[string]interface{}{"id": int64(5)}, nil),
		conn.EXPECT().Get(suite.ctx, gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, nil),
		conn.EXPECT().Create(suite.ctx, gomock.Any(), gomock.Any()).
			Do(func(_ context.Context, e *base.Definition, row []base.Column) {
				suite.Equal("linked_valid", e.Name)
				suite.ensureRowsEqual(row, linkedValidRow)
			}).Return(int64(1), nil),
	)

	client := suite.newClient(conn)

	related := &LinkedObject{Label: "linked"}
	suite.NoError(client.CreateLinked(suite.ctx, testValidObject, related))
	suite.Equal(testLinkedObject, related)
}

// TestClientCreateLinkedFailure tests that a failed link leaves the
// related object unsaved
func (suite *ORMTestSuite) TestClientCreateLinkedFailure() {
	defer suite.ctrl.Finish()
	conn := ormmocks.NewMockConnector(suite.ctrl)

	suite.expectTransaction(conn)
	gomock.InOrder(
		conn.EXPECT().Create(suite.ctx, gomock.Any(), gomock.Any()).
			Return(int64(5), nil),
		conn.EXPECT().Get(suite.ctx, gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, nil),
	)

	client := suite.newClient(conn)

	related := &LinkedObject{Label: "linked"}
	err := client.CreateLinked(suite.ctx, testValidObject, related)
	suite.True(storage.IsNotFoundError(err))
	suite.Zero(related.ID)
}
