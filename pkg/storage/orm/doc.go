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

/*
Package orm implements the ORM (object relational mapping) layer of
menustore. There are four major components of this layer:

  * Object - is the object representation of a DB table. So every table in DB
             should be read or written using a storage object. Each field of the
             storage object corresponds to each column of the DB table. Storage
             object is annotated using a limited DSL so that ORM can
             translate the object into SQL statements. For example, menus
             are read and written through MenuObject, whose `sql` annotation
             names the menus table and its primary key, and whose `column`
             annotations name the columns.

  * Relation - declares that two storage objects are linked many-to-many.
             Every relation is backed by a junction table whose definition
             is derived from the two objects, e.g. menu_restaurant.

  * Client - is the interface exposed by ORM to the application layer.
             Any package which wants to do storage operations
             must do it using the API exposed by the ORM Client.

  * Connector - is the interface mapping directly to the API exposed by the
             client and should be implemented by different storage connectors.
             menustore has a database/sql implementation of the connector
             in connectors/sqldb supporting sqlite3 and mysql.
*/
package orm

//go:generate mockgen -destination mocks/mock_connector.go -package mocks github.com/menustore/menustore/pkg/storage/orm Connector
//go:generate mockgen -destination mocks/mock_client.go -package mocks github.com/menustore/menustore/pkg/storage/orm Client
