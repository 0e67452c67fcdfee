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

	"github.com/menustore/menustore/pkg/storage/objects/base"
)

// Connector is the interface that must be implemented for a backend service
type Connector interface {
	// Create creates a row in the DB for the base object. The value assigned
	// to the autoIncrement column, if any, is returned.
	Create(
		ctx context.Context,
		e *base.Definition,
		values []base.Column,
	) (int64, error)

	// Get fetches the first row matching the key columns. A nil map is
	// returned when no row matches.
	Get(
		ctx context.Context,
		e *base.Definition,
		keys []base.Column,
		colNamesToRead ...string,
	) (map[string]interface{}, error)

	// GetAll fetches all rows matching the key columns, ordered by primary
	// key. Empty keys select the whole table.
	GetAll(
		ctx context.Context,
		e *base.Definition,
		keys []base.Column,
	) ([]map[string]interface{}, error)

	// GetAllJoined fetches the rows of e reached through join.Through, where
	// the keys are matched against columns of join.Through.
	GetAllJoined(
		ctx context.Context,
		e *base.Definition,
		join *base.Join,
		keys []base.Column,
	) ([]map[string]interface{}, error)

	// Update updates a row in the DB for the base object. It fails with a
	// storage.NotFoundError if no row matches the keys.
	Update(
		ctx context.Context,
		e *base.Definition,
		values []base.Column,
		keys []base.Column,
	) error

	// Delete deletes the rows matching the keys. Matching no row is not an
	// error.
	Delete(ctx context.Context, e *base.Definition, keys []base.Column) error

	// CreateTable creates the table for the base object if it doesn't
	// already exist
	CreateTable(ctx context.Context, e *base.Definition) error

	// DropTable drops the table for the base object if it exists
	DropTable(ctx context.Context, e *base.Definition) error

	// Transaction runs fn with a connector bound to a single transaction.
	// The transaction is committed if fn returns nil and rolled back
	// otherwise.
	Transaction(
		ctx context.Context,
		fn func(ctx context.Context, conn Connector) error,
	) error

	// Close releases the DB connection.
	Close() error
}
