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

package objects

import (
	"context"
	"math"
	"time"

	"github.com/menustore/menustore/pkg/storage"
	"github.com/menustore/menustore/pkg/storage/config"
	"github.com/menustore/menustore/pkg/storage/connectors/sqldb"
	"github.com/menustore/menustore/pkg/storage/objects/base"
	"github.com/menustore/menustore/pkg/storage/orm"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/uber-go/tally/v4"
)

// Objs is a global list of storage objects. Every storage object will be added
// using an init method to this list. This list will be used when creating the
// ORM client.
var Objs []base.Object

// Relations is a global list of many-to-many relations between storage
// objects, added to by init methods like Objs.
var Relations []orm.Relation

// Store contains ORM client as well as metrics
type Store struct {
	oClient orm.Client
	metrics *storage.Metrics
}

// NewSQLStore creates a new SQL storage client
func NewSQLStore(
	config *sqldb.Config,
	scope tally.Scope,
) (*Store, error) {
	connector, err := sqldb.NewSQLConnector(config, scope)
	if err != nil {
		return nil, err
	}
	return NewStore(connector, scope)
}

// OpenStore creates a SQL store from the storage config and syncs the
// schema if AutoSync is set.
func OpenStore(
	ctx context.Context,
	cfg *config.Config,
	scope tally.Scope,
) (*Store, error) {
	s, err := NewSQLStore(&cfg.SQL, scope)
	if err != nil {
		return nil, err
	}
	if cfg.AutoSync {
		if err := s.SyncSchema(ctx); err != nil {
			s.Close()
			return nil, err
		}
	}
	return s, nil
}

// NewStore creates a storage client on top of an existing connector
func NewStore(
	connector orm.Connector,
	scope tally.Scope,
) (*Store, error) {
	oclient, err := orm.NewClient(connector, Objs, Relations...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create ORM client")
	}
	return &Store{
		oClient: oclient,
		metrics: storage.NewMetrics(scope),
	}, nil
}

// ResetSchema drops and recreates every table, junction tables included.
// All data is lost, it is meant for test bootstrap only.
func (s *Store) ResetSchema(ctx context.Context) error {
	if err := s.oClient.ResetSchema(ctx); err != nil {
		s.metrics.OrmSchemaMetrics.ResetFail.Inc(1)
		log.WithError(err).Error("failed to reset schema")
		return err
	}
	s.metrics.OrmSchemaMetrics.Reset.Inc(1)
	return nil
}

// SyncSchema creates the tables which do not exist yet
func (s *Store) SyncSchema(ctx context.Context) error {
	if err := s.oClient.SyncSchema(ctx); err != nil {
		s.metrics.OrmSchemaMetrics.SyncFail.Inc(1)
		log.WithError(err).Error("failed to sync schema")
		return err
	}
	s.metrics.OrmSchemaMetrics.Sync.Inc(1)
	return nil
}

// Transaction runs fn with a store whose operations all belong to one
// transaction
func (s *Store) Transaction(
	ctx context.Context,
	fn func(ctx context.Context, tx *Store) error,
) error {
	return s.oClient.Transaction(ctx,
		func(ctx context.Context, c orm.Client) error {
			return fn(ctx, &Store{oClient: c, metrics: s.metrics})
		})
}

// Close closes the DB connection
func (s *Store) Close() error {
	return s.oClient.Close()
}

// now returns the time stored in timestamp columns. MySQL DATETIME(6)
// keeps microseconds, so does every object in memory.
// _maxKey is the largest key the DB generates. Keys are signed 64 bit
// integers in both sqlite3 and mysql.
const _maxKey = math.MaxInt64

func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// errNilObject is returned when an operation is given a nil object
func errNilObject(object string) error {
	return storage.NewValidationError(
		object, errors.Errorf("%s is nil", object))
}
