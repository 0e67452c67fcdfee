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

package storage

import (
	"github.com/uber-go/tally/v4"
)

// OrmObjectMetrics tracks counters for one entity table accessed through
// the ORM layer.
type OrmObjectMetrics struct {
	Create     tally.Counter
	CreateFail tally.Counter

	Get      tally.Counter
	GetFail  tally.Counter
	NotFound tally.Counter

	GetAll     tally.Counter
	GetAllFail tally.Counter

	Update     tally.Counter
	UpdateFail tally.Counter

	Delete     tally.Counter
	DeleteFail tally.Counter

	// rejected before reaching the DB
	ValidationFail tally.Counter
}

// OrmAssociationMetrics tracks counters for a junction table accessed
// through the ORM layer.
type OrmAssociationMetrics struct {
	Link     tally.Counter
	LinkFail tally.Counter

	Unlink     tally.Counter
	UnlinkFail tally.Counter

	GetLinked     tally.Counter
	GetLinkedFail tally.Counter

	CreateLinked         tally.Counter
	CreateLinkedFail     tally.Counter
	// timed whether or not the call succeeds
	CreateLinkedDuration tally.Timer
}

// OrmSchemaMetrics tracks schema (re)materialization.
type OrmSchemaMetrics struct {
	Reset     tally.Counter
	ResetFail tally.Counter
	Sync      tally.Counter
	SyncFail  tally.Counter
}

// Metrics is a struct for tracking all the storage related counters
type Metrics struct {
	OrmRestaurantMetrics *OrmObjectMetrics
	OrmMenuMetrics       *OrmObjectMetrics
	OrmItemMetrics       *OrmObjectMetrics

	OrmRestaurantMenuMetrics *OrmAssociationMetrics
	OrmMenuItemMetrics       *OrmAssociationMetrics

	OrmSchemaMetrics *OrmSchemaMetrics
}

func newOrmObjectMetrics(scope tally.Scope) *OrmObjectMetrics {
	successScope := scope.Tagged(map[string]string{"result": "success"})
	failScope := scope.Tagged(map[string]string{"result": "fail"})
	notFoundScope := scope.Tagged(map[string]string{"result": "not_found"})

	return &OrmObjectMetrics{
		Create:     successScope.Counter("create"),
		CreateFail: failScope.Counter("create"),

		Get:      successScope.Counter("get"),
		GetFail:  failScope.Counter("get"),
		NotFound: notFoundScope.Counter("get"),

		GetAll:     successScope.Counter("get_all"),
		GetAllFail: failScope.Counter("get_all"),

		Update:     successScope.Counter("update"),
		UpdateFail: failScope.Counter("update"),

		Delete:     successScope.Counter("delete"),
		DeleteFail: failScope.Counter("delete"),

		ValidationFail: failScope.Counter("validation"),
	}
}

func newOrmAssociationMetrics(scope tally.Scope) *OrmAssociationMetrics {
	successScope := scope.Tagged(map[string]string{"result": "success"})
	failScope := scope.Tagged(map[string]string{"result": "fail"})

	return &OrmAssociationMetrics{
		Link:     successScope.Counter("link"),
		LinkFail: failScope.Counter("link"),

		Unlink:     successScope.Counter("unlink"),
		UnlinkFail: failScope.Counter("unlink"),

		GetLinked:     successScope.Counter("get_linked"),
		GetLinkedFail: failScope.Counter("get_linked"),

		CreateLinked:         successScope.Counter("create_linked"),
		CreateLinkedFail:     failScope.Counter("create_linked"),
		CreateLinkedDuration: scope.Timer("create_linked_duration"),
	}
}

// NewMetrics returns a new Metrics struct, with all metrics initialized
// and rooted at the given tally.Scope
func NewMetrics(scope tally.Scope) *Metrics {
	ormScope := scope.SubScope("orm")

	schemaScope := ormScope.SubScope("schema")
	schemaSuccessScope := schemaScope.Tagged(
		map[string]string{"result": "success"})
	schemaFailScope := schemaScope.Tagged(
		map[string]string{"result": "fail"})

	return &Metrics{
		OrmRestaurantMetrics: newOrmObjectMetrics(ormScope.SubScope("restaurants")),
		OrmMenuMetrics:       newOrmObjectMetrics(ormScope.SubScope("menus")),
		OrmItemMetrics:       newOrmObjectMetrics(ormScope.SubScope("items")),

		OrmRestaurantMenuMetrics: newOrmAssociationMetrics(
			ormScope.SubScope("menu_restaurant")),
		OrmMenuItemMetrics: newOrmAssociationMetrics(
			ormScope.SubScope("item_menu")),

		OrmSchemaMetrics: &OrmSchemaMetrics{
			Reset:     schemaSuccessScope.Counter("reset"),
			ResetFail: schemaFailScope.Counter("reset"),
			Sync:      schemaSuccessScope.Counter("sync"),
			SyncFail:  schemaFailScope.Counter("sync"),
		},
	}
}
