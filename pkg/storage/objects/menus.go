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
	"time"

	"github.com/menustore/menustore/pkg/storage"
	"github.com/menustore/menustore/pkg/storage/objects/base"

	log "github.com/sirupsen/logrus"
)

const _menu = "menu"

// MenuObject corresponds to a row in menus table.
type MenuObject struct {
	// base.Object DB specific annotations.
	base.Object `sql:"name=menus, primaryKey=(id)"`
	// ID is assigned by the DB on create.
	ID uint64 `column:"name=id, autoIncrement=true"`
	// Title of the menu, e.g. "Breakfast".
	Title string `column:"name=title"`
	// Timestamp of the menu when it's created.
	CreatedAt time.Time `column:"name=created_at"`
	// Most recent timestamp when the menu is updated.
	UpdatedAt time.Time `column:"name=updated_at"`
}

// MenuOps provides methods for manipulating menus table.
type MenuOps interface {
	// Create inserts a new menu in the table.
	Create(ctx context.Context, fields *MenuFields) (*MenuObject, error)

	// Get retrieves a menu by id, nil if there is none.
	Get(ctx context.Context, id uint64) (*MenuObject, error)

	// GetAll gets all the menus ordered by id.
	GetAll(ctx context.Context) ([]*MenuObject, error)

	// Update merges the non-nil fields into the menu and persists them.
	Update(
		ctx context.Context,
		menu *MenuObject,
		fields *MenuFields,
	) (*MenuObject, error)

	// Delete removes the menu along with its restaurant and item links.
	Delete(ctx context.Context, menu *MenuObject) error
}

type menuOps struct {
	store *Store
}

func init() {
	Objs = append(Objs, &MenuObject{})
}

func newMenuObject(fields *MenuFields, createTime time.Time) *MenuObject {
	return &MenuObject{
		Title:     *fields.Title,
		CreatedAt: createTime,
		UpdatedAt: createTime,
	}
}

func validateMenu(fields *MenuFields) error {
	if fields == nil {
		fields = &MenuFields{}
	}
	return validateFields(_menu, fields)
}

var _ MenuOps = (*menuOps)(nil)

// NewMenuOps constructs a MenuOps object for provided Store.
func NewMenuOps(s *Store) MenuOps {
	return &menuOps{store: s}
}

func (m *menuOps) Create(
	ctx context.Context,
	fields *MenuFields,
) (*MenuObject, error) {
	if err := validateMenu(fields); err != nil {
		m.store.metrics.OrmMenuMetrics.ValidationFail.Inc(1)
		return nil, err
	}

	obj := newMenuObject(fields, now())
	if err := m.store.oClient.Create(ctx, obj); err != nil {
		m.store.metrics.OrmMenuMetrics.CreateFail.Inc(1)
		log.WithError(err).
			WithField("title", obj.Title).
			Error("failed to create menu")
		return nil, err
	}

	m.store.metrics.OrmMenuMetrics.Create.Inc(1)
	return obj, nil
}

func (m *menuOps) Get(ctx context.Context, id uint64) (*MenuObject, error) {
	if id > _maxKey {
		m.store.metrics.OrmMenuMetrics.NotFound.Inc(1)
		return nil, nil
	}
	obj := &MenuObject{ID: id}
	if err := m.store.oClient.Get(ctx, obj); err != nil {
		if storage.IsNotFoundError(err) {
			m.store.metrics.OrmMenuMetrics.NotFound.Inc(1)
			return nil, nil
		}
		m.store.metrics.OrmMenuMetrics.GetFail.Inc(1)
		return nil, err
	}

	m.store.metrics.OrmMenuMetrics.Get.Inc(1)
	return obj, nil
}

func (m *menuOps) GetAll(ctx context.Context) ([]*MenuObject, error) {
	objs, err := m.store.oClient.GetAll(ctx, &MenuObject{})
	if err != nil {
		m.store.metrics.OrmMenuMetrics.GetAllFail.Inc(1)
		return nil, err
	}

	m.store.metrics.OrmMenuMetrics.GetAll.Inc(1)
	return toMenuObjects(objs), nil
}

func (m *menuOps) Update(
	ctx context.Context,
	menu *MenuObject,
	fields *MenuFields,
) (*MenuObject, error) {
	if menu == nil {
		m.store.metrics.OrmMenuMetrics.ValidationFail.Inc(1)
		return nil, errNilObject(_menu)
	}

	merged := &MenuFields{Title: String(menu.Title)}
	var fieldsToUpdate []string
	if fields != nil && fields.Title != nil {
		merged.Title = fields.Title
		fieldsToUpdate = append(fieldsToUpdate, "Title")
	}
	if err := validateFields(_menu, merged); err != nil {
		m.store.metrics.OrmMenuMetrics.ValidationFail.Inc(1)
		return nil, err
	}

	updated := *menu
	updated.Title = *merged.Title
	updated.UpdatedAt = now()
	fieldsToUpdate = append(fieldsToUpdate, "UpdatedAt")

	if err := m.store.oClient.Update(ctx, &updated, fieldsToUpdate...); err != nil {
		m.store.metrics.OrmMenuMetrics.UpdateFail.Inc(1)
		log.WithError(err).
			WithField("id", menu.ID).
			Error("failed to update menu")
		return nil, err
	}

	*menu = updated
	m.store.metrics.OrmMenuMetrics.Update.Inc(1)
	return menu, nil
}

func (m *menuOps) Delete(ctx context.Context, menu *MenuObject) error {
	if menu == nil {
		m.store.metrics.OrmMenuMetrics.ValidationFail.Inc(1)
		return errNilObject(_menu)
	}
	if err := m.store.oClient.Delete(ctx, menu); err != nil {
		m.store.metrics.OrmMenuMetrics.DeleteFail.Inc(1)
		log.WithError(err).
			WithField("id", menu.ID).
			Error("failed to delete menu")
		return err
	}

	m.store.metrics.OrmMenuMetrics.Delete.Inc(1)
	return nil
}

func toMenuObjects(objs []base.Object) []*MenuObject {
	menus := make([]*MenuObject, 0, len(objs))
	for _, o := range objs {
		menus = append(menus, o.(*MenuObject))
	}
	return menus
}
