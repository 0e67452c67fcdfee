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

const _item = "item"

// ItemObject corresponds to a row in items table.
type ItemObject struct {
	// base.Object DB specific annotations.
	base.Object `sql:"name=items, primaryKey=(id)"`
	// ID is assigned by the DB on create.
	ID uint64 `column:"name=id, autoIncrement=true"`
	// Name of the dish.
	Name string `column:"name=name"`
	// Image URL of the dish, NULL when not provided.
	Image *base.OptionalString `column:"name=image"`
	// Price of the dish.
	Price float64 `column:"name=price"`
	// Vegetarian is true for dishes without meat.
	Vegetarian bool `column:"name=vegetarian"`
	// Timestamp of the item when it's created.
	CreatedAt time.Time `column:"name=created_at"`
	// Most recent timestamp when the item is updated.
	UpdatedAt time.Time `column:"name=updated_at"`
}

func (o *ItemObject) fields() *ItemFields {
	f := &ItemFields{
		Name:       String(o.Name),
		Price:      Float64(o.Price),
		Vegetarian: Bool(o.Vegetarian),
	}
	if o.Image != nil {
		f.Image = String(o.Image.Value)
	}
	return f
}

// ItemOps provides methods for manipulating items table.
type ItemOps interface {
	// Create inserts a new item in the table.
	Create(ctx context.Context, fields *ItemFields) (*ItemObject, error)

	// Get retrieves an item by id, nil if there is none.
	Get(ctx context.Context, id uint64) (*ItemObject, error)

	// GetAll gets all the items ordered by id.
	GetAll(ctx context.Context) ([]*ItemObject, error)

	// Update merges the non-nil fields into the item and persists them.
	// An empty image clears it.
	Update(
		ctx context.Context,
		item *ItemObject,
		fields *ItemFields,
	) (*ItemObject, error)

	// Delete removes the item and its menu links from the table.
	Delete(ctx context.Context, item *ItemObject) error
}

type itemOps struct {
	store *Store
}

func init() {
	Objs = append(Objs, &ItemObject{})
}

func newItemObject(fields *ItemFields, createTime time.Time) *ItemObject {
	obj := &ItemObject{
		Name:       *fields.Name,
		Price:      *fields.Price,
		Vegetarian: *fields.Vegetarian,
		CreatedAt:  createTime,
		UpdatedAt:  createTime,
	}
	if fields.Image != nil {
		obj.Image = base.NewOptionalString(*fields.Image)
	}
	return obj
}

func validateItem(fields *ItemFields) error {
	if fields == nil {
		fields = &ItemFields{}
	}
	return validateFields(_item, fields)
}

var _ ItemOps = (*itemOps)(nil)

// NewItemOps constructs an ItemOps object for provided Store.
func NewItemOps(s *Store) ItemOps {
	return &itemOps{store: s}
}

func (i *itemOps) Create(
	ctx context.Context,
	fields *ItemFields,
) (*ItemObject, error) {
	if err := validateItem(fields); err != nil {
		i.store.metrics.OrmItemMetrics.ValidationFail.Inc(1)
		return nil, err
	}

	obj := newItemObject(fields, now())
	if err := i.store.oClient.Create(ctx, obj); err != nil {
		i.store.metrics.OrmItemMetrics.CreateFail.Inc(1)
		log.WithError(err).
			WithField("name", obj.Name).
			Error("failed to create item")
		return nil, err
	}

	i.store.metrics.OrmItemMetrics.Create.Inc(1)
	return obj, nil
}

func (i *itemOps) Get(ctx context.Context, id uint64) (*ItemObject, error) {
	if id > _maxKey {
		i.store.metrics.OrmItemMetrics.NotFound.Inc(1)
		return nil, nil
	}
	obj := &ItemObject{ID: id}
	if err := i.store.oClient.Get(ctx, obj); err != nil {
		if storage.IsNotFoundError(err) {
			i.store.metrics.OrmItemMetrics.NotFound.Inc(1)
			return nil, nil
		}
		i.store.metrics.OrmItemMetrics.GetFail.Inc(1)
		return nil, err
	}

	i.store.metrics.OrmItemMetrics.Get.Inc(1)
	return obj, nil
}

func (i *itemOps) GetAll(ctx context.Context) ([]*ItemObject, error) {
	objs, err := i.store.oClient.GetAll(ctx, &ItemObject{})
	if err != nil {
		i.store.metrics.OrmItemMetrics.GetAllFail.Inc(1)
		return nil, err
	}

	i.store.metrics.OrmItemMetrics.GetAll.Inc(1)
	return toItemObjects(objs), nil
}

func (i *itemOps) Update(
	ctx context.Context,
	item *ItemObject,
	fields *ItemFields,
) (*ItemObject, error) {
	if item == nil {
		i.store.metrics.OrmItemMetrics.ValidationFail.Inc(1)
		return nil, errNilObject(_item)
	}
	if fields == nil {
		fields = &ItemFields{}
	}

	merged := item.fields()
	var fieldsToUpdate []string
	if fields.Name != nil {
		merged.Name = fields.Name
		fieldsToUpdate = append(fieldsToUpdate, "Name")
	}
	if fields.Image != nil {
		merged.Image = fields.Image
		fieldsToUpdate = append(fieldsToUpdate, "Image")
	}
	if fields.Price != nil {
		merged.Price = fields.Price
		fieldsToUpdate = append(fieldsToUpdate, "Price")
	}
	if fields.Vegetarian != nil {
		merged.Vegetarian = fields.Vegetarian
		fieldsToUpdate = append(fieldsToUpdate, "Vegetarian")
	}
	if err := validateFields(_item, merged); err != nil {
		i.store.metrics.OrmItemMetrics.ValidationFail.Inc(1)
		return nil, err
	}

	updated := *item
	updated.Name = *merged.Name
	updated.Price = *merged.Price
	updated.Vegetarian = *merged.Vegetarian
	updated.Image = nil
	if merged.Image != nil {
		updated.Image = base.NewOptionalString(*merged.Image)
	}
	updated.UpdatedAt = now()
	fieldsToUpdate = append(fieldsToUpdate, "UpdatedAt")

	if err := i.store.oClient.Update(ctx, &updated, fieldsToUpdate...); err != nil {
		i.store.metrics.OrmItemMetrics.UpdateFail.Inc(1)
		log.WithError(err).
			WithField("id", item.ID).
			Error("failed to update item")
		return nil, err
	}

	*item = updated
	i.store.metrics.OrmItemMetrics.Update.Inc(1)
	return item, nil
}

func (i *itemOps) Delete(ctx context.Context, item *ItemObject) error {
	if item == nil {
		i.store.metrics.OrmItemMetrics.ValidationFail.Inc(1)
		return errNilObject(_item)
	}
	if err := i.store.oClient.Delete(ctx, item); err != nil {
		i.store.metrics.OrmItemMetrics.DeleteFail.Inc(1)
		log.WithError(err).
			WithField("id", item.ID).
			Error("failed to delete item")
		return err
	}

	i.store.metrics.OrmItemMetrics.Delete.Inc(1)
	return nil
}

func toItemObjects(objs []base.Object) []*ItemObject {
	items := make([]*ItemObject, 0, len(objs))
	for _, o := range objs {
		items = append(items, o.(*ItemObject))
	}
	return items
}
