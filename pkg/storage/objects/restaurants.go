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

const _restaurant = "restaurant"

// RestaurantObject corresponds to a row in restaurants table.
type RestaurantObject struct {
	// base.Object DB specific annotations.
	base.Object `sql:"name=restaurants, primaryKey=(id)"`
	// ID is assigned by the DB on create.
	ID uint64 `column:"name=id, autoIncrement=true"`
	// Name of the restaurant.
	Name string `column:"name=name"`
	// Location of the restaurant, e.g. the city.
	Location string `column:"name=location"`
	// Cuisine served by the restaurant.
	Cuisine string `column:"name=cuisine"`
	// Timestamp of the restaurant when it's created.
	CreatedAt time.Time `column:"name=created_at"`
	// Most recent timestamp when the restaurant is updated.
	UpdatedAt time.Time `column:"name=updated_at"`
}

// fields returns the current attributes of the restaurant.
func (o *RestaurantObject) fields() *RestaurantFields {
	return &RestaurantFields{
		Name:     String(o.Name),
		Location: String(o.Location),
		Cuisine:  String(o.Cuisine),
	}
}

// RestaurantOps provides methods for manipulating restaurants table.
type RestaurantOps interface {
	// Create inserts a new restaurant in the table.
	Create(
		ctx context.Context,
		fields *RestaurantFields,
	) (*RestaurantObject, error)

	// Get retrieves a restaurant by id, nil if there is none.
	Get(ctx context.Context, id uint64) (*RestaurantObject, error)

	// GetAll gets all the restaurants ordered by id.
	GetAll(ctx context.Context) ([]*RestaurantObject, error)

	// Update merges the non-nil fields into the restaurant and persists
	// them. The restaurant passed in is updated and returned.
	Update(
		ctx context.Context,
		restaurant *RestaurantObject,
		fields *RestaurantFields,
	) (*RestaurantObject, error)

	// Delete removes the restaurant and its menu links from the table.
	Delete(ctx context.Context, restaurant *RestaurantObject) error
}

// restaurantOps implements RestaurantOps using a particular Store.
type restaurantOps struct {
	store *Store
}

// init adds a RestaurantObject instance to the global list of storage objects.
func init() {
	Objs = append(Objs, &RestaurantObject{})
}

// newRestaurantObject creates a RestaurantObject from validated fields.
func newRestaurantObject(
	fields *RestaurantFields,
	createTime time.Time,
) *RestaurantObject {
	return &RestaurantObject{
		Name:      *fields.Name,
		Location:  *fields.Location,
		Cuisine:   *fields.Cuisine,
		CreatedAt: createTime,
		UpdatedAt: createTime,
	}
}

// validateRestaurant validates the fields of a new restaurant
func validateRestaurant(fields *RestaurantFields) error {
	if fields == nil {
		fields = &RestaurantFields{}
	}
	return validateFields(_restaurant, fields)
}

// Default restaurantOps implementation.
var _ RestaurantOps = (*restaurantOps)(nil)

// NewRestaurantOps constructs a RestaurantOps object for provided Store.
func NewRestaurantOps(s *Store) RestaurantOps {
	return &restaurantOps{store: s}
}

// Create creates a RestaurantObject in db.
func (r *restaurantOps) Create(
	ctx context.Context,
	fields *RestaurantFields,
) (*RestaurantObject, error) {
	if err := validateRestaurant(fields); err != nil {
		r.store.metrics.OrmRestaurantMetrics.ValidationFail.Inc(1)
		return nil, err
	}

	obj := newRestaurantObject(fields, now())
	if err := r.store.oClient.Create(ctx, obj); err != nil {
		r.store.metrics.OrmRestaurantMetrics.CreateFail.Inc(1)
		log.WithError(err).
			WithField("name", obj.Name).
			Error("failed to create restaurant")
		return nil, err
	}

	r.store.metrics.OrmRestaurantMetrics.Create.Inc(1)
	return obj, nil
}

// Get retrieves the RestaurantObject from the table.
func (r *restaurantOps) Get(
	ctx context.Context,
	id uint64,
) (*RestaurantObject, error) {
	if id > _maxKey {
		r.store.metrics.OrmRestaurantMetrics.NotFound.Inc(1)
		return nil, nil
	}
	obj := &RestaurantObject{ID: id}
	if err := r.store.oClient.Get(ctx, obj); err != nil {
		if storage.IsNotFoundError(err) {
			r.store.metrics.OrmRestaurantMetrics.NotFound.Inc(1)
			return nil, nil
		}
		r.store.metrics.OrmRestaurantMetrics.GetFail.Inc(1)
		return nil, err
	}

	r.store.metrics.OrmRestaurantMetrics.Get.Inc(1)
	return obj, nil
}

// GetAll gets all the restaurants from the table.
func (r *restaurantOps) GetAll(
	ctx context.Context,
) ([]*RestaurantObject, error) {
	objs, err := r.store.oClient.GetAll(ctx, &RestaurantObject{})
	if err != nil {
		r.store.metrics.OrmRestaurantMetrics.GetAllFail.Inc(1)
		return nil, err
	}

	r.store.metrics.OrmRestaurantMetrics.GetAll.Inc(1)
	return toRestaurantObjects(objs), nil
}

// Update modifies RestaurantObject in db.
func (r *restaurantOps) Update(
	ctx context.Context,
	restaurant *RestaurantObject,
	fields *RestaurantFields,
) (*RestaurantObject, error) {
	if restaurant == nil {
		r.store.metrics.OrmRestaurantMetrics.ValidationFail.Inc(1)
		return nil, errNilObject(_restaurant)
	}
	if fields == nil {
		fields = &RestaurantFields{}
	}

	// merge the patch over the current values
	merged := restaurant.fields()
	var fieldsToUpdate []string
	if fields.Name != nil {
		merged.Name = fields.Name
		fieldsToUpdate = append(fieldsToUpdate, "Name")
	}
	if fields.Location != nil {
		merged.Location = fields.Location
		fieldsToUpdate = append(fieldsToUpdate, "Location")
	}
	if fields.Cuisine != nil {
		merged.Cuisine = fields.Cuisine
		fieldsToUpdate = append(fieldsToUpdate, "Cuisine")
	}
	if err := validateFields(_restaurant, merged); err != nil {
		r.store.metrics.OrmRestaurantMetrics.ValidationFail.Inc(1)
		return nil, err
	}

	updated := *restaurant
	updated.Name = *merged.Name
	updated.Location = *merged.Location
	updated.Cuisine = *merged.Cuisine
	updated.UpdatedAt = now()
	fieldsToUpdate = append(fieldsToUpdate, "UpdatedAt")

	if err := r.store.oClient.Update(ctx, &updated, fieldsToUpdate...); err != nil {
		r.store.metrics.OrmRestaurantMetrics.UpdateFail.Inc(1)
		log.WithError(err).
			WithField("id", restaurant.ID).
			Error("failed to update restaurant")
		return nil, err
	}

	*restaurant = updated
	r.store.metrics.OrmRestaurantMetrics.Update.Inc(1)
	return restaurant, nil
}

// Delete removes the RestaurantObject from db.
func (r *restaurantOps) Delete(
	ctx context.Context,
	restaurant *RestaurantObject,
) error {
	if restaurant == nil {
		r.store.metrics.OrmRestaurantMetrics.ValidationFail.Inc(1)
		return errNilObject(_restaurant)
	}
	if err := r.store.oClient.Delete(ctx, restaurant); err != nil {
		r.store.metrics.OrmRestaurantMetrics.DeleteFail.Inc(1)
		log.WithError(err).
			WithField("id", restaurant.ID).
			Error("failed to delete restaurant")
		return err
	}

	r.store.metrics.OrmRestaurantMetrics.Delete.Inc(1)
	return nil
}

// toRestaurantObjects converts the objects returned by the ORM client
func toRestaurantObjects(objs []base.Object) []*RestaurantObject {
	restaurants := make([]*RestaurantObject, 0, len(objs))
	for _, o := range objs {
		restaurants = append(restaurants, o.(*RestaurantObject))
	}
	return restaurants
}
