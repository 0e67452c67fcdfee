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
	"reflect"

	"github.com/menustore/menustore/pkg/storage"
	"github.com/menustore/menustore/pkg/storage/objects/base"
	"github.com/menustore/menustore/pkg/storage/orm"

	log "github.com/sirupsen/logrus"
)

// init declares the many-to-many relations between the storage objects.
func init() {
	Relations = append(Relations,
		orm.BelongsToMany(&RestaurantObject{}, &MenuObject{}),
		orm.BelongsToMany(&MenuObject{}, &ItemObject{}),
	)
}

// RestaurantMenuOps manages the menus of a restaurant.
type RestaurantMenuOps interface {
	// AddMenu links an existing menu to the restaurant. Adding a menu
	// twice is a no-op.
	AddMenu(ctx context.Context, restaurant *RestaurantObject, menu *MenuObject) error
	// RemoveMenu unlinks the menu from the restaurant.
	RemoveMenu(ctx context.Context, restaurant *RestaurantObject, menu *MenuObject) error
	// GetMenus returns the menus of the restaurant in the order they were
	// added.
	GetMenus(ctx context.Context, restaurant *RestaurantObject) ([]*MenuObject, error)
	// CreateMenu creates a menu and adds it to the restaurant atomically.
	CreateMenu(
		ctx context.Context,
		restaurant *RestaurantObject,
		fields *MenuFields,
	) (*MenuObject, error)
}

// MenuRestaurantOps manages the restaurants serving a menu.
type MenuRestaurantOps interface {
	AddRestaurant(ctx context.Context, menu *MenuObject, restaurant *RestaurantObject) error
	RemoveRestaurant(ctx context.Context, menu *MenuObject, restaurant *RestaurantObject) error
	GetRestaurants(ctx context.Context, menu *MenuObject) ([]*RestaurantObject, error)
	CreateRestaurant(
		ctx context.Context,
		menu *MenuObject,
		fields *RestaurantFields,
	) (*RestaurantObject, error)
}

// MenuItemOps manages the items of a menu.
type MenuItemOps interface {
	// AddItem links an existing item to the menu. Adding an item twice is
	// a no-op.
	AddItem(ctx context.Context, menu *MenuObject, item *ItemObject) error
	// RemoveItem unlinks the item from the menu.
	RemoveItem(ctx context.Context, menu *MenuObject, item *ItemObject) error
	// GetItems returns the items of the menu in the order they were added.
	GetItems(ctx context.Context, menu *MenuObject) ([]*ItemObject, error)
	// CreateItem creates an item and adds it to the menu atomically.
	CreateItem(
		ctx context.Context,
		menu *MenuObject,
		fields *ItemFields,
	) (*ItemObject, error)
}

// ItemMenuOps manages the menus an item appears on.
type ItemMenuOps interface {
	AddMenu(ctx context.Context, item *ItemObject, menu *MenuObject) error
	RemoveMenu(ctx context.Context, item *ItemObject, menu *MenuObject) error
	GetMenus(ctx context.Context, item *ItemObject) ([]*MenuObject, error)
	CreateMenu(
		ctx context.Context,
		item *ItemObject,
		fields *MenuFields,
	) (*MenuObject, error)
}

// linkOps runs association operations from the owner's side and keeps
// the association metrics.
type linkOps struct {
	store   *Store
	metrics *storage.OrmAssociationMetrics
	// entity names, used in errors and logs
	owner   string
	related string
}

func isNilObject(o base.Object) bool {
	if o == nil {
		return true
	}
	v := reflect.ValueOf(o)
	return v.Kind() == reflect.Ptr && v.IsNil()
}

func (l *linkOps) checkObjects(owner, related base.Object) error {
	if isNilObject(owner) {
		return errNilObject(l.owner)
	}
	if isNilObject(related) {
		return errNilObject(l.related)
	}
	return nil
}

func (l *linkOps) logger(owner base.Object) *log.Entry {
	return log.WithFields(log.Fields{
		"owner":   l.owner,
		"related": l.related,
		"object":  owner,
	})
}

func (l *linkOps) add(ctx context.Context, owner, related base.Object) error {
	if err := l.checkObjects(owner, related); err != nil {
		l.metrics.LinkFail.Inc(1)
		return err
	}
	if err := l.store.oClient.Link(ctx, owner, related); err != nil {
		l.metrics.LinkFail.Inc(1)
		l.logger(owner).WithError(err).Error("failed to link objects")
		return err
	}
	l.metrics.Link.Inc(1)
	return nil
}

func (l *linkOps) remove(ctx context.Context, owner, related base.Object) error {
	if err := l.checkObjects(owner, related); err != nil {
		l.metrics.UnlinkFail.Inc(1)
		return err
	}
	if err := l.store.oClient.Unlink(ctx, owner, related); err != nil {
		l.metrics.UnlinkFail.Inc(1)
		l.logger(owner).WithError(err).Error("failed to unlink objects")
		return err
	}
	l.metrics.Unlink.Inc(1)
	return nil
}

func (l *linkOps) get(
	ctx context.Context,
	owner, prototype base.Object,
) ([]base.Object, error) {
	if isNilObject(owner) {
		l.metrics.GetLinkedFail.Inc(1)
		return nil, errNilObject(l.owner)
	}
	objs, err := l.store.oClient.GetLinked(ctx, owner, prototype)
	if err != nil {
		l.metrics.GetLinkedFail.Inc(1)
		l.logger(owner).WithError(err).Error("failed to get linked objects")
		return nil, err
	}
	l.metrics.GetLinked.Inc(1)
	return objs, nil
}

// create expects related to be validated already
func (l *linkOps) create(ctx context.Context, owner, related base.Object) error {
	if isNilObject(owner) {
		l.metrics.CreateLinkedFail.Inc(1)
		return errNilObject(l.owner)
	}
	sw := l.metrics.CreateLinkedDuration.Start()
	defer sw.Stop()
	if err := l.store.oClient.CreateLinked(ctx, owner, related); err != nil {
		l.metrics.CreateLinkedFail.Inc(1)
		l.logger(owner).WithError(err).Error("failed to create linked object")
		return err
	}
	l.metrics.CreateLinked.Inc(1)
	return nil
}

type restaurantMenuOps struct{ linkOps }

// NewRestaurantMenuOps constructs a RestaurantMenuOps for provided Store.
func NewRestaurantMenuOps(s *Store) RestaurantMenuOps {
	return &restaurantMenuOps{linkOps{
		store:   s,
		metrics: s.metrics.OrmRestaurantMenuMetrics,
		owner:   _restaurant,
		related: _menu,
	}}
}

func (o *restaurantMenuOps) AddMenu(
	ctx context.Context,
	restaurant *RestaurantObject,
	menu *MenuObject,
) error {
	return o.add(ctx, restaurant, menu)
}

func (o *restaurantMenuOps) RemoveMenu(
	ctx context.Context,
	restaurant *RestaurantObject,
	menu *MenuObject,
) error {
	return o.remove(ctx, restaurant, menu)
}

func (o *restaurantMenuOps) GetMenus(
	ctx context.Context,
	restaurant *RestaurantObject,
) ([]*MenuObject, error) {
	objs, err := o.get(ctx, restaurant, &MenuObject{})
	if err != nil {
		return nil, err
	}
	return toMenuObjects(objs), nil
}

func (o *restaurantMenuOps) CreateMenu(
	ctx context.Context,
	restaurant *RestaurantObject,
	fields *MenuFields,
) (*MenuObject, error) {
	if err := validateMenu(fields); err != nil {
		o.store.metrics.OrmMenuMetrics.ValidationFail.Inc(1)
		return nil, err
	}
	menu := newMenuObject(fields, now())
	if err := o.create(ctx, restaurant, menu); err != nil {
		return nil, err
	}
	return menu, nil
}

type menuRestaurantOps struct{ linkOps }

// NewMenuRestaurantOps constructs a MenuRestaurantOps for provided Store.
func NewMenuRestaurantOps(s *Store) MenuRestaurantOps {
	return &menuRestaurantOps{linkOps{
		store:   s,
		metrics: s.metrics.OrmRestaurantMenuMetrics,
		owner:   _menu,
		related: _restaurant,
	}}
}

func (o *menuRestaurantOps) AddRestaurant(
	ctx context.Context,
	menu *MenuObject,
	restaurant *RestaurantObject,
) error {
	return o.add(ctx, menu, restaurant)
}

func (o *menuRestaurantOps) RemoveRestaurant(
	ctx context.Context,
	menu *MenuObject,
	restaurant *RestaurantObject,
) error {
	return o.remove(ctx, menu, restaurant)
}

func (o *menuRestaurantOps) GetRestaurants(
	ctx context.Context,
	menu *MenuObject,
) ([]*RestaurantObject, error) {
	objs, err := o.get(ctx, menu, &RestaurantObject{})
	if err != nil {
		return nil, err
	}
	return toRestaurantObjects(objs), nil
}

func (o *menuRestaurantOps) CreateRestaurant(
	ctx context.Context,
	menu *MenuObject,
	fields *RestaurantFields,
) (*RestaurantObject, error) {
	if err := validateRestaurant(fields); err != nil {
		o.store.metrics.OrmRestaurantMetrics.ValidationFail.Inc(1)
		return nil, err
	}
	restaurant := newRestaurantObject(fields, now())
	if err := o.create(ctx, menu, restaurant); err != nil {
		return nil, err
	}
	return restaurant, nil
}

type menuItemOps struct{ linkOps }

// NewMenuItemOps constructs a MenuItemOps for provided Store.
func NewMenuItemOps(s *Store) MenuItemOps {
	return &menuItemOps{linkOps{
		store:   s,
		metrics: s.metrics.OrmMenuItemMetrics,
		owner:   _menu,
		related: _item,
	}}
}

func (o *menuItemOps) AddItem(
	ctx context.Context,
	menu *MenuObject,
	item *ItemObject,
) error {
	return o.add(ctx, menu, item)
}

func (o *menuItemOps) RemoveItem(
	ctx context.Context,
	menu *MenuObject,
	item *ItemObject,
) error {
	return o.remove(ctx, menu, item)
}

func (o *menuItemOps) GetItems(
	ctx context.Context,
	menu *MenuObject,
) ([]*ItemObject, error) {
	objs, err := o.get(ctx, menu, &ItemObject{})
	if err != nil {
		return nil, err
	}
	return toItemObjects(objs), nil
}

func (o *menuItemOps) CreateItem(
	ctx context.Context,
	menu *MenuObject,
	fields *ItemFields,
) (*ItemObject, error) {
	if err := validateItem(fields); err != nil {
		o.store.metrics.OrmItemMetrics.ValidationFail.Inc(1)
		return nil, err
	}
	item := newItemObject(fields, now())
	if err := o.create(ctx, menu, item); err != nil {
		return nil, err
	}
	return item, nil
}

type itemMenuOps struct{ linkOps }

// NewItemMenuOps constructs an ItemMenuOps for provided Store.
func NewItemMenuOps(s *Store) ItemMenuOps {
	return &itemMenuOps{linkOps{
		store:   s,
		metrics: s.metrics.OrmMenuItemMetrics,
		owner:   _item,
		related: _menu,
	}}
}

func (o *itemMenuOps) AddMenu(
	ctx context.Context,
	item *ItemObject,
	menu *MenuObject,
) error {
	return o.add(ctx, item, menu)
}

func (o *itemMenuOps) RemoveMenu(
	ctx context.Context,
	item *ItemObject,
	menu *MenuObject,
) error {
	return o.remove(ctx, item, menu)
}

func (o *itemMenuOps) GetMenus(
	ctx context.Context,
	item *ItemObject,
) ([]*MenuObject, error) {
	objs, err := o.get(ctx, item, &MenuObject{})
	if err != nil {
		return nil, err
	}
	return toMenuObjects(objs), nil
}

func (o *itemMenuOps) CreateMenu(
	ctx context.Context,
	item *ItemObject,
	fields *MenuFields,
) (*MenuObject, error) {
	if err := validateMenu(fields); err != nil {
		o.store.metrics.OrmMenuMetrics.ValidationFail.Inc(1)
		return nil, err
	}
	menu := newMenuObject(fields, now())
	if err := o.create(ctx, item, menu); err != nil {
		return nil, err
	}
	return menu, nil
}
