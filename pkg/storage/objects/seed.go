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
	"os"

	"github.com/menustore/menustore/pkg/storage"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

const _seed = "seed"

// SeedData is the content of a seed file.
type SeedData struct {
	Restaurants []*SeedRestaurant `yaml:"restaurants"`
	Menus       []*SeedMenu       `yaml:"menus"`
	Items       []*ItemFields     `yaml:"items"`
}

// SeedRestaurant is a restaurant along with the titles of its menus.
type SeedRestaurant struct {
	RestaurantFields `yaml:",inline"`
	Menus            []string `yaml:"menus"`
}

// SeedMenu is a menu along with the names of its items.
type SeedMenu struct {
	MenuFields `yaml:",inline"`
	Items      []string `yaml:"items"`
}

// SeedResult holds the objects created by Seed.
type SeedResult struct {
	Restaurants []*RestaurantObject
	Menus       []*MenuObject
	Items       []*ItemObject
}

// ParseSeedData parses seed data from YAML. Unknown keys and values of the
// wrong type are rejected with a storage.ValidationError.
func ParseSeedData(data []byte) (*SeedData, error) {
	var seed SeedData
	if err := yaml.UnmarshalStrict(data, &seed); err != nil {
		if te, ok := err.(*yaml.TypeError); ok {
			errs := make([]error, 0, len(te.Errors))
			for _, msg := range te.Errors {
				errs = append(errs, errors.New(msg))
			}
			return nil, storage.NewValidationError(_seed, errs...)
		}
		return nil, errors.Wrap(err, "failed to parse seed data")
	}
	return &seed, nil
}

// LoadSeedData reads and parses a seed file.
func LoadSeedData(path string) (*SeedData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read seed file %s", path)
	}
	return ParseSeedData(data)
}

// Seed creates the items, menus and restaurants of the seed data and links
// them, all in one transaction.
func (s *Store) Seed(ctx context.Context, seed *SeedData) (*SeedResult, error) {
	if seed == nil {
		return nil, errNilObject(_seed)
	}

	var result *SeedResult
	err := s.Transaction(ctx, func(ctx context.Context, tx *Store) error {
		var err error
		result, err = tx.seed(ctx, seed)
		return err
	})
	if err != nil {
		log.WithError(err).Error("failed to seed data")
		return nil, err
	}

	log.WithFields(log.Fields{
		"restaurants": len(result.Restaurants),
		"menus":       len(result.Menus),
		"items":       len(result.Items),
	}).Info("seeded data")
	return result, nil
}

func (s *Store) seed(ctx context.Context, seed *SeedData) (*SeedResult, error) {
	result := &SeedResult{}

	itemOps := NewItemOps(s)
	items := make(map[string]*ItemObject)
	for _, fields := range seed.Items {
		item, err := itemOps.Create(ctx, fields)
		if err != nil {
			return nil, err
		}
		if _, ok := items[item.Name]; ok {
			return nil, seedError("duplicate item %q", item.Name)
		}
		items[item.Name] = item
		result.Items = append(result.Items, item)
	}

	menuOps := NewMenuOps(s)
	menuItemOps := NewMenuItemOps(s)
	menus := make(map[string]*MenuObject)
	for _, sm := range seed.Menus {
		if sm == nil {
			return nil, seedError("empty menu")
		}
		menu, err := menuOps.Create(ctx, &sm.MenuFields)
		if err != nil {
			return nil, err
		}
		if _, ok := menus[menu.Title]; ok {
			return nil, seedError("duplicate menu %q", menu.Title)
		}
		menus[menu.Title] = menu
		result.Menus = append(result.Menus, menu)

		for _, name := range sm.Items {
			item, ok := items[name]
			if !ok {
				return nil, seedError(
					"menu %q refers to unknown item %q", menu.Title, name)
			}
			if err := menuItemOps.AddItem(ctx, menu, item); err != nil {
				return nil, err
			}
		}
	}

	restaurantOps := NewRestaurantOps(s)
	restaurantMenuOps := NewRestaurantMenuOps(s)
	for _, sr := range seed.Restaurants {
		if sr == nil {
			return nil, seedError("empty restaurant")
		}
		restaurant, err := restaurantOps.Create(ctx, &sr.RestaurantFields)
		if err != nil {
			return nil, err
		}
		result.Restaurants = append(result.Restaurants, restaurant)

		for _, title := range sr.Menus {
			menu, ok := menus[title]
			if !ok {
				return nil, seedError(
					"restaurant %q refers to unknown menu %q",
					restaurant.Name, title)
			}
			if err := restaurantMenuOps.AddMenu(ctx, restaurant, menu); err != nil {
				return nil, err
			}
		}
	}

	return result, nil
}

func seedError(format string, args ...interface{}) error {
	return storage.NewValidationError(_seed, errors.Errorf(format, args...))
}
