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
	"testing"

	"github.com/menustore/menustore/pkg/storage"

	"github.com/stretchr/testify/suite"
)

type SeedTestSuite struct {
	suite.Suite
	ctx context.Context
}

func TestSeedSuite(t *testing.T) {
	suite.Run(t, new(SeedTestSuite))
}

func (s *SeedTestSuite) SetupTest() {
	setupTestStore()
	s.ctx = context.Background()
}

// TestSeedFromFile tests seeding objects and links from a file
func (s *SeedTestSuite) TestSeedFromFile() {
	seed, err := LoadSeedData("testdata/seed.yaml")
	s.Require().NoError(err)

	result, err := testStore.Seed(s.ctx, seed)
	s.Require().NoError(err)
	s.Len(result.Restaurants, 2)
	s.Len(result.Menus, 2)
	s.Len(result.Items, 2)

	menus, err := NewRestaurantMenuOps(testStore).GetMenus(s.ctx, result.Restaurants[0])
	s.NoError(err)
	s.Require().Len(menus, 2)
	s.Equal("Breakfast", menus[0].Title)
	s.Equal("Lunch", menus[1].Title)

	items, err := NewMenuItemOps(testStore).GetItems(s.ctx, menus[1])
	s.NoError(err)
	s.Require().Len(items, 2)
	s.Equal("butter chicken", items[0].Name)
	s.Equal("bhindi masala", items[1].Name)
	s.Equal(9.50, items[1].Price)
	s.True(items[1].Vegetarian)

	restaurants, err := NewMenuRestaurantOps(testStore).GetRestaurants(s.ctx, menus[1])
	s.NoError(err)
	s.Len(restaurants, 2)
}

// TestSeedMissingFile tests the error for an unreadable seed file
func (s *SeedTestSuite) TestSeedMissingFile() {
	_, err := LoadSeedData("testdata/missing.yaml")
	s.Error(err)
}

// TestParseSeedWrongType tests that values of the wrong type are rejected
// as invalid
func (s *SeedTestSuite) TestParseSeedWrongType() {
	_, err := ParseSeedData([]byte(`
items:
  - name: dal
    price: cheap
    vegetarian: true
`))
	s.True(storage.IsValidationError(err))

	_, err = ParseSeedData([]byte(`
restaurants:
  - name: AppleBees
    stars: 5
`))
	s.Error(err)
}

// TestSeedRollsBack tests that a bad seed leaves the database empty
func (s *SeedTestSuite) TestSeedRollsBack() {
	seed, err := ParseSeedData([]byte(`
menus:
  - title: Breakfast
    items: [pancakes]
items:
  - name: dal
    price: 5
    vegetarian: true
`))
	s.Require().NoError(err)

	_, err = testStore.Seed(s.ctx, seed)
	s.True(storage.IsValidationError(err))
	s.Contains(err.Error(), `unknown item "pancakes"`)

	items, err := NewItemOps(testStore).GetAll(s.ctx)
	s.NoError(err)
	s.Empty(items)
	menus, err := NewMenuOps(testStore).GetAll(s.ctx)
	s.NoError(err)
	s.Empty(menus)
}

// TestSeedInvalidRecord tests that record validation applies to seeds
func (s *SeedTestSuite) TestSeedInvalidRecord() {
	seed, err := ParseSeedData([]byte(`
restaurants:
  - name: AppleBees
    location: Texas
`))
	s.Require().NoError(err)

	_, err = testStore.Seed(s.ctx, seed)
	s.True(storage.IsValidationError(err))
	s.Contains(err.Error(), "cuisine is required")

	_, err = testStore.Seed(s.ctx, nil)
	s.True(storage.IsValidationError(err))
}
