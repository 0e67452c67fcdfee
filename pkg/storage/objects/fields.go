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
	"math"
	"reflect"
	"strings"

	"github.com/menustore/menustore/pkg/storage"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// RestaurantFields holds the caller supplied attributes of a restaurant.
// A nil field is absent: it fails validation on create and is left
// unchanged on update.
type RestaurantFields struct {
	Name     *string `yaml:"name" validate:"required,max=255"`
	Location *string `yaml:"location" validate:"required,max=255"`
	Cuisine  *string `yaml:"cuisine" validate:"required,max=255"`
}

// MenuFields holds the caller supplied attributes of a menu.
type MenuFields struct {
	Title *string `yaml:"title" validate:"required,max=255"`
}

// ItemFields holds the caller supplied attributes of an item. An empty
// image is stored as NULL.
type ItemFields struct {
	Name       *string  `yaml:"name" validate:"required,max=255"`
	Image      *string  `yaml:"image" validate:"omitempty,max=2048"`
	Price      *float64 `yaml:"price" validate:"required,gte=0,finite"`
	Vegetarian *bool    `yaml:"vegetarian" validate:"required"`
}

// String returns a pointer to the string value passed in.
func String(v string) *string { return &v }

// Float64 returns a pointer to the float64 value passed in.
func Float64(v float64) *float64 { return &v }

// Bool returns a pointer to the bool value passed in.
func Bool(v bool) *bool { return &v }

var _validate = newValidator()

// newValidator returns a validator reporting fields by their yaml name
func newValidator() *validator.Validate {
	v := validator.New()
	// NaN fails gte=0 already, finite rejects the infinities
	if err := v.RegisterValidation("finite", func(fl validator.FieldLevel) bool {
		return !math.IsInf(fl.Field().Float(), 0)
	}); err != nil {
		panic(err)
	}
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// validateFields checks the fields against their constraints and returns
// a *storage.ValidationError listing every violation.
func validateFields(object string, fields interface{}) error {
	err := _validate.Struct(fields)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return storage.NewValidationError(object, err)
	}

	errs := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		errs = append(errs, fieldError(fe))
	}
	return storage.NewValidationError(object, errs...)
}

// fieldError renders a single constraint violation
func fieldError(fe validator.FieldError) error {
	switch fe.Tag() {
	case "required":
		return errors.Errorf("%s is required", fe.Field())
	case "max":
		return errors.Errorf(
			"%s must be at most %s characters long", fe.Field(), fe.Param())
	case "finite":
		return errors.Errorf("%s must be a finite number", fe.Field())
	case "gte":
		return errors.Errorf(
			"%s must be greater than or equal to %s", fe.Field(), fe.Param())
	}
	return errors.Errorf("%s failed the %s constraint", fe.Field(), fe.Tag())
}
