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
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// ValidationError is returned when an object fails schema validation.
// Nothing is written to the DB when it is returned.
type ValidationError struct {
	// Object is the entity name, e.g. "restaurant"
	Object string
	errs   error
}

// NewValidationError returns a ValidationError for the given per-field
// errors. Nil errors are dropped.
func NewValidationError(object string, errs ...error) *ValidationError {
	return &ValidationError{
		Object: object,
		errs:   multierr.Combine(errs...),
	}
}

// Errors returns the individual field errors.
func (e *ValidationError) Errors() []error {
	return multierr.Errors(e.errs)
}

func (e *ValidationError) Error() string {
	var msgs []string
	for _, err := range e.Errors() {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("invalid %s: %s", e.Object, strings.Join(msgs, "; "))
}

// NotFoundError is returned by operations that require an existing row
// when the row is absent. Lookups signal absence with a nil result instead.
type NotFoundError struct {
	Object string
	Key    interface{}
}

// NewNotFoundError returns a NotFoundError for the object and key.
func NewNotFoundError(object string, key interface{}) *NotFoundError {
	return &NotFoundError{Object: object, Key: key}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %v not found", e.Object, e.Key)
}

// StorageError wraps a failure reported by the storage backend: lost
// connectivity, a constraint violation or an aborted transaction.
type StorageError struct {
	// Op is the connector operation, e.g. "create"
	Op string
	// Table the operation was issued against
	Table string
	// Err is the error returned by the driver
	Err error
}

// NewStorageError wraps err, or returns nil if err is nil.
func NewStorageError(op, table string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Table: table, Err: err}
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s on %s failed: %v", e.Op, e.Table, e.Err)
}

// Cause returns the driver error, for errors.Cause.
func (e *StorageError) Cause() error { return e.Err }

// Unwrap returns the driver error.
func (e *StorageError) Unwrap() error { return e.Err }

// IsValidationError returns true if err is or wraps a ValidationError.
func IsValidationError(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsNotFoundError returns true if err is or wraps a NotFoundError.
func IsNotFoundError(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsStorageError returns true if err is or wraps a StorageError.
func IsStorageError(err error) bool {
	var target *StorageError
	return errors.As(err, &target)
}
