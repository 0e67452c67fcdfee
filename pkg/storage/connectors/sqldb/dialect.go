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

package sqldb

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/menustore/menustore/pkg/storage/objects/base"

	"github.com/pkg/errors"
)

var (
	_timeType           = reflect.TypeOf(time.Time{})
	_optionalStringType = reflect.TypeOf(&base.OptionalString{})
)

// dialect generates the DDL of one SQL engine from object definitions.
// Queries are built with squirrel and are portable between the supported
// engines.
type dialect struct {
	driver string
}

func newDialect(driver string) (*dialect, error) {
	switch driver {
	case DriverSQLite, DriverMySQL:
		return &dialect{driver: driver}, nil
	}
	return nil, errors.Errorf("unsupported driver %q", driver)
}

// columnType maps a Go type to the column type of the engine
func (d *dialect) columnType(typ reflect.Type) (string, error) {
	mysql := d.driver == DriverMySQL

	switch {
	case typ == _timeType:
		if mysql {
			return "DATETIME(6)", nil
		}
		return "DATETIME", nil
	case typ == _optionalStringType:
		return "TEXT", nil
	}

	switch typ.Kind() {
	case reflect.String:
		if mysql {
			return "VARCHAR(255)", nil
		}
		return "TEXT", nil
	case reflect.Int, reflect.Int32, reflect.Int64:
		if mysql {
			return "BIGINT", nil
		}
		return "INTEGER", nil
	case reflect.Uint, reflect.Uint32, reflect.Uint64:
		if mysql {
			return "BIGINT UNSIGNED", nil
		}
		return "INTEGER", nil
	case reflect.Float32, reflect.Float64:
		if mysql {
			return "DOUBLE", nil
		}
		return "REAL", nil
	case reflect.Bool:
		return "BOOLEAN", nil
	case reflect.Slice:
		if typ.Elem().Kind() == reflect.Uint8 {
			return "BLOB", nil
		}
	}
	return "", errors.Errorf("no column type for %s", typ)
}

// columnDef returns the definition of one column. Pointer types are
// nullable, everything else is NOT NULL.
func (d *dialect) columnDef(e *base.Definition, column string) (string, error) {
	typ, ok := e.ColumnToType[column]
	if !ok {
		return "", errors.Errorf("column %s has no type", column)
	}
	sqlType, err := d.columnType(typ)
	if err != nil {
		return "", errors.Wrapf(err, "column %s.%s", e.Name, column)
	}

	if column == e.AutoIncrement {
		if d.driver == DriverSQLite {
			// only an INTEGER PRIMARY KEY aliases the rowid
			return fmt.Sprintf("%s INTEGER PRIMARY KEY AUTOINCREMENT", column), nil
		}
		return fmt.Sprintf("%s %s NOT NULL AUTO_INCREMENT", column, sqlType), nil
	}

	if typ.Kind() == reflect.Ptr {
		return fmt.Sprintf("%s %s", column, sqlType), nil
	}
	return fmt.Sprintf("%s %s NOT NULL", column, sqlType), nil
}

// createTableStmt returns the CREATE TABLE statement of the definition
func (d *dialect) createTableStmt(e *base.Definition) (string, error) {
	var defs []string
	for _, column := range e.Columns {
		def, err := d.columnDef(e, column)
		if err != nil {
			return "", err
		}
		defs = append(defs, def)
	}

	// sqlite declares an autoIncrement key inline
	if e.AutoIncrement == "" || d.driver == DriverMySQL {
		defs = append(defs, fmt.Sprintf(
			"PRIMARY KEY (%s)", strings.Join(e.Key.Columns, ", ")))
	}
	for _, unique := range e.Unique {
		defs = append(defs, fmt.Sprintf(
			"UNIQUE (%s)", strings.Join(unique, ", ")))
	}
	for _, fk := range e.ForeignKeys {
		defs = append(defs, fmt.Sprintf(
			"FOREIGN KEY (%s) REFERENCES %s (%s) ON DELETE CASCADE",
			fk.Column, fk.RefTable, fk.RefColumn))
	}

	stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)",
		e.Name, strings.Join(defs, ",\n\t"))
	if d.driver == DriverMySQL {
		stmt += " ENGINE=InnoDB DEFAULT CHARSET=utf8mb4"
	}
	return stmt, nil
}

// dropTableStmt returns the DROP TABLE statement of the definition
func (d *dialect) dropTableStmt(e *base.Definition) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s", e.Name)
}
