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
	"context"
	"database/sql"
	"reflect"
	"time"

	"github.com/menustore/menustore/pkg/common"
	"github.com/menustore/menustore/pkg/storage"
	"github.com/menustore/menustore/pkg/storage/objects/base"
	"github.com/menustore/menustore/pkg/storage/orm"

	sq "github.com/Masterminds/squirrel"
	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/uber-go/tally/v4"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
)

const (
	// operation tags for metrics
	create      = "create"
	get         = "get"
	getAll      = "get_all"
	getJoined   = "get_joined"
	update      = "update"
	del         = "delete"
	createTable = "create_table"
	dropTable   = "drop_table"
	begin       = "begin"
	commit      = "commit"

	// aliases of the joined tables
	_localAlias   = "t"
	_throughAlias = "j"

	// table tag of operations which are not bound to a table
	_noTable = "none"
)

// MySQL server error numbers
const (
	_mysqlDuplicateEntry  = 1062
	_mysqlRowIsReferenced = 1451
	_mysqlNoReferencedRow = 1452
	_mysqlLockWaitTimeout = 1205
	_mysqlDeadlock        = 1213
)

type sqlConnector struct {
	// DB is the connection pool shared by all connectors of a store
	DB *sqlx.DB
	// ext issues the statements, either DB or the current transaction
	ext sqlx.ExtContext
	// tx is the open transaction, nil outside of a transaction
	tx *sqlx.Tx

	dialect *dialect
	closed  *atomic.Bool

	// scope is the storage scope for metrics
	scope tally.Scope
	// scope is the storage scope for success metrics
	executeSuccessScope tally.Scope
	// scope is the storage scope for failure metrics
	executeFailScope tally.Scope

	// Conf is the SQL connector config
	Conf *Config
}

// ensure that implementation (sqlConnector) satisfies the interface
var _ orm.Connector = (*sqlConnector)(nil)

// NewSQLConnector opens the database described by config and returns a
// connector to it
func NewSQLConnector(
	config *Config,
	scope tally.Scope,
) (orm.Connector, error) {
	d, err := newDialect(config.Driver)
	if err != nil {
		return nil, err
	}
	dsn, err := config.DataSourceName()
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open(config.Driver, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}
	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
		db.SetMaxIdleConns(config.MaxOpenConns)
	}
	if config.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(config.ConnMaxLifetime)
	}
	if err := db.Ping(); err != nil {
		return nil, multierr.Append(
			storage.NewStorageError("connect", _noTable, err), db.Close())
	}

	log.WithFields(log.Fields{
		common.DBDriverLogField: config.Driver,
		common.DBDSNLogField:    config.String(),
	}).Info("connected to database")

	// create a storeScope for the driver
	storeScope := scope.SubScope("sql").Tagged(
		map[string]string{"driver": config.Driver})

	return &sqlConnector{
		DB:      db,
		ext:     db,
		dialect: d,
		closed:  atomic.NewBool(false),
		scope:   storeScope,
		executeSuccessScope: storeScope.Tagged(
			map[string]string{"result": "success"}),
		executeFailScope: storeScope.Tagged(
			map[string]string{"result": "fail"}),
		Conf: config,
	}, nil
}

// getSQLErrorTag gets a error tag for metrics based on the driver error.
// We cannot just use err.Error() as a tag because it contains invalid
// characters.
func getSQLErrorTag(err error) string {
	if storage.IsNotFoundError(err) {
		return "not_found"
	}
	cause := errors.Cause(err)

	var mysqlErr *mysql.MySQLError
	if errors.As(cause, &mysqlErr) {
		switch mysqlErr.Number {
		case _mysqlDuplicateEntry:
			return "already_exists"
		case _mysqlRowIsReferenced, _mysqlNoReferencedRow:
			return "foreign_key"
		case _mysqlLockWaitTimeout, _mysqlDeadlock:
			return "busy"
		}
		return "mysql"
	}

	var sqliteErr sqlite3.Error
	if errors.As(cause, &sqliteErr) {
		switch sqliteErr.Code {
		case sqlite3.ErrConstraint:
			if sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey {
				return "foreign_key"
			}
			return "constraint"
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return "busy"
		}
		return "sqlite"
	}

	switch cause {
	case sql.ErrTxDone:
		return "tx_done"
	case sql.ErrConnDone, mysql.ErrInvalidConn:
		return "conn_done"
	case context.Canceled:
		return "canceled"
	case context.DeadlineExceeded:
		return "timeout"
	}
	return "unknown"
}

// checkOpen fails operations issued after Close
func (c *sqlConnector) checkOpen(op, table string) error {
	if c.closed.Load() {
		return storage.NewStorageError(op, table, sql.ErrConnDone)
	}
	return nil
}

// failed records the failure and wraps err into a storage.StorageError
func (c *sqlConnector) failed(op, table string, err error) error {
	sendCounters(c.executeFailScope, table, op, err)
	if storage.IsNotFoundError(err) || storage.IsStorageError(err) {
		return err
	}
	return storage.NewStorageError(op, table, err)
}

// succeeded records the success and latency of an operation
func (c *sqlConnector) succeeded(op, table string, start time.Time) {
	sendLatency(c.scope, table, op, time.Since(start))
	sendCounters(c.executeSuccessScope, table, op, nil)
}

// toSQL renders a statement built with squirrel and logs it
func toSQL(b sq.Sqlizer) (string, []interface{}, error) {
	stmt, args, err := b.ToSql()
	if err != nil {
		return "", nil, errors.Wrap(err, "failed to build statement")
	}
	log.WithFields(log.Fields{
		common.DBStmtLogField: stmt,
		common.DBArgsLogField: args,
	}).Debug("executing statement")
	return stmt, args, nil
}

// splitColumnNameValue is used to return list of column names and list of their
// corresponding value. Order is very important in this lists as they will be
// used separately when constructing the SQL statement.
func splitColumnNameValue(row []base.Column) (
	colNames []string, colValues []interface{}) {
	for _, column := range row {
		colNames = append(colNames, column.Name)
		colValues = append(colValues, column.Value)
	}
	return colNames, colValues
}

// conditions returns a WHERE clause matching every key column, optionally
// qualified with a table alias
func conditions(alias string, keyCols []base.Column) sq.Eq {
	eq := sq.Eq{}
	for _, col := range keyCols {
		name := col.Name
		if alias != "" {
			name = alias + "." + name
		}
		eq[name] = col.Value
	}
	return eq
}

// qualify prefixes column names with a table alias
func qualify(alias string, columns []string) []string {
	qualified := make([]string, len(columns))
	for i, col := range columns {
		qualified[i] = alias + "." + col
	}
	return qualified
}

// buildResultRow is used to allocate memory for the row to be populated by
// a read operation based on what object fields are being read. Drivers
// return different types for the same column, so every column is scanned
// into the type the object field expects.
func buildResultRow(e *base.Definition, columns []string) []interface{} {
	results := make([]interface{}, len(columns))

	for i, column := range columns {
		// get the type of the field from the ColumnToType mapping for object
		// That we we can allocate appropriate memory for this field
		typ := e.ColumnToType[column]

		switch {
		case typ == nil:
			var value interface{}
			results[i] = &value
			continue
		case typ == _timeType:
			var value *time.Time
			results[i] = &value
			continue
		case typ == _optionalStringType:
			// text column converted to/from custom type in ORM layer
			var value *string
			results[i] = &value
			continue
		}

		switch typ.Kind() {
		case reflect.String:
			var value *string
			results[i] = &value
		case reflect.Int, reflect.Int32, reflect.Int64:
			var value *int64
			results[i] = &value
		case reflect.Uint, reflect.Uint32, reflect.Uint64:
			var value *uint64
			results[i] = &value
		case reflect.Float32, reflect.Float64:
			var value *float64
			results[i] = &value
		case reflect.Bool:
			var value *bool
			results[i] = &value
		case reflect.Slice:
			var value *[]byte
			results[i] = &value
		default:
			// This should only happen if we start using a new type
			// without adding to the translation layer
			log.WithFields(log.Fields{"type": typ.Kind(), "column": column}).
				Info("type not found")
			var value interface{}
			results[i] = &value
		}
	}

	return results
}

// getRowFromResult translates a row read from the DB into a map of column
// name to value to be interpreted by the ORM client. NULL columns map to
// nil.
func getRowFromResult(
	columnNames []string, columnVals []interface{},
) map[string]interface{} {
	row := make(map[string]interface{}, len(columnNames))

	for i, columnName := range columnNames {
		var value interface{}
		switch rv := columnVals[i].(type) {
		case **string:
			if *rv != nil {
				value = **rv
			}
		case **int64:
			if *rv != nil {
				value = **rv
			}
		case **uint64:
			if *rv != nil {
				value = **rv
			}
		case **float64:
			if *rv != nil {
				value = **rv
			}
		case **bool:
			if *rv != nil {
				value = **rv
			}
		case **time.Time:
			if *rv != nil {
				value = **rv
			}
		case **[]byte:
			if *rv != nil {
				value = **rv
			}
		case *interface{}:
			value = *rv
		}
		row[columnName] = value
	}
	return row
}

// queryRows runs a select statement and scans every row
func (c *sqlConnector) queryRows(
	ctx context.Context,
	e *base.Definition,
	b sq.SelectBuilder,
	columns []string,
) ([]map[string]interface{}, error) {
	stmt, args, err := toSQL(b)
	if err != nil {
		return nil, err
	}

	rows, err := c.ext.QueryxContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []map[string]interface{}
	for rows.Next() {
		values := buildResultRow(e, columns)
		if err := rows.Scan(values...); err != nil {
			return nil, err
		}
		result = append(result, getRowFromResult(columns, values))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Create creates a new row in DB.
func (c *sqlConnector) Create(
	ctx context.Context,
	e *base.Definition,
	row []base.Column,
) (int64, error) {
	if err := c.checkOpen(create, e.Name); err != nil {
		return 0, err
	}
	start := time.Now()

	// split row into a list of names and values to compose the statement,
	// so the order needs to be maintained.
	colNames, colValues := splitColumnNameValue(row)

	stmt, args, err := toSQL(sq.Insert(e.Name).
		Columns(colNames...).
		Values(colValues...))
	if err != nil {
		return 0, c.failed(create, e.Name, err)
	}

	result, err := c.ext.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, c.failed(create, e.Name, err)
	}

	var id int64
	if e.AutoIncrement != "" {
		if id, err = result.LastInsertId(); err != nil {
			return 0, c.failed(create, e.Name, err)
		}
	}

	c.succeeded(create, e.Name, start)
	return id, nil
}

// Get fetches a record from DB using primary keys
// returns a map describing a row from DB, key is columnName,
// value is columnValue.
func (c *sqlConnector) Get(
	ctx context.Context,
	e *base.Definition,
	keyCols []base.Column,
	colNamesToRead ...string,
) (map[string]interface{}, error) {
	if err := c.checkOpen(get, e.Name); err != nil {
		return nil, err
	}
	start := time.Now()

	if len(colNamesToRead) == 0 {
		colNamesToRead = e.GetColumnsToRead()
	}

	result, err := c.queryRows(ctx, e,
		sq.Select(colNamesToRead...).
			From(e.Name).
			Where(conditions("", keyCols)).
			Limit(1),
		colNamesToRead)
	if err != nil {
		return nil, c.failed(get, e.Name, err)
	}

	c.succeeded(get, e.Name, start)
	if len(result) == 0 {
		return nil, nil
	}
	return result[0], nil
}

// GetAll fetches all rows from DB matching the key columns, ordered by
// primary key
func (c *sqlConnector) GetAll(
	ctx context.Context,
	e *base.Definition,
	keyCols []base.Column,
) ([]map[string]interface{}, error) {
	if err := c.checkOpen(getAll, e.Name); err != nil {
		return nil, err
	}
	start := time.Now()

	colNamesToRead := e.GetColumnsToRead()
	b := sq.Select(colNamesToRead...).
		From(e.Name).
		OrderBy(e.Key.Columns...)
	if len(keyCols) > 0 {
		b = b.Where(conditions("", keyCols))
	}

	result, err := c.queryRows(ctx, e, b, colNamesToRead)
	if err != nil {
		return nil, c.failed(getAll, e.Name, err)
	}

	c.succeeded(getAll, e.Name, start)
	return result, nil
}

// GetAllJoined fetches the rows of e reached through the joined table
func (c *sqlConnector) GetAllJoined(
	ctx context.Context,
	e *base.Definition,
	join *base.Join,
	keyCols []base.Column,
) ([]map[string]interface{}, error) {
	if err := c.checkOpen(getJoined, e.Name); err != nil {
		return nil, err
	}
	start := time.Now()

	colNamesToRead := e.GetColumnsToRead()
	b := sq.Select(qualify(_localAlias, colNamesToRead)...).
		From(e.Name + " AS " + _localAlias).
		Join(join.Through.Name + " AS " + _throughAlias + " ON " +
			_localAlias + "." + join.LocalColumn + " = " +
			_throughAlias + "." + join.ForeignColumn).
		Where(conditions(_throughAlias, keyCols))
	if join.OrderBy != "" {
		b = b.OrderBy(_throughAlias + "." + join.OrderBy)
	}

	result, err := c.queryRows(ctx, e, b, colNamesToRead)
	if err != nil {
		return nil, c.failed(getJoined, e.Name, err)
	}

	c.succeeded(getJoined, e.Name, start)
	return result, nil
}

// Update updates an existing row in DB.
func (c *sqlConnector) Update(
	ctx context.Context,
	e *base.Definition,
	row []base.Column,
	keyCols []base.Column,
) error {
	if err := c.checkOpen(update, e.Name); err != nil {
		return err
	}
	start := time.Now()

	b := sq.Update(e.Name)
	for _, col := range row {
		b = b.Set(col.Name, col.Value)
	}
	stmt, args, err := toSQL(b.Where(conditions("", keyCols)))
	if err != nil {
		return c.failed(update, e.Name, err)
	}

	result, err := c.ext.ExecContext(ctx, stmt, args...)
	if err != nil {
		return c.failed(update, e.Name, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return c.failed(update, e.Name, err)
	}
	if n == 0 {
		_, keyValues := splitColumnNameValue(keyCols)
		return c.failed(update, e.Name,
			storage.NewNotFoundError(e.Name, keyValues))
	}

	c.succeeded(update, e.Name, start)
	return nil
}

// Delete deletes the records matching the key columns
func (c *sqlConnector) Delete(
	ctx context.Context,
	e *base.Definition,
	keyCols []base.Column,
) error {
	if err := c.checkOpen(del, e.Name); err != nil {
		return err
	}
	start := time.Now()

	stmt, args, err := toSQL(sq.Delete(e.Name).
		Where(conditions("", keyCols)))
	if err != nil {
		return c.failed(del, e.Name, err)
	}

	if _, err := c.ext.ExecContext(ctx, stmt, args...); err != nil {
		return c.failed(del, e.Name, err)
	}

	c.succeeded(del, e.Name, start)
	return nil
}

// CreateTable creates the table of the definition if it doesn't exist
func (c *sqlConnector) CreateTable(ctx context.Context, e *base.Definition) error {
	if err := c.checkOpen(createTable, e.Name); err != nil {
		return err
	}
	stmt, err := c.dialect.createTableStmt(e)
	if err != nil {
		return c.failed(createTable, e.Name, err)
	}
	return c.execDDL(ctx, createTable, e.Name, stmt)
}

// DropTable drops the table of the definition if it exists
func (c *sqlConnector) DropTable(ctx context.Context, e *base.Definition) error {
	if err := c.checkOpen(dropTable, e.Name); err != nil {
		return err
	}
	return c.execDDL(ctx, dropTable, e.Name, c.dialect.dropTableStmt(e))
}

func (c *sqlConnector) execDDL(
	ctx context.Context,
	op, table, stmt string,
) error {
	start := time.Now()
	log.WithFields(log.Fields{
		common.DBStmtLogField:  stmt,
		common.DBTableLogField: table,
	}).Debug("executing schema statement")

	if _, err := c.ext.ExecContext(ctx, stmt); err != nil {
		return c.failed(op, table, err)
	}
	c.succeeded(op, table, start)
	return nil
}

// Transaction runs fn in a transaction. Nested calls join the open
// transaction.
func (c *sqlConnector) Transaction(
	ctx context.Context,
	fn func(ctx context.Context, conn orm.Connector) error,
) error {
	if c.tx != nil {
		return fn(ctx, c)
	}
	if err := c.checkOpen(begin, _noTable); err != nil {
		return err
	}

	tx, err := c.DB.BeginTxx(ctx, nil)
	if err != nil {
		return c.failed(begin, _noTable, err)
	}

	txConn := *c
	txConn.ext = tx
	txConn.tx = tx

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, &txConn); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.WithError(rbErr).Warn("failed to rollback transaction")
		}
		return err
	}

	start := time.Now()
	if err := tx.Commit(); err != nil {
		return c.failed(commit, _noTable, err)
	}
	c.succeeded(commit, _noTable, start)
	return nil
}

// Close closes the connection pool. It is a no-op on the connector of a
// transaction, which shares the pool it was started from.
func (c *sqlConnector) Close() error {
	if c.tx != nil || !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.DB.Close()
}

// helper function to record call latency metric
func sendLatency(
	scope tally.Scope,
	table, operation string,
	d time.Duration,
) {
	s := scope.Tagged(map[string]string{
		"table":     table,
		"operation": operation,
	})
	s.Timer("execute_latency").Record(d)
}

// helper function to record statement success/failure metrics
func sendCounters(
	scope tally.Scope,
	table, operation string,
	err error,
) {
	errMsg := "none"
	if err != nil {
		errMsg = getSQLErrorTag(err)
	}
	s := scope.Tagged(map[string]string{
		"table":     table,
		"operation": operation,
		"error":     errMsg,
	})
	s.Counter("execute").Inc(1)
}
