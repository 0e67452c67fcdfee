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
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/pborman/uuid"
	"github.com/pkg/errors"
)

const (
	// DriverSQLite is the driver name of the embedded sqlite3 engine
	DriverSQLite = "sqlite3"
	// DriverMySQL is the driver name of MySQL
	DriverMySQL = "mysql"

	_defaultMySQLPort = 3306
	_redacted         = "REDACTED"
)

// Config is the configuration of a SQL connector
type Config struct {
	// Driver is either sqlite3 or mysql
	Driver string `yaml:"driver" validate:"nonzero"`
	// DSN is the data source name. For mysql it may be left empty in favor
	// of the discrete fields below.
	DSN string `yaml:"dsn"`

	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`

	// MaxOpenConns limits the connection pool, 0 means unlimited
	MaxOpenConns int `yaml:"max_open_conns"`
	// ConnMaxLifetime closes pooled connections older than this
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// InMemoryConfig returns the config of a private in-memory sqlite3
// database. The database lives as long as the connector using it.
func InMemoryConfig() *Config {
	return &Config{
		Driver: DriverSQLite,
		DSN: fmt.Sprintf(
			"file:%s?mode=memory&cache=shared", uuid.New()),
		// every connection of a shared cache sees the same database but a
		// single one avoids table locking between them
		MaxOpenConns: 1,
	}
}

// Validate checks that the config names a supported driver and enough
// information to reach the database.
func (c *Config) Validate() error {
	switch c.Driver {
	case DriverSQLite:
		if c.DSN == "" {
			return errors.New("sqlite3 requires a dsn")
		}
	case DriverMySQL:
		if c.DSN == "" && (c.Host == "" || c.Database == "") {
			return errors.New("mysql requires a dsn or a host and database")
		}
	default:
		return errors.Errorf("unsupported driver %q", c.Driver)
	}
	return nil
}

// DataSourceName returns the connection string handed to the driver
func (c *Config) DataSourceName() (string, error) {
	if err := c.Validate(); err != nil {
		return "", err
	}

	switch c.Driver {
	case DriverMySQL:
		cfg, err := c.mysqlConfig()
		if err != nil {
			return "", err
		}
		return cfg.FormatDSN(), nil
	default:
		return sqliteDSN(c.DSN), nil
	}
}

// String returns the connection string with the password redacted
func (c *Config) String() string {
	if c.Driver != DriverMySQL {
		return c.DSN
	}
	cfg, err := c.mysqlConfig()
	if err != nil {
		return _redacted
	}
	if cfg.Passwd != "" {
		cfg.Passwd = _redacted
	}
	return cfg.FormatDSN()
}

// mysqlConfig builds the driver config. Times are parsed into time.Time
// and affected rows count the matched rows, so that an update which
// changes nothing is not mistaken for a missing row.
func (c *Config) mysqlConfig() (*mysql.Config, error) {
	var cfg *mysql.Config
	if c.DSN != "" {
		var err error
		cfg, err = mysql.ParseDSN(c.DSN)
		if err != nil {
			return nil, errors.Wrap(err, "invalid mysql dsn")
		}
	} else {
		port := c.Port
		if port == 0 {
			port = _defaultMySQLPort
		}
		cfg = mysql.NewConfig()
		cfg.Net = "tcp"
		cfg.Addr = net.JoinHostPort(c.Host, strconv.Itoa(port))
		cfg.User = c.User
		cfg.Passwd = c.Password
		cfg.DBName = c.Database
	}
	cfg.ParseTime = true
	cfg.ClientFoundRows = true
	return cfg, nil
}

// sqliteDSN turns on foreign key enforcement, which sqlite3 leaves off
// by default
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_foreign_keys=") || strings.Contains(dsn, "_fk=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_foreign_keys=1"
}
