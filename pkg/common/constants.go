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

package common

const (
	// MenuDB application name
	MenuDB = "menudb"

	// AppLogField is the log field key for app name
	AppLogField = "app"

	// DBStmtLogField is used for SQL statement log field
	DBStmtLogField = "db_stmt"
	// DBArgsLogField is used for SQL statement arguments log field
	DBArgsLogField = "db_args"
	// DBDSNLogField is used for the data source name log field
	DBDSNLogField = "db_dsn"
	// DBDriverLogField is used for the DB driver log field
	DBDriverLogField = "db_driver"
	// DBTableLogField is used for the table name log field
	DBTableLogField = "db_table"
)
