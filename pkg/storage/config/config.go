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

package config

import (
	"github.com/menustore/menustore/pkg/storage/connectors/sqldb"
)

// Config contains the DB config values and the schema policy applied when
// the store is opened
type Config struct {
	SQL sqldb.Config `yaml:"sql"`
	// AutoSync creates missing tables when the store is opened
	AutoSync bool `yaml:"auto_sync"`
}
