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

package logging

import (
	"strings"

	"github.com/menustore/menustore/pkg/common"

	"github.com/go-sql-driver/mysql"
	log "github.com/sirupsen/logrus"
)

const redactedStr = "REDACTED"

// SecretsFormatter scrubs database credentials from log entries before
// handing them to the wrapped formatter.
type SecretsFormatter struct {
	log.Formatter
}

// redactDSN replaces the password of a MySQL DSN. Other DSNs carry no
// credentials and are returned unchanged.
func redactDSN(dsn string) string {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil || cfg.Passwd == "" {
		return dsn
	}
	cfg.Passwd = redactedStr
	return cfg.FormatDSN()
}

// Format is called by logrus and returns the formatted string.
func (f *SecretsFormatter) Format(entry *log.Entry) ([]byte, error) {
	for k, v := range entry.Data {
		s, ok := v.(string)
		if !ok {
			continue
		}
		switch {
		case k == common.DBDSNLogField:
			entry.Data[k] = redactDSN(s)
		case strings.Contains(strings.ToLower(k), "password"):
			entry.Data[k] = redactedStr
		}
	}
	return f.Formatter.Format(entry)
}
