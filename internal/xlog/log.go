// pg_fedi is a federated ActivityPub server core.
// Copyright (C) 2026 The pg_fedi Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package xlog centralizes process-wide logging behind google/logger, the
// same leveled logger the rest of this codebase's lineage uses.
package xlog

import (
	"os"
	"sync"

	"github.com/google/logger"
)

var (
	initOnce sync.Once
	infoLog  *logger.Logger
	errLog   *logger.Logger
)

// Init wires the package loggers to stdout/stderr. Safe to call multiple
// times; only the first call takes effect.
func Init(verbose bool) {
	initOnce.Do(func() {
		infoLog = logger.Init("pg_fedi", verbose, false, os.Stdout)
		errLog = logger.Init("pg_fedi_err", verbose, false, os.Stderr)
	})
}

func ensure() {
	if infoLog == nil || errLog == nil {
		Init(false)
	}
}

func Info(args ...interface{}) {
	ensure()
	infoLog.Info(args...)
}

func Infof(format string, args ...interface{}) {
	ensure()
	infoLog.Infof(format, args...)
}

func Error(args ...interface{}) {
	ensure()
	errLog.Error(args...)
}

func Errorf(format string, args ...interface{}) {
	ensure()
	errLog.Errorf(format, args...)
}
