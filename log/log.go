/*
 * Ofwire - OpenFlow Wire Codec
 *
 * Copyright (C) 2015-2019 Samjung Data Service, Inc. All rights reserved.
 * Kitae Kim <superkkt@sds.co.kr>
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation; either version 2 of the License, or
 * any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License along
 * with this program; if not, write to the Free Software Foundation, Inc.,
 * 51 Franklin Street, Fifth Floor, Boston, MA 02110-1301 USA.
 */


package log

import (
	"io"
	"os"
	"strings"

	"github.com/op/go-logging"
	"github.com/pkg/errors"
)

const (
	DefaultLevel = logging.INFO

	stderrFormat = `%{time} [%{pid}] %{level}: %{shortpkg}.%{shortfunc}: %{message}`
	syslogFormat = `%{level}: %{shortpkg}.%{shortfunc}: %{message}`
)

var writer io.Writer = os.Stderr

// Config selects and tunes a log backend.
type Config struct {
	// Driver is either stderr or syslog.
	Driver string
	// Facility is a syslog facility name. It is ignored by stderr.
	Facility string
	Prefix   string
	Level    logging.Level
}

// NewBackend returns a leveled backend for c.Driver. Every module logs at
// c.Level until SetLevel is called.
func NewBackend(c Config) (logging.LeveledBackend, error) {
	var backend logging.Backend
	switch strings.ToLower(c.Driver) {
	case "", "stderr":
		backend = logging.NewLogBackend(writer, "", 0)
		backend = logging.NewBackendFormatter(backend, logging.MustStringFormatter(stderrFormat))
	case "syslog":
		facility, err := ParseFacility(c.Facility)
		if err != nil {
			return nil, err
		}
		b, err := NewSyslog(c.Prefix, facility)
		if err != nil {
			return nil, errors.Wrap(err, "failed to open syslog")
		}
		backend = logging.NewBackendFormatter(b, logging.MustStringFormatter(syslogFormat))
	default:
		return nil, errors.Errorf("unsupported log driver: %v", c.Driver)
	}

	leveled := logging.AddModuleLevel(backend)
	// Set log level for all modules
	leveled.SetLevel(c.Level, "")

	return leveled, nil
}

// Init installs the backend of c as the default backend of all loggers.
func Init(c Config) (logging.LeveledBackend, error) {
	leveled, err := NewBackend(c)
	if err != nil {
		return nil, err
	}
	logging.SetBackend(leveled)

	return leveled, nil
}

// ParseLevel converts a level name into the logging level. An empty or
// unknown name yields def.
func ParseLevel(level string, def logging.Level) (logging.Level, error) {
	if len(level) == 0 {
		return def, nil
	}
	ret, err := logging.LogLevel(strings.ToUpper(level))
	if err != nil {
		return def, errors.Errorf("invalid log level: %v", level)
	}

	return ret, nil
}
