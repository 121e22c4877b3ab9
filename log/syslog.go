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
	"fmt"
	slog "log/syslog"
	"strings"

	"github.com/op/go-logging"
	"github.com/pkg/errors"
)

// DefaultFacility is used when no facility is configured.
const DefaultFacility = slog.LOG_DAEMON

var facilities = map[string]slog.Priority{
	"user":   slog.LOG_USER,
	"daemon": slog.LOG_DAEMON,
	"local0": slog.LOG_LOCAL0,
	"local1": slog.LOG_LOCAL1,
	"local2": slog.LOG_LOCAL2,
	"local3": slog.LOG_LOCAL3,
	"local4": slog.LOG_LOCAL4,
	"local5": slog.LOG_LOCAL5,
	"local6": slog.LOG_LOCAL6,
	"local7": slog.LOG_LOCAL7,
}

// ParseFacility converts a facility name such as daemon or local3 into the
// syslog facility. An empty name yields DefaultFacility.
func ParseFacility(name string) (slog.Priority, error) {
	if len(name) == 0 {
		return DefaultFacility, nil
	}
	f, ok := facilities[strings.ToLower(name)]
	if !ok {
		return DefaultFacility, errors.Errorf("invalid syslog facility: %v", name)
	}

	return f, nil
}

// syslogWriter is the part of *syslog.Writer a backend writes through.
type syslogWriter interface {
	Crit(m string) error
	Err(m string) error
	Warning(m string) error
	Notice(m string) error
	Info(m string) error
	Debug(m string) error
}

type syslog struct {
	writer syslogWriter
}

// NewSyslog returns a backend that writes records to the local syslog daemon
// under facility, tagging every line with prefix.
func NewSyslog(prefix string, facility slog.Priority) (logging.Backend, error) {
	w, err := slog.New(slog.LOG_INFO|facility, prefix)
	if err != nil {
		return nil, err
	}

	return &syslog{writer: w}, nil
}

// Log sends the record with the syslog severity of level. The module name
// is kept so lines of the codec and the transceiver can be told apart.
func (r *syslog) Log(level logging.Level, calldepth int, record *logging.Record) error {
	line := fmt.Sprintf("[%v] %v", record.Module, record.Formatted(calldepth+1))
	switch level {
	case logging.CRITICAL:
		return r.writer.Crit(line)
	case logging.ERROR:
		return r.writer.Err(line)
	case logging.WARNING:
		return r.writer.Warning(line)
	case logging.NOTICE:
		return r.writer.Notice(line)
	case logging.INFO:
		return r.writer.Info(line)
	case logging.DEBUG:
		return r.writer.Debug(line)
	default:
		return errors.Errorf("unexpected log level: %v", level)
	}
}
