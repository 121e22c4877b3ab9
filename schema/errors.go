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

package schema

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownType           = errors.New("unknown member type")
	ErrUnknownClass          = errors.New("unknown class")
	ErrDuplicateClass        = errors.New("duplicate class")
	ErrRecursiveStruct       = errors.New("recursive struct definition")
	ErrInvalidMember         = errors.New("invalid member declaration")
	ErrInvalidLayout         = errors.New("invalid class layout")
	ErrInconsistentWireValue = errors.New("inconsistent wire value across versions")
)

// BuildError describes why a schema (or a registry built on top of it) could
// not be constructed. Any BuildError is fatal: nothing built from a broken
// schema can be used.
type BuildError struct {
	Class   string
	Member  string
	Version Version
	Detail  string
	Err     error
}

func (r *BuildError) Error() string {
	var b strings.Builder
	b.WriteString("schema")
	if r.Class != "" {
		b.WriteString(": ")
		b.WriteString(r.Class)
		if r.Member != "" {
			b.WriteString(".")
			b.WriteString(r.Member)
		}
	}
	if r.Version != VersionInvalid {
		fmt.Fprintf(&b, " (%v)", r.Version)
	}
	b.WriteString(": ")
	b.WriteString(r.Err.Error())
	if r.Detail != "" {
		b.WriteString(": ")
		b.WriteString(r.Detail)
	}

	return b.String()
}

// Cause returns the sentinel error so that errors.Cause of github.com/pkg/errors works.
func (r *BuildError) Cause() error {
	return r.Err
}

func (r *BuildError) Unwrap() error {
	return r.Err
}

func buildError(err error, class, member string, v Version, format string, args ...interface{}) *BuildError {
	return &BuildError{
		Class:   class,
		Member:  member,
		Version: v,
		Detail:  fmt.Sprintf(format, args...),
		Err:     err,
	}
}
