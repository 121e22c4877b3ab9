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

package codec

import (
	"errors"
	"fmt"
	"strings"

	"github.com/superkkt/ofwire/schema"
)

var (
	ErrUnsupportedVersion    = errors.New("unsupported OpenFlow version")
	ErrUnknownClass          = errors.New("unknown class")
	ErrUnknownType           = errors.New("unknown object type")
	ErrBadLength             = errors.New("invalid length")
	ErrTruncated             = errors.New("truncated buffer")
	ErrDiscriminatorMismatch = errors.New("discriminator mismatch")
	ErrTrailingBytes         = errors.New("trailing bytes")
	ErrTooDeep               = errors.New("nesting too deep")
	ErrVersionMismatch       = errors.New("version mismatch")
	ErrAbstractClass         = errors.New("cannot encode a virtual class")
	ErrMissingMember         = errors.New("missing member value")
	ErrInvalidValue          = errors.New("invalid member value")
)

// State is the position of the decoder in its per-object state machine.
type State uint8

const (
	StateStart State = iota
	StateTypeResolved
	StateLengthValidated
	StateMembersDecoded
	StateDone
)

func (r State) String() string {
	switch r {
	case StateStart:
		return "START"
	case StateTypeResolved:
		return "TYPE_RESOLVED"
	case StateLengthValidated:
		return "LENGTH_VALIDATED"
	case StateMembersDecoded:
		return "MEMBERS_DECODED"
	case StateDone:
		return "DONE"
	default:
		return fmt.Sprintf("State(%d)", uint8(r))
	}
}

// ParseError is returned for any malformed input. State is the last state
// the decoder reached for the innermost object before failing.
type ParseError struct {
	State   State
	Class   string
	Member  string
	Version schema.Version
	Offset  int
	Err     error
}

func (r *ParseError) Error() string {
	var b strings.Builder
	b.WriteString("parse error")
	if r.Class != "" {
		fmt.Fprintf(&b, " in %v", r.Class)
		if r.Member != "" {
			fmt.Fprintf(&b, ".%v", r.Member)
		}
	}
	if r.Version != schema.VersionInvalid {
		fmt.Fprintf(&b, " (%v)", r.Version)
	}
	fmt.Fprintf(&b, " at offset %v after %v: %v", r.Offset, r.State, r.Err)

	return b.String()
}

func (r *ParseError) Cause() error {
	return r.Err
}

func (r *ParseError) Unwrap() error {
	return r.Err
}
