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
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Role is the part a member plays in the encoding of its class.
type Role uint8

const (
	// RoleData is an ordinary value carried by decoded objects.
	RoleData Role = iota
	// RolePad is padding, zero on encode and skipped on decode.
	RolePad
	// RoleType is a discriminator literal such as "uint16_t type == 0".
	RoleType
	// RoleLength holds the total byte length of the object itself.
	RoleLength
	// RoleFieldLength holds the byte length of a later list or octets member.
	RoleFieldLength
	// RoleVersion holds the protocol version of the enclosing message.
	RoleVersion
)

func (r Role) String() string {
	switch r {
	case RoleData:
		return "data"
	case RolePad:
		return "pad"
	case RoleType:
		return "type"
	case RoleLength:
		return "length"
	case RoleFieldLength:
		return "field_length"
	case RoleVersion:
		return "version"
	default:
		return fmt.Sprintf("Role(%d)", uint8(r))
	}
}

// Member is one entry of a class layout.
type Member struct {
	Name string
	// Decl is the declared type name, before version-mixed types are resolved.
	Decl string
	Role Role
	// Value is the literal of a RoleType member.
	Value uint64
	// Target names the member whose length a RoleFieldLength member holds.
	Target string
	// Size is the width of a pad(N) member, or the boundary of an align(N) member.
	Size int
}

// Skipped returns whether the member's value is derived from the object
// rather than carried in it.
func (r Member) Skipped() bool {
	return r.Role != RoleData
}

func (r Member) String() string {
	switch r.Role {
	case RolePad:
		if r.Decl == "align" {
			return fmt.Sprintf("align(%v)", r.Size)
		}
		return fmt.Sprintf("pad(%v)", r.Size)
	case RoleType:
		return fmt.Sprintf("%v %v == %#x", r.Decl, r.Name, r.Value)
	case RoleLength:
		return fmt.Sprintf("%v %v @length", r.Decl, r.Name)
	case RoleFieldLength:
		return fmt.Sprintf("%v %v @length(%v)", r.Decl, r.Name, r.Target)
	case RoleVersion:
		return fmt.Sprintf("%v %v @version", r.Decl, r.Name)
	default:
		return fmt.Sprintf("%v %v", r.Decl, r.Name)
	}
}

// ParseMember parses the compact member notation used by schema files:
//
//	pad(N)
//	align(N)
//	<type> <name>
//	<type> <name> == <literal>
//	<type> <name> @length
//	<type> <name> @length(<member>)
//	<type> <name> @version
func ParseMember(s string) (Member, error) {
	s = strings.TrimSpace(s)
	for _, p := range []string{"pad", "align"} {
		if strings.HasPrefix(s, p+"(") && strings.HasSuffix(s, ")") {
			n, err := strconv.Atoi(s[len(p)+1 : len(s)-1])
			if err != nil || n <= 0 {
				return Member{}, errors.Wrapf(ErrInvalidMember, "%q", s)
			}
			return Member{Decl: p, Role: RolePad, Size: n}, nil
		}
	}

	f := strings.Fields(s)
	if len(f) < 2 {
		return Member{}, errors.Wrapf(ErrInvalidMember, "%q", s)
	}
	m := Member{Decl: f[0], Name: f[1], Role: RoleData}

	switch rest := f[2:]; {
	case len(rest) == 0:
	case len(rest) == 2 && rest[0] == "==":
		v, err := strconv.ParseUint(rest[1], 0, 64)
		if err != nil {
			return Member{}, errors.Wrapf(ErrInvalidMember, "%q: bad literal", s)
		}
		m.Role = RoleType
		m.Value = v
	case len(rest) == 1 && rest[0] == "@length":
		m.Role = RoleLength
	case len(rest) == 1 && rest[0] == "@version":
		m.Role = RoleVersion
	case len(rest) == 1 && strings.HasPrefix(rest[0], "@length(") && strings.HasSuffix(rest[0], ")"):
		m.Role = RoleFieldLength
		m.Target = rest[0][len("@length(") : len(rest[0])-1]
		if m.Target == "" {
			return Member{}, errors.Wrapf(ErrInvalidMember, "%q: empty length target", s)
		}
	default:
		return Member{}, errors.Wrapf(ErrInvalidMember, "%q", s)
	}

	return m, nil
}

// MustParseMembers parses a list of member declarations and panics on error.
// It is meant for schemas written in Go source.
func MustParseMembers(decl ...string) []Member {
	result := make([]Member, len(decl))
	for i, v := range decl {
		m, err := ParseMember(v)
		if err != nil {
			panic(fmt.Sprintf("invalid member declaration: %v", err))
		}
		result[i] = m
	}

	return result
}
