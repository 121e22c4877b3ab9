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

// TypeKind tells the codec how a member is represented on the wire.
type TypeKind uint8

const (
	TypeScalar TypeKind = iota // big-endian unsigned integer of Width bytes
	TypeMAC
	TypeIPv4
	TypeIPv6
	TypeString // zero-padded fixed-width string
	TypeBytes  // fixed-width raw bytes
	TypeOctets // raw bytes up to the end of the enclosing span
	TypePad
	TypeAlign // zero padding up to the next multiple of Width from the object start
	TypeStruct
	TypeList
)

func (r TypeKind) String() string {
	switch r {
	case TypeScalar:
		return "scalar"
	case TypeMAC:
		return "mac"
	case TypeIPv4:
		return "ipv4"
	case TypeIPv6:
		return "ipv6"
	case TypeString:
		return "string"
	case TypeBytes:
		return "bytes"
	case TypeOctets:
		return "octets"
	case TypePad:
		return "pad"
	case TypeAlign:
		return "align"
	case TypeStruct:
		return "struct"
	case TypeList:
		return "list"
	default:
		return fmt.Sprintf("TypeKind(%d)", uint8(r))
	}
}

// Type is a member type resolved for one particular version.
type Type struct {
	Kind TypeKind
	// Name is the declared type name after version-mixed types are resolved.
	Name string
	// Width is the static byte width. It is zero for octets, lists and
	// embedded classes whose size is only known from the class layout.
	Width int
	// Class names the embedded class of a struct member or the element
	// class of a list member.
	Class string
}

// Fixed returns whether the type occupies a width known before reading the data.
func (r Type) Fixed() bool {
	switch r.Kind {
	case TypeOctets, TypeList, TypeAlign:
		return false
	case TypeStruct:
		// Decided by the embedded class layout.
		return false
	default:
		return true
	}
}

var primitives = map[string]Type{
	"char":                {Kind: TypeScalar, Width: 1},
	"uint8_t":             {Kind: TypeScalar, Width: 1},
	"uint16_t":            {Kind: TypeScalar, Width: 2},
	"uint32_t":            {Kind: TypeScalar, Width: 4},
	"uint64_t":            {Kind: TypeScalar, Width: 8},
	"of_mac_addr_t":       {Kind: TypeMAC, Width: 6},
	"of_ipv4_t":           {Kind: TypeIPv4, Width: 4},
	"of_ipv6_t":           {Kind: TypeIPv6, Width: 16},
	"of_port_name_t":      {Kind: TypeString, Width: 16},
	"of_table_name_t":     {Kind: TypeString, Width: 32},
	"of_desc_str_t":       {Kind: TypeString, Width: 256},
	"of_serial_num_t":     {Kind: TypeString, Width: 32},
	"of_controller_uri_t": {Kind: TypeString, Width: 32},
	"of_str64_t":          {Kind: TypeString, Width: 64},
	"of_bitmap_128_t":     {Kind: TypeBytes, Width: 16},
	"of_checksum_128_t":   {Kind: TypeBytes, Width: 16},
	"of_bitmap_512_t":     {Kind: TypeBytes, Width: 64},
	"of_octets_t":         {Kind: TypeOctets},
}

// Types whose wire representation changed between protocol versions. The
// index is the wire version; an empty name means the type does not exist in
// that version.
var mixedTypes = map[string][MaxVersion + 1]string{
	"of_port_no_t":    {"", "uint16_t", "uint32_t", "uint32_t", "uint32_t", "uint32_t", "uint32_t"},
	"of_fm_cmd_t":     {"", "uint16_t", "uint8_t", "uint8_t", "uint8_t", "uint8_t", "uint8_t"},
	"of_wc_bmap_t":    {"", "uint32_t", "uint32_t", "uint64_t", "uint64_t", "uint64_t", "uint64_t"},
	"of_match_bmap_t": {"", "uint32_t", "uint32_t", "uint64_t", "uint64_t", "uint64_t", "uint64_t"},
	"of_match_t":      {"", "of_match_v1_t", "of_match_v2_t", "of_match_v3_t", "of_match_v3_t", "of_match_v3_t", "of_match_v3_t"},
}

// Named array sizes accepted inside brackets.
var arrayConstants = map[string]int{
	"OF_ETH_ALEN":             6,
	"OF_MAX_PORT_NAME_LEN":    16,
	"OF_MAX_TABLE_NAME_LEN":   32,
	"OF_DESC_STR_LEN":         256,
	"OF_SERIAL_NUM_LEN":       32,
	"OF_MAX_CONTROLLER_URI":   32,
	"OF_OXM_MAX_LENGTH_BYTES": 255,
}

// BaseLength returns the byte width of a primitive type name as listed in the
// fixed width table. Variable or unknown types return false.
func BaseLength(name string) (int, bool) {
	t, ok := primitives[name]
	if !ok || t.Kind == TypeOctets {
		return 0, false
	}

	return t.Width, true
}

// resolveType maps a declared member type to its representation in version v.
// classExists reports whether a class name is defined by the schema.
func resolveType(decl string, v Version, classExists func(string) bool) (Type, error) {
	if m, ok := mixedTypes[decl]; ok {
		if m[v] == "" {
			return Type{}, errors.Wrapf(ErrUnknownType, "%v does not exist in version %v", decl, v)
		}
		decl = m[v]
	}

	if strings.HasPrefix(decl, "list(") && strings.HasSuffix(decl, ")") {
		elem := strings.TrimSuffix(strings.TrimPrefix(decl, "list("), ")")
		class, ok := className(elem)
		if !ok || classExists(class) == false {
			return Type{}, errors.Wrapf(ErrUnknownClass, "list element %v", elem)
		}
		return Type{Kind: TypeList, Name: decl, Class: class}, nil
	}

	if i := strings.IndexByte(decl, '['); i > 0 && strings.HasSuffix(decl, "]") {
		return resolveArray(decl, decl[:i], decl[i+1:len(decl)-1])
	}

	if t, ok := primitives[decl]; ok {
		t.Name = decl
		return t, nil
	}

	if class, ok := className(decl); ok && classExists(class) {
		return Type{Kind: TypeStruct, Name: decl, Class: class}, nil
	}

	return Type{}, errors.Wrap(ErrUnknownType, decl)
}

// Only byte arrays are representable; wider element types have no use in
// the protocol and are rejected.
func resolveArray(decl, elem, count string) (Type, error) {
	if elem != "uint8_t" && elem != "char" {
		return Type{}, errors.Wrapf(ErrUnknownType, "array of %v", elem)
	}

	n, ok := arrayConstants[count]
	if !ok {
		v, err := strconv.Atoi(count)
		if err != nil || v <= 0 {
			return Type{}, errors.Wrapf(ErrUnknownType, "array size %v", count)
		}
		n = v
	}

	return Type{Kind: TypeBytes, Name: decl, Width: n}, nil
}

// className converts a type name such as "of_action_t" into the class name
// "of_action".
func className(typ string) (string, bool) {
	if strings.HasSuffix(typ, "_t") == false || len(typ) <= 2 {
		return "", false
	}

	return strings.TrimSuffix(typ, "_t"), true
}
