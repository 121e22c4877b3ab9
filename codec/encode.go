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
	"fmt"
	"net"

	"github.com/superkkt/ofwire/schema"

	"github.com/pkg/errors"
)

type encoder struct {
	schema   *schema.Schema
	maxDepth int
}

type placeholder struct {
	pos   int
	width int
}

// encode appends the wire form of obj to buf. expect, if not nil, is the
// class the enclosing member declares; obj must be an instance of it.
func (r *encoder) encode(buf []byte, obj *Object, expect *schema.Class, depth int) ([]byte, error) {
	if obj == nil {
		return nil, errors.Wrap(ErrMissingMember, "nil object")
	}
	if depth > r.maxDepth {
		return nil, errors.Wrap(ErrTooDeep, obj.Class)
	}
	class := r.schema.Class(obj.Kind)
	if class == nil {
		return nil, errors.Wrapf(ErrUnknownClass, "kind %v", obj.Kind)
	}
	if class.Virtual() {
		return nil, errors.Wrap(ErrAbstractClass, class.Name)
	}
	if expect != nil && class.IsA(expect) == false {
		return nil, errors.Wrapf(ErrInvalidValue, "%v is not a %v", class.Name, expect.Name)
	}
	if r.schema.Supports(obj.Version) == false {
		return nil, errors.Wrapf(ErrUnsupportedVersion, "version %v", obj.Version)
	}
	layout := r.schema.Layout(obj.Kind, obj.Version)
	if layout == nil {
		return nil, errors.Wrapf(ErrUnknownType, "%v does not exist in version %v", class.Name, obj.Version)
	}

	start := len(buf)
	length := placeholder{pos: -1}
	var fieldLengths map[string]placeholder

	for i, m := range layout.Members {
		t := layout.Types[i]
		var err error

		switch m.Role {
		case schema.RolePad:
			n := t.Width
			if t.Kind == schema.TypeAlign {
				n = alignUp(len(buf)-start, t.Width) - (len(buf) - start)
			}
			buf = append(buf, make([]byte, n)...)
			continue
		case schema.RoleVersion:
			buf = putUint(buf, uint64(obj.Version), t.Width)
			continue
		case schema.RoleType:
			buf = putUint(buf, m.Value, t.Width)
			continue
		case schema.RoleLength:
			length = placeholder{pos: len(buf), width: t.Width}
			buf = putUint(buf, 0, t.Width)
			continue
		case schema.RoleFieldLength:
			if fieldLengths == nil {
				fieldLengths = make(map[string]placeholder)
			}
			fieldLengths[m.Target] = placeholder{pos: len(buf), width: t.Width}
			buf = putUint(buf, 0, t.Width)
			continue
		}

		value, ok := obj.Get(m.Name)
		if !ok || value == nil {
			return nil, errors.Wrapf(ErrMissingMember, "%v.%v", class.Name, m.Name)
		}
		mark := len(buf)
		buf, err = r.value(buf, obj, t, value, depth)
		if err != nil {
			return nil, errors.Wrapf(err, "%v.%v", class.Name, m.Name)
		}
		if p, ok := fieldLengths[m.Name]; ok {
			n := uint64(len(buf) - mark)
			if fits(n, p.width) == false {
				return nil, errors.Wrapf(ErrInvalidValue, "%v.%v: %v bytes do not fit in its length field", class.Name, m.Name, n)
			}
			patchUint(buf[p.pos:], n, p.width)
		}
	}

	total := len(buf) - start
	if total < layout.MinLength {
		return nil, errors.Wrapf(ErrInvalidValue, "%v: %v bytes is below the minimum length %v", class.Name, total, layout.MinLength)
	}
	if length.pos >= 0 {
		if fits(uint64(total), length.width) == false {
			return nil, errors.Wrapf(ErrInvalidValue, "%v: length %v does not fit in %v bytes", class.Name, total, length.width)
		}
		patchUint(buf[length.pos:], uint64(total), length.width)
	}
	// External alignment is not part of the declared length.
	if pad := alignUp(total, class.Align) - total; pad > 0 {
		buf = append(buf, make([]byte, pad)...)
	}

	return buf, nil
}

func (r *encoder) value(buf []byte, parent *Object, t schema.Type, value interface{}, depth int) ([]byte, error) {
	switch t.Kind {
	case schema.TypeScalar:
		n, ok := toUint(value)
		if !ok || fits(n, t.Width) == false {
			return nil, errors.Wrapf(ErrInvalidValue, "%v does not fit in %v bytes", value, t.Width)
		}
		return putUint(buf, n, t.Width), nil

	case schema.TypeMAC:
		var b []byte
		switch v := value.(type) {
		case net.HardwareAddr:
			b = v
		case []byte:
			b = v
		}
		if len(b) != t.Width {
			return nil, errors.Wrapf(ErrInvalidValue, "invalid MAC address %v", value)
		}
		return append(buf, b...), nil

	case schema.TypeIPv4, schema.TypeIPv6:
		ip, ok := value.(net.IP)
		if !ok {
			return nil, errors.Wrapf(ErrInvalidValue, "%T is not an IP address", value)
		}
		if t.Kind == schema.TypeIPv4 {
			ip = ip.To4()
		} else {
			ip = ip.To16()
		}
		if ip == nil {
			return nil, errors.Wrapf(ErrInvalidValue, "invalid IP address for a %v-byte field", t.Width)
		}
		return append(buf, ip...), nil

	case schema.TypeString:
		s, ok := value.(string)
		if !ok || len(s) > t.Width {
			return nil, errors.Wrapf(ErrInvalidValue, "%q is not a string of at most %v bytes", fmt.Sprint(value), t.Width)
		}
		buf = append(buf, s...)
		return append(buf, make([]byte, t.Width-len(s))...), nil

	case schema.TypeBytes, schema.TypeOctets:
		b, ok := value.([]byte)
		if !ok {
			return nil, errors.Wrapf(ErrInvalidValue, "%T is not a byte slice", value)
		}
		if t.Kind == schema.TypeOctets {
			return append(buf, b...), nil
		}
		if len(b) > t.Width {
			return nil, errors.Wrapf(ErrInvalidValue, "%v bytes do not fit in %v", len(b), t.Width)
		}
		buf = append(buf, b...)
		return append(buf, make([]byte, t.Width-len(b))...), nil

	case schema.TypeList:
		list, ok := value.([]*Object)
		if !ok {
			return nil, errors.Wrapf(ErrInvalidValue, "%T is not a list of objects", value)
		}
		elem := r.schema.MustClass(t.Class)
		for _, child := range list {
			if err := sameVersion(parent, child); err != nil {
				return nil, err
			}
			var err error
			if buf, err = r.encode(buf, child, elem, depth+1); err != nil {
				return nil, err
			}
		}
		return buf, nil

	case schema.TypeStruct:
		child, ok := value.(*Object)
		if !ok {
			return nil, errors.Wrapf(ErrInvalidValue, "%T is not an object", value)
		}
		if err := sameVersion(parent, child); err != nil {
			return nil, err
		}
		return r.encode(buf, child, r.schema.MustClass(t.Class), depth+1)

	default:
		return nil, errors.Wrapf(ErrUnknownType, "member type %v", t.Kind)
	}
}

func sameVersion(parent, child *Object) error {
	if child != nil && child.Version != parent.Version {
		return errors.Wrapf(ErrVersionMismatch, "%v is version %v inside a version %v object", child.Class, child.Version, parent.Version)
	}

	return nil
}
