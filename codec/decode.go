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
	"bytes"
	"net"

	"github.com/superkkt/ofwire/registry"
	"github.com/superkkt/ofwire/schema"

	"github.com/pkg/errors"
)

type decoder struct {
	schema   *schema.Schema
	reg      *registry.Registry
	maxDepth int
}

// decode decodes one object of kind k from buf, which is bounded by the span
// of the enclosing object. base is the offset of buf within the outermost
// buffer and only serves error reporting.
func (r *decoder) decode(buf []byte, base int, k schema.Kind, v schema.Version, depth int) (*Object, int, error) {
	class := r.schema.Class(k)
	if depth > r.maxDepth {
		return nil, 0, &ParseError{State: StateStart, Class: class.Name, Version: v, Offset: base, Err: ErrTooDeep}
	}

	// START -> TYPE_RESOLVED
	kind, err := r.reg.Resolve(k, v, buf)
	if err != nil {
		return nil, 0, &ParseError{State: StateStart, Class: class.Name, Version: v, Offset: base, Err: resolveError(err)}
	}
	class = r.schema.Class(kind)
	layout := r.schema.Layout(kind, v)
	if layout == nil {
		return nil, 0, &ParseError{State: StateTypeResolved, Class: class.Name, Version: v, Offset: base, Err: ErrUnknownType}
	}

	// TYPE_RESOLVED -> LENGTH_VALIDATED
	length, err := r.length(buf, layout)
	if err != nil {
		return nil, 0, &ParseError{State: StateTypeResolved, Class: class.Name, Version: v, Offset: base, Err: err}
	}
	consumed := alignUp(length, class.Align)
	if consumed > len(buf) {
		return nil, 0, &ParseError{State: StateTypeResolved, Class: class.Name, Version: v, Offset: base, Err: errors.Wrap(ErrTruncated, "alignment padding")}
	}
	span := buf[:length]

	// LENGTH_VALIDATED -> MEMBERS_DECODED
	obj := &Object{
		Class:   class.Name,
		Kind:    kind,
		Version: v,
		Fields:  make([]Field, 0, len(layout.Members)),
	}
	m := &memberDecoder{decoder: r, layout: layout, span: span, base: base, depth: depth, obj: obj}
	if err := m.run(); err != nil {
		return nil, 0, err
	}

	// MEMBERS_DECODED -> DONE
	if m.cur != len(span) {
		return nil, 0, &ParseError{State: StateMembersDecoded, Class: class.Name, Version: v, Offset: base + m.cur, Err: ErrTrailingBytes}
	}

	return obj, consumed, nil
}

// length reads and validates the declared length of an object.
func (r *decoder) length(buf []byte, layout *schema.Layout) (int, error) {
	off, width, ok := layout.LengthOffset()
	if !ok {
		// Fixed-length class without a length member.
		if layout.BaseLength > len(buf) {
			return 0, errors.Wrapf(ErrTruncated, "need %v bytes, have %v", layout.BaseLength, len(buf))
		}
		return layout.BaseLength, nil
	}

	if off+width > len(buf) {
		return 0, errors.Wrap(ErrTruncated, "length member")
	}
	length := int(getUint(buf[off:], width))
	switch {
	case length < layout.MinLength:
		return 0, errors.Wrapf(ErrBadLength, "declared %v, minimum %v", length, layout.MinLength)
	case layout.FixedLength && length != layout.BaseLength:
		return 0, errors.Wrapf(ErrBadLength, "declared %v, fixed length %v", length, layout.BaseLength)
	case length > len(buf):
		return 0, errors.Wrapf(ErrTruncated, "declared %v, available %v", length, len(buf))
	}

	return length, nil
}

func resolveError(err error) error {
	switch errors.Cause(err) {
	case registry.ErrTruncated:
		return errors.Wrap(ErrTruncated, err.Error())
	case registry.ErrUnsupportedVersion:
		return errors.Wrap(ErrUnsupportedVersion, err.Error())
	default:
		return errors.Wrap(ErrUnknownType, err.Error())
	}
}

type memberDecoder struct {
	*decoder
	layout *schema.Layout
	span   []byte
	base   int
	depth  int
	cur    int
	obj    *Object
	// Byte spans announced by field_length members, by target name.
	limits map[string]int
}

func (r *memberDecoder) fail(m schema.Member, err error) error {
	if _, ok := err.(*ParseError); ok {
		return err
	}

	return &ParseError{
		State:   StateLengthValidated,
		Class:   r.layout.Class.Name,
		Member:  m.Name,
		Version: r.layout.Version,
		Offset:  r.base + r.cur,
		Err:     err,
	}
}

func (r *memberDecoder) run() error {
	for i, m := range r.layout.Members {
		if err := r.member(m, r.layout.Types[i]); err != nil {
			return r.fail(m, err)
		}
	}

	return nil
}

func (r *memberDecoder) set(name string, v interface{}) {
	r.obj.Fields = append(r.obj.Fields, Field{Name: name, Value: v})
}

func (r *memberDecoder) take(n int) ([]byte, error) {
	if r.cur+n > len(r.span) {
		return nil, errors.Wrapf(ErrTruncated, "need %v bytes, have %v", n, len(r.span)-r.cur)
	}
	b := r.span[r.cur : r.cur+n : r.cur+n]
	r.cur += n

	return b, nil
}

// rest returns the bytes a variable member may use: everything up to the
// end of the object, or the span announced by its field_length member.
func (r *memberDecoder) rest(name string) ([]byte, error) {
	n, ok := r.limits[name]
	if !ok {
		n = len(r.span) - r.cur
	}

	return r.take(n)
}

func (r *memberDecoder) member(m schema.Member, t schema.Type) error {
	switch t.Kind {
	case schema.TypePad:
		_, err := r.take(t.Width)
		return err

	case schema.TypeAlign:
		_, err := r.take(alignUp(r.cur, t.Width) - r.cur)
		return err

	case schema.TypeScalar:
		b, err := r.take(t.Width)
		if err != nil {
			return err
		}
		return r.scalar(m, getUint(b, t.Width), t.Width)

	case schema.TypeMAC, schema.TypeBytes:
		b, err := r.take(t.Width)
		if err != nil {
			return err
		}
		if t.Kind == schema.TypeMAC {
			r.set(m.Name, net.HardwareAddr(b))
		} else {
			r.set(m.Name, b)
		}

	case schema.TypeIPv4, schema.TypeIPv6:
		b, err := r.take(t.Width)
		if err != nil {
			return err
		}
		r.set(m.Name, net.IP(b))

	case schema.TypeString:
		b, err := r.take(t.Width)
		if err != nil {
			return err
		}
		if i := bytes.IndexByte(b, 0); i >= 0 {
			b = b[:i]
		}
		r.set(m.Name, string(b))

	case schema.TypeOctets:
		b, err := r.rest(m.Name)
		if err != nil {
			return err
		}
		r.set(m.Name, b)

	case schema.TypeList:
		start := r.cur
		b, err := r.rest(m.Name)
		if err != nil {
			return err
		}
		list, err := r.list(b, r.base+start, t.Class)
		if err != nil {
			return err
		}
		r.set(m.Name, list)

	case schema.TypeStruct:
		class := r.schema.MustClass(t.Class)
		child, n, err := r.decode(r.span[r.cur:], r.base+r.cur, class.Kind, r.layout.Version, r.depth+1)
		if err != nil {
			return err
		}
		r.cur += n
		r.set(m.Name, child)

	default:
		return errors.Wrapf(ErrUnknownType, "member type %v", t.Kind)
	}

	return nil
}

func (r *memberDecoder) scalar(m schema.Member, v uint64, width int) error {
	switch m.Role {
	case schema.RoleVersion:
		if v != uint64(r.layout.Version) {
			return errors.Wrapf(ErrVersionMismatch, "found %v", schema.Version(v))
		}
	case schema.RoleType:
		if v != m.Value {
			return errors.Wrapf(ErrDiscriminatorMismatch, "expected %#x, found %#x", m.Value, v)
		}
	case schema.RoleLength:
		// Validated before the member walk.
	case schema.RoleFieldLength:
		if r.limits == nil {
			r.limits = make(map[string]int)
		}
		r.limits[m.Target] = int(v)
	default:
		r.set(m.Name, scalarValue(v, width))
	}

	return nil
}

func scalarValue(v uint64, width int) interface{} {
	switch width {
	case 1:
		return uint8(v)
	case 2:
		return uint16(v)
	case 4:
		return uint32(v)
	default:
		return v
	}
}

// list decodes consecutive objects until buf is exhausted.
func (r *memberDecoder) list(buf []byte, base int, elem string) ([]*Object, error) {
	class := r.schema.MustClass(elem)
	layout := r.schema.Layout(class.Kind, r.layout.Version)
	least := layout.Footprint()

	result := []*Object{}
	for pos := 0; pos < len(buf); {
		if len(buf)-pos < least {
			return nil, &ParseError{
				State:   StateLengthValidated,
				Class:   class.Name,
				Version: r.layout.Version,
				Offset:  base + pos,
				Err:     errors.Wrapf(ErrBadLength, "%v bytes left in list, element needs at least %v", len(buf)-pos, least),
			}
		}
		child, n, err := r.decode(buf[pos:], base+pos, class.Kind, r.layout.Version, r.depth+1)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, &ParseError{State: StateDone, Class: child.Class, Version: r.layout.Version, Offset: base + pos, Err: errors.Wrap(ErrBadLength, "zero-length list element")}
		}
		result = append(result, child)
		pos += n
	}

	return result, nil
}
