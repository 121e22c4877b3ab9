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
	"encoding/binary"

	"github.com/superkkt/ofwire/registry"
	"github.com/superkkt/ofwire/schema"

	"github.com/pkg/errors"
)

// DefaultMaxDepth bounds the nesting of objects inside one message.
const DefaultMaxDepth = 32

// Codec decodes and encodes objects described by a registry. It holds no
// mutable state and is safe for concurrent use.
type Codec struct {
	reg      *registry.Registry
	schema   *schema.Schema
	maxDepth int
}

type Option func(*Codec)

// WithMaxDepth sets the largest accepted nesting depth. Values below one are ignored.
func WithMaxDepth(n int) Option {
	return func(c *Codec) {
		if n > 0 {
			c.maxDepth = n
		}
	}
}

func New(reg *registry.Registry, opts ...Option) *Codec {
	c := &Codec{
		reg:      reg,
		schema:   reg.Schema(),
		maxDepth: DefaultMaxDepth,
	}
	for _, o := range opts {
		o(c)
	}

	return c
}

func (r *Codec) Registry() *registry.Registry {
	return r.reg
}

// NewObject is a shortcut of the package level NewObject.
func (r *Codec) NewObject(name string, v schema.Version) (*Object, error) {
	return NewObject(r.reg, name, v)
}

// Decode decodes the message at the start of buf. It returns the message and
// the number of bytes it occupies. Bytes after the message are left alone.
func (r *Codec) Decode(buf []byte) (*Object, int, error) {
	if len(buf) == 0 {
		return nil, 0, &ParseError{State: StateStart, Err: ErrTruncated}
	}
	v := schema.Version(buf[0])
	if r.schema.Supports(v) == false {
		return nil, 0, errors.Wrapf(ErrUnsupportedVersion, "version %v", v)
	}
	root := r.reg.Root(registry.Message)
	if root == nil {
		return nil, 0, errors.Wrap(ErrUnknownClass, "schema has no message family")
	}

	d := &decoder{schema: r.schema, reg: r.reg, maxDepth: r.maxDepth}
	return d.decode(buf, 0, root.Kind, v, 0)
}

// DecodeClass decodes an object of the named class, resolving it to a
// concrete subclass first when the class is virtual. Like Decode it returns
// the number of bytes the object occupies and leaves the rest of buf alone;
// a fixed-length class without a length member takes its fixed length from
// a longer buf. Use DecodeClassStrict when buf must hold exactly one object.
func (r *Codec) DecodeClass(buf []byte, name string, v schema.Version) (*Object, int, error) {
	class, ok := r.schema.ClassByName(name)
	if !ok {
		return nil, 0, errors.Wrap(ErrUnknownClass, name)
	}
	if r.schema.Supports(v) == false {
		return nil, 0, errors.Wrapf(ErrUnsupportedVersion, "version %v", v)
	}

	d := &decoder{schema: r.schema, reg: r.reg, maxDepth: r.maxDepth}
	return d.decode(buf, 0, class.Kind, v, 0)
}

// DecodeClassStrict is DecodeClass that also fails with ErrBadLength when buf
// is longer than the object, including its alignment padding.
func (r *Codec) DecodeClassStrict(buf []byte, name string, v schema.Version) (*Object, error) {
	obj, n, err := r.DecodeClass(buf, name, v)
	if err != nil {
		return nil, err
	}
	if n != len(buf) {
		return nil, &ParseError{
			State:   StateTypeResolved,
			Class:   obj.Class,
			Version: v,
			Offset:  n,
			Err:     errors.Wrapf(ErrBadLength, "object length %v, available %v", n, len(buf)),
		}
	}

	return obj, nil
}

// Encode returns the wire representation of obj.
func (r *Codec) Encode(obj *Object) ([]byte, error) {
	e := &encoder{schema: r.schema, maxDepth: r.maxDepth}
	return e.encode(nil, obj, nil, 0)
}

// Header is the fixed part of every OpenFlow message.
type Header struct {
	Version uint8
	Type    uint8
	Length  uint16
	Xid     uint32
}

func (r Header) MarshalBinary() ([]byte, error) {
	v := make([]byte, 8)
	v[0] = r.Version
	v[1] = r.Type
	binary.BigEndian.PutUint16(v[2:4], r.Length)
	binary.BigEndian.PutUint32(v[4:8], r.Xid)

	return v, nil
}

func (r *Header) UnmarshalBinary(data []byte) error {
	if len(data) < 8 {
		return ErrTruncated
	}

	r.Version = data[0]
	r.Type = data[1]
	r.Length = binary.BigEndian.Uint16(data[2:4])
	r.Xid = binary.BigEndian.Uint32(data[4:8])

	return nil
}

// Peek reads the message header at the start of buf without decoding the body.
func Peek(buf []byte) (Header, error) {
	h := Header{}
	if err := h.UnmarshalBinary(buf); err != nil {
		return Header{}, err
	}
	if h.Length < 8 {
		return Header{}, errors.Wrapf(ErrBadLength, "header length %v", h.Length)
	}

	return h, nil
}

func getUint(b []byte, width int) uint64 {
	switch width {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(binary.BigEndian.Uint16(b))
	case 4:
		return uint64(binary.BigEndian.Uint32(b))
	case 8:
		return binary.BigEndian.Uint64(b)
	default:
		var v uint64
		for _, c := range b[:width] {
			v = v<<8 | uint64(c)
		}
		return v
	}
}

func putUint(buf []byte, v uint64, width int) []byte {
	for i := width - 1; i >= 0; i-- {
		buf = append(buf, byte(v>>(8*uint(i))))
	}

	return buf
}

func patchUint(buf []byte, v uint64, width int) {
	for i := 0; i < width; i++ {
		buf[i] = byte(v >> (8 * uint(width-1-i)))
	}
}

// fits reports whether v can be stored in width bytes.
func fits(v uint64, width int) bool {
	return width >= 8 || v < 1<<(8*uint(width))
}

func alignUp(n, align int) int {
	if align <= 1 {
		return n
	}

	return (n + align - 1) / align * align
}
