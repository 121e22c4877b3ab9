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
	"net"

	"github.com/superkkt/ofwire/registry"
	"github.com/superkkt/ofwire/schema"

	"github.com/pkg/errors"
)

// Field is a named member value of an object.
//
// Values are uint8, uint16, uint32 or uint64 for integers (by wire width),
// net.HardwareAddr, net.IP, string for zero-padded fixed strings, []byte for
// octets and fixed byte arrays, *Object for embedded classes and []*Object
// for lists. Decoded []byte, net.IP and net.HardwareAddr values alias the
// input buffer.
type Field struct {
	Name  string
	Value interface{}
}

// Object is a decoded (or to be encoded) protocol object. Members derived
// from the object itself, such as type literals, lengths and padding, are
// not stored.
type Object struct {
	Class   string
	Kind    schema.Kind
	Version schema.Version
	Fields  []Field
}

// NewObject returns an object of the named class whose fields are listed in
// wire order and hold zero values of their wire types. Embedded classes are
// filled recursively, except virtual ones, which stay nil until set.
func NewObject(reg *registry.Registry, name string, v schema.Version) (*Object, error) {
	s := reg.Schema()
	class, ok := s.ClassByName(name)
	if !ok {
		return nil, errors.Wrap(ErrUnknownClass, name)
	}
	if s.Supports(v) == false {
		return nil, errors.Wrapf(ErrUnsupportedVersion, "version %v", v)
	}
	if class.Virtual() {
		return nil, errors.Wrap(ErrAbstractClass, name)
	}
	if class.Defined(v) == false {
		return nil, errors.Wrapf(ErrUnknownType, "%v does not exist in version %v", name, v)
	}

	return newObject(s, class, v), nil
}

func newObject(s *schema.Schema, class *schema.Class, v schema.Version) *Object {
	layout := s.Layout(class.Kind, v)
	obj := &Object{Class: class.Name, Kind: class.Kind, Version: v}
	for i, m := range layout.Members {
		if m.Skipped() {
			continue
		}
		obj.Fields = append(obj.Fields, Field{Name: m.Name, Value: zeroValue(s, layout.Types[i], v)})
	}

	return obj
}

func zeroValue(s *schema.Schema, t schema.Type, v schema.Version) interface{} {
	switch t.Kind {
	case schema.TypeScalar:
		return scalarValue(0, t.Width)
	case schema.TypeMAC:
		return make(net.HardwareAddr, t.Width)
	case schema.TypeIPv4, schema.TypeIPv6:
		return make(net.IP, t.Width)
	case schema.TypeString:
		return ""
	case schema.TypeBytes:
		return make([]byte, t.Width)
	case schema.TypeOctets:
		return []byte{}
	case schema.TypeList:
		return []*Object{}
	case schema.TypeStruct:
		class := s.MustClass(t.Class)
		if class.Virtual() {
			return nil
		}
		return newObject(s, class, v)
	default:
		return nil
	}
}

func (r *Object) Name() string {
	return r.Class
}

func (r *Object) Get(name string) (interface{}, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}

	return nil, false
}

// Set replaces the value of the named field, appending the field if it does
// not exist. It returns r so that calls can be chained.
func (r *Object) Set(name string, value interface{}) *Object {
	for i := range r.Fields {
		if r.Fields[i].Name == name {
			r.Fields[i].Value = value
			return r
		}
	}
	r.Fields = append(r.Fields, Field{Name: name, Value: value})

	return r
}

// Uint returns an integer field widened to uint64.
func (r *Object) Uint(name string) (uint64, bool) {
	v, ok := r.Get(name)
	if !ok {
		return 0, false
	}

	return toUint(v)
}

func (r *Object) Bytes(name string) []byte {
	v, _ := r.Get(name)
	b, _ := v.([]byte)
	return b
}

func (r *Object) Text(name string) string {
	v, _ := r.Get(name)
	s, _ := v.(string)
	return s
}

func (r *Object) List(name string) []*Object {
	v, _ := r.Get(name)
	l, _ := v.([]*Object)
	return l
}

func (r *Object) Child(name string) *Object {
	v, _ := r.Get(name)
	c, _ := v.(*Object)
	return c
}

func toUint(v interface{}) (uint64, bool) {
	switch n := v.(type) {
	case uint8:
		return uint64(n), true
	case uint16:
		return uint64(n), true
	case uint32:
		return uint64(n), true
	case uint64:
		return n, true
	case uint:
		return uint64(n), true
	case int:
		return uint64(n), n >= 0
	case int8:
		return uint64(n), n >= 0
	case int16:
		return uint64(n), n >= 0
	case int32:
		return uint64(n), n >= 0
	case int64:
		return uint64(n), n >= 0
	default:
		return 0, false
	}
}
