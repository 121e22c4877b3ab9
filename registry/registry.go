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

package registry

import (
	"encoding/binary"

	"github.com/superkkt/ofwire/schema"

	"github.com/pkg/errors"
)

type table struct {
	root    *schema.Class
	generic *schema.Class
	stable  bool
	dense   [schema.MaxVersion + 1][]schema.Kind
	sparse  [schema.MaxVersion + 1]map[uint32]schema.Kind
}

// Registry maps wire values to class kinds and back. It is immutable after
// New returns and safe for concurrent use.
type Registry struct {
	schema     *schema.Schema
	families   [numFamilies]*table
	familyOf   []Family
	rootFamily []Family
	wire       [schema.MaxVersion + 1][]int
	ext        [schema.MaxVersion + 1][]Extension
	subtypes   map[subtypeKey]subtypeLocation
	extKinds   map[extensionKey]schema.Kind
}

// New builds every lookup table of s. The returned error is a
// *schema.BuildError.
func New(s *schema.Schema) (*Registry, error) {
	r := &Registry{
		schema:     s,
		familyOf:   make([]Family, s.NumClasses()),
		rootFamily: make([]Family, s.NumClasses()),
		subtypes:   make(map[subtypeKey]subtypeLocation),
		extKinds:   make(map[extensionKey]schema.Kind),
	}
	for i := range r.familyOf {
		r.familyOf[i] = FamilyInvalid
		r.rootFamily[i] = FamilyInvalid
	}
	for _, v := range s.Versions() {
		r.wire[v] = make([]int, s.NumClasses())
		for i := range r.wire[v] {
			r.wire[v][i] = -1
		}
		r.ext[v] = make([]Extension, s.NumClasses())
	}

	for _, name := range s.FamilyNames() {
		f, ok := ParseFamily(name)
		if !ok {
			return nil, &schema.BuildError{Err: schema.ErrInvalidLayout, Detail: "unknown family " + name}
		}
		def, _ := s.Family(name)
		if err := r.buildFamily(f, def); err != nil {
			return nil, err
		}
	}

	return r, nil
}

func (r *Registry) buildFamily(f Family, def schema.FamilyDef) error {
	t := &table{
		root:   r.schema.MustClass(def.Root),
		stable: def.Stable,
	}
	if def.Experimenter != "" {
		t.generic = r.schema.MustClass(def.Experimenter)
	}
	if r.rootFamily[t.root.Kind] != FamilyInvalid {
		return &schema.BuildError{Class: t.root.Name, Err: schema.ErrInvalidLayout, Detail: "root of more than one family"}
	}
	r.rootFamily[t.root.Kind] = f
	r.families[f] = t

	type entry struct {
		kind schema.Kind
		wire uint32
	}
	entries := make([][]entry, schema.MaxVersion+1)
	size := 1
	for _, c := range t.root.Children() {
		first := int64(-1)
		for _, v := range r.schema.Versions() {
			l := r.schema.Layout(c.Kind, v)
			if l == nil {
				continue
			}
			value := uint32(l.Members[l.Index(t.root.Discriminator)].Value)
			if t.stable && first >= 0 && uint32(first) != value {
				return &schema.BuildError{Class: c.Name, Member: t.root.Discriminator, Version: v, Err: schema.ErrInconsistentWireValue, Detail: "family " + f.String()}
			}
			if first < 0 {
				first = int64(value)
			}
			if n, ok := slot(f, value); ok && n+1 > size {
				size = n + 1
			}
			entries[v] = append(entries[v], entry{kind: c.Kind, wire: value})
			r.wire[v][c.Kind] = int(value)
		}
		r.familyOf[c.Kind] = f
	}

	for _, v := range r.schema.Versions() {
		t.dense[v] = make([]schema.Kind, size)
		for i := range t.dense[v] {
			t.dense[v][i] = schema.KindInvalid
		}
		t.sparse[v] = make(map[uint32]schema.Kind)

		for _, e := range entries[v] {
			n, dense := slot(f, e.wire)
			prev, ok := t.sparse[v][sparseKey(f, e.wire)]
			if dense {
				prev, ok = t.dense[v][n], t.dense[v][n] != schema.KindInvalid
			}
			if ok {
				return &schema.BuildError{
					Class:   r.schema.Class(e.kind).Name,
					Version: v,
					Err:     schema.ErrInvalidLayout,
					Detail:  "wire value already used by " + r.schema.Class(prev).Name,
				}
			}
			if dense {
				t.dense[v][n] = e.kind
			} else {
				t.sparse[v][sparseKey(f, e.wire)] = e.kind
			}
		}
	}

	if t.generic != nil {
		return r.buildExtensions(f, t)
	}

	return nil
}

func (r *Registry) Schema() *schema.Schema {
	return r.schema
}

func (r *Registry) validFamily(f Family) *table {
	if f < 0 || f >= numFamilies {
		return nil
	}

	return r.families[f]
}

// Root returns the root class of family f, or nil if the schema does not
// declare it.
func (r *Registry) Root(f Family) *schema.Class {
	t := r.validFamily(f)
	if t == nil {
		return nil
	}

	return t.root
}

// Generic returns the generic experimenter kind of family f in version v.
func (r *Registry) Generic(f Family, v schema.Version) schema.Kind {
	t := r.validFamily(f)
	if t == nil || t.generic == nil || t.generic.Defined(v) == false || r.schema.Supports(v) == false {
		return schema.KindInvalid
	}

	return t.generic.Kind
}

// ToObjectKind returns the kind that wire value wire selects in family f and
// version v. Every failure returns schema.KindInvalid; zero is a valid kind.
func (r *Registry) ToObjectKind(f Family, wire uint32, v schema.Version) schema.Kind {
	t := r.validFamily(f)
	if t == nil || r.schema.Supports(v) == false {
		return schema.KindInvalid
	}

	if n, ok := slot(f, wire); ok {
		row := t.dense[v]
		if n >= len(row) {
			return schema.KindInvalid
		}
		return row[n]
	}
	if k, ok := t.sparse[v][sparseKey(f, wire)]; ok {
		return k
	}

	return schema.KindInvalid
}

// ToWireValue returns the discriminator value of kind k within its own
// family in version v, or -1. Extension kinds return the experimenter code
// of their family, so ToObjectKind maps that value back to the generic
// experimenter kind; the extension itself is found with ResolveExperimenter
// and the triple from ExtensionOf.
func (r *Registry) ToWireValue(k schema.Kind, v schema.Version) int {
	if r.schema.Supports(v) == false || k < 0 || int(k) >= len(r.wire[v]) {
		return -1
	}

	return r.wire[v][k]
}

// FamilyOf returns the family kind k is dispatched in.
func (r *Registry) FamilyOf(k schema.Kind) Family {
	if k < 0 || int(k) >= len(r.familyOf) {
		return FamilyInvalid
	}

	return r.familyOf[k]
}

// FamilyRootedAt returns the family whose root class is k.
func (r *Registry) FamilyRootedAt(k schema.Kind) Family {
	if k < 0 || int(k) >= len(r.rootFamily) {
		return FamilyInvalid
	}

	return r.rootFamily[k]
}

// valueIn walks up from k and returns the wire value of the first class that
// is dispatched in family f.
func (r *Registry) valueIn(f Family, k schema.Kind, v schema.Version) int {
	for c := r.schema.Class(k); c != nil; c = c.Parent {
		if r.familyOf[c.Kind] == f {
			return r.ToWireValue(c.Kind, v)
		}
	}

	return -1
}

// MessageType returns the header type of any message kind.
func (r *Registry) MessageType(k schema.Kind, v schema.Version) int {
	return r.valueIn(Message, k, v)
}

// StatsType returns the stats (multipart) type of a stats request or reply kind.
func (r *Registry) StatsType(k schema.Kind, v schema.Version) int {
	if t := r.valueIn(StatsRequest, k, v); t >= 0 {
		return t
	}

	return r.valueIn(StatsReply, k, v)
}

// FlowModCommand returns the command of a flow-mod kind.
func (r *Registry) FlowModCommand(k schema.Kind, v schema.Version) int {
	return r.valueIn(FlowMod, k, v)
}

// ResolveMessage returns the concrete kind of the message at the start of buf.
func (r *Registry) ResolveMessage(buf []byte) (schema.Kind, error) {
	if len(buf) < 8 {
		return schema.KindInvalid, errors.Wrap(ErrTruncated, "message header")
	}
	v := schema.Version(buf[0])
	if r.schema.Supports(v) == false {
		return schema.KindInvalid, errors.Wrapf(ErrUnsupportedVersion, "version %v", v)
	}
	root := r.Root(Message)
	if root == nil {
		return schema.KindInvalid, errors.Wrap(ErrNotDispatchable, "no message family")
	}

	return r.Resolve(root.Kind, v, buf)
}

// Resolve peeks at buf, which starts with an object of kind k, and returns
// its concrete kind. Virtual classes are resolved by reading their
// discriminator at its offset in version v, repeatedly, until a concrete
// class is reached. Nothing is consumed from buf.
func (r *Registry) Resolve(k schema.Kind, v schema.Version, buf []byte) (schema.Kind, error) {
	for {
		c := r.schema.Class(k)
		if c == nil {
			return schema.KindInvalid, errors.Wrapf(ErrUnknownWireValue, "kind %v", k)
		}
		if c.Virtual() == false {
			return k, nil
		}

		f := r.FamilyRootedAt(k)
		if f == FamilyInvalid {
			return schema.KindInvalid, errors.Wrap(ErrNotDispatchable, c.Name)
		}
		l := r.schema.Layout(k, v)
		if l == nil {
			return schema.KindInvalid, errors.Wrapf(ErrUnknownWireValue, "%v does not exist in version %v", c.Name, v)
		}
		off, width, _ := l.DiscriminatorOffset()
		if off+width > len(buf) {
			return schema.KindInvalid, errors.Wrapf(ErrTruncated, "%v discriminator", c.Name)
		}
		wire := readUint(buf[off : off+width])

		next := r.ToObjectKind(f, wire, v)
		if next == schema.KindInvalid {
			return schema.KindInvalid, errors.Wrapf(ErrUnknownWireValue, "%v %#x in version %v", f, wire, v)
		}
		if t := r.families[f]; t.generic != nil && next == t.generic.Kind {
			next = r.resolveExtension(f, next, v, buf)
		}
		k = next
	}
}

func readUint(b []byte) uint32 {
	switch len(b) {
	case 1:
		return uint32(b[0])
	case 2:
		return uint32(binary.BigEndian.Uint16(b))
	case 4:
		return binary.BigEndian.Uint32(b)
	default:
		var v uint32
		for _, c := range b {
			v = v<<8 | uint32(c)
		}
		return v
	}
}
