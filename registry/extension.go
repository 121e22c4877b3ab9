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
	"fmt"

	"github.com/superkkt/ofwire/schema"
)

const (
	ExperimenterBSN      = 0x005c16c7
	ExperimenterNicira   = 0x00002320
	ExperimenterOpenFlow = 0x000026e1
)

// ExperimenterName returns a short name of a well-known experimenter id.
func ExperimenterName(id uint32) string {
	switch id {
	case ExperimenterBSN:
		return "bsn"
	case ExperimenterNicira:
		return "nicira"
	case ExperimenterOpenFlow:
		return "openflow"
	default:
		return fmt.Sprintf("%#08x", id)
	}
}

// Extension identifies a vendor-defined class.
type Extension struct {
	IsExtension    bool
	ExperimenterID uint32
	Subtype        uint32
}

type subtypeKey struct {
	family  Family
	version schema.Version
	id      uint32
}

// Where an experimenter puts its subtype differs between experimenters:
// Nicira uses a 16-bit field, most others 32 bits.
type subtypeLocation struct {
	offset int
	width  int
}

type extensionKey struct {
	family  Family
	version schema.Version
	id      uint32
	subtype uint32
}

func (r *Registry) buildExtensions(f Family, t *table) error {
	g := t.generic
	for _, c := range g.Children() {
		if g.Subtype == "" {
			return &schema.BuildError{Class: g.Name, Err: schema.ErrInvalidLayout, Detail: "experimenter class with extensions must name its subtype member"}
		}
		r.familyOf[c.Kind] = f

		for _, v := range r.schema.Versions() {
			l := r.schema.Layout(c.Kind, v)
			if l == nil {
				continue
			}
			i := l.Index(g.Subtype)
			if i < 0 || l.Members[i].Role != schema.RoleType || l.Offsets[i] < 0 || l.Widths[i] > 4 {
				return &schema.BuildError{Class: c.Name, Member: g.Subtype, Version: v, Err: schema.ErrInvalidLayout, Detail: "extension must declare a subtype literal at a fixed offset"}
			}
			id := uint32(l.Members[l.Index(g.Experimenter)].Value)
			subtype := uint32(l.Members[i].Value)

			key := subtypeKey{family: f, version: v, id: id}
			loc := subtypeLocation{offset: l.Offsets[i], width: l.Widths[i]}
			if prev, ok := r.subtypes[key]; ok && prev != loc {
				return &schema.BuildError{Class: c.Name, Member: g.Subtype, Version: v, Err: schema.ErrInvalidLayout, Detail: "subtype location differs from other extensions of " + ExperimenterName(id)}
			}
			r.subtypes[key] = loc

			ekey := extensionKey{family: f, version: v, id: id, subtype: subtype}
			if prev, ok := r.extKinds[ekey]; ok {
				return &schema.BuildError{Class: c.Name, Version: v, Err: schema.ErrInvalidLayout, Detail: "extension already defined by " + r.schema.Class(prev).Name}
			}
			r.extKinds[ekey] = c.Kind
			r.ext[v][c.Kind] = Extension{IsExtension: true, ExperimenterID: id, Subtype: subtype}
			r.wire[v][c.Kind] = r.wire[v][g.Kind]
		}
	}

	return nil
}

// ExtensionOf returns the extension triple of kind k in version v. Kinds
// that are not vendor extensions return the zero Extension.
func (r *Registry) ExtensionOf(k schema.Kind, v schema.Version) Extension {
	if r.schema.Supports(v) == false || k < 0 || int(k) >= len(r.ext[v]) {
		return Extension{}
	}

	return r.ext[v][k]
}

// ResolveExperimenter returns the extension kind registered for the
// experimenter id and subtype, falling back to the generic experimenter kind
// of the family so that unknown vendor data is still decodable.
func (r *Registry) ResolveExperimenter(f Family, id, subtype uint32, v schema.Version) schema.Kind {
	if k, ok := r.extKinds[extensionKey{family: f, version: v, id: id, subtype: subtype}]; ok {
		return k
	}

	return r.Generic(f, v)
}

func (r *Registry) resolveExtension(f Family, generic schema.Kind, v schema.Version, buf []byte) schema.Kind {
	l := r.schema.Layout(generic, v)
	off, width, ok := l.ExperimenterOffset()
	if !ok || off+width > len(buf) {
		return generic
	}
	id := readUint(buf[off : off+width])

	loc, ok := r.subtypes[subtypeKey{family: f, version: v, id: id}]
	if !ok || loc.offset+loc.width > len(buf) {
		return generic
	}

	return r.ResolveExperimenter(f, id, readUint(buf[loc.offset:loc.offset+loc.width]), v)
}
