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

// Layout is the byte layout of a class in one version.
type Layout struct {
	Class   *Class
	Version Version
	Members []Member
	Types   []Type
	// Offsets holds the static byte offset of each member, or -1 once a
	// variable-length member precedes it.
	Offsets []int
	// Widths holds the static byte width of each member, or 0 for members
	// whose width is only known while decoding.
	Widths []int
	// BaseLength is the sum of all static widths, counting embedded classes
	// at their minimum aligned size.
	BaseLength int
	// MinLength is the smallest value the length member may carry.
	MinLength int
	// FixedLength is true when every instance is exactly BaseLength bytes.
	FixedLength bool

	LengthIndex        int
	DiscriminatorIndex int
	ExperimenterIndex  int
}

// Index returns the position of the named member, or -1.
func (r *Layout) Index(name string) int {
	for i, m := range r.Members {
		if m.Role != RolePad && m.Name == name {
			return i
		}
	}

	return -1
}

// Footprint is the minimum number of bytes an instance occupies inside
// another object, including external alignment.
func (r *Layout) Footprint() int {
	return alignUp(r.MinLength, r.Class.Align)
}

// LengthOffset returns the offset and width of the length member.
func (r *Layout) LengthOffset() (offset, width int, ok bool) {
	return r.fixedMember(r.LengthIndex)
}

// DiscriminatorOffset returns the offset and width of the discriminator of a
// virtual class.
func (r *Layout) DiscriminatorOffset() (offset, width int, ok bool) {
	return r.fixedMember(r.DiscriminatorIndex)
}

// ExperimenterOffset returns the offset and width of the experimenter id of
// a generic experimenter class.
func (r *Layout) ExperimenterOffset() (offset, width int, ok bool) {
	return r.fixedMember(r.ExperimenterIndex)
}

func (r *Layout) fixedMember(i int) (offset, width int, ok bool) {
	if i < 0 || r.Offsets[i] < 0 {
		return 0, 0, false
	}

	return r.Offsets[i], r.Widths[i], true
}

func alignUp(n, align int) int {
	if align <= 1 {
		return n
	}

	return (n + align - 1) / align * align
}

type calculator struct {
	schema *Schema
	active [MaxVersion + 1][]bool
}

// calculate computes the layout of every class in every version it is
// defined in.
func calculate(s *Schema) error {
	c := &calculator{schema: s}
	for _, v := range s.versions {
		s.layouts[v] = make([]*Layout, len(s.classes))
		s.fixedLen[v] = make([]int, len(s.classes))
		c.active[v] = make([]bool, len(s.classes))
	}

	for _, v := range s.versions {
		for _, class := range s.classes {
			if class.Defined(v) == false {
				s.fixedLen[v][class.Kind] = -1
				continue
			}
			l, err := c.layout(class, v)
			if err != nil {
				return err
			}
			if l.FixedLength {
				s.fixedLen[v][class.Kind] = l.BaseLength
			} else {
				s.fixedLen[v][class.Kind] = -1
			}
		}
	}

	return nil
}

func (r *calculator) layout(class *Class, v Version) (*Layout, error) {
	if l := r.schema.layouts[v][class.Kind]; l != nil {
		return l, nil
	}
	if class.Defined(v) == false {
		return nil, buildError(ErrUnknownClass, class.Name, "", v, "class is not defined in this version")
	}
	if r.active[v][class.Kind] {
		return nil, buildError(ErrRecursiveStruct, class.Name, "", v, "")
	}
	r.active[v][class.Kind] = true
	defer func() { r.active[v][class.Kind] = false }()

	members := r.schema.sets[class.layoutRef[v]]
	l := &Layout{
		Class:              class,
		Version:            v,
		Members:            members,
		Types:              make([]Type, len(members)),
		Offsets:            make([]int, len(members)),
		Widths:             make([]int, len(members)),
		LengthIndex:        -1,
		DiscriminatorIndex: -1,
		ExperimenterIndex:  -1,
	}

	offset, fixed := 0, true
	for i, m := range members {
		t, err := r.resolve(m, v)
		if err != nil {
			return nil, wrapBuild(err, class.Name, m.Name, v, "")
		}
		l.Types[i] = t

		width, known := 0, true
		switch t.Kind {
		case TypePad:
			width = m.Size
		case TypeAlign, TypeOctets:
			known = false
		case TypeList:
			// Elements are sized while decoding; only their existence matters here.
			if r.schema.byName[t.Class].Defined(v) == false {
				return nil, buildError(ErrUnknownClass, class.Name, m.Name, v, "list element %v is not defined in this version", t.Class)
			}
			known = false
		case TypeStruct:
			sub, err := r.layout(r.schema.byName[t.Class], v)
			if err != nil {
				return nil, err
			}
			width = sub.Footprint()
			known = sub.FixedLength
		default:
			width = t.Width
		}

		if fixed {
			l.Offsets[i] = offset
		} else {
			l.Offsets[i] = -1
		}
		if known {
			l.Widths[i] = width
		}
		offset += width
		if !known {
			fixed = false
		}
	}
	l.BaseLength = offset
	l.FixedLength = fixed && class.Virtual() == false
	l.MinLength = l.BaseLength
	if class.MinLength > l.MinLength {
		l.MinLength = class.MinLength
	}

	if err := r.validate(l); err != nil {
		return nil, err
	}
	r.schema.layouts[v][class.Kind] = l

	return l, nil
}

func (r *calculator) resolve(m Member, v Version) (Type, error) {
	if m.Role == RolePad {
		if m.Decl == "align" {
			return Type{Kind: TypeAlign, Name: m.Decl, Width: m.Size}, nil
		}
		return Type{Kind: TypePad, Name: m.Decl, Width: m.Size}, nil
	}

	return resolveType(m.Decl, v, func(name string) bool {
		_, ok := r.schema.byName[name]
		return ok
	})
}

func (r *calculator) validate(l *Layout) error {
	class, v := l.Class, l.Version
	seen := make(map[string]int)

	for i, m := range l.Members {
		if m.Role == RolePad {
			continue
		}
		if _, ok := seen[m.Name]; ok {
			return buildError(ErrInvalidLayout, class.Name, m.Name, v, "duplicate member name")
		}
		seen[m.Name] = i

		t := l.Types[i]
		if m.Role != RoleData && t.Kind != TypeScalar {
			return buildError(ErrInvalidLayout, class.Name, m.Name, v, "%v member must be an integer", m.Role)
		}
		switch m.Role {
		case RoleType:
			if t.Width < 8 && m.Value >= 1<<(8*uint(t.Width)) {
				return buildError(ErrInvalidLayout, class.Name, m.Name, v, "literal %#x does not fit in %v bytes", m.Value, t.Width)
			}
		case RoleLength:
			if l.LengthIndex >= 0 {
				return buildError(ErrInvalidLayout, class.Name, m.Name, v, "more than one length member")
			}
			if l.Offsets[i] < 0 {
				return buildError(ErrInvalidLayout, class.Name, m.Name, v, "length member must have a fixed offset")
			}
			l.LengthIndex = i
		case RoleFieldLength:
			j := l.Index(m.Target)
			if j <= i {
				return buildError(ErrInvalidLayout, class.Name, m.Name, v, "length target %v must be a later member", m.Target)
			}
			if k := l.Types[j].Kind; k != TypeList && k != TypeOctets {
				return buildError(ErrInvalidLayout, class.Name, m.Name, v, "length target %v is not a list or octets", m.Target)
			}
		}
	}

	if class.Virtual() {
		i, ok := seen[class.Discriminator]
		if !ok || l.Offsets[i] < 0 || l.Types[i].Kind != TypeScalar || l.Widths[i] > 4 {
			return buildError(ErrInvalidLayout, class.Name, class.Discriminator, v, "discriminator must be an integer of at most 4 bytes at a fixed offset")
		}
		l.DiscriminatorIndex = i
	}
	if class.Experimenter != "" {
		i, ok := seen[class.Experimenter]
		if !ok || l.Offsets[i] < 0 || l.Types[i].Kind != TypeScalar || l.Widths[i] != 4 {
			return buildError(ErrInvalidLayout, class.Name, class.Experimenter, v, "experimenter id must be a 4-byte integer at a fixed offset")
		}
		l.ExperimenterIndex = i
	}
	if class.Virtual() == false && l.LengthIndex < 0 && l.FixedLength == false {
		return buildError(ErrInvalidLayout, class.Name, "", v, "variable-length class has no length member")
	}

	return nil
}
