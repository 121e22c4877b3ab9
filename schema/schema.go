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
	"sort"
)

// Kind is the dense identifier of a class. Kinds are assigned once, in
// declaration order, when a schema is built and are never derived from wire
// values.
type Kind int

// KindInvalid is the sentinel returned by every lookup that fails.
const KindInvalid Kind = -1

// Class is a named protocol object type.
type Class struct {
	Name string
	Kind Kind
	// Parent is nil for classes that do not belong to an inheritance tree.
	Parent *Class
	// Discriminator is the member whose value selects a concrete subclass.
	// Only virtual classes have one.
	Discriminator string
	// Experimenter is the member holding the experimenter id of a generic
	// experimenter class.
	Experimenter string
	// Subtype is the member that extension subclasses of a generic
	// experimenter class use for their subtype literal.
	Subtype string
	// Align is the external alignment of the class when it is embedded in
	// another object. Zero means no alignment.
	Align int
	// MinLength is an explicit lower bound for the length member.
	MinLength int

	layoutRef [MaxVersion + 1]int
	children  []*Class
}

// Virtual returns whether the class is abstract and resolved to a subclass
// by peeking at its discriminator.
func (r *Class) Virtual() bool {
	return r.Discriminator != ""
}

func (r *Class) Children() []*Class {
	return r.children
}

// Defined returns whether the class has a layout in version v.
func (r *Class) Defined(v Version) bool {
	if v.Valid() == false {
		return false
	}

	return r.layoutRef[v] >= 0
}

// IsA returns whether r is c or one of its descendants.
func (r *Class) IsA(c *Class) bool {
	for p := r; p != nil; p = p.Parent {
		if p == c {
			return true
		}
	}

	return false
}

func (r *Class) String() string {
	return r.Name
}

// FamilyDef declares a polymorphic family: the root class whose subclasses
// are dispatched by a wire value.
type FamilyDef struct {
	Root string
	// Experimenter is the generic experimenter class of the family, if any.
	Experimenter string
	// Stable families must keep the same wire value for a class name in
	// every version that defines it.
	Stable bool
}

// Schema is an immutable, validated set of class definitions.
type Schema struct {
	versions  []Version
	supported [MaxVersion + 1]bool
	classes   []*Class
	byName    map[string]*Class
	sets      [][]Member
	layouts   [MaxVersion + 1][]*Layout
	fixedLen  [MaxVersion + 1][]int
	families  map[string]FamilyDef
}

// Versions returns the supported versions in ascending order.
func (r *Schema) Versions() []Version {
	return append([]Version(nil), r.versions...)
}

func (r *Schema) Supports(v Version) bool {
	if v.Valid() == false {
		return false
	}

	return r.supported[v]
}

// NumClasses returns the number of classes, which is also one past the largest Kind.
func (r *Schema) NumClasses() int {
	return len(r.classes)
}

func (r *Schema) Classes() []*Class {
	return append([]*Class(nil), r.classes...)
}

// Class returns the class of kind k, or nil if k is out of range.
func (r *Schema) Class(k Kind) *Class {
	if k < 0 || int(k) >= len(r.classes) {
		return nil
	}

	return r.classes[k]
}

func (r *Schema) ClassByName(name string) (*Class, bool) {
	c, ok := r.byName[name]
	return c, ok
}

// MustClass is ClassByName for names known at compile time. It panics if the
// class does not exist.
func (r *Schema) MustClass(name string) *Class {
	c, ok := r.byName[name]
	if !ok {
		panic(fmt.Sprintf("unknown class: %v", name))
	}

	return c
}

// MembersForVersion returns the member list of class c in version v. Versions
// that share a layout return the same slice. The result must not be modified.
func (r *Schema) MembersForVersion(c *Class, v Version) ([]Member, bool) {
	if c.Defined(v) == false {
		return nil, false
	}

	return r.sets[c.layoutRef[v]], true
}

// Layout returns the computed layout of kind k in version v, or nil if the
// class does not exist in that version.
func (r *Schema) Layout(k Kind, v Version) *Layout {
	if r.Supports(v) == false || k < 0 || int(k) >= len(r.layouts[v]) {
		return nil
	}

	return r.layouts[v][k]
}

// FixedLength returns the wire length of kind k in version v if the class
// is fixed-length there.
func (r *Schema) FixedLength(k Kind, v Version) (int, bool) {
	if r.Supports(v) == false || k < 0 || int(k) >= len(r.fixedLen[v]) {
		return 0, false
	}
	n := r.fixedLen[v][k]
	if n < 0 {
		return 0, false
	}

	return n, true
}

func (r *Schema) Family(name string) (FamilyDef, bool) {
	f, ok := r.families[name]
	return f, ok
}

// FamilyNames returns the declared family names in sorted order.
func (r *Schema) FamilyNames() []string {
	names := make([]string, 0, len(r.families))
	for k := range r.families {
		names = append(names, k)
	}
	sort.Strings(names)

	return names
}
