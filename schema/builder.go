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
	"strings"

	"github.com/pkg/errors"
)

// ClassDef is the input description of a class.
type ClassDef struct {
	Name          string
	Parent        string
	Discriminator string
	Experimenter  string
	Subtype       string
	Align         int
	MinLength     int
	Layouts       []LayoutDef
}

// LayoutDef maps a set of versions to a member list. A definition with Use
// set carries no members of its own: its versions share the layout declared
// for version Use.
type LayoutDef struct {
	Versions []Version
	Use      Version
	Members  []Member
}

// Builder collects class definitions and validates them into a Schema.
type Builder struct {
	versions []Version
	classes  []ClassDef
	families map[string]FamilyDef
}

func NewBuilder() *Builder {
	return &Builder{
		families: make(map[string]FamilyDef),
	}
}

func (r *Builder) SetVersions(v ...Version) *Builder {
	r.versions = append([]Version(nil), v...)
	return r
}

func (r *Builder) AddClass(def ClassDef) *Builder {
	r.classes = append(r.classes, def)
	return r
}

func (r *Builder) SetFamily(name string, def FamilyDef) *Builder {
	r.families[name] = def
	return r
}

// Build validates the definitions and computes every class layout. The
// returned error is always a *BuildError.
func (r *Builder) Build() (*Schema, error) {
	s := &Schema{
		byName:   make(map[string]*Class),
		families: make(map[string]FamilyDef),
	}
	if err := r.buildVersions(s); err != nil {
		return nil, err
	}
	if err := r.buildClasses(s); err != nil {
		return nil, err
	}
	if err := r.buildLayoutRefs(s); err != nil {
		return nil, err
	}
	if err := calculate(s); err != nil {
		return nil, err
	}
	if err := validateInheritance(s); err != nil {
		return nil, err
	}
	if err := r.buildFamilies(s); err != nil {
		return nil, err
	}

	return s, nil
}

func (r *Builder) buildVersions(s *Schema) error {
	if len(r.versions) == 0 {
		return buildError(ErrInvalidLayout, "", "", VersionInvalid, "no versions declared")
	}
	for _, v := range r.versions {
		if v.Valid() == false {
			return buildError(ErrInvalidLayout, "", "", VersionInvalid, "unknown version %v", v)
		}
		if s.supported[v] {
			continue
		}
		s.supported[v] = true
	}
	for v := Version10; v <= MaxVersion; v++ {
		if s.supported[v] {
			s.versions = append(s.versions, v)
		}
	}

	return nil
}

func (r *Builder) buildClasses(s *Schema) error {
	for i, def := range r.classes {
		if def.Name == "" {
			return buildError(ErrInvalidLayout, "", "", VersionInvalid, "class #%v has no name", i)
		}
		if _, ok := s.byName[def.Name]; ok {
			return buildError(ErrDuplicateClass, def.Name, "", VersionInvalid, "")
		}
		if def.Subtype != "" && def.Experimenter == "" {
			return buildError(ErrInvalidLayout, def.Name, def.Subtype, VersionInvalid, "subtype without an experimenter member")
		}
		if def.Align < 0 || def.MinLength < 0 {
			return buildError(ErrInvalidLayout, def.Name, "", VersionInvalid, "negative align or min_length")
		}
		c := &Class{
			Name:          def.Name,
			Kind:          Kind(i),
			Discriminator: def.Discriminator,
			Experimenter:  def.Experimenter,
			Subtype:       def.Subtype,
			Align:         def.Align,
			MinLength:     def.MinLength,
		}
		for v := range c.layoutRef {
			c.layoutRef[v] = -1
		}
		s.classes = append(s.classes, c)
		s.byName[c.Name] = c
	}

	for i, def := range r.classes {
		if def.Parent == "" {
			continue
		}
		p, ok := s.byName[def.Parent]
		if !ok {
			return buildError(ErrUnknownClass, def.Name, "", VersionInvalid, "parent %v", def.Parent)
		}
		c := s.classes[i]
		c.Parent = p
		p.children = append(p.children, c)
	}

	// Inheritance must form a forest.
	for _, c := range s.classes {
		depth := 0
		for p := c.Parent; p != nil; p = p.Parent {
			if p == c || depth > len(s.classes) {
				return buildError(ErrRecursiveStruct, c.Name, "", VersionInvalid, "inheritance cycle")
			}
			depth++
		}
	}

	return nil
}

func (r *Builder) buildLayoutRefs(s *Schema) error {
	type alias struct {
		class    *Class
		versions []Version
		use      Version
	}
	var aliases []alias

	for i, def := range r.classes {
		c := s.classes[i]
		for _, l := range def.Layouts {
			if l.Use != VersionInvalid {
				if len(l.Members) > 0 {
					return buildError(ErrInvalidLayout, c.Name, "", l.Use, "a layout alias cannot declare members")
				}
				aliases = append(aliases, alias{class: c, versions: l.Versions, use: l.Use})
				continue
			}
			ref := len(s.sets)
			s.sets = append(s.sets, append([]Member(nil), l.Members...))
			for _, v := range l.Versions {
				if err := setLayoutRef(s, c, v, ref); err != nil {
					return err
				}
			}
		}
	}

	// Aliases may point at versions that are aliases themselves.
	for len(aliases) > 0 {
		pending := aliases[:0]
		for _, a := range aliases {
			if a.class.Defined(a.use) == false {
				pending = append(pending, a)
				continue
			}
			for _, v := range a.versions {
				if err := setLayoutRef(s, a.class, v, a.class.layoutRef[a.use]); err != nil {
					return err
				}
			}
		}
		if len(pending) == len(aliases) {
			a := pending[0]
			return buildError(ErrInvalidLayout, a.class.Name, "", a.use, "layout alias refers to an undefined version")
		}
		aliases = pending
	}

	return nil
}

func setLayoutRef(s *Schema, c *Class, v Version, ref int) error {
	if s.Supports(v) == false {
		return buildError(ErrInvalidLayout, c.Name, "", v, "version is not supported by the schema")
	}
	if c.layoutRef[v] >= 0 {
		return buildError(ErrInvalidLayout, c.Name, "", v, "version has more than one layout")
	}
	c.layoutRef[v] = ref

	return nil
}

func validateInheritance(s *Schema) error {
	for _, c := range s.classes {
		if c.Parent == nil {
			continue
		}
		p := c.Parent
		if p.Virtual() == false && p.Experimenter == "" {
			return buildError(ErrInvalidLayout, c.Name, "", VersionInvalid, "parent %v is neither virtual nor an experimenter class", p.Name)
		}

		for _, v := range s.versions {
			l := s.layouts[v][c.Kind]
			if l == nil {
				continue
			}
			// Every literal an ancestor dispatches on must be present at the
			// same place in the subclass.
			for a := p; a != nil; a = a.Parent {
				al := s.layouts[v][a.Kind]
				if al == nil {
					return buildError(ErrInvalidLayout, c.Name, "", v, "ancestor %v is not defined in this version", a.Name)
				}
				name := a.Discriminator
				if a.Virtual() == false {
					name = a.Experimenter
				}
				if name == "" {
					continue
				}
				ai, ci := al.Index(name), l.Index(name)
				if ci < 0 || l.Members[ci].Role != RoleType {
					return buildError(ErrInvalidLayout, c.Name, name, v, "subclass of %v must declare a literal", a.Name)
				}
				if l.Offsets[ci] != al.Offsets[ai] || l.Widths[ci] != al.Widths[ai] {
					return buildError(ErrInvalidLayout, c.Name, name, v, "literal is not at the same place as in %v", a.Name)
				}
			}
		}
	}

	return nil
}

func (r *Builder) buildFamilies(s *Schema) error {
	for name, f := range r.families {
		root, ok := s.byName[f.Root]
		if !ok {
			return buildError(ErrUnknownClass, f.Root, "", VersionInvalid, "root of family %v", name)
		}
		if root.Virtual() == false {
			return buildError(ErrInvalidLayout, f.Root, "", VersionInvalid, "root of family %v is not virtual", name)
		}
		if f.Experimenter != "" {
			e, ok := s.byName[f.Experimenter]
			if !ok {
				return buildError(ErrUnknownClass, f.Experimenter, "", VersionInvalid, "experimenter class of family %v", name)
			}
			if e.Parent != root || e.Experimenter == "" {
				return buildError(ErrInvalidLayout, f.Experimenter, "", VersionInvalid, "not a generic experimenter class of family %v", name)
			}
		}
		s.families[name] = f
	}

	return nil
}

// wrapBuild converts an error from a helper into a BuildError with context.
func wrapBuild(err error, class, member string, v Version, detail string) *BuildError {
	if e, ok := err.(*BuildError); ok {
		return e
	}
	cause := errors.Cause(err)
	if detail == "" {
		detail = strings.TrimSuffix(err.Error(), ": "+cause.Error())
		if detail == cause.Error() {
			detail = ""
		}
	}

	return &BuildError{
		Class:   class,
		Member:  member,
		Version: v,
		Detail:  detail,
		Err:     cause,
	}
}
