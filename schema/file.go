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
	"io"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

type fileSchema struct {
	Versions []string              `toml:"versions"`
	Families map[string]fileFamily `toml:"families"`
	Classes  []fileClass           `toml:"class"`
}

type fileFamily struct {
	Root         string `toml:"root"`
	Experimenter string `toml:"experimenter"`
	Stable       bool   `toml:"stable"`
}

type fileClass struct {
	Name          string       `toml:"name"`
	Parent        string       `toml:"parent"`
	Discriminator string       `toml:"discriminator"`
	Experimenter  string       `toml:"experimenter"`
	Subtype       string       `toml:"subtype"`
	Align         int          `toml:"align"`
	MinLength     int          `toml:"min_length"`
	Layouts       []fileLayout `toml:"layout"`
}

type fileLayout struct {
	Versions []string `toml:"versions"`
	Use      string   `toml:"use"`
	Members  []string `toml:"members"`
}

// Load reads a TOML schema description and builds it. Keys the loader does
// not understand are rejected so that typos cannot silently drop a layout.
func Load(r io.Reader) (*Schema, error) {
	b, err := Parse(r)
	if err != nil {
		return nil, err
	}

	return b.Build()
}

func LoadFile(path string) (*Schema, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	s, err := Load(f)
	if err != nil {
		return nil, errors.Wrapf(err, "loading %v", path)
	}

	return s, nil
}

// Parse reads a TOML schema description into a Builder without building it.
func Parse(r io.Reader) (*Builder, error) {
	var f fileSchema
	meta, err := toml.NewDecoder(r).Decode(&f)
	if err != nil {
		return nil, errors.Wrap(err, "decoding schema file")
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return nil, buildError(ErrInvalidLayout, "", "", VersionInvalid, "unknown keys: %v", strings.Join(keys, ", "))
	}

	b := NewBuilder()
	versions, err := parseVersions(f.Versions)
	if err != nil {
		return nil, buildError(ErrInvalidLayout, "", "", VersionInvalid, "%v", err)
	}
	b.SetVersions(versions...)

	for name, v := range f.Families {
		b.SetFamily(name, FamilyDef{Root: v.Root, Experimenter: v.Experimenter, Stable: v.Stable})
	}

	for _, c := range f.Classes {
		def := ClassDef{
			Name:          c.Name,
			Parent:        c.Parent,
			Discriminator: c.Discriminator,
			Experimenter:  c.Experimenter,
			Subtype:       c.Subtype,
			Align:         c.Align,
			MinLength:     c.MinLength,
		}
		for _, l := range c.Layouts {
			layout, err := parseLayout(l)
			if err != nil {
				return nil, wrapBuild(err, c.Name, "", VersionInvalid, "")
			}
			def.Layouts = append(def.Layouts, layout)
		}
		b.AddClass(def)
	}

	return b, nil
}

func parseLayout(l fileLayout) (LayoutDef, error) {
	var err error
	def := LayoutDef{}
	if def.Versions, err = parseVersions(l.Versions); err != nil {
		return LayoutDef{}, errors.Wrap(ErrInvalidLayout, err.Error())
	}
	if l.Use != "" {
		if def.Use, err = ParseVersion(l.Use); err != nil {
			return LayoutDef{}, errors.Wrap(ErrInvalidLayout, err.Error())
		}
	}
	for _, s := range l.Members {
		m, err := ParseMember(s)
		if err != nil {
			return LayoutDef{}, err
		}
		def.Members = append(def.Members, m)
	}

	return def, nil
}

func parseVersions(names []string) ([]Version, error) {
	result := make([]Version, 0, len(names))
	for _, n := range names {
		v, err := ParseVersion(n)
		if err != nil {
			return nil, err
		}
		result = append(result, v)
	}

	return result, nil
}
