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
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestParseMember(t *testing.T) {
	samples := []struct {
		Decl     string
		Expected Member
		Invalid  bool
	}{
		{Decl: "uint32_t xid", Expected: Member{Name: "xid", Decl: "uint32_t", Role: RoleData}},
		{Decl: "uint8_t type == 14", Expected: Member{Name: "type", Decl: "uint8_t", Role: RoleType, Value: 14}},
		{Decl: "uint32_t experimenter == 0x5c16c7", Expected: Member{Name: "experimenter", Decl: "uint32_t", Role: RoleType, Value: 0x5c16c7}},
		{Decl: "uint16_t length @length", Expected: Member{Name: "length", Decl: "uint16_t", Role: RoleLength}},
		{Decl: "uint8_t version @version", Expected: Member{Name: "version", Decl: "uint8_t", Role: RoleVersion}},
		{Decl: "uint16_t actions_len @length(actions)", Expected: Member{Name: "actions_len", Decl: "uint16_t", Role: RoleFieldLength, Target: "actions"}},
		{Decl: "pad(6)", Expected: Member{Decl: "pad", Role: RolePad, Size: 6}},
		{Decl: "  align(8) ", Expected: Member{Decl: "align", Role: RolePad, Size: 8}},
		{Decl: "pad(0)", Invalid: true},
		{Decl: "uint8_t", Invalid: true},
		{Decl: "uint8_t type == x", Invalid: true},
		{Decl: "uint8_t type @size", Invalid: true},
		{Decl: "uint16_t len @length()", Invalid: true},
	}

	for _, v := range samples {
		m, err := ParseMember(v.Decl)
		if v.Invalid {
			if errors.Cause(err) != ErrInvalidMember {
				t.Fatalf("expected an invalid member error for %q, got %v", v.Decl, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", v.Decl, err)
		}
		if cmp.Equal(m, v.Expected) == false {
			t.Fatalf("unexpected member for %q: diff=%v", v.Decl, cmp.Diff(v.Expected, m))
		}
	}
}

func TestParseVersion(t *testing.T) {
	v, err := ParseVersion("1.3")
	require.NoError(t, err)
	require.Equal(t, Version13, v)
	require.Equal(t, "1.3", v.String())

	_, err = ParseVersion("2.0")
	require.Error(t, err)
	require.Equal(t, "0x07", Version(7).String())
}

func header(typ string) []string {
	return []string{"uint8_t version @version", "uint8_t type" + typ, "uint16_t length @length", "uint32_t xid"}
}

func members(groups ...[]string) []Member {
	var decl []string
	for _, g := range groups {
		decl = append(decl, g...)
	}

	return MustParseMembers(decl...)
}

func all(v ...Version) []Version {
	return v
}

// matchSchema has a variable-length, externally aligned match embedded in a
// message, the way extended matches are carried from 1.2 on.
func matchSchema() *Builder {
	b := NewBuilder().SetVersions(Version10, Version12, Version13)
	b.AddClass(ClassDef{
		Name:          "of_header",
		Discriminator: "type",
		Layouts:       []LayoutDef{{Versions: all(Version10, Version12, Version13), Members: members(header(""))}},
	})
	b.AddClass(ClassDef{
		Name: "of_match_v1",
		Layouts: []LayoutDef{{Versions: all(Version10), Members: members([]string{
			"of_wc_bmap_t wildcards", "of_port_no_t in_port", "of_mac_addr_t eth_src", "of_mac_addr_t eth_dst",
			"uint16_t vlan_vid", "uint8_t vlan_pcp", "pad(1)", "uint16_t eth_type", "uint8_t ip_dscp",
			"uint8_t ip_proto", "pad(2)", "of_ipv4_t ipv4_src", "of_ipv4_t ipv4_dst", "uint16_t tcp_src", "uint16_t tcp_dst",
		})}},
	})
	b.AddClass(ClassDef{
		Name:  "of_match_v3",
		Align: 8,
		Layouts: []LayoutDef{{Versions: all(Version12, Version13), Members: members([]string{
			"uint16_t type == 1", "uint16_t length @length", "list(of_oxm_t) oxm_list",
		})}},
	})
	b.AddClass(ClassDef{
		Name:          "of_oxm",
		Discriminator: "type_len",
		Layouts:       []LayoutDef{{Versions: all(Version12, Version13), Members: members([]string{"uint32_t type_len"})}},
	})
	b.AddClass(ClassDef{
		Name:   "of_flow_removed",
		Parent: "of_header",
		Layouts: []LayoutDef{
			{Versions: all(Version10), Members: members(header(" == 11"), []string{"of_match_t match", "uint64_t cookie"})},
			{Versions: all(Version12), Members: members(header(" == 11"), []string{"uint64_t cookie", "of_match_t match"})},
			{Versions: all(Version13), Use: Version12},
		},
	})

	return b
}

func TestLayoutAlias(t *testing.T) {
	s, err := matchSchema().Build()
	require.NoError(t, err)

	c := s.MustClass("of_flow_removed")
	m12, ok := s.MembersForVersion(c, Version12)
	require.True(t, ok)
	m13, ok := s.MembersForVersion(c, Version13)
	require.True(t, ok)
	// Both versions resolve to the same shared member list.
	require.True(t, &m12[0] == &m13[0])

	m10, ok := s.MembersForVersion(c, Version10)
	require.True(t, ok)
	require.NotEqual(t, len(m10), 0)
	require.False(t, &m10[0] == &m12[0])

	_, ok = s.MembersForVersion(c, Version11)
	require.False(t, ok)
}

func TestExtendedMatchLength(t *testing.T) {
	s, err := matchSchema().Build()
	require.NoError(t, err)

	m := s.Layout(s.MustClass("of_match_v3").Kind, Version13)
	require.NotNil(t, m)
	require.False(t, m.FixedLength)
	require.Equal(t, 4, m.BaseLength)
	require.Equal(t, 4, m.MinLength)
	require.Equal(t, 8, m.Footprint())
	_, fixed := s.FixedLength(m.Class.Kind, Version13)
	require.False(t, fixed)

	// The embedded match contributes its aligned minimum and makes every
	// later offset unknown.
	fr := s.Layout(s.MustClass("of_flow_removed").Kind, Version13)
	require.Equal(t, 8+8+8, fr.BaseLength)
	require.False(t, fr.FixedLength)
	require.Equal(t, []int{0, 1, 2, 4, 8, 16}, fr.Offsets)
	require.Equal(t, 0, fr.Widths[5])

	v1 := s.Layout(s.MustClass("of_match_v1").Kind, Version10)
	require.True(t, v1.FixedLength)
	require.Equal(t, 40, v1.BaseLength)

	fr10 := s.Layout(s.MustClass("of_flow_removed").Kind, Version10)
	require.True(t, fr10.FixedLength)
	require.Equal(t, 8+40+8, fr10.BaseLength)
	require.Equal(t, []int{0, 1, 2, 4, 8, 48}, fr10.Offsets)
	n, ok := s.FixedLength(fr10.Class.Kind, Version10)
	require.True(t, ok)
	require.Equal(t, 56, n)
}

func TestMixedTypeWidth(t *testing.T) {
	s, err := matchSchema().Build()
	require.NoError(t, err)

	l := s.Layout(s.MustClass("of_match_v1").Kind, Version10)
	i := l.Index("in_port")
	require.Equal(t, 2, l.Widths[i])
	require.Equal(t, "uint16_t", l.Types[i].Name)
	require.Equal(t, 4, l.Widths[l.Index("wildcards")])
}

func TestBuildErrors(t *testing.T) {
	samples := []struct {
		Name     string
		Classes  []ClassDef
		Expected error
	}{
		{
			Name: "unknown type",
			Classes: []ClassDef{
				{Name: "of_a", Layouts: []LayoutDef{{Versions: all(Version13), Members: MustParseMembers("of_foo_t foo")}}},
			},
			Expected: ErrUnknownType,
		},
		{
			Name: "array of wide elements",
			Classes: []ClassDef{
				{Name: "of_a", Layouts: []LayoutDef{{Versions: all(Version13), Members: MustParseMembers("uint16_t[4] values")}}},
			},
			Expected: ErrUnknownType,
		},
		{
			Name: "recursive struct",
			Classes: []ClassDef{
				{Name: "of_a", Layouts: []LayoutDef{{Versions: all(Version13), Members: MustParseMembers("uint8_t x", "of_b_t b")}}},
				{Name: "of_b", Layouts: []LayoutDef{{Versions: all(Version13), Members: MustParseMembers("of_a_t a")}}},
			},
			Expected: ErrRecursiveStruct,
		},
		{
			Name: "unknown list element",
			Classes: []ClassDef{
				{Name: "of_a", Layouts: []LayoutDef{{Versions: all(Version13), Members: MustParseMembers("uint16_t len @length", "list(of_b_t) b")}}},
			},
			Expected: ErrUnknownClass,
		},
		{
			Name: "duplicate class",
			Classes: []ClassDef{
				{Name: "of_a", Layouts: []LayoutDef{{Versions: all(Version13), Members: MustParseMembers("uint8_t x")}}},
				{Name: "of_a", Layouts: []LayoutDef{{Versions: all(Version13), Members: MustParseMembers("uint8_t x")}}},
			},
			Expected: ErrDuplicateClass,
		},
		{
			Name: "variable without length",
			Classes: []ClassDef{
				{Name: "of_a", Layouts: []LayoutDef{{Versions: all(Version13), Members: MustParseMembers("uint8_t x", "of_octets_t data")}}},
			},
			Expected: ErrInvalidLayout,
		},
		{
			Name: "alias to undefined version",
			Classes: []ClassDef{
				{Name: "of_a", Layouts: []LayoutDef{{Versions: all(Version13), Use: Version12}}},
			},
			Expected: ErrInvalidLayout,
		},
		{
			Name: "unsupported version",
			Classes: []ClassDef{
				{Name: "of_a", Layouts: []LayoutDef{{Versions: all(Version15), Members: MustParseMembers("uint8_t x")}}},
			},
			Expected: ErrInvalidLayout,
		},
		{
			Name: "literal overflow",
			Classes: []ClassDef{
				{Name: "of_a", Layouts: []LayoutDef{{Versions: all(Version13), Members: MustParseMembers("uint8_t x == 0x100")}}},
			},
			Expected: ErrInvalidLayout,
		},
		{
			Name: "missing discriminator literal",
			Classes: []ClassDef{
				{Name: "of_a", Discriminator: "type", Layouts: []LayoutDef{{Versions: all(Version13), Members: MustParseMembers("uint16_t type", "uint16_t len")}}},
				{Name: "of_b", Parent: "of_a", Layouts: []LayoutDef{{Versions: all(Version13), Members: MustParseMembers("uint16_t type", "uint16_t len")}}},
			},
			Expected: ErrInvalidLayout,
		},
		{
			Name: "field length target before the length",
			Classes: []ClassDef{
				{Name: "of_a", Layouts: []LayoutDef{{Versions: all(Version13), Members: MustParseMembers("uint16_t len @length", "of_octets_t data", "uint16_t data_len @length(data)")}}},
			},
			Expected: ErrInvalidLayout,
		},
		{
			Name: "unknown parent",
			Classes: []ClassDef{
				{Name: "of_a", Parent: "of_z", Layouts: []LayoutDef{{Versions: all(Version13), Members: MustParseMembers("uint8_t x")}}},
			},
			Expected: ErrUnknownClass,
		},
	}

	for _, v := range samples {
		b := NewBuilder().SetVersions(Version12, Version13)
		for _, c := range v.Classes {
			b.AddClass(c)
		}
		_, err := b.Build()
		if err == nil {
			t.Fatalf("%v: expected a build error", v.Name)
		}
		if _, ok := err.(*BuildError); !ok {
			t.Fatalf("%v: unexpected error type %T", v.Name, err)
		}
		if errors.Cause(err) != v.Expected {
			t.Fatalf("%v: unexpected error: expected=%v, actual=%v", v.Name, v.Expected, err)
		}
	}
}

func TestBuildErrorMessage(t *testing.T) {
	b := NewBuilder().SetVersions(Version13)
	b.AddClass(ClassDef{Name: "of_a", Layouts: []LayoutDef{{Versions: all(Version13), Members: MustParseMembers("of_foo_t foo")}}})
	_, err := b.Build()
	require.Error(t, err)
	require.Equal(t, "schema: of_a.foo (1.3): unknown member type: of_foo_t", err.Error())
}

const sampleFile = `
versions = ["1.0", "1.3"]

[families.action]
root = "of_action"
experimenter = "of_action_experimenter"

[[class]]
name = "of_action"
discriminator = "type"

  [[class.layout]]
  versions = ["1.0", "1.3"]
  members = ["uint16_t type", "uint16_t len", "pad(4)"]

[[class]]
name = "of_action_experimenter"
parent = "of_action"
experimenter = "experimenter"
subtype = "subtype"

  [[class.layout]]
  versions = ["1.0"]
  members = ["uint16_t type == 0xffff", "uint16_t len @length", "uint32_t experimenter", "of_octets_t data"]

  [[class.layout]]
  versions = ["1.3"]
  use = "1.0"
`

func TestLoad(t *testing.T) {
	s, err := Load(strings.NewReader(sampleFile))
	require.NoError(t, err)
	require.Equal(t, []Version{Version10, Version13}, s.Versions())
	require.True(t, s.Supports(Version13))
	require.False(t, s.Supports(Version12))

	f, ok := s.Family("action")
	require.True(t, ok)
	require.Equal(t, FamilyDef{Root: "of_action", Experimenter: "of_action_experimenter"}, f)

	e := s.MustClass("of_action_experimenter")
	require.Equal(t, s.MustClass("of_action"), e.Parent)
	l := s.Layout(e.Kind, Version13)
	require.NotNil(t, l)
	off, width, ok := l.ExperimenterOffset()
	require.True(t, ok)
	require.Equal(t, 4, off)
	require.Equal(t, 4, width)
	require.Equal(t, 8, l.MinLength)
}

func TestLoadUnknownKey(t *testing.T) {
	_, err := Load(strings.NewReader(sampleFile + "\n[[class]]\nname = \"of_x\"\nalign8 = true\n"))
	require.Error(t, err)
	require.Equal(t, ErrInvalidLayout, errors.Cause(err))
}
