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


package openflow

import (
	"net"
	"testing"

	"github.com/superkkt/ofwire/codec"
	"github.com/superkkt/ofwire/schema"

	"github.com/davecgh/go-spew/spew"
	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func mac(t *testing.T, s string) net.HardwareAddr {
	v, err := net.ParseMAC(s)
	require.NoError(t, err)
	return v
}

func network(t *testing.T, s string) *net.IPNet {
	_, v, err := net.ParseCIDR(s)
	require.NoError(t, err)
	return v
}

// roundTripMatch sends m through a flow-mod of version v and parses the
// match of the decoded message.
func roundTripMatch(t *testing.T, m *Match, v schema.Version) (*Match, error) {
	f, err := NewFactory(Codec(), v)
	require.NoError(t, err)
	flow, err := f.NewFlowMod(FlowAdd, m)
	if err != nil {
		return nil, err
	}
	buf, err := Codec().Encode(flow)
	require.NoError(t, err)
	decoded, n, err := Codec().Decode(buf)
	require.NoError(t, err)
	require.Equal(t, len(buf), n)

	return ParseMatch(decoded.Child("match"))
}

func TestMatchRoundTrip(t *testing.T) {
	samples := []struct {
		name     string
		versions []schema.Version
		build    func(m *Match) error
	}{
		{
			name:     "wildcard",
			versions: []schema.Version{schema.Version10, schema.Version11, schema.Version12, schema.Version13},
			build:    func(m *Match) error { return nil },
		},
		{
			name:     "ethernet",
			versions: []schema.Version{schema.Version10, schema.Version11, schema.Version12, schema.Version13},
			build: func(m *Match) error {
				m.SetInPort(3)
				if err := m.SetSrcMAC(mac(t, "00:11:22:33:44:55")); err != nil {
					return err
				}
				if err := m.SetDstMAC(mac(t, "66:77:88:99:aa:bb")); err != nil {
					return err
				}
				m.SetEtherType(0x0806)
				if err := m.SetVLANID(10); err != nil {
					return err
				}
				return m.SetVLANPriority(5)
			},
		},
		{
			name:     "reserved port",
			versions: []schema.Version{schema.Version10, schema.Version11, schema.Version13},
			build: func(m *Match) error {
				// OFPP_CONTROLLER
				m.SetInPort(0xfffffffd)
				return nil
			},
		},
		{
			name:     "ipv4 tcp",
			versions: []schema.Version{schema.Version10, schema.Version11, schema.Version13},
			build: func(m *Match) error {
				m.SetEtherType(EtherTypeIPv4)
				if err := m.SetIPProtocol(IPProtocolTCP); err != nil {
					return err
				}
				if err := m.SetSrcIP(network(t, "10.0.0.0/24")); err != nil {
					return err
				}
				if err := m.SetDstIP(network(t, "192.168.1.7/32")); err != nil {
					return err
				}
				if err := m.SetSrcPort(80); err != nil {
					return err
				}
				return m.SetDstPort(8080)
			},
		},
		{
			name:     "ipv4 udp",
			versions: []schema.Version{schema.Version10, schema.Version11, schema.Version13},
			build: func(m *Match) error {
				m.SetInPort(1)
				m.SetEtherType(EtherTypeIPv4)
				if err := m.SetIPProtocol(IPProtocolUDP); err != nil {
					return err
				}
				if err := m.SetDstIP(network(t, "172.16.0.0/12")); err != nil {
					return err
				}
				return m.SetDstPort(53)
			},
		},
		{
			name:     "ipv6 udp",
			versions: []schema.Version{schema.Version12, schema.Version13},
			build: func(m *Match) error {
				m.SetEtherType(EtherTypeIPv6)
				if err := m.SetIPProtocol(IPProtocolUDP); err != nil {
					return err
				}
				if err := m.SetSrcIP(network(t, "2001:db8::/32")); err != nil {
					return err
				}
				if err := m.SetDstIP(network(t, "2001:db8::1/128")); err != nil {
					return err
				}
				return m.SetSrcPort(546)
			},
		},
	}

	for _, sample := range samples {
		for _, v := range sample.versions {
			m := NewMatch()
			require.NoError(t, sample.build(m), sample.name)

			parsed, err := roundTripMatch(t, m, v)
			require.NoError(t, err, "%v in %v", sample.name, v)
			if diff := cmp.Diff(m, parsed, cmp.AllowUnexported(Match{})); diff != "" {
				t.Fatalf("unexpected %v match in %v: %v", sample.name, v, diff)
			}
		}
	}
}

func TestMatchObject(t *testing.T) {
	m := NewMatch()
	m.SetInPort(7)
	m.SetEtherType(EtherTypeIPv4)
	require.NoError(t, m.SetVLANID(100))
	require.NoError(t, m.SetIPProtocol(IPProtocolUDP))
	require.NoError(t, m.SetSrcIP(network(t, "10.0.0.0/8")))
	require.NoError(t, m.SetDstIP(network(t, "10.1.2.3/32")))
	require.NoError(t, m.SetDstPort(53))

	f, err := NewFactory(Codec(), schema.Version13)
	require.NoError(t, err)
	obj, err := f.MatchObject(m)
	require.NoError(t, err)
	require.Equal(t, "of_match_v3", obj.Class)

	classes := []string{}
	for _, oxm := range obj.List("oxm_list") {
		classes = append(classes, oxm.Class)
	}
	expected := []string{
		"of_oxm_in_port",
		"of_oxm_eth_type",
		"of_oxm_vlan_vid",
		"of_oxm_ip_proto",
		"of_oxm_ipv4_src_masked",
		"of_oxm_ipv4_dst",
		"of_oxm_udp_dst",
	}
	require.Equal(t, expected, classes)
	vid, _ := obj.List("oxm_list")[2].Uint("value")
	require.Equal(t, uint64(100|OFPVID_PRESENT), vid)

	f, err = NewFactory(Codec(), schema.Version10)
	require.NoError(t, err)
	obj, err = f.MatchObject(m)
	require.NoError(t, err)
	require.Equal(t, "of_match_v1", obj.Class)
	w, _ := obj.Uint("wildcards")
	// Exact fields are cleared and 24 bits of the source address are wildcarded.
	expectedWildcards := uint64(OFPFW_DL_SRC | OFPFW_DL_DST | OFPFW_DL_VLAN_PCP | OFPFW_NW_TOS | OFPFW_TP_SRC | 24<<OFPFW_NW_SRC_SHIFT)
	require.Equal(t, expectedWildcards, w, spew.Sdump(obj))

	f, err = NewFactory(Codec(), schema.Version11)
	require.NoError(t, err)
	obj, err = f.MatchObject(m)
	require.NoError(t, err)
	require.Equal(t, "of_match_v2", obj.Class)
	mask, _ := obj.Get("ipv4_src_mask")
	require.Equal(t, net.IP{0, 0xff, 0xff, 0xff}, mask)
}

func TestMatchVersionLimits(t *testing.T) {
	v6 := NewMatch()
	v6.SetEtherType(EtherTypeIPv6)
	require.NoError(t, v6.SetSrcIP(network(t, "2001:db8::/64")))
	for _, v := range []schema.Version{schema.Version10, schema.Version11} {
		_, err := roundTripMatch(t, v6, v)
		require.Equal(t, ErrUnsupportedMatchField, errors.Cause(err), "IPv6 in %v", v)
	}

	port := NewMatch()
	port.SetInPort(0x10000)
	_, err := roundTripMatch(t, port, schema.Version10)
	require.Equal(t, ErrInvalidMatchFieldValue, errors.Cause(err))
	_, err = roundTripMatch(t, port, schema.Version13)
	require.NoError(t, err)
}

func TestMatchSetters(t *testing.T) {
	samples := []struct {
		name     string
		set      func(m *Match) error
		expected error
	}{
		{"short MAC", func(m *Match) error { return m.SetSrcMAC(net.HardwareAddr{1, 2, 3}) }, ErrInvalidMACAddress},
		{"long VLAN ID", func(m *Match) error { return m.SetVLANID(0x1000) }, ErrInvalidMatchFieldValue},
		{"VLAN priority", func(m *Match) error { return m.SetVLANPriority(8) }, ErrInvalidMatchFieldValue},
		{"protocol without ethernet type", func(m *Match) error { return m.SetIPProtocol(IPProtocolTCP) }, ErrUnsupportedEtherType},
		{"protocol of ARP", func(m *Match) error {
			m.SetEtherType(0x0806)
			return m.SetIPProtocol(IPProtocolTCP)
		}, ErrUnsupportedEtherType},
		{"port without protocol", func(m *Match) error {
			m.SetEtherType(EtherTypeIPv4)
			return m.SetSrcPort(80)
		}, ErrUnsupportedIPProtocol},
		{"port of ICMP", func(m *Match) error {
			m.SetEtherType(EtherTypeIPv4)
			if err := m.SetIPProtocol(1); err != nil {
				return err
			}
			return m.SetDstPort(80)
		}, ErrUnsupportedIPProtocol},
		{"IPv6 address of IPv4", func(m *Match) error {
			m.SetEtherType(EtherTypeIPv4)
			return m.SetSrcIP(network(t, "2001:db8::/32"))
		}, ErrUnsupportedEtherType},
		{"IPv4 address of IPv6", func(m *Match) error {
			m.SetEtherType(EtherTypeIPv6)
			return m.SetDstIP(network(t, "10.0.0.1/32"))
		}, ErrUnsupportedEtherType},
		{"nil address", func(m *Match) error {
			m.SetEtherType(EtherTypeIPv4)
			return m.SetDstIP(nil)
		}, ErrInvalidIPAddress},
	}

	for _, sample := range samples {
		err := sample.set(NewMatch())
		require.Equal(t, sample.expected, errors.Cause(err), sample.name)
	}

	m := NewMatch()
	m.SetEtherType(EtherTypeIPv4)
	require.NoError(t, m.SetSrcIP(&net.IPNet{IP: net.ParseIP("10.0.0.77"), Mask: net.CIDRMask(24, 32)}))
	require.Equal(t, "10.0.0.0/24", m.SrcIP().String())
	m.SetWildcardSrcIP()
	require.Nil(t, m.SrcIP())

	require.NoError(t, m.SetIPProtocol(IPProtocolTCP))
	require.NoError(t, m.SetDstPort(443))
	m.SetWildcardDstPort()
	wildcard, _ := m.DstPort()
	require.True(t, wildcard)
}

func TestParseMatchErrors(t *testing.T) {
	f13, err := NewFactory(Codec(), schema.Version13)
	require.NoError(t, err)

	metadata, err := f13.NewObject("of_oxm_metadata")
	require.NoError(t, err)
	vid, err := f13.NewObject("of_oxm_vlan_vid")
	require.NoError(t, err)
	vid.Set("value", uint16(10))

	f11, err := NewFactory(Codec(), schema.Version11)
	require.NoError(t, err)
	partial, err := f11.MatchObject(nil)
	require.NoError(t, err)
	partial.Set("eth_src_mask", net.HardwareAddr{0, 0, 0, 0xff, 0xff, 0xff})

	samples := []struct {
		name     string
		obj      func() *codec.Object
		expected error
	}{
		{"unknown OXM", func() *codec.Object {
			obj, err := f13.MatchObject(nil)
			require.NoError(t, err)
			return obj.Set("oxm_list", []*codec.Object{metadata})
		}, ErrUnsupportedMatchField},
		{"untagged VLAN", func() *codec.Object {
			obj, err := f13.MatchObject(nil)
			require.NoError(t, err)
			return obj.Set("oxm_list", []*codec.Object{vid})
		}, ErrUnsupportedMatchField},
		{"partial MAC mask", func() *codec.Object { return partial }, ErrUnsupportedMatchField},
	}

	for _, sample := range samples {
		_, err := ParseMatch(sample.obj())
		require.Equal(t, sample.expected, errors.Cause(err), sample.name)
	}

	_, err = ParseMatch(metadata)
	require.Error(t, err)
	_, err = ParseMatch(nil)
	require.Error(t, err)
}
