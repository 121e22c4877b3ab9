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
	"bytes"
	"net"

	"github.com/superkkt/ofwire/codec"
	"github.com/superkkt/ofwire/schema"

	"github.com/pkg/errors"
)

const (
	EtherTypeIPv4 = 0x0800
	EtherTypeIPv6 = 0x86DD

	IPProtocolTCP = 0x06
	IPProtocolUDP = 0x11
)

// Wildcards of OpenFlow 1.0.
const (
	OFPFW_IN_PORT      = 1 << 0  /* Switch input port. */
	OFPFW_DL_VLAN      = 1 << 1  /* VLAN id. */
	OFPFW_DL_SRC       = 1 << 2  /* Ethernet source address. */
	OFPFW_DL_DST       = 1 << 3  /* Ethernet destination address. */
	OFPFW_DL_TYPE      = 1 << 4  /* Ethernet frame type. */
	OFPFW_NW_PROTO     = 1 << 5  /* IP protocol. */
	OFPFW_TP_SRC       = 1 << 6  /* TCP/UDP source port. */
	OFPFW_TP_DST       = 1 << 7  /* TCP/UDP destination port. */
	OFPFW_NW_SRC_SHIFT = 8
	OFPFW_NW_DST_SHIFT = 14
	OFPFW_DL_VLAN_PCP  = 1 << 20 /* VLAN priority. */
	OFPFW_NW_TOS       = 1 << 21 /* IP ToS (DSCP field, 6 bits). */
	OFPFW_ALL          = (1 << 22) - 1
)

// Wildcards of OpenFlow 1.1. Addresses and metadata are wildcarded by masks.
const (
	OFPFW11_IN_PORT     = 1 << 0
	OFPFW11_DL_VLAN     = 1 << 1
	OFPFW11_DL_VLAN_PCP = 1 << 2
	OFPFW11_DL_TYPE     = 1 << 3
	OFPFW11_NW_TOS      = 1 << 4
	OFPFW11_NW_PROTO    = 1 << 5
	OFPFW11_TP_SRC      = 1 << 6
	OFPFW11_TP_DST      = 1 << 7
	OFPFW11_MPLS_LABEL  = 1 << 8
	OFPFW11_MPLS_TC     = 1 << 9
	OFPFW11_ALL         = (1 << 10) - 1
)

const (
	// VLAN ID in an OXM carries this bit when a VLAN tag is present.
	OFPVID_PRESENT = 0x1000

	// Reserved port numbers start here in 1.0 and in later versions.
	of10PortMax = 0xff00
	of11PortMax = 0xffffff00
)

var (
	ErrUnsupportedEtherType   = errors.New("unsupported ethernet type")
	ErrUnsupportedIPProtocol  = errors.New("unsupported IP protocol")
	ErrInvalidMACAddress      = errors.New("invalid MAC address")
	ErrInvalidIPAddress       = errors.New("invalid IP address")
	ErrUnsupportedMatchField  = errors.New("unsupported match field")
	ErrInvalidMatchFieldValue = errors.New("invalid match field value")
)

type matchField uint16

const (
	fieldInPort matchField = 1 << iota
	fieldSrcMAC
	fieldDstMAC
	fieldEtherType
	fieldVLANID
	fieldVLANPriority
	fieldIPProtocol
	fieldSrcPort
	fieldDstPort
)

// Match is a flow match independent of the protocol version. A field that
// is never set is wildcarded. Factory.MatchObject and ParseMatch convert it
// from and to the match class of each version.
type Match struct {
	fields       matchField
	inPort       uint32
	srcMAC       net.HardwareAddr
	dstMAC       net.HardwareAddr
	etherType    uint16
	vlanID       uint16
	vlanPriority uint8
	protocol     uint8
	srcIP        *net.IPNet
	dstIP        *net.IPNet
	srcPort      uint16
	dstPort      uint16
}

// NewMatch returns a Match whose fields are all wildcarded.
func NewMatch() *Match {
	return &Match{}
}

func (r *Match) has(f matchField) bool {
	return r.fields&f != 0
}

func (r *Match) SetWildcardInPort() {
	r.inPort = 0
	r.fields &^= fieldInPort
}

// SetInPort sets switch port number. Reserved ports use the 32-bit numbering
// of OpenFlow 1.1 and later.
func (r *Match) SetInPort(port uint32) {
	r.inPort = port
	r.fields |= fieldInPort
}

func (r *Match) InPort() (wildcard bool, port uint32) {
	return !r.has(fieldInPort), r.inPort
}

func (r *Match) SetWildcardSrcMAC() {
	r.srcMAC = nil
	r.fields &^= fieldSrcMAC
}

func (r *Match) SetSrcMAC(mac net.HardwareAddr) error {
	if len(mac) != 6 {
		return errors.Wrap(ErrInvalidMACAddress, "SetSrcMAC")
	}
	r.srcMAC = copyMAC(mac)
	r.fields |= fieldSrcMAC

	return nil
}

func (r *Match) SrcMAC() (wildcard bool, mac net.HardwareAddr) {
	return !r.has(fieldSrcMAC), r.srcMAC
}

func (r *Match) SetWildcardDstMAC() {
	r.dstMAC = nil
	r.fields &^= fieldDstMAC
}

func (r *Match) SetDstMAC(mac net.HardwareAddr) error {
	if len(mac) != 6 {
		return errors.Wrap(ErrInvalidMACAddress, "SetDstMAC")
	}
	r.dstMAC = copyMAC(mac)
	r.fields |= fieldDstMAC

	return nil
}

func (r *Match) DstMAC() (wildcard bool, mac net.HardwareAddr) {
	return !r.has(fieldDstMAC), r.dstMAC
}

func (r *Match) SetWildcardEtherType() {
	r.etherType = 0
	r.fields &^= fieldEtherType
}

func (r *Match) SetEtherType(t uint16) {
	r.etherType = t
	r.fields |= fieldEtherType
}

func (r *Match) EtherType() (wildcard bool, etherType uint16) {
	return !r.has(fieldEtherType), r.etherType
}

func (r *Match) SetWildcardVLANID() {
	r.vlanID = 0
	r.fields &^= fieldVLANID
}

func (r *Match) SetVLANID(id uint16) error {
	if id > 0x0fff {
		return errors.Wrapf(ErrInvalidMatchFieldValue, "SetVLANID: %v", id)
	}
	r.vlanID = id
	r.fields |= fieldVLANID

	return nil
}

func (r *Match) VLANID() (wildcard bool, vlanID uint16) {
	return !r.has(fieldVLANID), r.vlanID
}

func (r *Match) SetWildcardVLANPriority() {
	r.vlanPriority = 0
	r.fields &^= fieldVLANPriority
}

func (r *Match) SetVLANPriority(p uint8) error {
	if p > 7 {
		return errors.Wrapf(ErrInvalidMatchFieldValue, "SetVLANPriority: %v", p)
	}
	r.vlanPriority = p
	r.fields |= fieldVLANPriority

	return nil
}

func (r *Match) VLANPriority() (wildcard bool, priority uint8) {
	return !r.has(fieldVLANPriority), r.vlanPriority
}

func (r *Match) isIP() bool {
	return r.has(fieldEtherType) && (r.etherType == EtherTypeIPv4 || r.etherType == EtherTypeIPv6)
}

func (r *Match) SetWildcardIPProtocol() {
	r.protocol = 0
	r.fields &^= fieldIPProtocol
}

// SetIPProtocol requires the IPv4 or IPv6 ethernet type.
func (r *Match) SetIPProtocol(p uint8) error {
	if r.isIP() == false {
		return errors.Wrap(ErrUnsupportedEtherType, "SetIPProtocol")
	}
	r.protocol = p
	r.fields |= fieldIPProtocol

	return nil
}

func (r *Match) IPProtocol() (wildcard bool, protocol uint8) {
	return !r.has(fieldIPProtocol), r.protocol
}

func (r *Match) SetWildcardSrcIP() {
	r.srcIP = nil
}

// SetSrcIP sets the source network. The ethernet type should match the
// address family of ip.
func (r *Match) SetSrcIP(ip *net.IPNet) error {
	n, err := r.network(ip)
	if err != nil {
		return errors.Wrap(err, "SetSrcIP")
	}
	r.srcIP = n

	return nil
}

// SrcIP returns nil if the source address is wildcarded.
func (r *Match) SrcIP() *net.IPNet {
	return r.srcIP
}

func (r *Match) SetWildcardDstIP() {
	r.dstIP = nil
}

// SetDstIP sets the destination network. The ethernet type should match the
// address family of ip.
func (r *Match) SetDstIP(ip *net.IPNet) error {
	n, err := r.network(ip)
	if err != nil {
		return errors.Wrap(err, "SetDstIP")
	}
	r.dstIP = n

	return nil
}

// DstIP returns nil if the destination address is wildcarded.
func (r *Match) DstIP() *net.IPNet {
	return r.dstIP
}

func (r *Match) network(ip *net.IPNet) (*net.IPNet, error) {
	if ip == nil || len(ip.IP) == 0 {
		return nil, ErrInvalidIPAddress
	}

	etherType := uint16(EtherTypeIPv6)
	addr, mask := ip.IP.To16(), ip.Mask
	if v4 := ip.IP.To4(); v4 != nil {
		etherType = EtherTypeIPv4
		addr = v4
		if len(mask) == net.IPv6len {
			mask = mask[12:]
		}
	}
	if addr == nil || len(mask) != len(addr) {
		return nil, ErrInvalidIPAddress
	}
	if r.has(fieldEtherType) == false || r.etherType != etherType {
		return nil, ErrUnsupportedEtherType
	}

	return newNetwork(addr, mask), nil
}

func (r *Match) isTransport() bool {
	return r.has(fieldIPProtocol) && (r.protocol == IPProtocolTCP || r.protocol == IPProtocolUDP)
}

func (r *Match) SetWildcardSrcPort() {
	r.srcPort = 0
	r.fields &^= fieldSrcPort
}

// SetSrcPort sets protocol (TCP or UDP) source port number
func (r *Match) SetSrcPort(p uint16) error {
	if r.isTransport() == false {
		return errors.Wrap(ErrUnsupportedIPProtocol, "SetSrcPort")
	}
	r.srcPort = p
	r.fields |= fieldSrcPort

	return nil
}

// SrcPort returns protocol (TCP or UDP) source port number
func (r *Match) SrcPort() (wildcard bool, port uint16) {
	return !r.has(fieldSrcPort), r.srcPort
}

func (r *Match) SetWildcardDstPort() {
	r.dstPort = 0
	r.fields &^= fieldDstPort
}

// SetDstPort sets protocol (TCP or UDP) destination port number
func (r *Match) SetDstPort(p uint16) error {
	if r.isTransport() == false {
		return errors.Wrap(ErrUnsupportedIPProtocol, "SetDstPort")
	}
	r.dstPort = p
	r.fields |= fieldDstPort

	return nil
}

// DstPort returns protocol (TCP or UDP) destination port number
func (r *Match) DstPort() (wildcard bool, port uint16) {
	return !r.has(fieldDstPort), r.dstPort
}

func copyMAC(mac net.HardwareAddr) net.HardwareAddr {
	v := make(net.HardwareAddr, len(mac))
	copy(v, mac)
	return v
}

func newNetwork(addr net.IP, mask net.IPMask) *net.IPNet {
	m := make(net.IPMask, len(mask))
	copy(m, mask)
	return &net.IPNet{IP: addr.Mask(m), Mask: m}
}

func invertMask(mask []byte) net.IPMask {
	v := make(net.IPMask, len(mask))
	for i := range mask {
		v[i] = ^mask[i]
	}
	return v
}

func isFilled(b []byte, c byte) bool {
	if len(b) == 0 {
		return false
	}
	for _, v := range b {
		if v != c {
			return false
		}
	}
	return true
}

// MatchObject converts m into the match class of the factory version:
// of_match_v1 for 1.0, of_match_v2 for 1.1 and of_match_v3 from 1.2 on.
func (r *Factory) MatchObject(m *Match) (*codec.Object, error) {
	if m == nil {
		m = NewMatch()
	}

	switch {
	case r.version == schema.Version10:
		obj, err := r.NewObject("of_match_v1")
		if err != nil {
			return nil, err
		}
		return obj, m.marshalV1(obj)
	case r.version == schema.Version11:
		obj, err := r.NewObject("of_match_v2")
		if err != nil {
			return nil, err
		}
		return obj, m.marshalV2(obj)
	default:
		obj, err := r.NewObject("of_match_v3")
		if err != nil {
			return nil, err
		}
		oxms, err := m.marshalOXM(r)
		if err != nil {
			return nil, err
		}
		return obj.Set("oxm_list", oxms), nil
	}
}

func (r *Match) portV1() (uint16, error) {
	switch {
	case r.inPort >= of11PortMax:
		return uint16(r.inPort - of11PortMax + of10PortMax), nil
	case r.inPort >= of10PortMax:
		return 0, errors.Wrapf(ErrInvalidMatchFieldValue, "in_port %v does not fit in OpenFlow 1.0", r.inPort)
	default:
		return uint16(r.inPort), nil
	}
}

func wildcardBits(ip *net.IPNet) (uint32, error) {
	if ip == nil {
		return 32, nil
	}
	ones, bits := ip.Mask.Size()
	if bits != 32 {
		return 0, errors.Wrap(ErrUnsupportedMatchField, "OpenFlow 1.0 matches only IPv4 prefixes")
	}
	return uint32(32 - ones), nil
}

func (r *Match) marshalV1(obj *codec.Object) error {
	w := uint32(OFPFW_ALL)
	if r.has(fieldInPort) {
		port, err := r.portV1()
		if err != nil {
			return err
		}
		w &^= OFPFW_IN_PORT
		obj.Set("in_port", port)
	}
	if r.has(fieldSrcMAC) {
		w &^= OFPFW_DL_SRC
		obj.Set("eth_src", r.srcMAC)
	}
	if r.has(fieldDstMAC) {
		w &^= OFPFW_DL_DST
		obj.Set("eth_dst", r.dstMAC)
	}
	if r.has(fieldVLANID) {
		w &^= OFPFW_DL_VLAN
		obj.Set("vlan_vid", r.vlanID)
	}
	if r.has(fieldVLANPriority) {
		w &^= OFPFW_DL_VLAN_PCP
		obj.Set("vlan_pcp", r.vlanPriority)
	}
	if r.has(fieldEtherType) {
		w &^= OFPFW_DL_TYPE
		obj.Set("eth_type", r.etherType)
	}
	if r.has(fieldIPProtocol) {
		w &^= OFPFW_NW_PROTO
		obj.Set("ip_proto", r.protocol)
	}

	src, err := wildcardBits(r.srcIP)
	if err != nil {
		return err
	}
	dst, err := wildcardBits(r.dstIP)
	if err != nil {
		return err
	}
	w &^= 0x3f<<OFPFW_NW_SRC_SHIFT | 0x3f<<OFPFW_NW_DST_SHIFT
	w |= src<<OFPFW_NW_SRC_SHIFT | dst<<OFPFW_NW_DST_SHIFT
	if r.srcIP != nil {
		obj.Set("ipv4_src", r.srcIP.IP)
	}
	if r.dstIP != nil {
		obj.Set("ipv4_dst", r.dstIP.IP)
	}

	if r.has(fieldSrcPort) {
		w &^= OFPFW_TP_SRC
		obj.Set("tcp_src", r.srcPort)
	}
	if r.has(fieldDstPort) {
		w &^= OFPFW_TP_DST
		obj.Set("tcp_dst", r.dstPort)
	}
	obj.Set("wildcards", w)

	return nil
}

func maskV2(mac net.HardwareAddr, exact bool) (value, mask net.HardwareAddr) {
	if exact {
		return mac, make(net.HardwareAddr, 6)
	}
	return make(net.HardwareAddr, 6), net.HardwareAddr(bytes.Repeat([]byte{0xff}, 6))
}

func networkV2(ip *net.IPNet) (value, mask net.IP, err error) {
	if ip == nil {
		return make(net.IP, net.IPv4len), net.IP(bytes.Repeat([]byte{0xff}, net.IPv4len)), nil
	}
	if len(ip.IP) != net.IPv4len {
		return nil, nil, errors.Wrap(ErrUnsupportedMatchField, "OpenFlow 1.1 matches only IPv4 addresses")
	}
	// Wildcarded bits are set in OpenFlow 1.1.
	return ip.IP, net.IP(invertMask(ip.Mask)), nil
}

func (r *Match) marshalV2(obj *codec.Object) error {
	w := uint32(OFPFW11_ALL)
	if r.has(fieldInPort) {
		w &^= OFPFW11_IN_PORT
		obj.Set("in_port", r.inPort)
	}

	src, srcMask := maskV2(r.srcMAC, r.has(fieldSrcMAC))
	dst, dstMask := maskV2(r.dstMAC, r.has(fieldDstMAC))
	obj.Set("eth_src", src).Set("eth_src_mask", srcMask)
	obj.Set("eth_dst", dst).Set("eth_dst_mask", dstMask)

	if r.has(fieldVLANID) {
		w &^= OFPFW11_DL_VLAN
		obj.Set("vlan_vid", r.vlanID)
	}
	if r.has(fieldVLANPriority) {
		w &^= OFPFW11_DL_VLAN_PCP
		obj.Set("vlan_pcp", r.vlanPriority)
	}
	if r.has(fieldEtherType) {
		w &^= OFPFW11_DL_TYPE
		obj.Set("eth_type", r.etherType)
	}
	if r.has(fieldIPProtocol) {
		w &^= OFPFW11_NW_PROTO
		obj.Set("ip_proto", r.protocol)
	}

	ipSrc, ipSrcMask, err := networkV2(r.srcIP)
	if err != nil {
		return err
	}
	ipDst, ipDstMask, err := networkV2(r.dstIP)
	if err != nil {
		return err
	}
	obj.Set("ipv4_src", ipSrc).Set("ipv4_src_mask", ipSrcMask)
	obj.Set("ipv4_dst", ipDst).Set("ipv4_dst_mask", ipDstMask)

	if r.has(fieldSrcPort) {
		w &^= OFPFW11_TP_SRC
		obj.Set("tcp_src", r.srcPort)
	}
	if r.has(fieldDstPort) {
		w &^= OFPFW11_TP_DST
		obj.Set("tcp_dst", r.dstPort)
	}
	obj.Set("metadata_mask", ^uint64(0))
	obj.Set("wildcards", w)

	return nil
}

func (r *Match) transportClass(dir string) (string, error) {
	switch r.protocol {
	case IPProtocolTCP:
		return "of_oxm_tcp_" + dir, nil
	case IPProtocolUDP:
		return "of_oxm_udp_" + dir, nil
	default:
		return "", errors.Wrapf(ErrUnsupportedIPProtocol, "transport port of IP protocol %v", r.protocol)
	}
}

func networkOXM(f *Factory, name string, ip *net.IPNet) (*codec.Object, error) {
	family := "ipv4"
	if len(ip.IP) == net.IPv6len {
		family = "ipv6"
	}
	ones, bits := ip.Mask.Size()
	if bits > 0 && ones == bits {
		oxm, err := f.NewObject("of_oxm_" + family + "_" + name)
		if err != nil {
			return nil, err
		}
		return oxm.Set("value", ip.IP), nil
	}

	oxm, err := f.NewObject("of_oxm_" + family + "_" + name + "_masked")
	if err != nil {
		return nil, err
	}
	return oxm.Set("value", ip.IP).Set("value_mask", net.IP(ip.Mask)), nil
}

// marshalOXM returns OXMs in the order of their prerequisites.
func (r *Match) marshalOXM(f *Factory) ([]*codec.Object, error) {
	result := []*codec.Object{}
	add := func(name string, value interface{}) error {
		oxm, err := f.NewObject(name)
		if err != nil {
			return err
		}
		result = append(result, oxm.Set("value", value))
		return nil
	}

	type entry struct {
		field matchField
		class string
		value interface{}
	}
	entries := []entry{
		{fieldInPort, "of_oxm_in_port", r.inPort},
		{fieldDstMAC, "of_oxm_eth_dst", r.dstMAC},
		{fieldSrcMAC, "of_oxm_eth_src", r.srcMAC},
		{fieldEtherType, "of_oxm_eth_type", r.etherType},
		{fieldVLANID, "of_oxm_vlan_vid", r.vlanID | OFPVID_PRESENT},
		{fieldVLANPriority, "of_oxm_vlan_pcp", r.vlanPriority},
		{fieldIPProtocol, "of_oxm_ip_proto", r.protocol},
	}
	for _, v := range entries {
		if r.has(v.field) == false {
			continue
		}
		if err := add(v.class, v.value); err != nil {
			return nil, err
		}
	}

	if r.srcIP != nil {
		oxm, err := networkOXM(f, "src", r.srcIP)
		if err != nil {
			return nil, err
		}
		result = append(result, oxm)
	}
	if r.dstIP != nil {
		oxm, err := networkOXM(f, "dst", r.dstIP)
		if err != nil {
			return nil, err
		}
		result = append(result, oxm)
	}

	if r.has(fieldSrcPort) {
		class, err := r.transportClass("src")
		if err != nil {
			return nil, err
		}
		if err := add(class, r.srcPort); err != nil {
			return nil, err
		}
	}
	if r.has(fieldDstPort) {
		class, err := r.transportClass("dst")
		if err != nil {
			return nil, err
		}
		if err := add(class, r.dstPort); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// ParseMatch converts a decoded match object of any version into a Match.
func ParseMatch(obj *codec.Object) (*Match, error) {
	if obj == nil {
		return nil, errors.New("nil match object")
	}

	m := NewMatch()
	var err error
	switch obj.Class {
	case "of_match_v1":
		err = m.unmarshalV1(obj)
	case "of_match_v2":
		err = m.unmarshalV2(obj)
	case "of_match_v3":
		err = m.unmarshalOXM(obj.List("oxm_list"))
	default:
		return nil, errors.Errorf("%v is not a match", obj.Class)
	}
	if err != nil {
		return nil, err
	}

	return m, nil
}

func getUint(obj *codec.Object, name string) uint64 {
	v, _ := obj.Uint(name)
	return v
}

func getMAC(obj *codec.Object, name string) net.HardwareAddr {
	v, _ := obj.Get(name)
	mac, _ := v.(net.HardwareAddr)
	return copyMAC(mac)
}

func getIP(obj *codec.Object, name string) net.IP {
	v, _ := obj.Get(name)
	ip, _ := v.(net.IP)
	return append(net.IP(nil), ip...)
}

func (r *Match) unmarshalV1(obj *codec.Object) error {
	w := uint32(getUint(obj, "wildcards"))
	if w&OFPFW_IN_PORT == 0 {
		port := uint32(getUint(obj, "in_port"))
		if port >= of10PortMax {
			port = port - of10PortMax + of11PortMax
		}
		r.SetInPort(port)
	}
	if w&OFPFW_DL_SRC == 0 {
		r.srcMAC = getMAC(obj, "eth_src")
		r.fields |= fieldSrcMAC
	}
	if w&OFPFW_DL_DST == 0 {
		r.dstMAC = getMAC(obj, "eth_dst")
		r.fields |= fieldDstMAC
	}
	if w&OFPFW_DL_VLAN == 0 {
		r.vlanID = uint16(getUint(obj, "vlan_vid"))
		r.fields |= fieldVLANID
	}
	if w&OFPFW_DL_VLAN_PCP == 0 {
		r.vlanPriority = uint8(getUint(obj, "vlan_pcp"))
		r.fields |= fieldVLANPriority
	}
	if w&OFPFW_DL_TYPE == 0 {
		r.SetEtherType(uint16(getUint(obj, "eth_type")))
	}
	if w&OFPFW_NW_PROTO == 0 {
		r.protocol = uint8(getUint(obj, "ip_proto"))
		r.fields |= fieldIPProtocol
	}
	if n := (w >> OFPFW_NW_SRC_SHIFT) & 0x3f; n < 32 {
		r.srcIP = newNetwork(getIP(obj, "ipv4_src"), net.CIDRMask(32-int(n), 32))
	}
	if n := (w >> OFPFW_NW_DST_SHIFT) & 0x3f; n < 32 {
		r.dstIP = newNetwork(getIP(obj, "ipv4_dst"), net.CIDRMask(32-int(n), 32))
	}
	if w&OFPFW_TP_SRC == 0 {
		r.srcPort = uint16(getUint(obj, "tcp_src"))
		r.fields |= fieldSrcPort
	}
	if w&OFPFW_TP_DST == 0 {
		r.dstPort = uint16(getUint(obj, "tcp_dst"))
		r.fields |= fieldDstPort
	}

	return nil
}

func unmarshalMACV2(obj *codec.Object, name string) (net.HardwareAddr, bool, error) {
	mask := getMAC(obj, name+"_mask")
	switch {
	case isFilled(mask, 0xff):
		return nil, false, nil
	case isFilled(mask, 0):
		return getMAC(obj, name), true, nil
	default:
		return nil, false, errors.Wrapf(ErrUnsupportedMatchField, "partially masked %v", name)
	}
}

func unmarshalNetworkV2(obj *codec.Object, name string) *net.IPNet {
	mask := invertMask(getIP(obj, name+"_mask"))
	if isFilled(mask, 0) {
		return nil
	}
	return newNetwork(getIP(obj, name), mask)
}

func (r *Match) unmarshalV2(obj *codec.Object) error {
	w := uint32(getUint(obj, "wildcards"))
	if w&OFPFW11_IN_PORT == 0 {
		r.SetInPort(uint32(getUint(obj, "in_port")))
	}

	mac, ok, err := unmarshalMACV2(obj, "eth_src")
	if err != nil {
		return err
	}
	if ok {
		r.srcMAC = mac
		r.fields |= fieldSrcMAC
	}
	if mac, ok, err = unmarshalMACV2(obj, "eth_dst"); err != nil {
		return err
	}
	if ok {
		r.dstMAC = mac
		r.fields |= fieldDstMAC
	}

	if w&OFPFW11_DL_VLAN == 0 {
		r.vlanID = uint16(getUint(obj, "vlan_vid"))
		r.fields |= fieldVLANID
	}
	if w&OFPFW11_DL_VLAN_PCP == 0 {
		r.vlanPriority = uint8(getUint(obj, "vlan_pcp"))
		r.fields |= fieldVLANPriority
	}
	if w&OFPFW11_DL_TYPE == 0 {
		r.SetEtherType(uint16(getUint(obj, "eth_type")))
	}
	if w&OFPFW11_NW_PROTO == 0 {
		r.protocol = uint8(getUint(obj, "ip_proto"))
		r.fields |= fieldIPProtocol
	}
	r.srcIP = unmarshalNetworkV2(obj, "ipv4_src")
	r.dstIP = unmarshalNetworkV2(obj, "ipv4_dst")
	if w&OFPFW11_TP_SRC == 0 {
		r.srcPort = uint16(getUint(obj, "tcp_src"))
		r.fields |= fieldSrcPort
	}
	if w&OFPFW11_TP_DST == 0 {
		r.dstPort = uint16(getUint(obj, "tcp_dst"))
		r.fields |= fieldDstPort
	}

	return nil
}

func unmarshalNetworkOXM(oxm *codec.Object, masked bool) *net.IPNet {
	ip := getIP(oxm, "value")
	mask := net.CIDRMask(len(ip)*8, len(ip)*8)
	if masked {
		mask = net.IPMask(getIP(oxm, "value_mask"))
	}
	return newNetwork(ip, mask)
}

func (r *Match) unmarshalOXM(oxms []*codec.Object) error {
	for _, oxm := range oxms {
		switch oxm.Class {
		case "of_oxm_in_port":
			r.SetInPort(uint32(getUint(oxm, "value")))
		case "of_oxm_eth_src":
			r.srcMAC = getMAC(oxm, "value")
			r.fields |= fieldSrcMAC
		case "of_oxm_eth_dst":
			r.dstMAC = getMAC(oxm, "value")
			r.fields |= fieldDstMAC
		case "of_oxm_eth_type":
			r.SetEtherType(uint16(getUint(oxm, "value")))
		case "of_oxm_vlan_vid":
			vid := uint16(getUint(oxm, "value"))
			if vid&OFPVID_PRESENT == 0 {
				return errors.Wrap(ErrUnsupportedMatchField, "vlan_vid without a VLAN tag")
			}
			r.vlanID = vid &^ OFPVID_PRESENT
			r.fields |= fieldVLANID
		case "of_oxm_vlan_pcp":
			r.vlanPriority = uint8(getUint(oxm, "value"))
			r.fields |= fieldVLANPriority
		case "of_oxm_ip_proto":
			r.protocol = uint8(getUint(oxm, "value"))
			r.fields |= fieldIPProtocol
		case "of_oxm_ipv4_src", "of_oxm_ipv6_src":
			r.srcIP = unmarshalNetworkOXM(oxm, false)
		case "of_oxm_ipv4_src_masked", "of_oxm_ipv6_src_masked":
			r.srcIP = unmarshalNetworkOXM(oxm, true)
		case "of_oxm_ipv4_dst", "of_oxm_ipv6_dst":
			r.dstIP = unmarshalNetworkOXM(oxm, false)
		case "of_oxm_ipv4_dst_masked", "of_oxm_ipv6_dst_masked":
			r.dstIP = unmarshalNetworkOXM(oxm, true)
		case "of_oxm_tcp_src", "of_oxm_udp_src":
			r.srcPort = uint16(getUint(oxm, "value"))
			r.fields |= fieldSrcPort
		case "of_oxm_tcp_dst", "of_oxm_udp_dst":
			r.dstPort = uint16(getUint(oxm, "value"))
			r.fields |= fieldDstPort
		default:
			return errors.Wrapf(ErrUnsupportedMatchField, "%v", oxm.Class)
		}
	}

	return nil
}
