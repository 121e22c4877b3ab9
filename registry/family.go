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
)

// Family is a polymorphic group of classes dispatched by a wire value.
type Family int

const (
	Message Family = iota
	Action
	ActionID
	Instruction
	QueueProp
	TableFeatureProp
	MeterBand
	HelloElem
	StatsRequest
	StatsReply
	FlowMod
	OXM
	numFamilies
)

// FamilyInvalid is returned when a kind belongs to no family.
const FamilyInvalid Family = -1

var familyNames = [numFamilies]string{
	Message:          "message",
	Action:           "action",
	ActionID:         "action_id",
	Instruction:      "instruction",
	QueueProp:        "queue_prop",
	TableFeatureProp: "table_feature_prop",
	MeterBand:        "meter_band",
	HelloElem:        "hello_elem",
	StatsRequest:     "stats_request",
	StatsReply:       "stats_reply",
	FlowMod:          "flow_mod",
	OXM:              "oxm",
}

func (r Family) String() string {
	if r < 0 || r >= numFamilies {
		return fmt.Sprintf("Family(%d)", int(r))
	}

	return familyNames[r]
}

// ParseFamily returns the family whose schema name is name.
func ParseFamily(name string) (Family, bool) {
	for i, v := range familyNames {
		if v == name {
			return Family(i), true
		}
	}

	return FamilyInvalid, false
}

// Families returns every family in declaration order.
func Families() []Family {
	result := make([]Family, numFamilies)
	for i := range result {
		result[i] = Family(i)
	}

	return result
}

const (
	// MaxTypeValue is the largest wire value kept in the dense per-family
	// arrays. Larger values, such as the 0xffff experimenter code, go to a
	// small secondary map.
	MaxTypeValue = 1000
	// Extended matches from the basic OXM class are indexed densely by
	// (field << 1) | hasmask.
	oxmBasicClass = 0x8000
	oxmDenseSize  = 256
)

// slot maps a wire value of family f to its dense index.
func slot(f Family, wire uint32) (int, bool) {
	if f == OXM {
		if wire>>16 != oxmBasicClass {
			return 0, false
		}
		return int((wire >> 8) & 0xff), true
	}
	if wire > MaxTypeValue {
		return 0, false
	}

	return int(wire), true
}

// sparseKey maps a wire value that has no dense slot to its secondary map key.
// The OXM payload length is not part of the identity of a field.
func sparseKey(f Family, wire uint32) uint32 {
	if f == OXM {
		return wire &^ 0xff
	}

	return wire
}
