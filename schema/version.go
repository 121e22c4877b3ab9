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
)

// Version is the OpenFlow wire version byte carried in every message header.
type Version uint8

const (
	VersionInvalid Version = 0
	Version10      Version = 1
	Version11      Version = 2
	Version12      Version = 3
	Version13      Version = 4
	Version14      Version = 5
	Version15      Version = 6
	// MaxVersion is the largest wire version any per-version table can hold.
	MaxVersion = Version15
)

var versionNames = [MaxVersion + 1]string{"", "1.0", "1.1", "1.2", "1.3", "1.4", "1.5"}

func (r Version) String() string {
	if r.Valid() == false {
		return fmt.Sprintf("0x%02x", uint8(r))
	}

	return versionNames[r]
}

// Valid returns whether r is a wire version known to this package. It does not
// mean a particular schema supports it; see Schema.Supports.
func (r Version) Valid() bool {
	return r >= Version10 && r <= MaxVersion
}

// ParseVersion converts a dotted version name such as "1.3" into its wire value.
func ParseVersion(s string) (Version, error) {
	for i, v := range versionNames {
		if i > 0 && v == s {
			return Version(i), nil
		}
	}

	return VersionInvalid, fmt.Errorf("unknown OpenFlow version: %v", s)
}
