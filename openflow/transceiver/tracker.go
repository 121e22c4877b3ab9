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


package transceiver

import (
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
)

// DefaultTrackerSize is the number of outstanding requests remembered per connection.
const DefaultTrackerSize = 8192

// Pending is a request waiting for its reply.
type Pending struct {
	Class string
	Sent  time.Time
}

// Tracker matches replies to requests by transaction ID. Requests that never
// get a reply, such as flow-mods, are evicted oldest first.
type Tracker struct {
	cache *lru.Cache
}

func NewTracker(size int) (*Tracker, error) {
	if size <= 0 {
		size = DefaultTrackerSize
	}
	c, err := lru.New(size)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create the request cache")
	}

	return &Tracker{cache: c}, nil
}

func (r *Tracker) Track(xid uint32, class string) {
	r.cache.Add(xid, Pending{Class: class, Sent: time.Now()})
}

// Complete removes and returns the request of transaction ID xid.
func (r *Tracker) Complete(xid uint32) (Pending, bool) {
	v, ok := r.cache.Get(xid)
	if !ok {
		return Pending{}, false
	}
	r.cache.Remove(xid)

	return v.(Pending), true
}

func (r *Tracker) Len() int {
	return r.cache.Len()
}
