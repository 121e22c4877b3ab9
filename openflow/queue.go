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
	"github.com/superkkt/ofwire/codec"
	"github.com/superkkt/ofwire/registry"

	"github.com/pkg/errors"
)

type PropertyType uint16

const (
	OFPQT_NONE PropertyType = iota
	OFPQT_MIN_RATE
	OFPQT_MAX_RATE
	OFPQT_EXPERIMENTER = 0xffff
)

type QueueProperty struct {
	Type PropertyType
	// Rate is in 1/10 of a percent for the rate properties.
	Rate         uint16
	Experimenter uint32
	Data         []byte
}

type Queue struct {
	ID         uint32
	Port       uint32
	Properties []QueueProperty
}

// Queues returns the queues of a decoded queue_get_config reply. reg resolves
// the property types; nil means the built-in registry.
func Queues(reg *registry.Registry, reply *codec.Object) ([]Queue, error) {
	if reg == nil {
		reg = Registry()
	}
	if reply == nil || reply.Class != "of_queue_get_config_reply" {
		return nil, errors.Wrap(codec.ErrInvalidValue, "not a queue_get_config reply")
	}
	port, _ := reply.Uint("port")

	result := []Queue{}
	for _, q := range reply.List("queues") {
		id, _ := q.Uint("queue_id")
		queue := Queue{ID: uint32(id), Port: uint32(port)}
		// Queues carry their own port from version 1.2 on.
		if p, ok := q.Uint("port"); ok {
			queue.Port = uint32(p)
		}

		for _, p := range q.List("properties") {
			t := reg.ToWireValue(p.Kind, p.Version)
			if t < 0 {
				return nil, errors.Wrapf(codec.ErrUnknownType, "queue property %v", p.Class)
			}
			prop := QueueProperty{Type: PropertyType(t)}
			if rate, ok := p.Uint("rate"); ok {
				prop.Rate = uint16(rate)
			}
			if id, ok := p.Uint("experimenter"); ok {
				prop.Experimenter = uint32(id)
			}
			prop.Data = p.Bytes("data")
			queue.Properties = append(queue.Properties, prop)
		}
		result = append(result, queue)
	}

	return result, nil
}
