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
	"fmt"
	"sync/atomic"

	"github.com/superkkt/ofwire/codec"
	"github.com/superkkt/ofwire/schema"

	"github.com/pkg/errors"
)

type FlowModCmd uint8

const (
	FlowAdd FlowModCmd = iota
	FlowModify
	FlowModifyStrict
	FlowDelete
	FlowDeleteStrict
)

func (r FlowModCmd) String() string {
	switch r {
	case FlowAdd:
		return "add"
	case FlowModify:
		return "modify"
	case FlowModifyStrict:
		return "modify_strict"
	case FlowDelete:
		return "delete"
	case FlowDeleteStrict:
		return "delete_strict"
	default:
		return fmt.Sprintf("FlowModCmd(%d)", uint8(r))
	}
}

func (r FlowModCmd) className() string {
	return "of_flow_" + r.String()
}

// Factory creates messages of a single OpenFlow version. Every request gets
// its own transaction ID. It is safe for concurrent use.
type Factory struct {
	codec   *codec.Codec
	version schema.Version
	xid     uint32
}

// NewFactory returns a factory of version v that creates objects through c.
// A nil c means the codec of the built-in schema.
func NewFactory(c *codec.Codec, v schema.Version) (*Factory, error) {
	if c == nil {
		c = Codec()
	}
	if c.Registry().Schema().Supports(v) == false {
		return nil, errors.Wrapf(codec.ErrUnsupportedVersion, "version %v", v)
	}

	return &Factory{codec: c, version: v}, nil
}

func (r *Factory) getTransactionID() uint32 {
	// Transaction ID will be started from 1, not 0.
	return atomic.AddUint32(&r.xid, 1)
}

func (r *Factory) Version() schema.Version {
	return r.version
}

// NewObject returns a zero-valued object of the named class in the factory
// version. It does not assign a transaction ID.
func (r *Factory) NewObject(name string) (*codec.Object, error) {
	return r.codec.NewObject(name, r.version)
}

func (r *Factory) message(name string, xid uint32) (*codec.Object, error) {
	obj, err := r.NewObject(name)
	if err != nil {
		return nil, err
	}

	return obj.Set("xid", xid), nil
}

// NewHello returns a hello. From version 1.3 on it also carries a version
// bitmap announcing every version up to the factory version.
func (r *Factory) NewHello() (*codec.Object, error) {
	hello, err := r.message("of_hello", r.getTransactionID())
	if err != nil {
		return nil, err
	}
	if r.version < schema.Version13 {
		return hello, nil
	}

	bitmap, err := r.NewObject("of_uint32")
	if err != nil {
		return nil, err
	}
	bitmap.Set("value", uint32(1)<<(uint(r.version)+1)-2)
	elem, err := r.NewObject("of_hello_elem_versionbitmap")
	if err != nil {
		return nil, err
	}
	elem.Set("bitmaps", []*codec.Object{bitmap})

	return hello.Set("elements", []*codec.Object{elem}), nil
}

func (r *Factory) NewEchoRequest(data []byte) (*codec.Object, error) {
	echo, err := r.message("of_echo_request", r.getTransactionID())
	if err != nil {
		return nil, err
	}
	if data == nil {
		data = []byte{}
	}

	return echo.Set("data", data), nil
}

// NewEchoReply returns a reply of the echo request whose transaction ID is xid.
func (r *Factory) NewEchoReply(xid uint32, data []byte) (*codec.Object, error) {
	echo, err := r.message("of_echo_reply", xid)
	if err != nil {
		return nil, err
	}
	if data == nil {
		data = []byte{}
	}

	return echo.Set("data", data), nil
}

func (r *Factory) NewFeaturesRequest() (*codec.Object, error) {
	return r.message("of_features_request", r.getTransactionID())
}

func (r *Factory) NewBarrierRequest() (*codec.Object, error) {
	return r.message("of_barrier_request", r.getTransactionID())
}

func (r *Factory) NewGetConfigRequest() (*codec.Object, error) {
	return r.message("of_get_config_request", r.getTransactionID())
}

func (r *Factory) NewSetConfig(flags, missSendLen uint16) (*codec.Object, error) {
	config, err := r.message("of_set_config", r.getTransactionID())
	if err != nil {
		return nil, err
	}

	return config.Set("flags", flags).Set("miss_send_len", missSendLen), nil
}

func (r *Factory) NewDescRequest() (*codec.Object, error) {
	return r.message("of_desc_stats_request", r.getTransactionID())
}

// NewPortDescRequest is only available from version 1.3; older versions
// report their ports in the features reply.
func (r *Factory) NewPortDescRequest() (*codec.Object, error) {
	return r.message("of_port_desc_stats_request", r.getTransactionID())
}

func (r *Factory) NewQueueGetConfigRequest(port uint32) (*codec.Object, error) {
	req, err := r.message("of_queue_get_config_request", r.getTransactionID())
	if err != nil {
		return nil, err
	}

	return req.Set("port", port), nil
}

// NewFlowMod returns a flow-mod of command cmd with an empty action or
// instruction list. A nil match wildcards every field.
func (r *Factory) NewFlowMod(cmd FlowModCmd, match *Match) (*codec.Object, error) {
	if cmd > FlowDeleteStrict {
		return nil, errors.Wrapf(codec.ErrInvalidValue, "unexpected flow-mod command: %v", cmd)
	}

	flow, err := r.message(cmd.className(), r.getTransactionID())
	if err != nil {
		return nil, err
	}
	m, err := r.MatchObject(match)
	if err != nil {
		return nil, err
	}

	return flow.Set("match", m), nil
}

func (r *Factory) NewPacketOut() (*codec.Object, error) {
	return r.message("of_packet_out", r.getTransactionID())
}
