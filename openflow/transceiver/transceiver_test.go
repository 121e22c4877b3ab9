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
	"context"
	"encoding/hex"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/superkkt/ofwire/codec"
	"github.com/superkkt/ofwire/openflow"
	"github.com/superkkt/ofwire/schema"

	"github.com/stretchr/testify/require"
)

type recorder struct {
	messages chan *codec.Object
}

func (r *recorder) OnMessage(f *openflow.Factory, w Writer, msg *codec.Object) error {
	if msg.Class == "of_hello" {
		req, err := f.NewBarrierRequest()
		if err != nil {
			return err
		}
		if err := w.Write(req); err != nil {
			return err
		}
	}
	r.messages <- msg

	return nil
}

func (r *recorder) next(t *testing.T) *codec.Object {
	select {
	case msg := <-r.messages:
		return msg
	case <-time.After(5 * time.Second):
		t.Fatalf("timeout while waiting for a message")
		return nil
	}
}

func send(t *testing.T, s *Stream, packet string) {
	b, err := hex.DecodeString(strings.Join(strings.Fields(packet), ""))
	require.NoError(t, err)
	_, err = s.Write(b)
	require.NoError(t, err)
}

func receive(t *testing.T, s *Stream) *codec.Object {
	packet, header, err := s.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, int(header.Length), len(packet))
	msg, _, err := openflow.Codec().Decode(packet)
	require.NoError(t, err)

	return msg
}

func TestTransceiver(t *testing.T) {
	ctrl, sw := net.Pipe()
	defer ctrl.Close()
	defer sw.Close()

	rec := &recorder{messages: make(chan *codec.Object, 16)}
	tr, err := NewTransceiver(NewStream(ctrl, 0), openflow.Codec(), rec, Config{MaxIdleTime: time.Minute, TrackerSize: 16})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- tr.Run(ctx) }()

	peer := NewStream(sw, 0)
	peer.SetReadTimeout(5 * time.Second)
	peer.SetWriteTimeout(5 * time.Second)

	// Our hello offers the highest version.
	hello := receive(t, peer)
	require.Equal(t, "of_hello", hello.Class)
	require.Equal(t, schema.Version13, hello.Version)

	// The switch only speaks 1.0.
	send(t, peer, "01 00 0008 00000011")
	barrier := receive(t, peer)
	require.Equal(t, "of_barrier_request", barrier.Class)
	require.Equal(t, schema.Version10, barrier.Version)
	require.Equal(t, "of_hello", rec.next(t).Class)

	negotiated, v := tr.Version()
	require.True(t, negotiated)
	require.Equal(t, schema.Version10, v)
	require.Equal(t, 1, tr.tracker.Len())

	// Echo requests are answered without reaching the handler.
	send(t, peer, "01 02 000b 00000077 616263")
	reply := receive(t, peer)
	require.Equal(t, "of_echo_reply", reply.Class)
	xid, _ := reply.Uint("xid")
	require.Equal(t, uint64(0x77), xid)
	require.Equal(t, []byte("abc"), reply.Bytes("data"))

	// A malformed message is skipped.
	send(t, peer, "01 05 0009 00000005 00")
	xid, _ = barrier.Uint("xid")
	send(t, peer, "01 13 0008 "+hex.EncodeToString([]byte{0, 0, 0, byte(xid)}))
	msg := rec.next(t)
	require.Equal(t, "of_barrier_reply", msg.Class)
	require.Equal(t, 0, tr.tracker.Len())

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatalf("transceiver did not stop")
	}
}

func TestTransceiverNegotiation(t *testing.T) {
	samples := []struct {
		Hello    string
		Expected schema.Version
	}{
		// Versions newer than ours settle on our highest one.
		{Hello: "06 00 0008 00000009", Expected: schema.Version13},
		{Hello: "05 00 0008 00000009", Expected: schema.Version13},
		// The bitmap offers 1.0 and 1.1 under a 1.3 header.
		{Hello: "04 00 0010 00000009 0001 0008 00000006", Expected: schema.Version11},
		{Hello: "04 00 0008 00000009", Expected: schema.Version13},
		{Hello: "02 00 0008 00000009", Expected: schema.Version11},
	}

	for _, v := range samples {
		ctrl, sw := net.Pipe()
		rec := &recorder{messages: make(chan *codec.Object, 16)}
		tr, err := NewTransceiver(NewStream(ctrl, 0), openflow.Codec(), rec, Config{MaxIdleTime: time.Minute})
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- tr.Run(ctx) }()

		peer := NewStream(sw, 0)
		peer.SetReadTimeout(5 * time.Second)
		peer.SetWriteTimeout(5 * time.Second)
		receive(t, peer)
		send(t, peer, v.Hello)

		// The handler answers the hello in the negotiated version.
		barrier := receive(t, peer)
		require.Equal(t, "of_barrier_request", barrier.Class, v.Hello)
		require.Equal(t, v.Expected, barrier.Version, v.Hello)
		hello := rec.next(t)
		require.Equal(t, "of_hello", hello.Class)
		require.Equal(t, v.Expected, hello.Version)
		xid, _ := hello.Uint("xid")
		require.Equal(t, uint64(9), xid)
		negotiated, version := tr.Version()
		require.True(t, negotiated)
		require.Equal(t, v.Expected, version)

		// The session keeps going in the negotiated version.
		xid, _ = barrier.Uint("xid")
		reply := []byte{byte(v.Expected), 0, 0, 8, 0, 0, 0, byte(xid)}
		if v.Expected == schema.Version10 {
			reply[1] = 19
		} else {
			reply[1] = 21
		}
		send(t, peer, hex.EncodeToString(reply))
		require.Equal(t, "of_barrier_reply", rec.next(t).Class)

		cancel()
		select {
		case err := <-done:
			require.NoError(t, err, v.Hello)
		case <-time.After(5 * time.Second):
			t.Fatalf("transceiver did not stop: %v", v.Hello)
		}
		ctrl.Close()
		sw.Close()
	}
}

func TestTransceiverWithoutHello(t *testing.T) {
	samples := []string{
		"04 05 0008 00000001",
		// Not a hello even though we cannot decode the version.
		"06 05 0008 00000001",
	}
	for _, v := range samples {
		testTransceiverWithoutHello(t, v)
	}
}

func testTransceiverWithoutHello(t *testing.T, first string) {
	ctrl, sw := net.Pipe()
	defer ctrl.Close()
	defer sw.Close()

	rec := &recorder{messages: make(chan *codec.Object, 16)}
	tr, err := NewTransceiver(NewStream(ctrl, 0), openflow.Codec(), rec, Config{})
	require.NoError(t, err)
	done := make(chan error, 1)
	go func() { done <- tr.Run(context.Background()) }()

	peer := NewStream(sw, 0)
	peer.SetReadTimeout(5 * time.Second)
	receive(t, peer)
	send(t, peer, first)

	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatalf("transceiver accepted a session without hello")
	}
}

func TestNegotiateVersion(t *testing.T) {
	bitmap := func(bits uint32) *codec.Object {
		value := &codec.Object{Class: "of_uint32", Fields: []codec.Field{{Name: "value", Value: bits}}}
		elem := &codec.Object{Class: "of_hello_elem_versionbitmap", Fields: []codec.Field{{Name: "bitmaps", Value: []*codec.Object{value}}}}
		return &codec.Object{Class: "of_hello", Version: schema.Version13, Fields: []codec.Field{{Name: "elements", Value: []*codec.Object{elem}}}}
	}

	samples := []struct {
		Hello    *codec.Object
		Expected schema.Version
	}{
		{Hello: bitmap(0x12), Expected: schema.Version13},
		{Hello: bitmap(0x06), Expected: schema.Version11},
		{Hello: bitmap(0x40), Expected: schema.VersionInvalid},
		{Hello: &codec.Object{Class: "of_hello", Version: schema.Version15}, Expected: schema.Version13},
		{Hello: &codec.Object{Class: "of_hello", Version: schema.Version12}, Expected: schema.Version12},
	}
	for _, v := range samples {
		require.Equal(t, v.Expected, negotiateVersion(openflow.Schema(), v.Hello))
	}
}

func TestTracker(t *testing.T) {
	tracker, err := NewTracker(2)
	require.NoError(t, err)

	tracker.Track(1, "of_barrier_request")
	tracker.Track(2, "of_features_request")
	tracker.Track(3, "of_desc_stats_request")
	require.Equal(t, 2, tracker.Len())

	// The oldest request is evicted.
	_, ok := tracker.Complete(1)
	require.False(t, ok)
	p, ok := tracker.Complete(3)
	require.True(t, ok)
	require.Equal(t, "of_desc_stats_request", p.Class)
	_, ok = tracker.Complete(3)
	require.False(t, ok)
	require.Equal(t, 1, tracker.Len())
}
