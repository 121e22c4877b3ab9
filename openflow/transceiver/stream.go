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
	"bufio"
	"io"
	"net"
	"sync"
	"time"

	"github.com/superkkt/ofwire/codec"

	"github.com/pkg/errors"
)

// Stream is a buffered OpenFlow message channel over a socket.
type Stream struct {
	channel io.ReadWriteCloser

	reader struct {
		mutex sync.Mutex
		// Peek results point into the internal buffer of rd, so reads are
		// serialized and returned data is always copied out.
		rd        *bufio.Reader
		timeout   time.Duration
		timestamp time.Time
	}

	writer struct {
		mutex     sync.Mutex
		timeout   time.Duration
		timestamp time.Time
	}
}

type deadline interface {
	SetReadDeadline(time.Time) error
	SetWriteDeadline(time.Time) error
}

// NewStream returns a stream on channel. bufSize should hold the largest
// expected message; OpenFlow lengths never exceed 0xFFFF.
func NewStream(channel io.ReadWriteCloser, bufSize int) *Stream {
	if bufSize < 0xFFFF {
		bufSize = 0xFFFF
	}
	s := &Stream{channel: channel}
	s.reader.rd = bufio.NewReaderSize(channel, bufSize)

	return s
}

func (r *Stream) RemoteAddr() string {
	type addr interface {
		RemoteAddr() net.Addr
	}

	v, ok := r.channel.(addr)
	if !ok || v.RemoteAddr() == nil {
		return "unknown"
	}

	return v.RemoteAddr().String()
}

// SetReadTimeout sets the read timeout of the underlying socket if it supports deadlines.
func (r *Stream) SetReadTimeout(t time.Duration) {
	r.reader.mutex.Lock()
	defer r.reader.mutex.Unlock()

	r.reader.timeout = t
}

// SetWriteTimeout sets the write timeout of the underlying socket if it supports deadlines.
func (r *Stream) SetWriteTimeout(t time.Duration) {
	r.writer.mutex.Lock()
	defer r.writer.mutex.Unlock()

	r.writer.timeout = t
}

// NOTE: The caller should lock the reader mutex before calling this function.
func (r *Stream) setReadDeadline() {
	d, ok := r.channel.(deadline)
	if !ok {
		return
	}

	if r.reader.timeout > 0 {
		d.SetReadDeadline(time.Now().Add(r.reader.timeout))
	} else {
		d.SetReadDeadline(time.Time{})
	}
}

// NOTE: The caller should lock the writer mutex before calling this function.
func (r *Stream) setWriteDeadline() {
	d, ok := r.channel.(deadline)
	if !ok {
		return
	}

	if r.writer.timeout > 0 {
		d.SetWriteDeadline(time.Now().Add(r.writer.timeout))
	} else {
		d.SetWriteDeadline(time.Time{})
	}
}

// ReadMessage reads the next whole message. A timeout leaves a partially
// received message in the buffer so that the next call resumes it.
func (r *Stream) ReadMessage() ([]byte, codec.Header, error) {
	r.reader.mutex.Lock()
	defer r.reader.mutex.Unlock()

	r.setReadDeadline()
	v, err := r.reader.rd.Peek(8)
	if err != nil {
		return nil, codec.Header{}, err
	}
	header, err := codec.Peek(v)
	if err != nil {
		// The stream cannot be resynchronized after a broken header.
		return nil, codec.Header{}, errors.Wrap(err, "invalid message header")
	}

	// Wait until the whole message is buffered or timeout.
	if _, err := r.reader.rd.Peek(int(header.Length)); err != nil {
		return nil, codec.Header{}, err
	}
	packet := make([]byte, header.Length)
	if _, err := io.ReadFull(r.reader.rd, packet); err != nil {
		return nil, codec.Header{}, err
	}
	r.reader.timestamp = time.Now()

	return packet, header, nil
}

// LastRead returns the time of the last message read.
func (r *Stream) LastRead() time.Time {
	r.reader.mutex.Lock()
	defer r.reader.mutex.Unlock()

	return r.reader.timestamp
}

func (r *Stream) Write(p []byte) (n int, err error) {
	r.writer.mutex.Lock()
	defer r.writer.mutex.Unlock()

	r.setWriteDeadline()
	n, err = r.channel.Write(p)
	if err != nil {
		return n, err
	}
	r.writer.timestamp = time.Now()

	return n, nil
}

// LastWrite returns the time of the last successful write.
func (r *Stream) LastWrite() time.Time {
	r.writer.mutex.Lock()
	defer r.writer.mutex.Unlock()

	return r.writer.timestamp
}

func (r *Stream) Close() error {
	return r.channel.Close()
}
