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
	"sync"
	"time"

	"github.com/superkkt/ofwire/codec"
	"github.com/superkkt/ofwire/openflow"
	"github.com/superkkt/ofwire/registry"
	"github.com/superkkt/ofwire/schema"

	"github.com/op/go-logging"
	"github.com/pkg/errors"
)

var (
	logger = logging.MustGetLogger("transceiver")
)

const (
	// Allowed idle time before we send an echo request to a switch.
	defaultMaxIdleTime = 10 * time.Second
	// I/O timeouts (These timeouts should be less than the idle time).
	readTimeout  = 1 * time.Second
	writeTimeout = readTimeout * 2
	// Unanswered echo requests before the switch is considered dead.
	maxPingCount = 3
	// OFPT_HELLO is the same in every version.
	ofptHello = 0
)

type Writer interface {
	Write(msg *codec.Object) error
}

// Handler receives every decoded message except echo requests and replies,
// which the transceiver answers by itself.
type Handler interface {
	OnMessage(f *openflow.Factory, w Writer, msg *codec.Object) error
}

type Config struct {
	MaxIdleTime time.Duration
	TrackerSize int
}

type Transceiver struct {
	stream  *Stream
	codec   *codec.Codec
	handler Handler
	tracker *Tracker
	maxIdle time.Duration

	mutex       sync.Mutex
	factory     *openflow.Factory
	latency     time.Duration
	pingCounter uint
}

func NewTransceiver(stream *Stream, c *codec.Codec, handler Handler, conf Config) (*Transceiver, error) {
	if stream == nil {
		panic("stream is nil")
	}
	if c == nil {
		panic("codec is nil")
	}
	if handler == nil {
		panic("handler is nil")
	}
	if conf.MaxIdleTime <= 0 {
		conf.MaxIdleTime = defaultMaxIdleTime
	}

	tracker, err := NewTracker(conf.TrackerSize)
	if err != nil {
		return nil, err
	}

	return &Transceiver{
		stream:  stream,
		codec:   c,
		handler: handler,
		tracker: tracker,
		maxIdle: conf.MaxIdleTime,
	}, nil
}

// Version returns the negotiated protocol version.
func (r *Transceiver) Version() (negotiated bool, version schema.Version) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.factory == nil {
		// Not yet negotiated
		return false, schema.VersionInvalid
	}

	return true, r.factory.Version()
}

// Latency returns the round trip time measured by the last echo exchange.
func (r *Transceiver) Latency() time.Duration {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	return r.latency
}

func (r *Transceiver) getFactory() *openflow.Factory {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	return r.factory
}

func (r *Transceiver) highestVersion() schema.Version {
	versions := r.codec.Registry().Schema().Versions()
	return versions[len(versions)-1]
}

func isTimeout(err error) bool {
	type timeout interface {
		Timeout() bool
	}

	v, ok := errors.Cause(err).(timeout)
	return ok && v.Timeout()
}

// Write encodes msg and sends it. Requests are remembered until their reply arrives.
func (r *Transceiver) Write(msg *codec.Object) error {
	packet, err := r.codec.Encode(msg)
	if err != nil {
		return errors.Wrapf(err, "failed to encode %v", msg.Name())
	}
	if _, err := r.stream.Write(packet); err != nil {
		return errors.Wrapf(err, "failed to send %v", msg.Name())
	}

	if xid, ok := msg.Uint("xid"); ok && expectsReply(msg.Class) {
		r.tracker.Track(uint32(xid), msg.Class)
	}

	return nil
}

// Hello and echo messages are not requests of the peer's application.
func expectsReply(class string) bool {
	switch class {
	case "of_hello", "of_echo_request", "of_echo_reply":
		return false
	default:
		return true
	}
}

// Run sends our hello, negotiates the version with the first message of the
// peer and then dispatches messages to the handler until ctx is done or the
// connection is closed.
func (r *Transceiver) Run(ctx context.Context) error {
	defer logger.Infof("transceiver is closed: %v", r.stream.RemoteAddr())
	r.stream.SetReadTimeout(readTimeout)
	r.stream.SetWriteTimeout(writeTimeout)

	f, err := openflow.NewFactory(r.codec, r.highestVersion())
	if err != nil {
		return err
	}
	msg, err := f.NewHello()
	if err != nil {
		return err
	}
	if err := r.Write(msg); err != nil {
		return err
	}

	readerCtx, cancelReader := context.WithCancel(ctx)
	defer cancelReader()
	reader := r.runReader(readerCtx)

	// Negotiate the protocol version
	peer, err := r.negotiate(ctx, reader)
	if err != nil {
		return errors.Wrap(err, "failed to negotiate the protocol version")
	}
	if err := r.handler.OnMessage(r.getFactory(), r, peer); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("context done")
			return nil
		case packet, ok := <-reader:
			if !ok {
				logger.Info("the reader channel is closed")
				return nil
			}
			if err := r.dispatch(packet); err != nil {
				if !isTemporaryErr(err) {
					return err
				}
				// Ignore the temporary error. Just log the error and keep go on.
				logger.Errorf("failed to dispatch the message: %v", err)
			}
		}
	}
}

// negotiate waits for the peer's hello and settles the protocol version. It
// returns the peer's hello as an object of the negotiated version.
func (r *Transceiver) negotiate(ctx context.Context, reader <-chan []byte) (*codec.Object, error) {
	var packet []byte
	select {
	case <-ctx.Done():
		return nil, errors.New("context done")
	case <-time.After(30 * time.Second):
		return nil, errors.New("inactive for too long")
	case p, ok := <-reader:
		if !ok {
			return nil, errors.New("the reader channel is closed")
		}
		packet = p
	}

	// The first message should be HELLO.
	header, err := codec.Peek(packet)
	if err != nil {
		return nil, errors.Wrap(err, "invalid first message")
	}
	if header.Type != ofptHello {
		return nil, errors.Errorf("missing HELLO message: type=%v", header.Type)
	}

	s := r.codec.Registry().Schema()
	peer := &codec.Object{Class: "of_hello", Version: schema.Version(header.Version)}
	// A hello of a version we do not know is judged by its header alone.
	if s.Supports(peer.Version) {
		peer, _, err = r.codec.Decode(packet)
		if err != nil {
			return nil, errors.Wrap(err, "invalid first message")
		}
		if peer.Class != "of_hello" {
			return nil, errors.Errorf("missing HELLO message: %v", peer.Class)
		}
	}

	v := negotiateVersion(s, peer)
	if v == schema.VersionInvalid {
		return nil, errors.Errorf("no common version with the peer (version=%v)", peer.Version)
	}
	f, err := openflow.NewFactory(r.codec, v)
	if err != nil {
		return nil, err
	}
	r.mutex.Lock()
	r.factory = f
	r.mutex.Unlock()
	logger.Infof("negotiated to openflow version %v with %v (peer version=%v)", v, r.stream.RemoteAddr(), peer.Version)

	if peer.Version == v {
		return peer, nil
	}
	hello, err := f.NewObject("of_hello")
	if err != nil {
		return nil, err
	}

	return hello.Set("xid", header.Xid), nil
}

// negotiateVersion returns the highest version both sides support. A hello
// with a version bitmap element is matched bit by bit; otherwise the lower
// of the two header versions wins.
func negotiateVersion(s *schema.Schema, hello *codec.Object) schema.Version {
	for _, elem := range hello.List("elements") {
		if elem.Class != "of_hello_elem_versionbitmap" {
			continue
		}
		bitmaps := elem.List("bitmaps")
		if len(bitmaps) == 0 {
			break
		}
		bits, _ := bitmaps[0].Uint("value")
		versions := s.Versions()
		for i := len(versions) - 1; i >= 0; i-- {
			if bits&(1<<uint(versions[i])) != 0 {
				return versions[i]
			}
		}
		return schema.VersionInvalid
	}

	versions := s.Versions()
	for i := len(versions) - 1; i >= 0; i-- {
		if versions[i] <= hello.Version {
			return versions[i]
		}
	}

	return schema.VersionInvalid
}

func (r *Transceiver) runReader(ctx context.Context) <-chan []byte {
	// Buffered channel
	c := make(chan []byte, 4096)
	go func() {
		// The channel c will be closed when this goroutine returns in order to notice the connection has been closed.
		defer close(c)
		defer logger.Info("transceiver reader is closed")

		lastActivated := time.Now()
		for {
			select {
			case <-ctx.Done():
				logger.Info("context done")
				return
			default:
			}

			packet, _, err := r.stream.ReadMessage()
			if err != nil {
				if !isTimeout(err) {
					logger.Errorf("failed to read the next message: %v", err)
					return
				}
				// Timeout occurs. Send a ping request if necessary.
				if time.Now().After(lastActivated.Add(r.maxIdle)) {
					if err := r.sendEchoRequest(); err != nil {
						logger.Errorf("failed to send an echo request: %v", err)
						return
					}
					lastActivated = time.Now()
				}
				continue
			}
			lastActivated = time.Now()

			ok, err := r.handleEcho(packet)
			if err != nil {
				logger.Errorf("failed to handle the echo request or reply: %v", err)
				return
			}
			if ok {
				// Do not forward the echo request and reply
				// messages because this reader handles them.
				continue
			}

			select {
			case c <- packet:
			default:
				// Drop the message if we cannot immediately carry it.
				logger.Error("transceiver buffer full: drop the incoming message!")
			}
		}
	}()

	return c
}

func isTemporaryErr(err error) bool {
	if _, ok := err.(*codec.ParseError); ok {
		// A malformed message does not break the framing of the stream.
		return true
	}
	e, ok := errors.Cause(err).(interface {
		Temporary() bool
	})
	return ok && e.Temporary()
}

func (r *Transceiver) sendEchoRequest() error {
	f := r.getFactory()
	if f == nil {
		// Not yet negotiated
		return nil
	}

	r.mutex.Lock()
	count := r.pingCounter
	r.mutex.Unlock()
	if count >= maxPingCount {
		return errors.New("device does not respond to our echo request")
	}

	// We use current timestamp to check network latency between our controller and a switch.
	timestamp, err := time.Now().GobEncode()
	if err != nil {
		return err
	}
	echo, err := f.NewEchoRequest(timestamp)
	if err != nil {
		return err
	}
	if err := r.Write(echo); err != nil {
		return errors.Wrap(err, "failed to send ECHO_REQUEST message")
	}

	r.mutex.Lock()
	r.pingCounter++
	r.mutex.Unlock()

	return nil
}

func (r *Transceiver) handleEcho(packet []byte) (handled bool, err error) {
	reg := r.codec.Registry()
	k, err := reg.ResolveMessage(packet)
	if err != nil || reg.FamilyOf(k) != registry.Message {
		// Leave it to the dispatcher that reports the problem.
		return false, nil
	}

	switch reg.Schema().Class(k).Name {
	case "of_echo_request":
		return true, r.handleEchoRequest(packet)
	case "of_echo_reply":
		return true, r.handleEchoReply(packet)
	default:
		// Do not anything for other types of the message
		return false, nil
	}
}

func (r *Transceiver) handleEchoRequest(packet []byte) error {
	msg, _, err := r.codec.Decode(packet)
	if err != nil {
		return err
	}
	logger.Debug("received an ECHO_REQUEST message")

	// Before negotiation the request is answered in its own version.
	f := r.getFactory()
	if f == nil || f.Version() != msg.Version {
		if f, err = openflow.NewFactory(r.codec, msg.Version); err != nil {
			return err
		}
	}
	xid, _ := msg.Uint("xid")
	// Copy transaction ID and data from the incoming echo request message
	reply, err := f.NewEchoReply(uint32(xid), msg.Bytes("data"))
	if err != nil {
		return err
	}

	if err := r.Write(reply); err != nil {
		return errors.Wrap(err, "failed to send ECHO_REPLY message")
	}
	logger.Debug("sent an ECHO_REPLY message")

	return nil
}

func (r *Transceiver) handleEchoReply(packet []byte) error {
	msg, _, err := r.codec.Decode(packet)
	if err != nil {
		return err
	}
	logger.Debug("received an ECHO_REPLY message")

	r.mutex.Lock()
	defer r.mutex.Unlock()
	// Reset the ping counter
	r.pingCounter = 0

	data := msg.Bytes("data")
	timestamp := time.Time{}
	if err := timestamp.GobDecode(data); err != nil {
		// I notice some broken switch sends an unexpected echo reply data.
		// So, ignores the soft error to avoid switch disconnection.
		logger.Debug("unexpected timestamp data in the ECHO_REPLY message")
		return nil
	}
	r.latency = time.Since(timestamp)
	logger.Debugf("transceiver latency: %v", r.latency)

	return nil
}

func (r *Transceiver) dispatch(packet []byte) error {
	f := r.getFactory()
	if schema.Version(packet[0]) != f.Version() {
		return errors.Errorf("mis-matched OpenFlow version: negotiated=%v, packet=%v", f.Version(), schema.Version(packet[0]))
	}

	msg, _, err := r.codec.Decode(packet)
	if err != nil {
		return err
	}
	if xid, ok := msg.Uint("xid"); ok {
		if req, ok := r.tracker.Complete(uint32(xid)); ok {
			logger.Debugf("%v (xid=%v) is answered by %v in %v", req.Class, xid, msg.Class, time.Since(req.Sent))
		}
	}

	return r.handler.OnMessage(f, r, msg)
}
