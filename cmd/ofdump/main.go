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


package main

import (
	"bufio"
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/superkkt/ofwire/codec"
	"github.com/superkkt/ofwire/log"
	"github.com/superkkt/ofwire/openflow"
	"github.com/superkkt/ofwire/openflow/transceiver"
	"github.com/superkkt/ofwire/registry"
	"github.com/superkkt/ofwire/schema"

	"github.com/op/go-logging"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	programName    = "ofdump"
	programVersion = "0.9.0"
)

var (
	logger        = logging.MustGetLogger("main")
	loggerLeveled logging.LeveledBackend

	showHelp    = flag.Bool("help", false, "show this help and exit")
	showVersion = flag.Bool("version", false, "show program version and exit")
	configFile  = flag.String("config", "", "absolute path of the configuration file")
	listen      = flag.Bool("listen", false, "accept OpenFlow switches and print every message they send")
	format      = flag.String("format", "", "output format: text, json or spew")
)

func main() {
	parseCmdLines()
	initConfig(*configFile)
	initLog()

	c, err := initCodec()
	if err != nil {
		logger.Fatalf("failed to init the codec: %v", err)
	}
	if len(*format) > 0 {
		viper.Set("default.format", *format)
		if err := validateConfig(); err != nil {
			logger.Fatalf("invalid command-line option: %v", err)
		}
	}
	p := newPrinter(os.Stdout, viper.GetString("default.format"))

	if *listen == false {
		if err := dumpInput(c, p, flag.Args()); err != nil {
			logger.Fatalf("failed to decode the input: %v", err)
		}
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		waitSignal()
		cancel()
	}()
	if err := serve(ctx, c, p); err != nil {
		logger.Fatalf("failed to run the listener: %v", err)
	}
	logger.Infof("%v (version %v) shutdown complete!", programName, programVersion)
}

// Handle the command-line arguments.
func parseCmdLines() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %v [options] [hex...]\n\n", programName)
		fmt.Fprintf(os.Stderr, "Decodes hex encoded OpenFlow messages given as arguments or read from stdin line by line.\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}
	if *showVersion {
		fmt.Printf("%v v%v\n", programName, programVersion)
		os.Exit(0)
	}
}

func initLog() {
	var err error
	loggerLeveled, err = log.Init(log.Config{
		Driver:   viper.GetString("default.log_driver"),
		Facility: viper.GetString("default.log_facility"),
		Prefix:   programName,
		Level:    getLogLevel(),
	})
	if err != nil {
		logger.Fatalf("failed to init log: %v", err)
	}
}

// initCodec returns the codec of the schema file given by schema.path, or of
// the built-in schema if there is no such configuration.
func initCodec() (*codec.Codec, error) {
	reg := openflow.Registry()
	if path := viper.GetString("schema.path"); len(path) > 0 {
		s, err := schema.LoadFile(path)
		if err != nil {
			return nil, err
		}
		reg, err = registry.New(s)
		if err != nil {
			return nil, err
		}
		logger.Infof("schema is loaded from %v: %v classes, versions=%v", path, s.NumClasses(), s.Versions())
	}

	return codec.New(reg, codec.WithMaxDepth(viper.GetInt("decode.max_depth"))), nil
}

func dumpInput(c *codec.Codec, p *printer, args []string) error {
	if len(args) > 0 {
		return dumpHex(c, p, strings.Join(args, ""))
	}

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 0xFFFF), 4*0xFFFF)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if len(line) == 0 || strings.HasPrefix(line, "#") {
			continue
		}
		if err := dumpHex(c, p, line); err != nil {
			// Keep going with the next line.
			logger.Errorf("%v", err)
		}
	}

	return scanner.Err()
}

func dumpHex(c *codec.Codec, p *printer, text string) error {
	messages, err := decodeHex(c, text)
	for _, msg := range messages {
		if err := p.print(msg); err != nil {
			return err
		}
	}

	return err
}

// decodeHex decodes every message packed in the hex string text. Messages
// decoded before a malformed one are returned along with the error.
func decodeHex(c *codec.Codec, text string) ([]*codec.Object, error) {
	buf, err := hex.DecodeString(strings.Join(strings.Fields(text), ""))
	if err != nil {
		return nil, errors.Wrap(err, "invalid hex string")
	}

	var messages []*codec.Object
	for len(buf) > 0 {
		header, err := codec.Peek(buf)
		if err != nil {
			return messages, err
		}
		if int(header.Length) > len(buf) {
			return messages, errors.Errorf("truncated message: length=%v, remaining=%v", header.Length, len(buf))
		}
		msg, _, err := c.Decode(buf[:header.Length])
		if err != nil {
			return messages, err
		}
		messages = append(messages, msg)
		buf = buf[header.Length:]
	}

	return messages, nil
}

func serve(ctx context.Context, c *codec.Codec, p *printer) error {
	port := viper.GetInt("default.port")
	l, err := net.Listen("tcp", fmt.Sprintf(":%v", port))
	if err != nil {
		return err
	}
	logger.Infof("listening on TCP port %v", port)
	go func() {
		<-ctx.Done()
		l.Close()
	}()

	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		logger.Infof("new switch is connected: %v", conn.RemoteAddr())
		go handleConn(ctx, conn, c, p)
	}
}

func handleConn(ctx context.Context, conn io.ReadWriteCloser, c *codec.Codec, p *printer) {
	defer conn.Close()

	conf := transceiver.Config{TrackerSize: viper.GetInt("tracker.size")}
	t, err := transceiver.NewTransceiver(transceiver.NewStream(conn, 0), c, p, conf)
	if err != nil {
		logger.Errorf("failed to create a transceiver: %v", err)
		return
	}
	if err := t.Run(ctx); err != nil {
		logger.Errorf("transceiver error: %v", err)
	}
}

// waitSignal waits until we receive SIGTERM or SIGINT signals.
func waitSignal() {
	c := make(chan os.Signal, 1)
	// Following signals will be transferred to the channel c.
	signal.Notify(c, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP, syscall.SIGPIPE)

	// Infinite loop.
	for {
		s := <-c
		switch s {
		case syscall.SIGTERM, syscall.SIGINT:
			logger.Infof("caught %v signal: shutting down...", s)
			return
		default:
			logger.Infof("caught %v signal: ignored!", s)
		}
	}
}
