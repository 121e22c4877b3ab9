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
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"

	"github.com/superkkt/ofwire/codec"
	"github.com/superkkt/ofwire/openflow"
	"github.com/superkkt/ofwire/openflow/transceiver"

	"github.com/davecgh/go-spew/spew"
	"github.com/go-faster/jx"
	"github.com/iancoleman/strcase"
)

var spewConfig = spew.ConfigState{
	Indent:                  "  ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
}

// printer writes decoded messages to w. It is safe to share between
// connections.
type printer struct {
	mutex  sync.Mutex
	w      io.Writer
	format string
}

func newPrinter(w io.Writer, format string) *printer {
	return &printer{w: w, format: strings.ToLower(format)}
}

func (r *printer) OnMessage(f *openflow.Factory, w transceiver.Writer, msg *codec.Object) error {
	return r.print(msg)
}

func (r *printer) print(msg *codec.Object) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	switch r.format {
	case "json":
		_, err := fmt.Fprintf(r.w, "%s\n", marshalJSON(msg))
		return err
	case "spew":
		spewConfig.Fdump(r.w, msg)
		return nil
	default:
		fmt.Fprintf(r.w, "%v (version=%v)\n", displayName(msg.Class), msg.Version)
		writeFields(r.w, msg, 1)
		return nil
	}
}

func displayName(class string) string {
	return strcase.ToCamel(strings.TrimPrefix(class, "of_"))
}

func writeFields(w io.Writer, obj *codec.Object, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, f := range obj.Fields {
		name := strcase.ToCamel(f.Name)
		switch v := f.Value.(type) {
		case *codec.Object:
			if v == nil {
				fmt.Fprintf(w, "%v%v: <nil>\n", indent, name)
				continue
			}
			fmt.Fprintf(w, "%v%v: %v\n", indent, name, displayName(v.Class))
			writeFields(w, v, depth+1)
		case []*codec.Object:
			fmt.Fprintf(w, "%v%v: [%v]\n", indent, name, len(v))
			for _, elem := range v {
				fmt.Fprintf(w, "%v  - %v\n", indent, displayName(elem.Class))
				writeFields(w, elem, depth+2)
			}
		case []byte:
			fmt.Fprintf(w, "%v%v: %v\n", indent, name, hex.EncodeToString(v))
		case string:
			fmt.Fprintf(w, "%v%v: %q\n", indent, name, v)
		default:
			fmt.Fprintf(w, "%v%v: %v\n", indent, name, v)
		}
	}
}

func marshalJSON(obj *codec.Object) []byte {
	e := &jx.Encoder{}
	encodeObject(e, obj)
	return e.Bytes()
}

func encodeObject(e *jx.Encoder, obj *codec.Object) {
	if obj == nil {
		e.Null()
		return
	}

	e.ObjStart()
	e.FieldStart("class")
	e.Str(obj.Class)
	e.FieldStart("version")
	e.Str(obj.Version.String())
	for _, f := range obj.Fields {
		e.FieldStart(strcase.ToLowerCamel(f.Name))
		encodeValue(e, f.Value)
	}
	e.ObjEnd()
}

func encodeValue(e *jx.Encoder, value interface{}) {
	switch v := value.(type) {
	case uint8:
		e.UInt8(v)
	case uint16:
		e.UInt16(v)
	case uint32:
		e.UInt32(v)
	case uint64:
		e.UInt64(v)
	case string:
		e.Str(v)
	case net.HardwareAddr:
		e.Str(v.String())
	case net.IP:
		e.Str(v.String())
	case []byte:
		e.Str(hex.EncodeToString(v))
	case *codec.Object:
		encodeObject(e, v)
	case []*codec.Object:
		e.ArrStart()
		for _, elem := range v {
			encodeObject(e, elem)
		}
		e.ArrEnd()
	default:
		e.Str(fmt.Sprint(v))
	}
}
