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
	"bytes"
	_ "embed"
	"sync"

	"github.com/superkkt/ofwire/codec"
	"github.com/superkkt/ofwire/registry"
	"github.com/superkkt/ofwire/schema"

	"github.com/op/go-logging"
)

const (
	OF10_VERSION = uint8(schema.Version10)
	OF11_VERSION = uint8(schema.Version11)
	OF12_VERSION = uint8(schema.Version12)
	OF13_VERSION = uint8(schema.Version13)
)

var (
	logger = logging.MustGetLogger("openflow")

	//go:embed openflow.toml
	builtin []byte

	once     sync.Once
	defaults struct {
		schema   *schema.Schema
		registry *registry.Registry
		codec    *codec.Codec
	}
)

func load() {
	s, err := schema.Load(bytes.NewReader(builtin))
	if err != nil {
		logger.Panicf("failed to build the built-in OpenFlow schema: %v", err)
	}
	reg, err := registry.New(s)
	if err != nil {
		logger.Panicf("failed to build the built-in OpenFlow registry: %v", err)
	}
	logger.Debugf("built-in OpenFlow schema is loaded: %v classes, versions=%v", s.NumClasses(), s.Versions())

	defaults.schema = s
	defaults.registry = reg
	defaults.codec = codec.New(reg)
}

// Schema returns the built-in OpenFlow 1.0 - 1.3 schema. It is built on the
// first call; a broken built-in schema panics.
func Schema() *schema.Schema {
	once.Do(load)
	return defaults.schema
}

// Registry returns the registry of the built-in schema.
func Registry() *registry.Registry {
	once.Do(load)
	return defaults.registry
}

// Codec returns a codec of the built-in schema with default options.
func Codec() *codec.Codec {
	once.Do(load)
	return defaults.codec
}

// Source returns the TOML text of the built-in schema.
func Source() []byte {
	return append([]byte(nil), builtin...)
}
