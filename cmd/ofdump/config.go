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
	"os"
	"strings"

	"github.com/superkkt/ofwire/codec"
	"github.com/superkkt/ofwire/log"
	"github.com/superkkt/ofwire/openflow/transceiver"

	"github.com/fsnotify/fsnotify"
	"github.com/op/go-logging"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	defaultPort   = 6653
	defaultFormat = "text"
)

func initConfig(path string) {
	viper.SetDefault("default.log_level", "info")
	viper.SetDefault("default.log_driver", "stderr")
	viper.SetDefault("default.log_facility", "daemon")
	viper.SetDefault("default.port", defaultPort)
	viper.SetDefault("default.format", defaultFormat)
	viper.SetDefault("decode.max_depth", codec.DefaultMaxDepth)
	viper.SetDefault("tracker.size", transceiver.DefaultTrackerSize)

	if len(path) > 0 {
		viper.SetConfigFile(path)
		// Read the config file.
		if err := viper.ReadInConfig(); err != nil {
			logger.Fatalf("failed to read the config file: %v", err)
		}

		// Watching and re-reading config file whenever it changes.
		viper.OnConfigChange(func(e fsnotify.Event) {
			// Ignore all the fsnotify operations except WRITE to avoid reading empty config.
			if e.Op != fsnotify.Write {
				return
			}
			logger.Infof("config file changed: %v", e.Name)
			if loggerLeveled != nil {
				// Set log level for all modules
				loggerLeveled.SetLevel(getLogLevel(), "")
			}
		})
		viper.WatchConfig()
	}

	if err := validateConfig(); err != nil {
		logger.Fatalf("invalid configuration: %v", err)
	}
}

// validateConfig validates essential configurations.
func validateConfig() error {
	port := viper.GetInt("default.port")
	if port <= 0 || port > 0xFFFF {
		return errors.Errorf("invalid default.port: %v", port)
	}
	if _, err := log.ParseFacility(viper.GetString("default.log_facility")); err != nil {
		return errors.Wrap(err, "invalid default.log_facility")
	}
	switch strings.ToLower(viper.GetString("default.format")) {
	case "text", "json", "spew":
	default:
		return errors.Errorf("invalid default.format: %v", viper.GetString("default.format"))
	}
	if viper.GetInt("decode.max_depth") <= 0 {
		return errors.New("decode.max_depth should be greater than zero")
	}
	if viper.GetInt("tracker.size") <= 0 {
		return errors.New("tracker.size should be greater than zero")
	}
	if path := viper.GetString("schema.path"); len(path) > 0 {
		if _, err := os.Stat(path); err != nil {
			return errors.Wrap(err, "invalid schema.path")
		}
	}

	return nil
}

func getLogLevel() logging.Level {
	level, err := log.ParseLevel(viper.GetString("default.log_level"), log.DefaultLevel)
	if err != nil {
		logger.Errorf("%v, defaulting to %v..", err, log.DefaultLevel)
	}

	return level
}
