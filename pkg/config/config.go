// Zaparoo Nextion
// Copyright (c) 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Zaparoo Nextion.
//
// Zaparoo Nextion is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Zaparoo Nextion is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Zaparoo Nextion.  If not, see <http://www.gnu.org/licenses/>.

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/ZaparooProject/zaparoo-nextion/pkg/download"
	"github.com/ZaparooProject/zaparoo-nextion/pkg/helpers/syncutil"
	"github.com/google/uuid"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog/log"
)

const (
	SchemaVersion = 1
	CfgEnv        = "NEXTIONDL_CFG"
	CfgFile       = "nextiondl.toml"

	CheckModeAuto   = "auto"
	CheckModeManual = "manual"
	PersistComplete = "complete"
	PersistHeader   = "header"
	StoreKindFile   = "file"
	StoreKindBolt   = "bolt"

	DefaultStoreFile = "eeprom.bin"
	DefaultBoltFile  = "nextiondl.db"
)

var ErrSchemaMismatch = errors.New("schema version mismatch")

type Values struct {
	MQTT           MQTT     `toml:"mqtt,omitempty"`
	Serial         Serial   `toml:"serial"`
	Store          Store    `toml:"store"`
	SentryDSN      string   `toml:"sentry_dsn,omitempty" validate:"omitempty,url"`
	DeviceID       string   `toml:"device_id"`
	Download       Download `toml:"download"`
	ConfigSchema   int      `toml:"config_schema"`
	DebugLogging   bool     `toml:"debug_logging"`
	ErrorReporting bool     `toml:"error_reporting"`
}

type Download struct {
	Host          string `toml:"host" validate:"required,hostname_rfc1123|ip"`
	Path          string `toml:"path" validate:"required"`
	CheckMode     string `toml:"check_mode" validate:"oneof=auto manual"`
	Persist       string `toml:"persist" validate:"oneof=complete header"`
	Port          int    `toml:"port" validate:"min=1,max=65535"`
	UploadBaud    int    `toml:"upload_baud" validate:"nextion_baud"`
	RestartWaitMs int    `toml:"restart_wait_ms" validate:"min=0"`
	BootWaitMs    int    `toml:"boot_wait_ms" validate:"min=0"`
	Force         bool   `toml:"force"`
	Retry         bool   `toml:"retry"`
}

type Serial struct {
	Path        string `toml:"path" validate:"required"`
	WriteWindow int    `toml:"write_window" validate:"min=0"`
}

type Store struct {
	Kind string `toml:"kind" validate:"oneof=file bolt"`
	Path string `toml:"path,omitempty"`
	Slot int    `toml:"slot" validate:"min=0"`
}

type MQTT struct {
	Broker string   `toml:"broker,omitempty" validate:"omitempty,hostname_port|url"`
	Topic  string   `toml:"topic,omitempty" validate:"required_with=Broker"`
	Filter []string `toml:"filter,omitempty" validate:"dive,oneof=updated not-modified failed aborted"`
}

var BaseDefaults = Values{
	ConfigSchema: SchemaVersion,
	Download: Download{
		Port:          download.DefaultPort,
		Path:          "/nextion.tft",
		UploadBaud:    download.DefaultUploadBaud,
		CheckMode:     CheckModeAuto,
		Persist:       PersistComplete,
		RestartWaitMs: int(download.DefaultRestartWait / time.Millisecond),
		BootWaitMs:    4000,
	},
	Serial: Serial{
		Path: "/dev/ttyUSB0",
	},
	Store: Store{
		Kind: StoreKindFile,
	},
}

type Instance struct {
	cfgPath  string
	vals     Values
	defaults Values
	mu       syncutil.RWMutex
}

// NewConfig loads the config from configDir, or from the path in
// NEXTIONDL_CFG if set. A missing file is created with the defaults.
//
//nolint:gocritic // config struct copied for immutability
func NewConfig(configDir string, defaults Values) (*Instance, error) {
	cfgPath := os.Getenv(CfgEnv)
	log.Debug().Msgf("env config path: %s", cfgPath)

	if cfgPath == "" {
		cfgPath = filepath.Join(configDir, CfgFile)
	}

	cfg := Instance{
		cfgPath:  cfgPath,
		vals:     defaults,
		defaults: defaults,
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		log.Info().Msg("saving new default config to disk")

		err := os.MkdirAll(filepath.Dir(cfgPath), 0o750)
		if err != nil {
			return nil, fmt.Errorf("failed to create config directory: %w", err)
		}

		err = cfg.Save()
		if err != nil {
			return nil, err
		}
	}

	err := cfg.Load()
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Path returns the location of the config file.
func (c *Instance) Path() string {
	return c.cfgPath
}

func (c *Instance) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfgPath == "" {
		return errors.New("config path not set")
	}

	data, err := os.ReadFile(c.cfgPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	// fields missing from the file keep their defaults
	newVals := c.defaults
	err = toml.Unmarshal(data, &newVals)
	if err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if newVals.ConfigSchema != SchemaVersion {
		log.Error().Msgf(
			"schema version mismatch: got %d, expecting %d",
			newVals.ConfigSchema,
			SchemaVersion,
		)
		return ErrSchemaMismatch
	}

	c.vals = newVals
	return nil
}

func (c *Instance) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfgPath == "" {
		return errors.New("config path not set")
	}

	c.vals.ConfigSchema = SchemaVersion

	if c.vals.DeviceID == "" {
		newID := uuid.New().String()
		c.vals.DeviceID = newID
		log.Info().Msgf("generated new device id: %s", newID)
	}

	data, err := toml.Marshal(&c.vals)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(c.cfgPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks the loaded values. A freshly created config fails until
// the download host is filled in.
func (c *Instance) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return validate(&c.vals)
}

func (c *Instance) DebugLogging() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.DebugLogging
}

func (c *Instance) SetDebugLogging(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.DebugLogging = enabled
}

func (c *Instance) ErrorReporting() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.ErrorReporting
}

func (c *Instance) SentryDSN() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.SentryDSN
}

func (c *Instance) DeviceID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.DeviceID
}

func (c *Instance) SerialPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Serial.Path
}

func (c *Instance) SerialWriteWindow() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Serial.WriteWindow
}

func (c *Instance) UploadBaud() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Download.UploadBaud
}

func (c *Instance) StoreKind() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Store.Kind
}

// StorePath resolves the store location. Relative paths and the default
// file name are placed under dataDir.
func (c *Instance) StorePath(dataDir string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	path := c.vals.Store.Path
	if path == "" {
		if c.vals.Store.Kind == StoreKindBolt {
			path = DefaultBoltFile
		} else {
			path = DefaultStoreFile
		}
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dataDir, path)
}

// MQTT returns the publisher settings; an empty broker disables
// publishing.
func (c *Instance) MQTT() MQTT {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m := c.vals.MQTT
	m.Filter = slices.Clone(m.Filter)
	return m
}

// TransferConfig converts the [download] and [store] sections into the
// downloader's settings.
func (c *Instance) TransferConfig() download.Config {
	c.mu.RLock()
	defer c.mu.RUnlock()

	d := c.vals.Download
	cfg := download.DefaultConfig()
	cfg.Host = d.Host
	cfg.Path = d.Path
	cfg.Port = d.Port
	cfg.UploadBaud = d.UploadBaud
	cfg.StoreSlot = c.vals.Store.Slot
	cfg.RestartWait = time.Duration(d.RestartWaitMs) * time.Millisecond
	cfg.BootWait = time.Duration(d.BootWaitMs) * time.Millisecond
	cfg.Force = d.Force
	cfg.Retry = d.Retry

	if d.CheckMode == CheckModeManual {
		cfg.CheckMode = download.CheckModeManual
	} else {
		cfg.CheckMode = download.CheckModeAuto
	}
	if d.Persist == PersistHeader {
		cfg.Persist = download.PersistOnHeader
	} else {
		cfg.Persist = download.PersistOnComplete
	}
	return cfg
}
