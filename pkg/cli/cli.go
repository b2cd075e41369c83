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

// Package cli holds the flags and process setup shared by the nextiondl
// entry points.
package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ZaparooProject/zaparoo-nextion/internal/telemetry"
	"github.com/ZaparooProject/zaparoo-nextion/pkg/config"
	"github.com/ZaparooProject/zaparoo-nextion/pkg/helpers"
	"github.com/rs/zerolog/log"
)

var ErrInvalidFlag = errors.New("invalid flag")

type Flags struct {
	Config     *string
	File       *string
	DoneText   *string
	Check      *bool
	Force      *bool
	Once       *bool
	Foreground *bool
	Version    *bool
}

// SetupFlags defines all CLI flags on fs.
func SetupFlags(fs *flag.FlagSet) *Flags {
	return &Flags{
		Config: fs.String(
			"config",
			"",
			"path to config file (overrides "+config.CfgEnv+")",
		),
		File: fs.String(
			"file",
			"",
			"upload a local .tft file to the display and exit",
		),
		DoneText: fs.String(
			"done-text",
			"",
			"set component text after an update, e.g. t0=updated",
		),
		Check: fs.Bool(
			"check",
			false,
			"request an update check at startup",
		),
		Force: fs.Bool(
			"force",
			false,
			"download even if the file is not modified",
		),
		Once: fs.Bool(
			"once",
			false,
			"exit after the first finished check",
		),
		Foreground: fs.Bool(
			"foreground",
			false,
			"also log to stderr",
		),
		Version: fs.Bool(
			"version",
			false,
			"print version and exit",
		),
	}
}

// Pre parses args. It reports true when the process should exit without
// doing anything else.
func (f *Flags) Pre(fs *flag.FlagSet, args []string, out io.Writer) (bool, error) {
	if err := fs.Parse(args); err != nil {
		return true, fmt.Errorf("failed to parse flags: %w", err)
	}

	if *f.Version {
		_, _ = fmt.Fprintf(out, "nextiondl v%s\n", config.AppVersion)
		return true, nil
	}

	if *f.DoneText != "" {
		if _, _, err := ParseDoneText(*f.DoneText); err != nil {
			return true, err
		}
	}

	if *f.Config != "" {
		if err := os.Setenv(config.CfgEnv, *f.Config); err != nil {
			return true, fmt.Errorf("failed to set config path: %w", err)
		}
	}
	return false, nil
}

// ParseDoneText splits a "component=text" flag value.
func ParseDoneText(value string) (component, text string, err error) {
	component, text, ok := strings.Cut(value, "=")
	component = strings.TrimSpace(component)
	if !ok || component == "" {
		return "", "", fmt.Errorf("%w: done-text must be component=text, got %q", ErrInvalidFlag, value)
	}
	return component, text, nil
}

// Dirs are the locations the process reads and writes.
type Dirs struct {
	Config string
	Data   string
	Log    string
}

// DefaultDirs resolves the per-user directories.
func DefaultDirs() (Dirs, error) {
	configDir, err := helpers.ConfigDir()
	if err != nil {
		return Dirs{}, err
	}
	dataDir, err := helpers.DataDir()
	if err != nil {
		return Dirs{}, err
	}
	logDir, err := helpers.LogDir()
	if err != nil {
		return Dirs{}, err
	}
	return Dirs{Config: configDir, Data: dataDir, Log: logDir}, nil
}

// Setup initializes directories, logging, the user config and error
// reporting, in that order.
//
//nolint:gocritic // config struct copied for immutability
func Setup(dirs Dirs, defaultConfig config.Values, writers []io.Writer) (*config.Instance, error) {
	// directories must exist before logging starts
	if err := helpers.EnsureDirectories(dirs.Data, dirs.Log); err != nil {
		return nil, fmt.Errorf("error creating directories: %w", err)
	}

	if err := helpers.InitLogging(dirs.Log, false, writers); err != nil {
		return nil, fmt.Errorf("error initializing logging: %w", err)
	}

	cfg, err := config.NewConfig(dirs.Config, defaultConfig)
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}

	helpers.SetDebugLogging(cfg.DebugLogging())

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("error in %s: %w", cfg.Path(), err)
	}

	// error reporting is opt-in
	if err := telemetry.Init(telemetry.Options{
		Enabled:  cfg.ErrorReporting(),
		DSN:      cfg.SentryDSN(),
		DeviceID: cfg.DeviceID(),
		Version:  config.AppVersion,
	}); err != nil {
		log.Warn().Err(err).Msg("failed to initialize error reporting")
	}

	return cfg, nil
}
