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

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/ZaparooProject/zaparoo-nextion/internal/telemetry"
	"github.com/ZaparooProject/zaparoo-nextion/pkg/cli"
	"github.com/ZaparooProject/zaparoo-nextion/pkg/config"
	"github.com/ZaparooProject/zaparoo-nextion/pkg/helpers"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func run() error {
	fs := flag.CommandLine
	flags := cli.SetupFlags(fs)

	exit, err := flags.Pre(fs, os.Args[1:], os.Stdout)
	if err != nil || exit {
		return err
	}

	dirs, err := cli.DefaultDirs()
	if err != nil {
		return err
	}

	var logWriters []io.Writer
	if *flags.Foreground {
		logWriters = []io.Writer{helpers.ConsoleWriter()}
	}

	cfg, err := cli.Setup(dirs, config.BaseDefaults, logWriters)
	if err != nil {
		return err
	}
	defer telemetry.Close()

	defer func() {
		if err := recover(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Panic: %s\n", err)
			telemetry.Flush()
			log.Fatal().Msgf("panic: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().Str("version", config.AppVersion).Str("config", cfg.Path()).Msg("nextiondl started")

	if err := cli.Run(ctx, cfg, flags, dirs); err != nil {
		log.Error().Err(err).Msg("nextiondl stopped with error")
		return err
	}

	log.Info().Msg("nextiondl stopped")
	return nil
}
