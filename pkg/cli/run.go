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

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ZaparooProject/zaparoo-nextion/internal/telemetry"
	"github.com/ZaparooProject/zaparoo-nextion/pkg/config"
	"github.com/ZaparooProject/zaparoo-nextion/pkg/download"
	"github.com/ZaparooProject/zaparoo-nextion/pkg/helpers"
	"github.com/ZaparooProject/zaparoo-nextion/pkg/netconn"
	"github.com/ZaparooProject/zaparoo-nextion/pkg/nextion"
	"github.com/ZaparooProject/zaparoo-nextion/pkg/publishers"
	"github.com/ZaparooProject/zaparoo-nextion/pkg/store"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

const (
	TickInterval = 10 * time.Millisecond
	DialTimeout  = 10 * time.Second
	resultBuffer = 8
)

var ErrUpdateFailed = errors.New("update failed")

// Run opens the display and either uploads a local file or runs the
// download loop until ctx is cancelled.
func Run(ctx context.Context, cfg *config.Instance, flags *Flags, dirs Dirs) error {
	path, err := helpers.ResolveSerialPath(cfg.SerialPath(), nil)
	if err != nil {
		return err
	}

	port, err := nextion.OpenSerialPort(path, cfg.SerialWriteWindow(), nil)
	if err != nil {
		return fmt.Errorf("error opening display: %w", err)
	}
	defer func() {
		if err := port.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing serial port")
		}
	}()

	clock := clockwork.NewRealClock()
	driver := nextion.NewDriver(port, clock)

	if *flags.File != "" {
		return UploadFile(ctx, afero.NewOsFs(), driver, *flags.File, cfg.UploadBaud())
	}

	st, closeStore, err := OpenStore(afero.NewOsFs(), cfg.StoreKind(), cfg.StorePath(dirs.Data))
	if err != nil {
		return err
	}
	defer closeStore()

	opts := LoopOptions{
		Interval: TickInterval,
		Check:    *flags.Check,
		Force:    *flags.Force,
		Once:     *flags.Once,
	}
	if *flags.DoneText != "" {
		opts.DoneComponent, opts.DoneText, _ = ParseDoneText(*flags.DoneText)
	}

	return runService(ctx, cfg, service{
		driver:    driver,
		store:     st,
		network:   netconn.NewClient(DialTimeout),
		ready:     netconn.Ready,
		clock:     clock,
		tickClock: clock,
	}, opts)
}

// service holds what the download loop runs against. clock times the
// protocol waits and tickClock paces the loop.
type service struct {
	store         store.Store
	network       download.Network
	clock         clockwork.Clock
	tickClock     clockwork.Clock
	driver        *nextion.Driver
	ready         func() bool
	publisherOpts []publishers.Option
}

//nolint:gocritic // options struct copied once at startup
func runService(ctx context.Context, cfg *config.Instance, svc service, opts LoopOptions) error {
	results := make(chan download.Result, resultBuffer)
	mqttCfg := cfg.MQTT()

	var publisher *publishers.MQTTPublisher
	if mqttCfg.Broker != "" {
		publisher = publishers.NewMQTTPublisher(mqttCfg.Broker, mqttCfg.Topic, cfg.DeviceID(),
			mqttCfg.Filter, svc.publisherOpts...)
		if err := publisher.Start(results); err != nil {
			log.Error().Err(err).Msg("error starting mqtt publisher")
			publisher = nil
		}
	}
	defer func() {
		if publisher != nil {
			publisher.Stop()
		}
	}()

	dl := download.New(
		cfg.TransferConfig(),
		svc.driver,
		svc.network,
		svc.store,
		download.WithClock(svc.clock),
		download.WithObserver(&download.MD5Observer{}),
		download.WithNetworkReady(svc.ready),
		download.WithResultHandler(func(r download.Result) {
			telemetry.ReportResult(r)
			if publisher == nil {
				return
			}
			select {
			case results <- r:
			default:
				log.Warn().Str("attempt", r.AttemptID).Msg("result queue full, not publishing")
			}
		}),
	)

	g, gctx := errgroup.WithContext(ctx)
	loopCtx, stopWatch := context.WithCancel(gctx)

	g.Go(func() error {
		defer stopWatch()
		dl.Setup()
		return RunLoop(loopCtx, dl, svc.driver, svc.tickClock, opts)
	})
	g.Go(func() error {
		err := cfg.Watch(loopCtx, func() {
			helpers.SetDebugLogging(cfg.DebugLogging())
		})
		if err != nil {
			log.Warn().Err(err).Msg("config reload disabled")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("service stopped: %w", err)
	}
	return nil
}

// UploadFile sends a local .tft file straight to the display.
func UploadFile(ctx context.Context, fs afero.Fs, driver *nextion.Driver, path string, baud int) error {
	info, err := fs.Stat(path)
	if err != nil {
		return fmt.Errorf("error reading upload file: %w", err)
	}

	f, err := fs.Open(path)
	if err != nil {
		return fmt.Errorf("error opening upload file: %w", err)
	}
	defer func(c io.Closer) {
		_ = c.Close()
	}(f)

	if _, ok := driver.DetectBaud(); !ok {
		return download.ErrDisplayNotFound
	}

	size := int(info.Size())
	obs := &download.MD5Observer{}
	obs.Begin(size)
	log.Info().Str("file", path).Int("size", size).Int("baud", baud).Msg("uploading file to display")

	err = driver.Upload(ctx, f, size, baud, func(offset int, block []byte) {
		obs.Block(offset, block)
	})
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	obs.Complete(size)
	return nil
}

// OpenStore opens the metadata store of the configured kind. The returned
// func closes it.
func OpenStore(fs afero.Fs, kind, path string) (store.Store, func(), error) {
	switch kind {
	case config.StoreKindBolt:
		bs, err := store.OpenBoltStore(path)
		if err != nil {
			return nil, nil, fmt.Errorf("error opening store: %w", err)
		}
		return bs, func() {
			if err := bs.Close(); err != nil {
				log.Warn().Err(err).Msg("error closing store")
			}
		}, nil
	case config.StoreKindFile, "":
		return store.NewFileStore(fs, path), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown store kind %q", ErrInvalidFlag, kind)
	}
}
