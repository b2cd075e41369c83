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

// Package telemetry provides opt-in error reporting via Sentry.
// All PII is stripped before transmission.
package telemetry

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/ZaparooProject/zaparoo-nextion/pkg/download"
	"github.com/ZaparooProject/zaparoo-nextion/pkg/helpers"
	"github.com/getsentry/sentry-go"
	sentryzerolog "github.com/getsentry/sentry-go/zerolog"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const flushTimeout = 2 * time.Second

var (
	enabled      bool
	sentryWriter *sentryzerolog.Writer
	closeOnce    sync.Once

	// Patterns to strip usernames from file paths
	homePathRe    = regexp.MustCompile(`(?i)/home/[^/]+/`)
	usersPathRe   = regexp.MustCompile(`(?i)/Users/[^/]+/`)
	windowsUserRe = regexp.MustCompile(`(?i)[a-zA-Z]:\\Users\\[^\\]+\\`)
)

// Options configures error reporting. Reporting stays off unless Enabled
// is set and a DSN is given.
type Options struct {
	DSN      string
	DeviceID string
	Version  string
	Enabled  bool
}

// Init initializes Sentry error reporting with zerolog integration.
func Init(opts Options) error {
	if !opts.Enabled {
		log.Debug().Msg("error reporting disabled")
		return nil
	}
	if opts.DSN == "" {
		log.Warn().Msg("error reporting enabled but no sentry_dsn configured")
		return nil
	}

	err := sentry.Init(clientOptions(opts))
	if err != nil {
		return fmt.Errorf("failed to initialize sentry: %w", err)
	}

	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetUser(sentry.User{ID: opts.DeviceID})
		scope.SetTag("os", runtime.GOOS)
		scope.SetTag("arch", runtime.GOARCH)
	})

	sentryWriter, err = sentryzerolog.NewWithHub(sentry.CurrentHub(), sentryzerolog.Options{
		Levels:          []zerolog.Level{zerolog.ErrorLevel, zerolog.FatalLevel, zerolog.PanicLevel},
		FlushTimeout:    flushTimeout,
		WithBreadcrumbs: false,
	})
	if err != nil {
		return fmt.Errorf("failed to create sentry zerolog writer: %w", err)
	}

	log.Logger = log.Output(zerolog.MultiLevelWriter(
		helpers.LogWriter(),
		sentryWriter,
	)).With().Timestamp().Caller().Logger()

	enabled = true
	log.Info().Msg("error reporting enabled")
	return nil
}

func clientOptions(opts Options) sentry.ClientOptions {
	return sentry.ClientOptions{
		Dsn:              opts.DSN,
		Release:          "nextiondl@" + opts.Version,
		AttachStacktrace: true,
		// Privacy: explicitly disable PII collection
		SendDefaultPII: false,
		ServerName:     "",
		MaxBreadcrumbs: 0,
		HTTPClient:     &http.Client{Timeout: 30 * time.Second},
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			return sanitizeEvent(event)
		},
	}
}

// ReportResult sends failed attempts to Sentry. Other outcomes, and
// everything while reporting is disabled, are ignored.
//
//nolint:gocritic // result passed by value like the handler receives it
func ReportResult(r download.Result) {
	if !enabled {
		return
	}
	reportResult(sentry.CurrentHub(), r)
}

//nolint:gocritic // see ReportResult
func reportResult(hub *sentry.Hub, r download.Result) bool {
	if r.Kind != download.ResultFailed || r.Err == nil {
		return false
	}

	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("attempt", r.AttemptID)
		scope.SetTag("failure", failureKind(r.Err))
		if r.Status != 0 {
			scope.SetTag("http_status", strconv.Itoa(r.Status))
		}
		scope.SetExtra("bytes", r.Bytes)
		scope.SetExtra("retries", r.Retries)
		hub.CaptureException(r.Err)
	})
	return true
}

func failureKind(err error) string {
	for _, k := range []struct {
		err  error
		name string
	}{
		{download.ErrTransportUnavailable, "transport"},
		{download.ErrProtocolTimeout, "timeout"},
		{download.ErrHTTPStatus, "http"},
		{download.ErrDisplayNotFound, "display_not_found"},
		{download.ErrDisplayNack, "display_nack"},
		{download.ErrAllocation, "allocation"},
	} {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "other"
}

// Close flushes pending events and shuts down Sentry.
// Safe to call multiple times.
func Close() {
	if !enabled {
		return
	}
	closeOnce.Do(func() {
		_ = sentryWriter.Close()
		sentry.Flush(flushTimeout)
	})
}

// Flush ensures all pending events are sent to Sentry.
// Call this before os.Exit to ensure error events are transmitted.
func Flush() {
	if !enabled {
		return
	}
	sentry.Flush(flushTimeout)
}

// Enabled returns whether telemetry is enabled.
func Enabled() bool {
	return enabled
}

// sanitizeEvent removes PII from Sentry events before sending.
func sanitizeEvent(event *sentry.Event) *sentry.Event {
	// SDK may populate the hostname despite ServerName: ""
	event.ServerName = ""

	for i := range event.Exception {
		if event.Exception[i].Stacktrace != nil {
			for j := range event.Exception[i].Stacktrace.Frames {
				frame := &event.Exception[i].Stacktrace.Frames[j]
				frame.AbsPath = sanitizePath(frame.AbsPath)
				frame.Filename = sanitizePath(frame.Filename)
			}
		}
		event.Exception[i].Value = sanitizePath(event.Exception[i].Value)
	}

	event.Message = sanitizePath(event.Message)

	for k, v := range event.Extra {
		if s, ok := v.(string); ok {
			event.Extra[k] = sanitizePath(s)
		}
	}

	return event
}

// sanitizePath removes usernames from file paths.
func sanitizePath(path string) string {
	if path == "" {
		return path
	}

	result := homePathRe.ReplaceAllString(path, "/home/<user>/")
	result = usersPathRe.ReplaceAllString(result, "/Users/<user>/")
	result = windowsUserRe.ReplaceAllString(result, "C:\\Users\\<user>\\")

	return result
}
