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

package download

import (
	"context"
	"crypto/md5" //nolint:gosec // matches MD5Observer
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/ZaparooProject/zaparoo-nextion/pkg/bufpool"
	"github.com/ZaparooProject/zaparoo-nextion/pkg/nextion"
	"github.com/ZaparooProject/zaparoo-nextion/pkg/store"
	"github.com/ZaparooProject/zaparoo-nextion/pkg/testing/mocks"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testLastModified = "Wed, 21 Oct 2015 07:28:00 GMT"
	testStorePath    = "/var/lib/nextiondl/eeprom.bin"
	tickStep         = 100 * time.Millisecond
	maxTicks         = 5000
)

type fixture struct {
	d       *Downloader
	display *mocks.MockDisplay
	network *mocks.MockNetwork
	clock   *mocks.StepClock
	store   *store.FileStore
	results []Result
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Host = "updates.example.com"
	cfg.Path = "/display/nextion.tft"
	cfg.CheckMode = CheckModeManual
	return cfg
}

func newFixture(cfg Config, chunks [][]byte, opts ...Option) *fixture {
	f := &fixture{
		display: mocks.NewMockDisplay(115200),
		network: mocks.NewMockNetwork(chunks...),
		clock:   mocks.NewStepClock(),
		store:   store.NewFileStore(afero.NewMemMapFs(), testStorePath),
	}
	f.network.CloseWhenDrained = true

	all := append([]Option{
		WithClock(f.clock),
		WithResultHandler(func(r Result) { f.results = append(f.results, r) }),
	}, opts...)
	f.d = New(cfg, nextion.NewDriver(f.display, f.clock), f.network, f.store, all...)
	return f
}

// run ticks until the attempt is done, advancing the clock between ticks.
func (f *fixture) run(tb require.TestingT) {
	for range maxTicks {
		if f.d.IsDone() {
			return
		}
		f.d.Tick(context.Background())
		f.clock.Advance(tickStep)
	}
	require.FailNow(tb, "download did not finish", "state %s", f.d.State())
}

// tickUntil ticks until the machine is in state.
func (f *fixture) tickUntil(tb require.TestingT, state State) {
	for range maxTicks {
		if f.d.State() == state {
			return
		}
		f.d.Tick(context.Background())
	}
	require.FailNow(tb, "state not reached", "want %s, got %s", state, f.d.State())
}

func (f *fixture) saved() (string, bool) {
	r, err := f.store.Get(0)
	if err != nil {
		return "", false
	}
	return r.Value()
}

func response(status string, headers ...string) []byte {
	var b strings.Builder
	b.WriteString("HTTP/1.1 " + status + "\r\n")
	for _, h := range headers {
		b.WriteString(h + "\r\n")
	}
	b.WriteString("\r\n")
	return []byte(b.String())
}

func okResponse(body []byte) []byte {
	head := response("200 OK",
		"Server: nginx",
		"Last-Modified: "+testLastModified,
		fmt.Sprintf("Content-Length: %d", len(body)),
		"Content-Type: application/octet-stream",
	)
	return append(head, body...)
}

func payload(size int) []byte {
	b := make([]byte, size)
	for i := range b {
		b[i] = byte(i*7 + i/bufpool.SlotSize)
	}
	return b
}

// split cuts data into chunks of at most n bytes.
func split(data []byte, n int) [][]byte {
	var chunks [][]byte
	for len(data) > 0 {
		k := min(n, len(data))
		chunks = append(chunks, data[:k])
		data = data[k:]
	}
	return chunks
}

func hasUploadCommand(cmds []string) bool {
	for _, c := range cmds {
		if strings.HasPrefix(c, nextion.CmdUpload) {
			return true
		}
	}
	return false
}

func TestRequestCheck_ConditionalHeader(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		cached string
		want   string
		cache  bool
		force  bool
	}{
		{name: "nothing cached", want: ""},
		{
			name:   "cached",
			cached: testLastModified,
			cache:  true,
			want:   "If-Modified-Since: " + testLastModified + "\r\n",
		},
		{name: "cached but forced", cached: testLastModified, cache: true, force: true, want: ""},
		{name: "nothing cached and forced", force: true, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(testConfig(), nil)
			if tt.cache {
				require.NoError(t, f.store.Put(0, store.NewRecord(tt.cached)))
			}

			f.d.RequestCheck(tt.force)
			f.d.Tick(context.Background())
			require.Equal(t, StateAwaitingHeader, f.d.State())

			reqs := f.network.Requests()
			require.Len(t, reqs, 1)
			req := string(reqs[0])
			assert.True(t, strings.HasPrefix(req, "GET /display/nextion.tft HTTP/1.1\r\n"))
			assert.Contains(t, req, "Host: updates.example.com\r\n")
			assert.True(t, strings.HasSuffix(req, "Connection: close\r\n\r\n"))
			if tt.want == "" {
				assert.NotContains(t, req, "If-Modified-Since")
			} else {
				assert.Contains(t, req, tt.want)
			}
		})
	}
}

func TestRequestCheck_ConfigForceOmitsHeader(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Force = true
	f := newFixture(cfg, nil)
	require.NoError(t, f.store.Put(0, store.NewRecord(testLastModified)))

	f.d.RequestCheck(false)
	f.d.Tick(context.Background())

	reqs := f.network.Requests()
	require.Len(t, reqs, 1)
	assert.NotContains(t, string(reqs[0]), "If-Modified-Since")
}

func TestDownload_DeliversPayload(t *testing.T) {
	t.Parallel()

	body := payload(10000)
	resp := okResponse(body)
	// uneven chunks with idle ticks in between
	chunks := [][]byte{resp[:20], {}, resp[20:300], resp[300:5000], {}, {}, resp[5000:]}

	f := newFixture(testConfig(), chunks)
	f.d.RequestCheck(false)
	f.run(t)

	assert.Equal(t, body, f.display.Payload())
	assert.Equal(t, []int{4096, 4096, 1808}, f.display.BlockSizes())
	assert.Contains(t, f.display.Commands(), "whmi-wri 10000,115200,0")

	assert.True(t, f.d.HasRun())
	assert.True(t, f.d.IsDone())
	assert.Equal(t, StateDone, f.d.State())
	assert.Equal(t, 0, f.d.BufferCount())

	p := f.d.Progress()
	assert.Equal(t, 10000, p.DataSize)
	assert.Equal(t, 10000, p.DataOffset)

	res := f.d.LastResult()
	require.NoError(t, res.Err)
	assert.Equal(t, ResultUpdated, res.Kind)
	assert.Equal(t, 200, res.Status)
	assert.Equal(t, 10000, res.Bytes)
	assert.Equal(t, testLastModified, res.LastModified)
	assert.NotEmpty(t, res.AttemptID)
	require.Len(t, f.results, 1)
	assert.Equal(t, res, f.results[0])

	saved, ok := f.saved()
	require.True(t, ok)
	assert.Equal(t, testLastModified, saved)
}

func TestDownload_ExactBlockMultiple(t *testing.T) {
	t.Parallel()

	body := payload(2 * bufpool.SlotSize)
	f := newFixture(testConfig(), split(okResponse(body), 1460))
	f.d.RequestCheck(false)
	f.run(t)

	assert.Equal(t, body, f.display.Payload())
	assert.Equal(t, []int{4096, 4096}, f.display.BlockSizes())
	assert.Equal(t, ResultUpdated, f.d.LastResult().Kind)
}

func TestDownload_BodyInHeaderPacket(t *testing.T) {
	t.Parallel()

	body := payload(300)
	f := newFixture(testConfig(), [][]byte{okResponse(body)})
	f.d.RequestCheck(false)
	f.run(t)

	assert.Equal(t, body, f.display.Payload())
	assert.Equal(t, []int{300}, f.display.BlockSizes())
	assert.Equal(t, ResultUpdated, f.d.LastResult().Kind)
}

func TestDownload_ExtraBodyBytesIgnored(t *testing.T) {
	t.Parallel()

	body := payload(5000)
	resp := append(okResponse(body), []byte("trailing garbage")...)
	f := newFixture(testConfig(), split(resp, 2048))
	f.d.RequestCheck(false)
	f.run(t)

	assert.Equal(t, body, f.display.Payload())
	assert.Equal(t, ResultUpdated, f.d.LastResult().Kind)
}

func TestDownload_SlowSerialLink(t *testing.T) {
	t.Parallel()

	body := payload(9000)
	f := newFixture(testConfig(), split(okResponse(body), 4000))
	f.display.WriteWindow = 700
	f.d.RequestCheck(false)
	f.run(t)

	assert.Equal(t, body, f.display.Payload())
	assert.Equal(t, []int{4096, 4096, 808}, f.display.BlockSizes())
}

func TestDownload_DoneIsIdempotent(t *testing.T) {
	t.Parallel()

	f := newFixture(testConfig(), [][]byte{okResponse(payload(100))})
	f.d.RequestCheck(false)
	f.run(t)
	require.Equal(t, StateDone, f.d.State())

	reads := f.network.Reads()
	connects := f.network.Connects()
	stops := f.network.Stops()
	commands := len(f.display.Commands())
	baud := len(f.display.BaudHistory())
	results := len(f.results)

	for range 50 {
		f.d.Tick(context.Background())
		f.clock.Advance(time.Minute)
	}

	assert.Equal(t, StateDone, f.d.State())
	assert.True(t, f.d.IsDone())
	assert.Equal(t, reads, f.network.Reads())
	assert.Equal(t, connects, f.network.Connects())
	assert.Equal(t, stops, f.network.Stops())
	assert.Len(t, f.display.Commands(), commands)
	assert.Len(t, f.display.BaudHistory(), baud)
	assert.Len(t, f.results, results)
}

func TestDownload_NewRequestAfterDone(t *testing.T) {
	t.Parallel()

	f := newFixture(testConfig(), [][]byte{okResponse(payload(100))})
	f.d.RequestCheck(false)
	f.run(t)
	first := f.d.LastResult()

	f.d.RequestCheck(false)
	assert.False(t, f.d.IsDone())
	assert.True(t, f.d.HasRun())
	assert.Equal(t, StateRequestingCheck, f.d.State())

	f.run(t)
	assert.Equal(t, 2, f.network.Connects())
	assert.NotEqual(t, first.AttemptID, f.d.LastResult().AttemptID)
}

func TestDownload_ZeroContentLength(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		resp []byte
	}{
		{
			name: "zero",
			resp: response("200 OK", "Last-Modified: "+testLastModified, "Content-Length: 0"),
		},
		{
			name: "missing",
			resp: response("200 OK", "Last-Modified: "+testLastModified),
		},
		{
			name: "not a number",
			resp: response("200 OK", "Content-Length: lots"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := testConfig()
			cfg.Retry = true
			f := newFixture(cfg, [][]byte{tt.resp})
			f.d.RequestCheck(false)
			f.run(t)

			res := f.d.LastResult()
			assert.Equal(t, ResultFailed, res.Kind)
			require.ErrorIs(t, res.Err, ErrHTTPStatus)
			assert.Equal(t, 1, f.network.Connects(), "http errors are not retried")
			assert.False(t, hasUploadCommand(f.display.Commands()))
			assert.Empty(t, f.display.Payload())
			assert.Equal(t, 0, f.d.BufferCount())
		})
	}
}

func TestDownload_NotModified(t *testing.T) {
	t.Parallel()

	f := newFixture(testConfig(), [][]byte{response("304 Not Modified", "Server: nginx")})
	require.NoError(t, f.store.Put(0, store.NewRecord(testLastModified)))

	f.d.RequestCheck(false)
	f.run(t)

	assert.True(t, f.d.HasRun())
	assert.True(t, f.d.IsDone())
	assert.False(t, hasUploadCommand(f.display.Commands()))
	assert.Empty(t, f.display.Payload())
	assert.Equal(t, 0, f.d.BufferCount())

	res := f.d.LastResult()
	require.NoError(t, res.Err)
	assert.Equal(t, ResultNotModified, res.Kind)
	assert.Equal(t, 304, res.Status)
}

func TestDownload_UnexpectedStatus(t *testing.T) {
	t.Parallel()

	f := newFixture(testConfig(), [][]byte{response("404 Not Found", "Content-Length: 9"), []byte("not found")})
	f.d.RequestCheck(false)
	f.run(t)

	res := f.d.LastResult()
	assert.Equal(t, ResultFailed, res.Kind)
	require.ErrorIs(t, res.Err, ErrHTTPStatus)
	assert.Equal(t, 404, res.Status)
	assert.False(t, hasUploadCommand(f.display.Commands()))
}

func TestDownload_DisconnectMidHeaderNoRetry(t *testing.T) {
	t.Parallel()

	f := newFixture(testConfig(), [][]byte{[]byte("HTTP/1.1 200 OK\r\nContent-Le")})
	f.d.RequestCheck(false)
	f.run(t)

	assert.True(t, f.d.IsDone())
	assert.Equal(t, 1, f.network.Connects())
	assert.Equal(t, 0, f.d.BufferCount())

	res := f.d.LastResult()
	assert.Equal(t, ResultFailed, res.Kind)
	require.ErrorIs(t, res.Err, ErrTransportUnavailable)
	assert.Zero(t, res.Retries)
}

func TestDownload_DisconnectMidBodyRetries(t *testing.T) {
	t.Parallel()

	body := payload(6000)
	resp := okResponse(body)

	cfg := testConfig()
	cfg.Retry = true
	f := newFixture(cfg, [][]byte{resp[:len(resp)-1000]})
	f.d.RequestCheck(false)
	f.tickUntil(t, StateRetryWait)
	assert.Equal(t, 0, f.d.BufferCount(), "retry wait releases the buffers")
	assert.False(t, f.network.Connected())

	// the server recovers while we wait and the display gives up on the
	// partial upload
	f.network.Chunks = split(resp, 1500)
	f.display.Reboot()
	f.clock.Advance(RetryWaitTime - time.Second)
	f.d.Tick(context.Background())
	assert.Equal(t, StateRetryWait, f.d.State())

	f.clock.Advance(time.Second)
	f.run(t)

	res := f.d.LastResult()
	require.NoError(t, res.Err)
	assert.Equal(t, ResultUpdated, res.Kind)
	assert.Equal(t, 1, res.Retries)
	assert.Equal(t, 2, f.network.Connects())
	assert.Equal(t, body, f.display.Payload())
}

func TestDownload_ConnectFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(testConfig(), nil)
	f.network.ConnectErr = errors.New("connection refused")
	f.d.RequestCheck(false)
	f.run(t)

	res := f.d.LastResult()
	require.ErrorIs(t, res.Err, ErrTransportUnavailable)
	assert.Equal(t, 1, f.network.Connects())
}

func TestDownload_HeaderTimeout(t *testing.T) {
	t.Parallel()

	f := newFixture(testConfig(), nil)
	f.network.CloseWhenDrained = false
	f.d.RequestCheck(false)
	f.run(t)

	res := f.d.LastResult()
	require.ErrorIs(t, res.Err, ErrProtocolTimeout)
	assert.Equal(t, 0, f.d.BufferCount())
}

func TestDownload_DataTimeout(t *testing.T) {
	t.Parallel()

	body := payload(5000)
	resp := okResponse(body)
	f := newFixture(testConfig(), [][]byte{resp[:len(resp)-4000]})
	f.network.CloseWhenDrained = false
	f.d.RequestCheck(false)

	f.tickUntil(t, StateDownloading)
	f.clock.Advance(DataTimeout - time.Second)
	f.d.Tick(context.Background())
	assert.Equal(t, StateDownloading, f.d.State())

	f.clock.Advance(time.Second)
	f.run(t)

	res := f.d.LastResult()
	require.ErrorIs(t, res.Err, ErrProtocolTimeout)
	assert.Equal(t, 0, f.d.BufferCount())
}

func TestDownload_HeaderTooLarge(t *testing.T) {
	t.Parallel()

	big := "HTTP/1.1 200 OK\r\nX-Padding: " + strings.Repeat("x", 5000)
	f := newFixture(testConfig(), [][]byte{[]byte(big)})
	f.network.CloseWhenDrained = false
	f.d.RequestCheck(false)
	f.run(t)

	res := f.d.LastResult()
	require.ErrorIs(t, res.Err, ErrHTTPStatus)
	assert.Equal(t, 1, f.network.Connects())
}

func TestDownload_BlockNack(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Retry = true
	f := newFixture(cfg, split(okResponse(payload(10000)), 1024))
	f.display.AckBlocks = 1
	f.d.RequestCheck(false)
	f.run(t)

	assert.Equal(t, 0, f.d.BufferCount())
	assert.Equal(t, 1, f.network.Connects(), "nack is not retried")
	assert.Positive(t, f.network.Stops())

	res := f.d.LastResult()
	assert.Equal(t, ResultFailed, res.Kind)
	require.ErrorIs(t, res.Err, ErrDisplayNack)
	assert.Equal(t, bufpool.SlotSize, f.d.Progress().DataOffset)

	_, ok := f.saved()
	assert.False(t, ok, "an incomplete upload is not remembered")
}

func TestDownload_PersistOnHeader(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Persist = PersistOnHeader
	f := newFixture(cfg, split(okResponse(payload(10000)), 1024))
	f.display.AckBlocks = 0
	f.d.RequestCheck(false)
	f.run(t)

	require.ErrorIs(t, f.d.LastResult().Err, ErrDisplayNack)
	saved, ok := f.saved()
	require.True(t, ok)
	assert.Equal(t, testLastModified, saved)
}

func TestDownload_UploadRejected(t *testing.T) {
	t.Parallel()

	f := newFixture(testConfig(), [][]byte{okResponse(payload(100))})
	f.display.RejectUpload = true
	f.d.RequestCheck(false)
	f.run(t)

	require.ErrorIs(t, f.d.LastResult().Err, ErrDisplayNack)
	assert.Empty(t, f.display.Payload())
}

func TestDownload_DisplayNotFound(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Retry = true
	f := newFixture(cfg, [][]byte{okResponse(payload(100))})
	f.display.Responsive = false
	f.d.RequestCheck(false)
	f.run(t)

	res := f.d.LastResult()
	require.ErrorIs(t, res.Err, ErrDisplayNotFound)
	assert.Equal(t, 0, f.network.Connects())
	want := append(append([]int(nil), nextion.BaudRates...), nextion.DefaultBaud)
	assert.Equal(t, want, f.display.BaudHistory())
}

func TestDownload_AllocationFailure(t *testing.T) {
	t.Parallel()

	calls := 0
	pool := bufpool.New(func() (*bufpool.Slot, error) {
		calls++
		if calls > 1 {
			return nil, errors.New("out of memory")
		}
		return &bufpool.Slot{}, nil
	})

	f := newFixture(testConfig(), [][]byte{okResponse(payload(100))}, WithPool(pool))
	f.d.RequestCheck(false)
	f.run(t)

	res := f.d.LastResult()
	require.ErrorIs(t, res.Err, ErrAllocation)
	assert.Equal(t, 0, f.d.BufferCount())
	assert.Equal(t, 0, f.network.Connects())
	assert.Empty(t, f.display.Probes())
}

func TestDownload_RestartWait(t *testing.T) {
	t.Parallel()

	f := newFixture(testConfig(), [][]byte{okResponse(payload(100))})
	f.d.RequestCheck(false)
	f.tickUntil(t, StateAwaitingRestart)

	probes := len(f.display.Probes())
	f.clock.Advance(DefaultRestartWait - time.Millisecond)
	f.d.Tick(context.Background())
	assert.Equal(t, StateAwaitingRestart, f.d.State())
	assert.Len(t, f.display.Probes(), probes)

	f.clock.Advance(time.Millisecond)
	f.d.Tick(context.Background())
	assert.Equal(t, StateCleanup, f.d.State())
	assert.Len(t, f.display.Probes(), probes+1, "display found again at its boot rate")

	f.d.Tick(context.Background())
	assert.True(t, f.d.IsDone())
}

func TestRequestCheck_AbortsInFlight(t *testing.T) {
	t.Parallel()

	resp := okResponse(payload(10000))
	f := newFixture(testConfig(), [][]byte{resp[:6000]})
	f.network.CloseWhenDrained = false
	f.d.RequestCheck(false)
	f.tickUntil(t, StateDownloading)
	f.d.Tick(context.Background())

	f.d.RequestCheck(true)

	require.Len(t, f.results, 1)
	assert.Equal(t, ResultAborted, f.results[0].Kind)
	require.ErrorIs(t, f.results[0].Err, ErrAborted)
	assert.Equal(t, StateRequestingCheck, f.d.State())
	assert.Equal(t, 0, f.d.BufferCount())
	assert.False(t, f.d.IsDone())
	assert.True(t, f.d.HasRun())
	assert.Zero(t, f.d.Progress().DataSize)
}

func TestRequestCheck_KeepsFinishedOutcome(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		resp   []byte
		state  State
		want   ResultKind
		wantLM bool
	}{
		{
			name:   "awaiting restart after upload",
			resp:   okResponse(payload(100)),
			state:  StateAwaitingRestart,
			want:   ResultUpdated,
			wantLM: true,
		},
		{
			name:  "cleanup after not modified",
			resp:  response("304 Not Modified"),
			state: StateCleanup,
			want:  ResultNotModified,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(testConfig(), [][]byte{tt.resp})
			f.d.RequestCheck(false)
			f.tickUntil(t, tt.state)

			f.d.RequestCheck(false)

			require.Len(t, f.results, 1)
			assert.Equal(t, tt.want, f.results[0].Kind)
			require.NoError(t, f.results[0].Err)
			assert.Equal(t, StateRequestingCheck, f.d.State())
			assert.Equal(t, 0, f.d.BufferCount())

			_, saved := f.saved()
			assert.Equal(t, tt.wantLM, saved)
		})
	}
}

func TestTick_AutoCheck(t *testing.T) {
	t.Parallel()

	ready := false
	cfg := testConfig()
	cfg.CheckMode = CheckModeAuto
	f := newFixture(cfg, [][]byte{okResponse(payload(100))}, WithNetworkReady(func() bool { return ready }))

	for range 10 {
		f.d.Tick(context.Background())
	}
	assert.Equal(t, StateIdle, f.d.State())
	assert.False(t, f.d.HasRun())

	ready = true
	f.d.Tick(context.Background())
	assert.Equal(t, StateRequestingCheck, f.d.State())
	assert.True(t, f.d.HasRun())

	f.run(t)
	assert.Equal(t, ResultUpdated, f.d.LastResult().Kind)
}

func TestTick_ManualCheckWaits(t *testing.T) {
	t.Parallel()

	f := newFixture(testConfig(), nil)
	for range 10 {
		f.d.Tick(context.Background())
	}
	assert.Equal(t, StateIdle, f.d.State())
	assert.False(t, f.d.HasRun())
	assert.False(t, f.d.IsDone())
	assert.Equal(t, 0, f.network.Connects())
}

func TestRequestingCheck_WaitsForNetwork(t *testing.T) {
	t.Parallel()

	ready := false
	f := newFixture(testConfig(), [][]byte{okResponse(payload(100))},
		WithNetworkReady(func() bool { return ready }))
	f.d.RequestCheck(false)
	for range 5 {
		f.d.Tick(context.Background())
	}
	assert.Equal(t, StateRequestingCheck, f.d.State())
	assert.Equal(t, 0, f.network.Connects())

	ready = true
	f.run(t)
	assert.Equal(t, ResultUpdated, f.d.LastResult().Kind)
}

func TestSetup(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.BootWait = 2 * time.Second
	f := newFixture(cfg, nil)
	f.display.DisplayBaud = nextion.DefaultBaud
	start := f.clock.Now()

	f.d.Setup()

	assert.GreaterOrEqual(t, f.clock.Since(start), cfg.BootWait)
	assert.Equal(t, []int{nextion.DefaultBaud}, f.display.BaudHistory())
	assert.Equal(t, []int{nextion.DefaultBaud}, f.display.Probes())
	assert.Equal(t, StateIdle, f.d.State())
}

func TestDownload_MD5Observer(t *testing.T) {
	t.Parallel()

	body := payload(12345)
	obs := &MD5Observer{}
	f := newFixture(testConfig(), split(okResponse(body), 3000), WithObserver(obs))
	f.d.RequestCheck(false)
	f.run(t)

	sum := md5.Sum(body) //nolint:gosec // test digest
	assert.Equal(t, hex.EncodeToString(sum[:]), obs.Sum())
}
