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

// Package publishers forwards finished download attempts to external
// systems.
package publishers

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ZaparooProject/zaparoo-nextion/pkg/download"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	publishTimeout = 5 * time.Second
	// DefaultConnectWait is how long Start waits for the first connection
	// before leaving the client to retry in the background.
	DefaultConnectWait = 10 * time.Second
)

// ResultMessage is the JSON payload published for every attempt.
type ResultMessage struct {
	Started      time.Time `json:"started"`
	Finished     time.Time `json:"finished"`
	AttemptID    string    `json:"attemptId"`
	DeviceID     string    `json:"deviceId,omitempty"`
	Result       string    `json:"result"`
	Error        string    `json:"error,omitempty"`
	LastModified string    `json:"lastModified,omitempty"`
	Status       int       `json:"status,omitempty"`
	Bytes        int       `json:"bytes"`
	Retries      int       `json:"retries"`
	DurationMs   int64     `json:"durationMs"`
}

// NewResultMessage converts a download result into its published form.
//
//nolint:gocritic // result passed by value like the handler receives it
func NewResultMessage(r download.Result, deviceID string) ResultMessage {
	msg := ResultMessage{
		AttemptID:    r.AttemptID,
		DeviceID:     deviceID,
		Result:       r.Kind.String(),
		LastModified: r.LastModified,
		Status:       r.Status,
		Bytes:        r.Bytes,
		Retries:      r.Retries,
		Started:      r.Started,
		Finished:     r.Finished,
		DurationMs:   r.Finished.Sub(r.Started).Milliseconds(),
	}
	if r.Err != nil {
		msg.Error = r.Err.Error()
	}
	return msg
}

// ClientFactory builds the MQTT client from the publisher's options.
type ClientFactory func(*mqtt.ClientOptions) mqtt.Client

// Option configures an MQTTPublisher.
type Option func(*MQTTPublisher)

func WithClientFactory(f ClientFactory) Option {
	return func(p *MQTTPublisher) { p.newClient = f }
}

func WithConnectWait(d time.Duration) Option {
	return func(p *MQTTPublisher) { p.connectWait = d }
}

// MQTTPublisher publishes download results to an MQTT broker.
type MQTTPublisher struct {
	client      mqtt.Client
	newClient   ClientFactory
	stopCh      chan struct{}
	broker      string
	topic       string
	deviceID    string
	filter      []string
	wg          sync.WaitGroup
	connectWait time.Duration
	stopOnce    sync.Once
}

// NewMQTTPublisher creates a publisher for broker and topic. If filter is
// empty every result is published, otherwise only results whose kind
// (e.g. "updated", "failed") is listed.
func NewMQTTPublisher(broker, topic, deviceID string, filter []string, opts ...Option) *MQTTPublisher {
	p := &MQTTPublisher{
		broker:      broker,
		topic:       topic,
		deviceID:    deviceID,
		filter:      filter,
		stopCh:      make(chan struct{}),
		newClient:   mqtt.NewClient,
		connectWait: DefaultConnectWait,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func brokerURL(broker string) string {
	if strings.Contains(broker, "://") {
		return broker
	}
	return "tcp://" + broker
}

// Start connects to the broker and publishes results until the channel is
// closed or Stop is called. It waits at most the connect wait for the broker;
// an unreachable broker is retried in the background and results published
// meanwhile time out and are logged.
func (p *MQTTPublisher) Start(results <-chan download.Result) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL(p.broker))
	opts.SetClientID("nextiondl-" + uuid.New().String()[:8])
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(10 * time.Second)

	opts.OnConnect = func(_ mqtt.Client) {
		log.Info().Msgf("mqtt publisher: connected to %s", p.broker)
	}

	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Warn().Err(err).Msg("mqtt publisher: connection lost")
	}

	client := p.newClient(opts)

	token := client.Connect()
	if !token.WaitTimeout(p.connectWait) {
		log.Warn().Msgf("mqtt publisher: %s not reachable, retrying in background", p.broker)
	} else if token.Error() != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	p.client = client

	log.Info().Msgf("mqtt publisher: publishing to %s (topic: %s)", p.broker, p.topic)

	p.wg.Add(1)
	go p.publishResults(results)

	return nil
}

// Stop ends publishing and disconnects. It is safe to call more than once.
func (p *MQTTPublisher) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopCh)
		p.wg.Wait()

		// also ends a connect that is still being retried
		if p.client != nil {
			log.Debug().Msg("mqtt publisher: disconnecting")
			p.client.Disconnect(250)
		}
	})
}

func (p *MQTTPublisher) publishResults(results <-chan download.Result) {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopCh:
			log.Debug().Msg("mqtt publisher: stopping")
			return
		case r, ok := <-results:
			if !ok {
				log.Debug().Msg("mqtt publisher: result channel closed")
				return
			}
			p.publish(r)
		}
	}
}

//nolint:gocritic // see NewResultMessage
func (p *MQTTPublisher) publish(r download.Result) {
	kind := r.Kind.String()
	if !p.matchesFilter(kind) {
		return
	}

	payload, err := json.Marshal(NewResultMessage(r, p.deviceID))
	if err != nil {
		log.Error().Err(err).Msg("mqtt publisher: failed to marshal result")
		return
	}

	// retained: the last outcome stays on the topic for new subscribers
	token := p.client.Publish(p.topic, 1, true, payload)
	if !token.WaitTimeout(publishTimeout) {
		log.Error().Msg("mqtt publisher: timed out publishing result")
		return
	}
	if token.Error() != nil {
		log.Error().Err(token.Error()).Msg("mqtt publisher: failed to publish result")
		return
	}

	log.Debug().Str("attempt", r.AttemptID).Msgf("mqtt publisher: published %s result", kind)
}

func (p *MQTTPublisher) matchesFilter(kind string) bool {
	if len(p.filter) == 0 {
		return true
	}
	for _, f := range p.filter {
		if f == kind {
			return true
		}
	}
	return false
}
