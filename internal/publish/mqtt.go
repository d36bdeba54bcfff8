// Package publish forwards accepted fixes to an MQTT broker for live
// consumers. Publishing is best effort and never blocks ingestion.
package publish

import (
	"fmt"
	"log"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/banshee-data/gps-recorder/internal/gps"
	"github.com/banshee-data/gps-recorder/internal/monitoring"
)

const (
	DefaultTopic   = "gps/fix"
	DefaultTimeout = 5 * time.Second
)

type Options struct {
	Broker   string `json:"broker" yaml:"broker"`
	Topic    string `json:"topic" yaml:"topic"`
	ClientID string `json:"client_id" yaml:"client_id"`
	QoS      byte   `json:"qos" yaml:"qos"`
	Retained bool   `json:"retained" yaml:"retained"`
}

// client is the part of mqtt.Client the publisher uses.
type client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

type MQTTPublisher struct {
	client  client
	opts    Options
	timeout time.Duration

	published atomic.Uint64
	failed    atomic.Uint64
}

// NewMQTTPublisher connects to opts.Broker.
func NewMQTTPublisher(opts Options) (*MQTTPublisher, error) {
	if opts.Broker == "" {
		return nil, fmt.Errorf("mqtt: no broker configured")
	}
	co := mqtt.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(DefaultTimeout)

	c := mqtt.NewClient(co)
	if err := waitConnect(c.Connect(), DefaultTimeout); err != nil {
		c.Disconnect(0)
		return nil, fmt.Errorf("mqtt: connect %s: %w", opts.Broker, err)
	}
	log.Printf("mqtt: publishing fixes to %s on %s", opts.Topic, opts.Broker)
	return newMQTTPublisher(c, opts), nil
}

// waitConnect fails when the connect token does not complete in time, since
// auto reconnect only takes over after a first successful connect.
func waitConnect(token mqtt.Token, timeout time.Duration) error {
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("timed out after %s", timeout)
	}
	return token.Error()
}

func newMQTTPublisher(c client, opts Options) *MQTTPublisher {
	if opts.Topic == "" {
		opts.Topic = DefaultTopic
	}
	return &MQTTPublisher{client: c, opts: opts, timeout: DefaultTimeout}
}

// Publish sends f as JSON. Delivery is confirmed in the background; failures
// are counted and logged at debug level.
func (p *MQTTPublisher) Publish(f gps.Fix) error {
	payload, err := f.Marshal()
	if err != nil {
		return err
	}
	token := p.client.Publish(p.opts.Topic, p.opts.QoS, p.opts.Retained, payload)
	go func() {
		if !token.WaitTimeout(p.timeout) {
			p.failed.Add(1)
			monitoring.Logf("mqtt: publish to %s timed out", p.opts.Topic)
			return
		}
		if err := token.Error(); err != nil {
			p.failed.Add(1)
			monitoring.Logf("mqtt: publish to %s: %v", p.opts.Topic, err)
			return
		}
		p.published.Add(1)
	}()
	return nil
}

// Stats returns the number of confirmed and failed publishes.
func (p *MQTTPublisher) Stats() (published, failed uint64) {
	return p.published.Load(), p.failed.Load()
}

func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}
