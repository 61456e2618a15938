package mqtt

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// DefaultBufferSize is how many lifecycle events are kept while the broker
// is unreachable.
const DefaultBufferSize = 32

// Options configures a RealPublisher.
type Options struct {
	Broker         string
	ClientID       string
	Topic          string
	Will           []byte // published retained on Topic if the connection drops
	BufferSize     int
	ConnectTimeout time.Duration
	Log            *slog.Logger
}

// RealPublisher publishes to an actual MQTT broker. Events published while
// the connection is down are buffered and replayed, oldest first, once the
// client reconnects.
type RealPublisher struct {
	client paho.Client
	topic  string
	log    *slog.Logger

	mu  sync.Mutex
	out *outbox
}

var errPublishTimeout = errors.New("publish timeout")

// NewRealPublisher creates a publisher for the given broker. The client
// keeps retrying in the background; a broker that is not reachable within
// ConnectTimeout is not an error.
func NewRealPublisher(o Options) (*RealPublisher, error) {
	if o.Log == nil {
		o.Log = slog.Default()
	}
	if o.BufferSize == 0 {
		o.BufferSize = DefaultBufferSize
	}
	if o.ConnectTimeout == 0 {
		o.ConnectTimeout = 10 * time.Second
	}

	p := &RealPublisher{
		topic: o.Topic,
		log:   o.Log,
		out:   newOutbox(o.BufferSize, o.Log),
	}

	opts := paho.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			p.log.Warn("mqtt connection lost", "err", err)
		})
	if o.Will != nil {
		opts.SetWill(o.Topic, string(o.Will), 1, true)
	}

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(o.ConnectTimeout) {
		p.log.Warn("mqtt broker not reachable yet, buffering events", "broker", o.Broker)
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return p, nil
}

// PublishSystem sends a system lifecycle event to the MQTT broker, or
// buffers it while disconnected.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	// QoS 1 (at-least-once): lifecycle transitions should arrive.
	msg := pending{topic: p.topic, payload: payload, qos: 1, retained: event.Retained}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.client.IsConnectionOpen() {
		p.out.add(msg)
		p.log.Debug("mqtt offline, event buffered", "event", event.Event, "buffered", p.out.size())
		return nil
	}
	p.replayLocked()
	if err := p.send(msg); err != nil {
		p.out.add(msg)
		return fmt.Errorf("publish system: %w", err)
	}
	return nil
}

// Buffered returns the number of events waiting for a connection.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.out.size()
}

// IsConnected reports whether the client currently has an open connection.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}

func (p *RealPublisher) onConnect(paho.Client) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.log.Info("mqtt connected", "buffered", p.out.size())
	p.replayLocked()
}

// replayLocked publishes queued events in order. On failure the rest go
// back to the front of the outbox.
func (p *RealPublisher) replayLocked() {
	queued := p.out.take()
	for i, msg := range queued {
		if err := p.send(msg); err != nil {
			p.log.Warn("mqtt replay failed", "err", err, "remaining", len(queued)-i)
			p.out.requeue(queued[i:])
			return
		}
	}
	if len(queued) > 0 {
		p.log.Info("mqtt replayed buffered events", "count", len(queued))
	}
}

func (p *RealPublisher) send(msg pending) error {
	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(5 * time.Second) {
		return errPublishTimeout
	}
	return token.Error()
}
