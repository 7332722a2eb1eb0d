package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// Options configures an MQTTSink.
type Options struct {
	Broker         string
	ClientID       string
	Username       string
	Password       string
	TopicPrefix    string        // device topic root, e.g. "coin-acceptor/SN-0042"
	PublishTimeout time.Duration // bound on value/display writes, which run inside the tick
	BufferSize     int           // writes kept while disconnected
}

// MQTTSink publishes dashboard writes to an MQTT broker.
type MQTTSink struct {
	client         paho.Client
	topics         Topics
	publishTimeout time.Duration
	log            *zap.Logger

	mu          sync.Mutex // guards buf and orders replay against new writes
	buf         *ringBuffer
	connectedOK bool // set after the first successful connect
}

// NewMQTTSink creates the client and starts connecting. If the broker is not
// reachable within the connect timeout the sink is still returned; the
// client keeps retrying in the background and writes are buffered.
func NewMQTTSink(opts Options, log *zap.Logger) *MQTTSink {
	s := newSink(opts, log)

	co := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetUsername(opts.Username).
		SetPassword(opts.Password).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(s.topics.System(), string(WillPayload()), 1, true).
		SetOnConnectHandler(s.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Warn("mqtt connection lost", zap.Error(err))
		})

	s.client = paho.NewClient(co)
	token := s.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		log.Warn("mqtt broker not reachable yet, retrying in background", zap.String("broker", opts.Broker))
	} else if err := token.Error(); err != nil {
		log.Warn("mqtt connect failed, retrying in background", zap.String("broker", opts.Broker), zap.Error(err))
	}
	return s
}

// newSink builds the sink without a client.
func newSink(opts Options, log *zap.Logger) *MQTTSink {
	return &MQTTSink{
		topics:         Topics{Prefix: opts.TopicPrefix},
		publishTimeout: opts.PublishTimeout,
		log:            log,
		buf:            newRingBuffer(opts.BufferSize),
	}
}

func (s *MQTTSink) onConnect(_ paho.Client) {
	s.mu.Lock()
	reconnect := s.connectedOK
	s.connectedOK = true
	err := s.flushLocked()
	s.mu.Unlock()

	if err != nil {
		s.log.Warn("replay buffered writes", zap.Error(err))
	}
	if !reconnect {
		s.log.Info("mqtt connected")
		return
	}
	s.log.Info("mqtt reconnected")
	if err := s.PublishSystem(SystemEvent{Timestamp: time.Now(), Event: "RECONNECTED"}); err != nil {
		s.log.Warn("publish reconnected event", zap.Error(err))
	}
}

// WriteValue publishes value to the value channel topic. Values are retained
// so a dashboard that subscribes late sees the latest totals.
func (s *MQTTSink) WriteValue(id int, value string) error {
	return s.write(s.topics.Value(id), 0, true, []byte(value))
}

// WriteDisplay publishes text to the display line topic.
func (s *MQTTSink) WriteDisplay(column, row, line int, text string) error {
	return s.write(s.topics.Display(column, row, line), 0, true, []byte(text))
}

func (s *MQTTSink) write(topic string, qos byte, retained bool, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := bufferedMsg{topic: topic, payload: payload, qos: qos, retained: retained}
	if !s.client.IsConnectionOpen() {
		if s.buf.push(msg) {
			s.log.Warn("mqtt buffer full, dropping oldest writes", zap.Int("capacity", s.buf.capacity))
		}
		return fmt.Errorf("%w: %s", ErrNotConnected, topic)
	}

	// Anything buffered goes out first so the broker sees writes in order.
	if err := s.flushLocked(); err != nil {
		return err
	}
	return s.publish(msg, s.publishTimeout)
}

// flushLocked replays buffered writes. Caller holds s.mu.
func (s *MQTTSink) flushLocked() error {
	pending := s.buf.drainAll()
	for i, msg := range pending {
		if err := s.publish(msg, s.publishTimeout); err != nil {
			for _, rest := range pending[i:] {
				s.buf.push(rest)
			}
			return err
		}
	}
	if len(pending) > 0 {
		s.log.Info("replayed buffered writes", zap.Int("count", len(pending)))
	}
	return nil
}

func (s *MQTTSink) publish(msg bufferedMsg, timeout time.Duration) error {
	token := s.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("publish %s: timeout after %v", msg.topic, timeout)
	}
	if err := token.Error(); err != nil {
		if !s.client.IsConnectionOpen() {
			return fmt.Errorf("%w: publish %s: %v", ErrNotConnected, msg.topic, err)
		}
		return fmt.Errorf("%w: publish %s: %v", ErrFatal, msg.topic, err)
	}
	return nil
}

// PublishSystem sends a lifecycle event to the system topic.
func (s *MQTTSink) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	// QoS 1 (at-least-once): lifecycle events should not be lost silently.
	token := s.client.Publish(s.topics.System(), 1, event.Retained, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish system timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish system: %w", err)
	}
	return nil
}

// IsConnected reports whether the MQTT session is open.
func (s *MQTTSink) IsConnected() bool {
	return s.client.IsConnectionOpen()
}

// Reconnect waits for the client's background reconnect to succeed.
func (s *MQTTSink) Reconnect(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for !s.client.IsConnectionOpen() {
		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for mqtt: %w", ctx.Err())
		case <-ticker.C:
		}
	}
	return nil
}

// Close disconnects from the broker.
func (s *MQTTSink) Close() error {
	s.client.Disconnect(1000) // 1 second timeout
	return nil
}
