package telemetry

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap/zaptest"
)

// fakeToken completes immediately unless timeout is set.
type fakeToken struct {
	err     error
	timeout bool
}

func (t *fakeToken) Wait() bool                     { return !t.timeout }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return !t.timeout }
func (t *fakeToken) Error() error                   { return t.err }

func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	if !t.timeout {
		close(ch)
	}
	return ch
}

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  string
}

// fakeClient records publishes. Methods the sink does not call panic
// through the nil embedded interface.
type fakeClient struct {
	paho.Client

	mu   sync.Mutex
	open bool
	sent []published

	// failOn maps a 1-based publish attempt to its outcome.
	failOn map[int]fakeToken
	// dropOnFail closes the connection when an attempt in failOn fails.
	dropOnFail bool
	attempts   int
}

func (c *fakeClient) IsConnectionOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

func (c *fakeClient) setOpen(open bool) {
	c.mu.Lock()
	c.open = open
	c.mu.Unlock()
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempts++
	if tok, ok := c.failOn[c.attempts]; ok {
		if c.dropOnFail {
			c.open = false
		}
		return &tok
	}
	c.sent = append(c.sent, published{topic: topic, qos: qos, retained: retained, payload: string(payload.([]byte))})
	return &fakeToken{}
}

func (c *fakeClient) Disconnect(uint) {
	c.setOpen(false)
}

func (c *fakeClient) payloads() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, p := range c.sent {
		out = append(out, p.payload)
	}
	return out
}

func newTestSink(t *testing.T, bufferSize int, open bool) (*MQTTSink, *fakeClient) {
	t.Helper()
	s := newSink(Options{TopicPrefix: "ca", PublishTimeout: 40 * time.Millisecond, BufferSize: bufferSize}, zaptest.NewLogger(t))
	c := &fakeClient{open: open}
	s.client = c
	return s, c
}

func assertPayloads(t *testing.T, got []string, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("published %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("publish %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestMQTTSinkWriteConnected(t *testing.T) {
	s, c := newTestSink(t, 8, true)

	if err := s.WriteValue(4, "2.50"); err != nil {
		t.Fatalf("WriteValue: %v", err)
	}
	if err := s.WriteDisplay(7, 0, 1, "CA-0042"); err != nil {
		t.Fatalf("WriteDisplay: %v", err)
	}

	if len(c.sent) != 2 {
		t.Fatalf("published %d, want 2", len(c.sent))
	}
	if c.sent[0].topic != "ca/vw/4" || c.sent[0].qos != 0 || !c.sent[0].retained {
		t.Errorf("value publish: %+v", c.sent[0])
	}
	if c.sent[1].topic != "ca/lcd/7/0/1" || c.sent[1].payload != "CA-0042" {
		t.Errorf("display publish: %+v", c.sent[1])
	}
}

func TestMQTTSinkBuffersWhileDisconnected(t *testing.T) {
	s, c := newTestSink(t, 8, false)

	err := s.WriteValue(1, "3")
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	if errors.Is(err, ErrFatal) {
		t.Error("disconnect must not be fatal")
	}
	if len(c.sent) != 0 {
		t.Errorf("nothing should be published while down, got %d", len(c.sent))
	}
	if s.buf.len() != 1 {
		t.Errorf("buffered: got %d, want 1", s.buf.len())
	}
}

func TestMQTTSinkReplaysBeforeNewWrite(t *testing.T) {
	s, c := newTestSink(t, 8, false)

	for _, v := range []string{"a", "b", "c"} {
		if err := s.WriteValue(1, v); !errors.Is(err, ErrNotConnected) {
			t.Fatalf("write %s: expected ErrNotConnected, got %v", v, err)
		}
	}

	c.setOpen(true)
	if err := s.WriteValue(1, "d"); err != nil {
		t.Fatalf("WriteValue after reconnect: %v", err)
	}

	assertPayloads(t, c.payloads(), "a", "b", "c", "d")
	if s.buf.len() != 0 {
		t.Errorf("buffer should be empty after replay, got %d", s.buf.len())
	}
}

func TestMQTTSinkFlushFailureKeepsTail(t *testing.T) {
	s, c := newTestSink(t, 8, false)
	for _, v := range []string{"a", "b", "c"} {
		_ = s.WriteValue(1, v)
	}

	c.setOpen(true)
	c.failOn = map[int]fakeToken{2: {timeout: true}}

	err := s.WriteValue(1, "d")
	if err == nil {
		t.Fatal("expected flush error")
	}
	if errors.Is(err, ErrFatal) || errors.Is(err, ErrNotConnected) {
		t.Errorf("timeout should be a plain error, got %v", err)
	}
	assertPayloads(t, c.payloads(), "a")
	if s.buf.len() != 2 {
		t.Fatalf("unsent tail: got %d buffered, want 2", s.buf.len())
	}

	// The new write was not attempted; the next one replays the tail first.
	if err := s.WriteValue(1, "e"); err != nil {
		t.Fatalf("WriteValue: %v", err)
	}
	assertPayloads(t, c.payloads(), "a", "b", "c", "e")
}

func TestMQTTSinkPublishErrorWhileOpenIsFatal(t *testing.T) {
	s, c := newTestSink(t, 8, true)
	c.failOn = map[int]fakeToken{1: {err: errors.New("broken pipe")}}

	err := s.WriteValue(1, "1")
	if !errors.Is(err, ErrFatal) {
		t.Fatalf("expected ErrFatal, got %v", err)
	}
	if errors.Is(err, ErrNotConnected) {
		t.Error("fatal error also classified as not connected")
	}
}

func TestMQTTSinkPublishErrorAfterDropIsNotConnected(t *testing.T) {
	s, c := newTestSink(t, 8, true)
	c.failOn = map[int]fakeToken{1: {err: errors.New("connection lost")}}
	c.dropOnFail = true

	err := s.WriteValue(1, "1")
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	if errors.Is(err, ErrFatal) {
		t.Error("lost connection classified as fatal")
	}
}

func TestMQTTSinkPublishTimeoutIsPlainError(t *testing.T) {
	s, c := newTestSink(t, 8, true)
	c.failOn = map[int]fakeToken{1: {timeout: true}}

	err := s.WriteValue(1, "1")
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if errors.Is(err, ErrFatal) || errors.Is(err, ErrNotConnected) {
		t.Errorf("timeout misclassified: %v", err)
	}
}

func TestMQTTSinkBufferOverflowKeepsNewest(t *testing.T) {
	s, c := newTestSink(t, 2, false)
	for _, v := range []string{"a", "b", "c"} {
		_ = s.WriteValue(1, v)
	}

	c.setOpen(true)
	if err := s.WriteValue(1, "d"); err != nil {
		t.Fatalf("WriteValue: %v", err)
	}
	assertPayloads(t, c.payloads(), "b", "c", "d")
}

func TestMQTTSinkOnConnect(t *testing.T) {
	s, c := newTestSink(t, 8, false)
	_ = s.WriteValue(1, "a")

	c.setOpen(true)
	s.onConnect(c)
	assertPayloads(t, c.payloads(), "a")

	// A second connect is a reconnect and announces itself.
	s.onConnect(c)
	if len(c.sent) != 2 {
		t.Fatalf("published %d, want 2", len(c.sent))
	}
	ev := c.sent[1]
	if ev.topic != "ca/system" || ev.qos != 1 {
		t.Errorf("reconnect event: %+v", ev)
	}
	if want := `"event":"RECONNECTED"`; !strings.Contains(ev.payload, want) {
		t.Errorf("payload %s missing %s", ev.payload, want)
	}
}

func TestMQTTSinkReconnectAndClose(t *testing.T) {
	s, c := newTestSink(t, 8, true)

	if !s.IsConnected() {
		t.Fatal("expected connected")
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if s.IsConnected() {
		t.Error("expected disconnected after Close")
	}

	go func() {
		time.Sleep(50 * time.Millisecond)
		c.setOpen(true)
	}()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Reconnect(ctx); err != nil {
		t.Fatalf("Reconnect: %v", err)
	}
}
