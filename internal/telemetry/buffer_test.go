package telemetry

import (
	"strconv"
	"testing"
)

func valueMsg(i int) bufferedMsg {
	return bufferedMsg{topic: Topics{Prefix: "ca"}.Value(1), payload: []byte(strconv.Itoa(i))}
}

func TestRingBufferEmptyDrain(t *testing.T) {
	rb := newRingBuffer(10)
	if got := rb.drainAll(); got != nil {
		t.Errorf("expected nil from empty drain, got %d items", len(got))
	}
}

func TestRingBufferPushAndDrain(t *testing.T) {
	rb := newRingBuffer(10)
	for i := 0; i < 5; i++ {
		rb.push(valueMsg(i))
	}

	got := rb.drainAll()
	if len(got) != 5 {
		t.Fatalf("expected 5 items, got %d", len(got))
	}
	for i, msg := range got {
		if string(msg.payload) != strconv.Itoa(i) {
			t.Errorf("item %d: expected payload %d, got %s", i, i, msg.payload)
		}
	}

	if got2 := rb.drainAll(); got2 != nil {
		t.Errorf("expected nil from second drain, got %d items", len(got2))
	}
}

func TestRingBufferOverflowKeepsNewest(t *testing.T) {
	capacity := 5
	rb := newRingBuffer(capacity)

	dropped := 0
	for i := 0; i < capacity+3; i++ {
		if rb.push(valueMsg(i)) {
			dropped++
		}
	}
	if dropped != 1 {
		t.Errorf("expected first overflow reported once, got %d", dropped)
	}

	got := rb.drainAll()
	if len(got) != capacity {
		t.Fatalf("expected %d items, got %d", capacity, len(got))
	}
	for i, msg := range got {
		want := strconv.Itoa(i + 3) // oldest 3 were dropped
		if string(msg.payload) != want {
			t.Errorf("item %d: expected payload %s, got %s", i, want, msg.payload)
		}
	}

	// Overflow state resets on drain.
	for i := 0; i < capacity+1; i++ {
		if rb.push(valueMsg(i)) {
			dropped++
		}
	}
	if dropped != 2 {
		t.Errorf("expected overflow reported again after drain, got %d", dropped)
	}
}

func TestRingBufferLen(t *testing.T) {
	rb := newRingBuffer(10)
	if rb.len() != 0 {
		t.Errorf("expected len 0, got %d", rb.len())
	}

	rb.push(valueMsg(1))
	rb.push(valueMsg(2))
	if rb.len() != 2 {
		t.Errorf("expected len 2, got %d", rb.len())
	}

	rb.drainAll()
	if rb.len() != 0 {
		t.Errorf("expected len 0 after drain, got %d", rb.len())
	}
}

func TestRingBufferMinimumCapacity(t *testing.T) {
	rb := newRingBuffer(0)
	rb.push(valueMsg(1))
	rb.push(valueMsg(2))

	got := rb.drainAll()
	if len(got) != 1 || string(got[0].payload) != "2" {
		t.Errorf("expected only newest message, got %+v", got)
	}
}

func TestRingBufferPreservesFields(t *testing.T) {
	rb := newRingBuffer(10)
	rb.push(bufferedMsg{
		topic:    "coin-acceptor/SN-1/system",
		payload:  []byte(`{"test":true}`),
		qos:      1,
		retained: true,
	})

	got := rb.drainAll()
	if len(got) != 1 {
		t.Fatalf("expected 1 item, got %d", len(got))
	}
	if got[0].topic != "coin-acceptor/SN-1/system" {
		t.Errorf("topic: got %s", got[0].topic)
	}
	if string(got[0].payload) != `{"test":true}` {
		t.Errorf("payload: got %s", got[0].payload)
	}
	if got[0].qos != 1 {
		t.Errorf("qos: got %d, want 1", got[0].qos)
	}
	if !got[0].retained {
		t.Error("retained: got false, want true")
	}
}
