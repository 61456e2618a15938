package mqtt

import "sync"

// Sent is one message captured by FakePublisher.
type Sent struct {
	Topic   string
	Event   SystemEvent
	Payload []byte
}

// FakePublisher captures lifecycle events in memory. It satisfies both
// Publisher and ConnectionStatus.
type FakePublisher struct {
	// Topic is recorded on every Sent; empty unless a test sets it.
	Topic string

	// Err, if set, fails every publish.
	Err error

	// FailAfter, if positive, fails publishes once that many have
	// succeeded. Err is returned, or ErrFakeBroker when Err is nil.
	FailAfter int

	// Connected is reported by IsConnected.
	Connected bool

	mu     sync.Mutex
	sent   []Sent
	closed bool
}

// ErrFakeBroker is the default FailAfter error.
var ErrFakeBroker = errFake("fake broker unavailable")

type errFake string

func (e errFake) Error() string { return string(e) }

// NewFakePublisher returns an empty, disconnected FakePublisher.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.Err != nil && f.FailAfter <= 0 {
		return f.Err
	}
	if f.FailAfter > 0 && len(f.sent) >= f.FailAfter {
		if f.Err != nil {
			return f.Err
		}
		return ErrFakeBroker
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.sent = append(f.sent, Sent{Topic: f.Topic, Event: event, Payload: payload})
	return nil
}

func (f *FakePublisher) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *FakePublisher) IsConnected() bool { return f.Connected }

// Sent returns a copy of everything published so far.
func (f *FakePublisher) Sent() []Sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Sent(nil), f.sent...)
}

// Last returns the most recent message. ok is false when nothing was sent.
func (f *FakePublisher) Last() (s Sent, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return Sent{}, false
	}
	return f.sent[len(f.sent)-1], true
}

// Names returns the event names in publish order.
func (f *FakePublisher) Names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, len(f.sent))
	for i, s := range f.sent {
		names[i] = s.Event.Event
	}
	return names
}

// Closed reports whether Close was called.
func (f *FakePublisher) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
