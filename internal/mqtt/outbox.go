package mqtt

import "log/slog"

// pending is a serialized message waiting for the broker.
type pending struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// outbox queues messages while the broker is unreachable. When full it
// evicts the oldest non-retained message (heartbeats) before touching
// retained lifecycle transitions. Callers synchronize.
type outbox struct {
	items   []pending
	limit   int
	dropped int
	log     *slog.Logger
}

func newOutbox(limit int, log *slog.Logger) *outbox {
	if limit < 1 {
		limit = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &outbox{items: make([]pending, 0, limit), limit: limit, log: log}
}

func (o *outbox) add(m pending) {
	if len(o.items) == o.limit {
		victim := 0
		for i, it := range o.items {
			if !it.retained {
				victim = i
				break
			}
		}
		if o.dropped == 0 {
			o.log.Warn("mqtt outbox full, dropping events", "limit", o.limit)
		}
		o.dropped++
		o.items = append(o.items[:victim], o.items[victim+1:]...)
	}
	o.items = append(o.items, m)
}

// take empties the outbox and returns its contents oldest first.
func (o *outbox) take() []pending {
	if len(o.items) == 0 {
		return nil
	}
	out := o.items
	o.items = make([]pending, 0, o.limit)
	o.dropped = 0
	return out
}

// requeue puts msgs back at the front, ahead of anything added since
// take. Overflow is evicted by the usual rule.
func (o *outbox) requeue(msgs []pending) {
	rest := o.items
	o.items = make([]pending, 0, o.limit)
	for _, m := range msgs {
		o.add(m)
	}
	for _, m := range rest {
		o.add(m)
	}
}

func (o *outbox) size() int { return len(o.items) }
