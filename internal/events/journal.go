package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Envelope is the wire form of a published event.
type Envelope struct {
	Seq     uint64          `json:"seq"`
	Name    string          `json:"name"`
	Time    time.Time       `json:"ts"`
	Payload json.RawMessage `json:"payload"`
}

// Decode returns the typed payload carried by the envelope.
func (e Envelope) Decode() (Payload, error) {
	return Decode(e.Name, e.Payload)
}

// Journal keeps the most recent events so remote subscribers (IPC, HTTP) can
// poll for them by sequence number.
type Journal struct {
	mu       sync.Mutex
	cond     *sync.Cond
	capacity int
	buffer   []Envelope
	nextSeq  uint64
	now      func() time.Time
}

// NewJournal constructs a bounded journal.
func NewJournal(capacity int) *Journal {
	if capacity <= 0 {
		capacity = 2048
	}
	j := &Journal{capacity: capacity, now: time.Now}
	j.cond = sync.NewCond(&j.mu)
	return j
}

// Attach subscribes the journal to every event on bus.
func (j *Journal) Attach(bus *Bus) func() {
	return bus.SubscribeAll(j.Append)
}

// Append records p. Marshal failures are impossible for the registered
// payload types and are dropped.
func (j *Journal) Append(p Payload) {
	body, err := json.Marshal(p)
	if err != nil {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.nextSeq++
	env := Envelope{Seq: j.nextSeq, Name: p.Kind().Name(), Time: j.now().UTC(), Payload: body}
	if len(j.buffer) == j.capacity {
		copy(j.buffer, j.buffer[1:])
		j.buffer = j.buffer[:j.capacity-1]
	}
	j.buffer = append(j.buffer, env)
	j.cond.Broadcast()
}

// Last returns the latest sequence number.
func (j *Journal) Last() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.nextSeq
}

// Fetch returns envelopes newer than since, at most limit. With wait set it
// blocks until something arrives or ctx ends. The returned cursor is the
// value to pass as since on the next call.
func (j *Journal) Fetch(ctx context.Context, since uint64, limit int, wait bool) ([]Envelope, uint64, error) {
	if limit <= 0 || limit > j.capacity {
		limit = j.capacity
	}
	stop := context.AfterFunc(ctx, func() {
		j.mu.Lock()
		j.cond.Broadcast()
		j.mu.Unlock()
	})
	defer stop()

	j.mu.Lock()
	defer j.mu.Unlock()
	for {
		if out, next := j.snapshotLocked(since, limit); len(out) > 0 || !wait {
			return out, next, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, since, err
		}
		j.cond.Wait()
	}
}

func (j *Journal) snapshotLocked(since uint64, limit int) ([]Envelope, uint64) {
	for i, env := range j.buffer {
		if env.Seq <= since {
			continue
		}
		end := min(i+limit, len(j.buffer))
		return append([]Envelope(nil), j.buffer[i:end]...), j.buffer[end-1].Seq
	}
	if since > j.nextSeq {
		return nil, j.nextSeq
	}
	return nil, since
}
