package realtime

import (
	"sort"
	"sync"

	"convivo.im.messaging/internal/model"
)

// Thread is the client-held message list for one open conversation. Merges
// are idempotent by message id, so duplicated or reordered delivery from
// the change feed converges to the same list. Page loads carry a
// generation token: a load that was superseded (rapid conversation
// switching) is discarded instead of overwriting newer state.
type Thread struct {
	mu       sync.Mutex
	messages []model.Message
	present  map[int64]bool
	gen      uint64
}

func NewThread() *Thread {
	return &Thread{
		present: make(map[int64]bool),
	}
}

// BeginLoad marks the start of a page fetch and returns its generation.
func (t *Thread) BeginLoad() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.gen++
	return t.gen
}

// CompleteLoad installs a fetched page if gen is still current. Returns
// false for a stale load, which leaves the thread untouched.
func (t *Thread) CompleteLoad(gen uint64, messages []model.Message) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if gen != t.gen {
		return false
	}

	t.messages = make([]model.Message, len(messages))
	copy(t.messages, messages)
	sort.Slice(t.messages, func(i, j int) bool {
		return t.messages[i].Before(&t.messages[j])
	})

	t.present = make(map[int64]bool, len(t.messages))
	for i := range t.messages {
		t.present[t.messages[i].ID] = true
	}
	return true
}

// Merge inserts the message in conversation order. Returns false if an
// entry with the same id is already held.
func (t *Thread) Merge(msg model.Message) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.present[msg.ID] {
		return false
	}

	idx := sort.Search(len(t.messages), func(i int) bool {
		return msg.Before(&t.messages[i])
	})
	t.messages = append(t.messages, model.Message{})
	copy(t.messages[idx+1:], t.messages[idx:])
	t.messages[idx] = msg
	t.present[msg.ID] = true
	return true
}

// Remove drops a message after a delete event. Unknown ids are a no-op.
func (t *Thread) Remove(id int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.present[id] {
		return false
	}

	delete(t.present, id)
	for i := range t.messages {
		if t.messages[i].ID == id {
			t.messages = append(t.messages[:i], t.messages[i+1:]...)
			break
		}
	}
	return true
}

// Messages returns a copy of the held list in conversation order.
func (t *Thread) Messages() []model.Message {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]model.Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Len returns the number of held messages.
func (t *Thread) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.messages)
}
