package store

import "sync"

// hub fans out change notifications to owner-scoped observers.
//
// Each observer holds a one-slot dirty channel. Notifications coalesce: an
// observer that is busy re-querying sees at most one pending signal and
// re-reads the latest state once.
type hub struct {
	mu   sync.Mutex
	subs map[string]map[*observer]struct{}
}

type observer struct {
	dirty chan struct{}
}

func newHub() *hub {
	return &hub{subs: make(map[string]map[*observer]struct{})}
}

func (h *hub) subscribe(owner string) *observer {
	o := &observer{dirty: make(chan struct{}, 1)}

	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[owner]
	if !ok {
		set = make(map[*observer]struct{})
		h.subs[owner] = set
	}
	set[o] = struct{}{}
	return o
}

func (h *hub) unsubscribe(owner string, o *observer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.subs[owner]
	delete(set, o)
	if len(set) == 0 {
		delete(h.subs, owner)
	}
}

// notify marks every observer of the given owners dirty.
func (h *hub) notify(owners ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, owner := range owners {
		for o := range h.subs[owner] {
			o.mark()
		}
	}
}

func (h *hub) notifyAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, set := range h.subs {
		for o := range set {
			o.mark()
		}
	}
}

func (h *hub) observers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, set := range h.subs {
		n += len(set)
	}
	return n
}

func (o *observer) mark() {
	select {
	case o.dirty <- struct{}{}:
	default:
	}
}
