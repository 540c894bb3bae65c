package remote

import (
	"context"
	"slices"
	"strings"
	"sync"
)

// Memory operation names for failure injection.
const (
	MemPut    = "put"
	MemDelete = "delete"
	MemList   = "list"
)

// Call is one operation received by a Memory backend.
type Call struct {
	Op         string
	Owner      string
	Collection string
	ID         string
}

// Memory is an in-process Backend. It records every call and can be told
// to fail or to hold writes, which makes it the backend of choice for tests
// and offline use.
type Memory struct {
	mu       sync.Mutex
	docs     map[string]map[string][]byte // owner/collection -> id -> data
	failures map[string]error
	calls    []Call
	gate     chan struct{}
}

// NewMemory creates an empty Memory backend.
func NewMemory() *Memory {
	return &Memory{
		docs:     make(map[string]map[string][]byte),
		failures: make(map[string]error),
	}
}

func memKey(owner, collection string) string {
	return owner + "/" + collection
}

// Put implements Backend.
func (m *Memory) Put(ctx context.Context, owner, collection, id string, data []byte) error {
	if err := m.enter(ctx, Call{Op: MemPut, Owner: owner, Collection: collection, ID: id}); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	k := memKey(owner, collection)
	if m.docs[k] == nil {
		m.docs[k] = make(map[string][]byte)
	}
	m.docs[k][id] = slices.Clone(data)
	return nil
}

// Delete implements Backend.
func (m *Memory) Delete(ctx context.Context, owner, collection, id string) error {
	if err := m.enter(ctx, Call{Op: MemDelete, Owner: owner, Collection: collection, ID: id}); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs[memKey(owner, collection)], id)
	return nil
}

// List implements Backend. Documents are returned in id order.
func (m *Memory) List(ctx context.Context, owner, collection string) ([]Document, error) {
	if err := m.enter(ctx, Call{Op: MemList, Owner: owner, Collection: collection}); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	coll := m.docs[memKey(owner, collection)]
	out := make([]Document, 0, len(coll))
	for id, data := range coll {
		out = append(out, Document{ID: id, Data: slices.Clone(data)})
	}
	slices.SortFunc(out, func(a, b Document) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

// Close implements Backend.
func (m *Memory) Close() error {
	return nil
}

// Fail makes every later op ("put", "delete" or "list") return err. A nil
// err clears the failure.
func (m *Memory) Fail(op string, err error) {
	m.FailID(op, "", err)
}

// FailID is Fail narrowed to the document id.
func (m *Memory) FailID(op, id string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := op + "/" + id
	if err == nil {
		delete(m.failures, k)
		return
	}
	m.failures[k] = err
}

// Hold blocks writes until the returned release func is called. Lists are
// not held.
func (m *Memory) Hold() (release func()) {
	gate := make(chan struct{})
	m.mu.Lock()
	m.gate = gate
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			if m.gate == gate {
				m.gate = nil
			}
			m.mu.Unlock()
			close(gate)
		})
	}
}

// Calls returns a copy of every call received so far.
func (m *Memory) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.calls)
}

// Get returns the stored document, if any.
func (m *Memory) Get(owner, collection, id string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.docs[memKey(owner, collection)][id]
	return slices.Clone(data), ok
}

// Seed stores a document without recording a call.
func (m *Memory) Seed(owner, collection, id string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := memKey(owner, collection)
	if m.docs[k] == nil {
		m.docs[k] = make(map[string][]byte)
	}
	m.docs[k][id] = slices.Clone(data)
}

// enter records c, waits for a held gate on writes and returns the injected
// failure for the op.
func (m *Memory) enter(ctx context.Context, c Call) error {
	m.mu.Lock()
	m.calls = append(m.calls, c)
	gate := m.gate
	m.mu.Unlock()

	if gate != nil && c.Op != MemList {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.failures[c.Op+"/"+c.ID]; ok {
		return err
	}
	return m.failures[c.Op+"/"]
}
