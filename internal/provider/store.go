package provider

import (
	"io"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"aetracker/internal/model"
)

// Listener is called after every commit with the committed snapshot.
type Listener func(model.Snapshot)

type listenerEntry struct {
	id uint64
	fn Listener
}

// Store holds the current snapshot. Reads are lock-free; commits are
// serialized and each one is published with a single pointer swap.
//
// Snapshots share their slices and maps with the store: treat them as
// read-only. Listeners run on the committing goroutine and must not commit
// themselves.
type Store struct {
	commitMu sync.Mutex
	cur      atomic.Pointer[model.Snapshot]

	listenMu  sync.Mutex
	listeners []listenerEntry
	nextID    uint64

	logger *slog.Logger
}

func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Store{logger: logger}
	empty := model.EmptySnapshot()
	s.cur.Store(&empty)
	return s
}

func (s *Store) Snapshot() model.Snapshot {
	return *s.cur.Load()
}

// Subscribe registers fn and returns a func that removes it. Calling the
// returned func more than once is harmless.
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	s.listenMu.Lock()
	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, listenerEntry{id: id, fn: fn})
	s.listenMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.listenMu.Lock()
			defer s.listenMu.Unlock()
			s.listeners = slices.DeleteFunc(s.listeners, func(e listenerEntry) bool { return e.id == id })
		})
	}
}

// update computes the next snapshot from the current one and commits it.
func (s *Store) update(fn func(cur model.Snapshot) model.Snapshot) model.Snapshot {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	next := fn(*s.cur.Load())
	s.cur.Store(&next)
	s.notify(next)
	return next
}

func (s *Store) notify(snap model.Snapshot) {
	s.listenMu.Lock()
	ls := slices.Clone(s.listeners)
	s.listenMu.Unlock()

	for _, l := range ls {
		s.call(l, snap)
	}
}

func (s *Store) call(l listenerEntry, snap model.Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("snapshot listener panicked", "listener", l.id, "panic", r)
		}
	}()
	l.fn(snap)
}
