package store

import (
	"context"
	"sync"
)

// MemorySlot is an in-process Slot. It also implements the change-source
// contract used by the sync watcher, signalling every successful write, so
// several task stores sharing one MemorySlot behave like separate processes
// sharing a durable slot.
type MemorySlot struct {
	mu       sync.Mutex
	data     []byte
	version  int64
	saveErr  error
	watchers map[chan struct{}]struct{}
}

// NewMemorySlot creates an empty MemorySlot.
func NewMemorySlot() *MemorySlot {
	return &MemorySlot{watchers: make(map[chan struct{}]struct{})}
}

// Load returns a copy of the stored bytes and their version.
func (s *MemorySlot) Load(ctx context.Context) ([]byte, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data == nil {
		return nil, s.version, nil
	}
	return append([]byte(nil), s.data...), s.version, nil
}

// Save stores data when the slot is still at expectedVersion.
func (s *MemorySlot) Save(ctx context.Context, data []byte, expectedVersion int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	if s.saveErr != nil {
		err := s.saveErr
		s.mu.Unlock()
		return 0, err
	}
	if s.version != expectedVersion {
		s.mu.Unlock()
		return 0, ErrVersionConflict
	}
	version := s.put(data)
	s.mu.Unlock()

	return version, nil
}

// Put overwrites the slot unconditionally, as an external writer would.
func (s *MemorySlot) Put(data []byte) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.put(data)
}

// SetSaveError makes every subsequent Save fail with err. Pass nil to clear.
func (s *MemorySlot) SetSaveError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveErr = err
}

// Watch returns a channel that receives a value after every write. The
// channel is buffered; bursts of writes collapse into one signal.
func (s *MemorySlot) Watch(ctx context.Context) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)

	s.mu.Lock()
	s.watchers[ch] = struct{}{}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.watchers, ch)
		close(ch)
		s.mu.Unlock()
	}()

	return ch, nil
}

// put must be called with s.mu held.
func (s *MemorySlot) put(data []byte) int64 {
	s.data = append([]byte(nil), data...)
	s.version++

	for ch := range s.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}

	return s.version
}
