package feed

import "sync"

// History is a fixed-capacity, newest-first list with identity-based
// deduplication. It caps memory for ever-growing feeds (transactions,
// notifications): size never exceeds maxSize after any operation.
type History[T any] struct {
	mu      sync.Mutex
	maxSize int
	key     func(T) string
	items   []T
	present map[string]struct{}
}

// NewHistory creates a history capped at maxSize, using key to derive
// each item's identity.
func NewHistory[T any](maxSize int, key func(T) string) *History[T] {
	if maxSize < 1 {
		maxSize = 1
	}
	return &History[T]{
		maxSize: maxSize,
		key:     key,
		present: make(map[string]struct{}),
	}
}

// Add prepends item unless an item with the same identity already
// exists; duplicates are rejected and keep their original position.
// Reports whether the item was inserted.
func (h *History[T]) Add(item T) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.insert(item)
}

// AddBatch applies the Add rule per item. The batch's own order is
// preserved at the head of the list, and the cap is enforced once
// after all insertions.
func (h *History[T]) AddBatch(items []T) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	fresh := make([]T, 0, len(items))
	for _, item := range items {
		if _, dup := h.present[h.key(item)]; dup {
			continue
		}
		h.present[h.key(item)] = struct{}{}
		fresh = append(fresh, item)
	}
	if len(fresh) == 0 {
		return 0
	}
	h.items = append(fresh, h.items...)
	h.truncate()
	return len(fresh)
}

// AppendBatch adds items at the tail, for pages fetched newest page
// first: each later page holds older entries than the ones already
// present. Duplicates are rejected and keep their position; the cap
// evicts from the tail, so the oldest entries go first.
func (h *History[T]) AppendBatch(items []T) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	fresh := make([]T, 0, len(items))
	for _, item := range items {
		if _, dup := h.present[h.key(item)]; dup {
			continue
		}
		h.present[h.key(item)] = struct{}{}
		fresh = append(fresh, item)
	}
	if len(fresh) == 0 {
		return 0
	}
	h.items = append(h.items, fresh...)
	h.truncate()
	return len(fresh)
}

// Update replaces an existing item in place without changing its
// position. Reports whether the identity was found.
func (h *History[T]) Update(item T) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	k := h.key(item)
	for i := range h.items {
		if h.key(h.items[i]) == k {
			h.items[i] = item
			return true
		}
	}
	return false
}

// Remove deletes the item with the given identity key.
func (h *History[T]) Remove(key string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.present[key]; !ok {
		return false
	}
	delete(h.present, key)
	for i := range h.items {
		if h.key(h.items[i]) == key {
			h.items = append(h.items[:i], h.items[i+1:]...)
			break
		}
	}
	return true
}

// Items returns a copy of the list, newest first.
func (h *History[T]) Items() []T {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]T, len(h.items))
	copy(out, h.items)
	return out
}

// Len returns the current size.
func (h *History[T]) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.items)
}

// Contains reports whether an item with the key exists.
func (h *History[T]) Contains(key string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.present[key]
	return ok
}

func (h *History[T]) insert(item T) bool {
	k := h.key(item)
	if _, dup := h.present[k]; dup {
		return false
	}
	h.present[k] = struct{}{}
	h.items = append([]T{item}, h.items...)
	h.truncate()
	return true
}

func (h *History[T]) truncate() {
	for len(h.items) > h.maxSize {
		last := h.items[len(h.items)-1]
		delete(h.present, h.key(last))
		h.items = h.items[:len(h.items)-1]
	}
}
