package apperrors

import (
	"net/http"
	"sync"
)

type NopTracker struct{}

func NewNopTracker() *NopTracker {
	return &NopTracker{}
}

func (t NopTracker) Track(level Level, errorText string, ctx map[string]interface{}) {}

func (t NopTracker) WithHTTPRequest(r *http.Request) Tracker {
	return t
}

type TrackedItem struct {
	Level Level
	Text  string
	Ctx   map[string]interface{}
}

// MemoryTracker keeps tracked errors, it's used by tests.
type MemoryTracker struct {
	mu    sync.Mutex
	items []TrackedItem
}

func (t *MemoryTracker) Track(level Level, errorText string, ctx map[string]interface{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items = append(t.items, TrackedItem{Level: level, Text: errorText, Ctx: ctx})
}

func (t *MemoryTracker) WithHTTPRequest(r *http.Request) Tracker {
	return t
}

func (t *MemoryTracker) Items() []TrackedItem {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]TrackedItem(nil), t.items...)
}
