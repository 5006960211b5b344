package app_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/okian/sessionmetrics/internal/adapters/repository"
)

var errDial = fmt.Errorf("dial tcp 10.0.0.1:443: %w", repository.ErrTransient)

// fakeStore serves a fixed source collection and records every call.
type fakeStore struct {
	mu sync.Mutex

	source     []json.RawMessage
	selectErrs []error // consumed one per Select call; nil entries succeed
	upsertErrs []error

	selectOffsets []int
	upsertCalls   int
	written       map[string]json.RawMessage
}

func newFakeStore(source ...json.RawMessage) *fakeStore {
	return &fakeStore{source: source, written: map[string]json.RawMessage{}}
}

func (f *fakeStore) Select(_ context.Context, _ string, offset, count int) ([]json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.selectOffsets = append(f.selectOffsets, offset)
	if len(f.selectErrs) > 0 {
		err := f.selectErrs[0]
		f.selectErrs = f.selectErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	if offset >= len(f.source) {
		return []json.RawMessage{}, nil
	}
	end := offset + count
	if end > len(f.source) {
		end = len(f.source)
	}
	return append([]json.RawMessage(nil), f.source[offset:end]...), nil
}

func (f *fakeStore) Upsert(_ context.Context, _ string, rows []json.RawMessage, conflictKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upsertCalls++
	if len(f.upsertErrs) > 0 {
		err := f.upsertErrs[0]
		f.upsertErrs = f.upsertErrs[1:]
		if err != nil {
			return err
		}
	}
	for _, row := range rows {
		var m map[string]any
		if err := json.Unmarshal(row, &m); err != nil {
			return err
		}
		f.written[fmt.Sprint(m[conflictKey])] = row
	}
	return nil
}

func (f *fakeStore) Close() error { return nil }

func session(id, employee, status string, endAt *string) json.RawMessage {
	b, _ := json.Marshal(map[string]any{
		"session_id":  id,
		"employee_id": employee,
		"status":      status,
		"start_at":    "2024-01-01T00:00:00Z",
		"end_at":      endAt,
	})
	return b
}

func strPtr(s string) *string { return &s }

func sessions(n int) []json.RawMessage {
	out := make([]json.RawMessage, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, session(fmt.Sprintf("s-%d", i), fmt.Sprintf("E%d", i%4), "completed", strPtr("2024-01-01T00:00:00Z")))
	}
	return out
}
