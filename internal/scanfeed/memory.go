package scanfeed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"rollcall/internal/attendance"
)

// InMemory is a channel-backed feed for dev/testing.
type InMemory struct {
	ch chan string

	mu      sync.RWMutex
	records map[string]Record
	latest  string
}

// NewInMemory creates a feed holding at most size pending scans.
func NewInMemory(size int) *InMemory {
	return &InMemory{
		ch:      make(chan string, size),
		records: make(map[string]Record),
	}
}

// Append stores evt and enqueues it for subscribers.
func (f *InMemory) Append(ctx context.Context, evt attendance.ScanEvent) (string, error) {
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	if evt.ReceivedAt.IsZero() {
		evt.ReceivedAt = time.Now().UTC()
	}
	f.mu.Lock()
	f.records[evt.ID] = Record{ID: evt.ID, Tag: evt.Tag, DeviceID: evt.DeviceID, ReceivedAt: evt.ReceivedAt}
	f.latest = evt.ID
	f.mu.Unlock()

	select {
	case f.ch <- evt.ID:
		return evt.ID, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Subscribe returns a channel of appended scans. An id taken off the queue
// after ctx is canceled is put back when there is room.
func (f *InMemory) Subscribe(ctx context.Context) (<-chan attendance.ScanEvent, error) {
	out := make(chan attendance.ScanEvent)
	go func() {
		defer close(out)
		for {
			select {
			case id := <-f.ch:
				rec, ok := f.Get(id)
				if !ok {
					continue
				}
				select {
				case out <- rec.Event():
				case <-ctx.Done():
					f.requeue(id)
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (f *InMemory) requeue(id string) {
	select {
	case f.ch <- id:
	default:
	}
}

// WriteOutcome records the outcome on the scan.
func (f *InMemory) WriteOutcome(_ context.Context, id string, out attendance.Outcome) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok {
		return fmt.Errorf("write outcome %s: %w", id, ErrUnknownScan)
	}
	rec.Status, rec.Response = string(out.Status), out.Reason
	f.records[id] = rec
	return nil
}

// Latest returns the last appended scan.
func (f *InMemory) Latest(_ context.Context) (Record, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.latest == "" {
		return Record{}, ErrNoScans
	}
	return f.records[f.latest], nil
}

// Get returns the scan stored under id.
func (f *InMemory) Get(id string) (Record, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	rec, ok := f.records[id]
	return rec, ok
}
