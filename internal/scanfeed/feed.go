// Package scanfeed is the event source the worker drains: devices append scan
// records, the worker subscribes to new ones and writes each outcome back.
package scanfeed

import (
	"context"
	"errors"
	"time"

	"rollcall/internal/attendance"
)

// ErrNoScans is returned by Latest before any scan was appended.
var ErrNoScans = errors.New("no scans recorded yet")

// ErrUnknownScan is returned by WriteOutcome for an id with no scan record.
var ErrUnknownScan = errors.New("scan record not found")

// Record is a scan as stored in the feed, including its write-back fields.
type Record struct {
	ID         string    `json:"id"`
	Tag        string    `json:"tag"`
	DeviceID   string    `json:"device_id"`
	ReceivedAt time.Time `json:"received_at"`
	Status     string    `json:"status,omitempty"`
	Response   string    `json:"response,omitempty"`
}

// Event converts the record into a pipeline input.
func (r Record) Event() attendance.ScanEvent {
	return attendance.ScanEvent{ID: r.ID, Tag: r.Tag, DeviceID: r.DeviceID, ReceivedAt: r.ReceivedAt}
}

// Feed is the abstraction over different backends.
type Feed interface {
	// Append stores a new scan and returns its id.
	Append(ctx context.Context, evt attendance.ScanEvent) (string, error)
	// Subscribe streams newly appended scans until ctx is canceled.
	Subscribe(ctx context.Context) (<-chan attendance.ScanEvent, error)
	// WriteOutcome sets status and response on the scan record id.
	WriteOutcome(ctx context.Context, id string, out attendance.Outcome) error
	// Latest returns the most recently appended scan.
	Latest(ctx context.Context) (Record, error)
}
