package attendance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// LedgerStore persists attendance records. InsertRecord must write the record
// and the audit entry atomically and return ErrDuplicateRecord when the key
// of rec is already taken.
type LedgerStore interface {
	FindRecord(ctx context.Context, key Key) (*Record, error)
	InsertRecord(ctx context.Context, rec Record, audit AuditEntry) error
}

// Result tells whether a call to TryRecord inserted a row.
type Result int

const (
	Inserted Result = iota + 1
	AlreadyExists
)

func (r Result) String() string {
	switch r {
	case Inserted:
		return "inserted"
	case AlreadyExists:
		return "already_exists"
	default:
		return "unknown"
	}
}

// Ledger enforces at most one record per (student, session, day).
type Ledger struct {
	store LedgerStore
	newID func() string
}

// NewLedger creates a ledger backed by store.
func NewLedger(store LedgerStore) *Ledger {
	return &Ledger{store: store, newID: uuid.NewString}
}

// Exists reports whether key already holds a record.
func (l *Ledger) Exists(ctx context.Context, key Key) (bool, error) {
	rec, err := l.store.FindRecord(ctx, key)
	if err != nil {
		return false, fmt.Errorf("find record %s: %w", key, err)
	}
	return rec != nil, nil
}

// Commit inserts a present record with its audit entry. A unique-key
// conflict at insert time is reported as AlreadyExists.
func (l *Ledger) Commit(ctx context.Context, studentID int64, session Session, room Room, now time.Time, scan ScanEvent) (Result, error) {
	detail, err := json.Marshal(scan)
	if err != nil {
		return 0, fmt.Errorf("encode audit detail: %w", err)
	}
	key := KeyFor(studentID, session.ID, now)
	rec := Record{
		ID:         l.newID(),
		StudentID:  studentID,
		SessionID:  session.ID,
		RoomID:     room.ID,
		Day:        key.Day,
		RecordedAt: now,
		Status:     RecordStatusPresent,
	}
	audit := AuditEntry{Event: AuditEventScan, Detail: string(detail), RecordedAt: now}

	if err := l.store.InsertRecord(ctx, rec, audit); err != nil {
		if errors.Is(err, ErrDuplicateRecord) {
			return AlreadyExists, nil
		}
		return 0, fmt.Errorf("insert record %s: %w", key, err)
	}
	return Inserted, nil
}

// TryRecord checks the key and commits when it is free.
func (l *Ledger) TryRecord(ctx context.Context, studentID int64, session Session, room Room, now time.Time, scan ScanEvent) (Result, error) {
	exists, err := l.Exists(ctx, KeyFor(studentID, session.ID, now))
	if err != nil {
		return 0, err
	}
	if exists {
		return AlreadyExists, nil
	}
	return l.Commit(ctx, studentID, session, room, now, scan)
}
