package attendance

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepository keeps roster, timetable and ledger in process memory.
// It is used in tests and when STORE_BACKEND=memory.
type MemoryRepository struct {
	mu       sync.RWMutex
	students map[string]Student
	rooms    map[string]Room
	sessions []Session
	records  map[Key]Record
	audit    []AuditEntry
}

// NewMemoryRepository creates an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		students: make(map[string]Student),
		rooms:    make(map[string]Room),
		records:  make(map[Key]Record),
	}
}

// AddStudent registers a student under its tag.
func (m *MemoryRepository) AddStudent(st Student) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.students[st.RFIDTag] = st
}

// AddRoom registers a room under its reader device.
func (m *MemoryRepository) AddRoom(room Room) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rooms[room.ReaderDeviceTag] = room
}

// AddSession schedules a session.
func (m *MemoryRepository) AddSession(s Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = append(m.sessions, s)
}

func (m *MemoryRepository) StudentByTag(_ context.Context, tag string) (*Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.students[tag]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

func (m *MemoryRepository) RoomByDevice(_ context.Context, deviceTag string) (*Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.rooms[deviceTag]
	if !ok {
		return nil, nil
	}
	return &room, nil
}

func (m *MemoryRepository) SessionsFor(_ context.Context, programID, semesterID, roomID int64, weekday time.Weekday) ([]Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []Session
	for _, s := range m.sessions {
		if s.ProgramID == programID && s.SemesterID == semesterID && s.RoomID == roomID && s.Weekday == weekday {
			res = append(res, s)
		}
	}
	return res, nil
}

func (m *MemoryRepository) FindRecord(_ context.Context, key Key) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[key]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// InsertRecord stores rec and audit under one lock.
func (m *MemoryRepository) InsertRecord(_ context.Context, rec Record, audit AuditEntry) error {
	key := Key{StudentID: rec.StudentID, SessionID: rec.SessionID, Day: rec.Day}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[key]; ok {
		return ErrDuplicateRecord
	}
	m.records[key] = rec
	m.audit = append(m.audit, audit)
	return nil
}

// ListRecords returns every record, newest first.
func (m *MemoryRepository) ListRecords(_ context.Context) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]Record, 0, len(m.records))
	for _, rec := range m.records {
		res = append(res, rec)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].RecordedAt.After(res[j].RecordedAt) })
	return res, nil
}

// AuditLog returns a copy of the audit entries.
func (m *MemoryRepository) AuditLog() []AuditEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]AuditEntry(nil), m.audit...)
}
