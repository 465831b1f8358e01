package attendance

import (
	"context"
	"fmt"
	"time"
)

// Timetable lists scheduled sessions.
type Timetable interface {
	SessionsFor(ctx context.Context, programID, semesterID, roomID int64, weekday time.Weekday) ([]Session, error)
}

// ScheduleMatcher finds the session a scan attends.
type ScheduleMatcher struct {
	timetable Timetable
}

// NewScheduleMatcher creates a matcher over the given timetable.
func NewScheduleMatcher(tt Timetable) *ScheduleMatcher {
	return &ScheduleMatcher{timetable: tt}
}

// FindActiveSession returns the first session for the student's program and
// semester held in room on the weekday of now. Time of day is not considered.
func (m *ScheduleMatcher) FindActiveSession(ctx context.Context, st Student, room Room, now time.Time) (Session, error) {
	sessions, err := m.timetable.SessionsFor(ctx, st.ProgramID, st.SemesterID, room.ID, now.Weekday())
	if err != nil {
		return Session{}, fmt.Errorf("list sessions: %w", err)
	}
	if len(sessions) == 0 {
		return Session{}, ErrNoActiveSession
	}
	return sessions[0], nil
}
